package scene

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/sim"
)

// Nozzle marker geometry.
const (
	NozzleHeight = 0.5
	NozzleRadius = 0.12
)

// Prim paths.
const (
	RootPath     = "/World"
	WallPath     = "/World/Wall"
	MaterialPath = "/World/Mat"
	SurfacePath  = "/World/Mat/PreviewSurface"
	TexturePath  = "/World/Mat/Texture"
	ReaderPath   = "/World/Mat/stReader"
	NozzlePath   = "/World/Nozzle"
)

// Stage builds the scene and records one texture sample and one nozzle
// translate sample per exported frame. It implements sim.Exporter.
type Stage struct {
	world *ecs.World

	primMap  *ecs.Map2[Prim, Attrs]
	trackMap *ecs.Map3[Prim, Attrs, Track]
	tracks   *ecs.Map1[Track]

	texture ecs.Entity
	nozzle  ecs.Entity

	frames      int
	texturePath func(frame int) string
}

// NewStage creates the wall, material network and nozzle prims. texturePath
// maps a frame index to the image path, relative to the scene file.
func NewStage(cfg *config.Config, texturePath func(frame int) string) *Stage {
	world := ecs.NewWorld()
	s := &Stage{
		world:       world,
		primMap:     ecs.NewMap2[Prim, Attrs](world),
		trackMap:    ecs.NewMap3[Prim, Attrs, Track](world),
		tracks:      ecs.NewMap1[Track](world),
		frames:      cfg.Run.Frames,
		texturePath: texturePath,
	}

	s.addPrim(Prim{Path: RootPath, Type: "Xform"}, nil)

	p := cfg.Projection
	s.addPrim(Prim{
		Path:  WallPath,
		Type:  "Mesh",
		Meta:  []string{`prepend apiSchemas = ["MaterialBindingAPI"]`},
		Order: 0,
	}, []Attr{
		{"int[] faceVertexCounts", "[4]"},
		{"int[] faceVertexIndices", "[0, 1, 2, 3]"},
		{"rel material:binding", "<" + MaterialPath + ">"},
		{"point3f[] points", fmt.Sprintf("[%s, %s, %s, %s]",
			vec3(p.MinX, p.MinY, 0), vec3(p.MaxX, p.MinY, 0),
			vec3(p.MaxX, p.MaxY, 0), vec3(p.MinX, p.MaxY, 0))},
		{"texCoord2f[] primvars:st", "[(0, 0), (1, 0), (1, 1), (0, 1)]"},
		{"uniform token primvars:st:interpolation", `"varying"`},
	})

	s.addPrim(Prim{Path: MaterialPath, Type: "Material", Order: 1}, []Attr{
		{"token outputs:surface.connect", "<" + SurfacePath + ".outputs:surface>"},
	})
	s.addPrim(Prim{Path: SurfacePath, Type: "Shader", Order: 0}, []Attr{
		{"uniform token info:id", `"UsdPreviewSurface"`},
		{"color3f inputs:diffuseColor.connect", "<" + TexturePath + ".outputs:rgb>"},
		{"token outputs:surface", ""},
	})
	s.texture = s.addTrackedPrim(Prim{Path: TexturePath, Type: "Shader", Order: 1}, []Attr{
		{"uniform token info:id", `"UsdUVTexture"`},
		{"float4 inputs:fallback", "(1, 0, 0, 1)"},
		{"float4 inputs:scale", "(1, 1, 1, 1)"},
		{"float2 inputs:st.connect", "<" + ReaderPath + ".outputs:result>"},
		{"token inputs:wrapS", `"clamp"`},
		{"token inputs:wrapT", `"clamp"`},
		{"float3 outputs:rgb", ""},
	}, "asset inputs:file")
	s.addPrim(Prim{Path: ReaderPath, Type: "Shader", Order: 2}, []Attr{
		{"uniform token info:id", `"UsdPrimvarReader_float2"`},
		{"token inputs:varname", `"st"`},
		{"float2 outputs:result", ""},
	})

	s.nozzle = s.addTrackedPrim(Prim{Path: NozzlePath, Type: "Cylinder", Order: 2}, []Attr{
		{"double height", strconv.FormatFloat(NozzleHeight, 'g', -1, 64)},
		{"double radius", strconv.FormatFloat(NozzleRadius, 'g', -1, 64)},
		{"uniform token[] xformOpOrder", `["xformOp:translate"]`},
	}, "float3 xformOp:translate")

	return s
}

func (s *Stage) addPrim(p Prim, attrs []Attr) ecs.Entity {
	a := Attrs{List: attrs}
	return s.primMap.NewEntity(&p, &a)
}

func (s *Stage) addTrackedPrim(p Prim, attrs []Attr, trackDecl string) ecs.Entity {
	a := Attrs{List: attrs}
	t := Track{Decl: trackDecl, Samples: make([]Sample, 0, s.frames)}
	return s.trackMap.NewEntity(&p, &a, &t)
}

// Export implements sim.Exporter.
func (s *Stage) Export(f sim.Frame) error {
	tex := s.tracks.Get(s.texture)
	tex.Samples = append(tex.Samples, Sample{
		Time:  f.Index,
		Value: "@./" + path.Clean(s.texturePath(f.Index)) + "@",
	})

	nz := s.tracks.Get(s.nozzle)
	nz.Samples = append(nz.Samples, Sample{
		Time:  f.Index,
		Value: vec3(f.Pose.X, f.Pose.Y, f.Pose.Z),
	})
	return nil
}

// Samples returns how many frames have been recorded.
func (s *Stage) Samples() int {
	return len(s.tracks.Get(s.nozzle).Samples)
}

// WriteFile writes the stage as USDA.
func (s *Stage) WriteFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating scene file: %w", err)
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("writing scene: %w", err)
	}
	return f.Close()
}

func vec3(x, y, z float64) string {
	return fmt.Sprintf("(%s, %s, %s)", num(x), num(y), num(z))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 7, 64)
}
