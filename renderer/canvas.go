// Package renderer draws the paint buffer and nozzle with raylib.
package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/spray/canvas"
	"github.com/pthm-cable/spray/nozzle"
	"github.com/pthm-cable/spray/spray"
)

// CanvasView uploads paint snapshots to a GPU texture and draws them.
type CanvasView struct {
	tex    rl.Texture2D
	texW   int
	texH   int
	pixels []color.RGBA

	initialized bool
}

// NewCanvasView creates an uninitialized view. The texture is created on
// the first Update, after the raylib window exists.
func NewCanvasView() *CanvasView {
	return &CanvasView{}
}

// Init creates the texture (must be called after the raylib window is created).
func (v *CanvasView) Init(w, h int) {
	if v.initialized {
		return
	}
	v.texW = w
	v.texH = h
	v.pixels = make([]color.RGBA, w*h)

	img := rl.GenImageColor(w, h, rl.Black)
	v.tex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(v.tex, rl.FilterBilinear)
	rl.UnloadImage(img)

	v.initialized = true
}

// Update uploads a snapshot. World row 0 is drawn at the bottom.
func (v *CanvasView) Update(s canvas.Snapshot) {
	if !v.initialized {
		v.Init(s.Width, s.Height)
	}
	if s.Width != v.texW || s.Height != v.texH {
		return
	}
	for y := 0; y < s.Height; y++ {
		dst := (s.Height - 1 - y) * s.Width
		for x := 0; x < s.Width; x++ {
			v.pixels[dst+x] = Heat(s.At(x, y))
		}
	}
	rl.UpdateTexture(v.tex, v.pixels)
}

// Draw renders the texture scaled into dst.
func (v *CanvasView) Draw(dst rl.Rectangle) {
	if !v.initialized {
		return
	}
	rl.DrawTexturePro(
		v.tex,
		rl.Rectangle{X: 0, Y: 0, Width: float32(v.texW), Height: float32(v.texH)},
		dst,
		rl.Vector2{X: 0, Y: 0},
		0,
		rl.White,
	)
	rl.DrawRectangleLinesEx(dst, 1, rl.DarkGray)
}

// DrawNozzle marks the nozzle position inside dst, or clamps it to the edge
// when the nozzle is outside the projection rectangle.
func DrawNozzle(dst rl.Rectangle, proj spray.Projection, pose nozzle.Pose) {
	u, w := proj.Normalize(pose.X, pose.Y)
	u = min(max(u, 0), 1)
	w = min(max(w, 0), 1)
	cx := dst.X + float32(u)*dst.Width
	cy := dst.Y + float32(1-w)*dst.Height
	rl.DrawCircleLines(int32(cx), int32(cy), 6, rl.Yellow)
	rl.DrawLine(int32(cx)-9, int32(cy), int32(cx)+9, int32(cy), rl.Yellow)
	rl.DrawLine(int32(cx), int32(cy)-9, int32(cx), int32(cy)+9, rl.Yellow)
}

// Unload releases the texture.
func (v *CanvasView) Unload() {
	if v.initialized {
		rl.UnloadTexture(v.tex)
		v.initialized = false
	}
}

// Heat maps an intensity in [0,1] to a dark-blue to white ramp.
func Heat(val float32) color.RGBA {
	v := min(max(val, 0), 1)
	if v == 0 {
		return color.RGBA{A: 255}
	}

	var r, g, b uint8
	switch {
	case v < 0.25:
		t := v / 0.25
		r = uint8(20 + t*20)
		g = uint8(20 + t*60)
		b = uint8(60 + t*100)
	case v < 0.5:
		t := (v - 0.25) / 0.25
		r = uint8(40 + t*20)
		g = uint8(80 + t*120)
		b = uint8(160 + t*40)
	case v < 0.75:
		t := (v - 0.5) / 0.25
		r = uint8(60 + t*140)
		g = uint8(200 - t*40)
		b = uint8(200 - t*150)
	default:
		t := (v - 0.75) / 0.25
		r = uint8(200 + t*55)
		g = uint8(160 + t*95)
		b = uint8(50 + t*205)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
