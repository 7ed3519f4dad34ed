// Package scene records the run as a USDA scene description: a wall mesh
// textured with the per-frame paint images and a nozzle marker following
// the nozzle path. Prims are ECS entities; the writer walks them by query.
package scene

// Prim identifies a scene prim and its place in the hierarchy.
type Prim struct {
	Path  string   // absolute, e.g. /World/Wall
	Type  string   // Xform, Mesh, Material, Shader, Cylinder
	Meta  []string // prim metadata lines, e.g. apiSchemas
	Order int      // sibling order in the written file
}

// Attr is one authored attribute: a USDA declaration and its value.
// An empty Value declares the attribute without a default.
type Attr struct {
	Decl  string
	Value string
}

// Attrs holds a prim's static attributes in authoring order.
type Attrs struct {
	List []Attr
}

// Sample is one time-sampled value.
type Sample struct {
	Time  int
	Value string
}

// Track is a time-sampled attribute that grows by one sample per frame.
type Track struct {
	Decl    string
	Samples []Sample
}
