package scene

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/mlange-42/ark/ecs"
)

// node is a prim gathered from the world for writing.
type node struct {
	prim     *Prim
	attrs    *Attrs
	track    *Track
	children []*node
}

// collect queries every prim and arranges them into a tree rooted at RootPath.
func (s *Stage) collect() (*node, error) {
	tracks := make(map[ecs.Entity]*Track)
	tq := ecs.NewFilter1[Track](s.world).Query()
	for tq.Next() {
		tracks[tq.Entity()] = tq.Get()
	}

	byPath := make(map[string]*node)
	pq := ecs.NewFilter2[Prim, Attrs](s.world).Query()
	for pq.Next() {
		p, a := pq.Get()
		byPath[p.Path] = &node{prim: p, attrs: a, track: tracks[pq.Entity()]}
	}

	root, ok := byPath[RootPath]
	if !ok {
		return nil, fmt.Errorf("scene has no %s prim", RootPath)
	}
	for p, n := range byPath {
		if p == RootPath {
			continue
		}
		parent, ok := byPath[path.Dir(p)]
		if !ok {
			return nil, fmt.Errorf("prim %s has no parent", p)
		}
		parent.children = append(parent.children, n)
	}
	sortChildren(root)
	return root, nil
}

func sortChildren(n *node) {
	sort.Slice(n.children, func(i, j int) bool {
		a, b := n.children[i].prim, n.children[j].prim
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Path < b.Path
	})
	for _, c := range n.children {
		sortChildren(c)
	}
}

// Encode writes the stage as USDA text.
func (s *Stage) Encode(w io.Writer) error {
	root, err := s.collect()
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	end := max(s.frames-1, 0)
	fmt.Fprintf(bw, "#usda 1.0\n(\n")
	fmt.Fprintf(bw, "    defaultPrim = %q\n", path.Base(RootPath))
	fmt.Fprintf(bw, "    endTimeCode = %d\n", end)
	fmt.Fprintf(bw, "    startTimeCode = 0\n")
	fmt.Fprintf(bw, "    upAxis = \"Y\"\n")
	fmt.Fprintf(bw, ")\n\n")

	writeNode(bw, root, 0)
	return bw.Flush()
}

func writeNode(w *bufio.Writer, n *node, depth int) {
	ind := strings.Repeat("    ", depth)
	fmt.Fprintf(w, "%sdef %s %q", ind, n.prim.Type, path.Base(n.prim.Path))
	if len(n.prim.Meta) > 0 {
		fmt.Fprintf(w, " (\n")
		for _, m := range n.prim.Meta {
			fmt.Fprintf(w, "%s    %s\n", ind, m)
		}
		fmt.Fprintf(w, "%s)", ind)
	}
	fmt.Fprintf(w, "\n%s{\n", ind)

	for _, a := range n.attrs.List {
		if a.Value == "" {
			fmt.Fprintf(w, "%s    %s\n", ind, a.Decl)
			continue
		}
		fmt.Fprintf(w, "%s    %s = %s\n", ind, a.Decl, a.Value)
	}
	if n.track != nil && len(n.track.Samples) > 0 {
		fmt.Fprintf(w, "%s    %s.timeSamples = {\n", ind, n.track.Decl)
		for _, smp := range n.track.Samples {
			fmt.Fprintf(w, "%s        %d: %s,\n", ind, smp.Time, smp.Value)
		}
		fmt.Fprintf(w, "%s    }\n", ind)
	}

	for i, c := range n.children {
		if i > 0 || len(n.attrs.List) > 0 || n.track != nil {
			fmt.Fprintf(w, "\n")
		}
		writeNode(w, c, depth+1)
	}
	fmt.Fprintf(w, "%s}\n", ind)
}
