package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Skeleton is a node hierarchy stored as a flat arena with parent indices. World transforms are
// computed in a single forward pass over an order in which every parent precedes its children.
type Skeleton struct {
	nodes  []Node
	order  []int
	world  []mgl32.Mat4
	byName map[string]int
}

// NewSkeleton validates the arena and computes its evaluation order.
//
// Parameters:
//   - nodes: the node arena; parents may appear after their children
//
// Returns:
//   - *Skeleton: the skeleton with world transforms evaluated
//   - error: error if a parent index is out of range or the hierarchy has a cycle
func NewSkeleton(nodes []Node) (*Skeleton, error) {
	depth := make([]int, len(nodes))
	for i := range nodes {
		d := 0
		for p := nodes[i].Parent; p != -1; p = nodes[p].Parent {
			if p < -1 || p >= len(nodes) {
				return nil, fmt.Errorf("node %d %q: parent %d out of range", i, nodes[i].Name, p)
			}
			d++
			if d > len(nodes) {
				return nil, fmt.Errorf("node %d %q: cycle in parent chain", i, nodes[i].Name)
			}
		}
		depth[i] = d
	}

	s := &Skeleton{
		nodes:  slices.Clone(nodes),
		order:  make([]int, len(nodes)),
		world:  make([]mgl32.Mat4, len(nodes)),
		byName: make(map[string]int, len(nodes)),
	}
	for i := range s.order {
		s.order[i] = i
	}
	slices.SortStableFunc(s.order, func(a, b int) int { return cmp.Compare(depth[a], depth[b]) })
	for i, n := range nodes {
		if _, dup := s.byName[n.Name]; !dup && n.Name != "" {
			s.byName[n.Name] = i
		}
	}
	s.Update()
	return s, nil
}

// Len returns the number of nodes.
func (s *Skeleton) Len() int {
	return len(s.nodes)
}

// Find returns the index of the first node named name, or -1.
func (s *Skeleton) Find(name string) int {
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}

// SetLocal replaces the local transform of node i. Call Update to refresh world transforms.
func (s *Skeleton) SetLocal(i int, t Transform) {
	s.nodes[i].Local = t
}

// Local returns the local transform of node i.
func (s *Skeleton) Local(i int) Transform {
	return s.nodes[i].Local
}

// Update recomputes every world transform.
func (s *Skeleton) Update() {
	for _, i := range s.order {
		local := s.nodes[i].Local.Matrix()
		if p := s.nodes[i].Parent; p >= 0 {
			s.world[i] = s.world[p].Mul4(local)
		} else {
			s.world[i] = local
		}
	}
}

// World returns the world transform of node i as of the last Update. A negative index is the
// model origin.
func (s *Skeleton) World(i int) mgl32.Mat4 {
	if s == nil || i < 0 || i >= len(s.world) {
		return mgl32.Ident4()
	}
	return s.world[i]
}
