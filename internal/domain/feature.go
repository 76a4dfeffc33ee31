package domain

import (
	"fmt"
	"strings"
)

// FeatureNode is one specified feature ("object") in the feature tree.
// Identity is ID, which stays stable across scans; titles may be edited.
type FeatureNode struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	ParentID string   `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
}

// DisplayTitle returns the title, or the id when the title is blank
func (n FeatureNode) DisplayTitle() string {
	if t := strings.TrimSpace(n.Title); t != "" {
		return t
	}
	return n.ID
}

// Forest is an id-indexed arena holding the feature tree.
// Roots and Children preserve the order in which the tree store reported them.
type Forest struct {
	nodes map[string]*FeatureNode
	roots []string
}

// NewForest builds a forest from a flat node list. Children lists are derived
// from ParentID when a node does not carry them explicitly. A ParentID that
// does not exist in the list turns the node into a root.
func NewForest(nodes []FeatureNode) (*Forest, error) {
	f := &Forest{nodes: make(map[string]*FeatureNode, len(nodes))}

	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			return nil, fmt.Errorf("feature %q has an empty id", n.Title)
		}
		if _, dup := f.nodes[id]; dup {
			return nil, fmt.Errorf("duplicate feature id: %s", id)
		}
		node := n
		node.ID = id
		node.Children = append([]string(nil), n.Children...)
		f.nodes[id] = &node
		order = append(order, id)
	}

	// Derive children from parent links for nodes the parent did not list
	listed := make(map[string]bool)
	for _, id := range order {
		for _, child := range f.nodes[id].Children {
			listed[child] = true
		}
	}
	for _, id := range order {
		node := f.nodes[id]
		parent, ok := f.nodes[node.ParentID]
		if node.ParentID == "" || !ok {
			node.ParentID = ""
			if !listed[id] {
				f.roots = append(f.roots, id)
			}
			continue
		}
		if !listed[id] {
			parent.Children = append(parent.Children, id)
		}
	}

	// Drop children ids that are not part of the arena
	for _, id := range order {
		node := f.nodes[id]
		kept := node.Children[:0]
		for _, child := range node.Children {
			if c, ok := f.nodes[child]; ok {
				c.ParentID = id
				kept = append(kept, child)
			}
		}
		node.Children = kept
	}

	return f, nil
}

// Len returns the number of nodes in the forest
func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.nodes)
}

// Roots returns the ids of the top-level features
func (f *Forest) Roots() []string {
	return append([]string(nil), f.roots...)
}

// Node returns the node with the given id
func (f *Forest) Node(id string) (FeatureNode, bool) {
	n, ok := f.nodes[id]
	if !ok {
		return FeatureNode{}, false
	}
	return *n, true
}

// Has reports whether id is part of the forest
func (f *Forest) Has(id string) bool {
	_, ok := f.nodes[id]
	return ok
}

// Depth returns the number of ancestors of id (0 for roots)
func (f *Forest) Depth(id string) int {
	depth := 0
	seen := map[string]bool{id: true}
	current, ok := f.nodes[id]
	for ok && current.ParentID != "" && !seen[current.ParentID] {
		seen[current.ParentID] = true
		depth++
		current, ok = f.nodes[current.ParentID]
	}
	return depth
}

// Nodes returns all nodes in pre-order (parent before children)
func (f *Forest) Nodes() []FeatureNode {
	var result []FeatureNode
	for _, id := range f.preorder(f.roots) {
		result = append(result, *f.nodes[id])
	}
	return result
}

// Subtree returns id and all of its descendants in pre-order
func (f *Forest) Subtree(id string) ([]FeatureNode, error) {
	if !f.Has(id) {
		return nil, fmt.Errorf("feature not found: %s", id)
	}
	var result []FeatureNode
	for _, nid := range f.preorder([]string{id}) {
		result = append(result, *f.nodes[nid])
	}
	return result, nil
}

func (f *Forest) preorder(start []string) []string {
	var out []string
	visited := make(map[string]bool)

	stack := make([]string, 0, len(start))
	for i := len(start) - 1; i >= 0; i-- {
		stack = append(stack, start[i])
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		out = append(out, id)

		children := f.nodes[id].Children
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i]] {
				stack = append(stack, children[i])
			}
		}
	}
	return out
}
