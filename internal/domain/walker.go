package domain

import "fmt"

// Walk returns every node of the forest in post-order: children before their
// parent, siblings in tree order. The tree must be acyclic; on a cycle each
// node is still visited at most once but the order is unspecified.
func (f *Forest) Walk() []FeatureNode {
	return f.postorder(f.roots)
}

// WalkFrom returns the subtree rooted at id in post-order, ending with id itself
func (f *Forest) WalkFrom(id string) ([]FeatureNode, error) {
	if !f.Has(id) {
		return nil, fmt.Errorf("feature not found: %s", id)
	}
	return f.postorder([]string{id}), nil
}

type walkFrame struct {
	id       string
	expanded bool
}

func (f *Forest) postorder(start []string) []FeatureNode {
	var out []FeatureNode
	visited := make(map[string]bool)

	stack := make([]walkFrame, 0, len(start))
	for i := len(start) - 1; i >= 0; i-- {
		stack = append(stack, walkFrame{id: start[i]})
	}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.expanded {
			out = append(out, *f.nodes[top.id])
			stack = stack[:len(stack)-1]
			continue
		}
		if visited[top.id] {
			stack = stack[:len(stack)-1]
			continue
		}
		visited[top.id] = true
		top.expanded = true

		children := f.nodes[top.id].Children
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i]] {
				stack = append(stack, walkFrame{id: children[i]})
			}
		}
	}
	return out
}
