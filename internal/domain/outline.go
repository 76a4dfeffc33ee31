package domain

import (
	"fmt"
	"strings"
)

// BuildContext renders nodes as a hierarchically numbered outline ("1", "1.1",
// "1.2", "2", ...). Lines follow the order of nodes, so a post-order walk yields
// a bottom-up outline. Every line carries the node id verbatim because the
// provider must answer by id. The same input always renders the same text.
func BuildContext(nodes []FeatureNode) string {
	numbers := OutlineNumbers(nodes)

	var b strings.Builder
	for _, n := range nodes {
		num := numbers[n.ID]
		depth := strings.Count(num, ".")
		fmt.Fprintf(&b, "%s%s %s [id: %s]\n", strings.Repeat("  ", depth), num, n.DisplayTitle(), n.ID)
	}
	return b.String()
}

// OutlineNumbers assigns outline numbers to nodes. Nodes whose parent is not in
// the set are numbered as top-level entries in the order they appear; children
// are numbered in their parent's child order.
func OutlineNumbers(nodes []FeatureNode) map[string]string {
	inSet := make(map[string]FeatureNode, len(nodes))
	for _, n := range nodes {
		inSet[n.ID] = n
	}

	numbers := make(map[string]string, len(nodes))
	type frame struct {
		id     string
		number string
	}

	var stack []frame
	top := 0
	for _, n := range nodes {
		if _, hasParent := inSet[n.ParentID]; hasParent && n.ParentID != n.ID {
			continue
		}
		top++
		stack = append(stack, frame{id: n.ID, number: fmt.Sprint(top)})

		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, done := numbers[f.id]; done {
				continue
			}
			numbers[f.id] = f.number

			var children []string
			for _, c := range inSet[f.id].Children {
				if _, ok := inSet[c]; ok {
					children = append(children, c)
				}
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, frame{id: children[i], number: fmt.Sprintf("%s.%d", f.number, i+1)})
			}
		}
	}

	// Nodes only reachable through a cycle get a top-level number
	for _, n := range nodes {
		if _, ok := numbers[n.ID]; !ok {
			top++
			numbers[n.ID] = fmt.Sprint(top)
		}
	}
	return numbers
}
