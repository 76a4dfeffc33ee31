package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"specbook/internal/domain"
	"specbook/internal/ports"
)

// ObjectTree implements ports.ObjectTree from a YAML (or JSON) file.
// Features may be nested under children or listed flat with parentId:
//
//	features:
//	  - id: auth
//	    title: Authentication
//	    children:
//	      - id: auth-login
//	        title: Login
//	  - id: export
//	    title: Export
//	    parentId: reports
type ObjectTree struct {
	path string
}

var _ ports.ObjectTree = (*ObjectTree)(nil)

// NewObjectTree creates an object tree backed by the file at path
func NewObjectTree(path string) *ObjectTree {
	return &ObjectTree{path: path}
}

type objectFile struct {
	Features []objectNode `yaml:"features"`
}

type objectNode struct {
	ID       string       `yaml:"id"`
	Title    string       `yaml:"title"`
	ParentID string       `yaml:"parentId"`
	Children []objectNode `yaml:"children"`
}

// LoadForest reads and flattens the feature file
func (t *ObjectTree) LoadForest(ctx context.Context) (*domain.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("feature file not found: %s", t.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feature file: %w", err)
	}

	nodes, err := ParseObjects(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.path, err)
	}
	return domain.NewForest(nodes)
}

// ParseObjects flattens a feature document into nodes, parents before
// children, keeping document order among siblings
func ParseObjects(data []byte) ([]domain.FeatureNode, error) {
	var doc objectFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse feature file: %w", err)
	}

	type frame struct {
		node   objectNode
		parent string
	}

	var nodes []domain.FeatureNode
	stack := make([]frame, 0, len(doc.Features))
	for i := len(doc.Features) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: doc.Features[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parent := f.node.ParentID
		if f.parent != "" {
			parent = f.parent
		}

		n := domain.FeatureNode{
			ID:       f.node.ID,
			Title:    f.node.Title,
			ParentID: parent,
		}
		for _, c := range f.node.Children {
			n.Children = append(n.Children, c.ID)
		}
		nodes = append(nodes, n)

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], parent: f.node.ID})
		}
	}
	return nodes, nil
}
