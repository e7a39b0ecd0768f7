// Package appdef loads the element trees generated applications are built from.
package appdef

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
)

// RootKind is the kind of the node every definition is rooted at.
const RootKind = "app"

// Definition is an application: a named root and its element tree.
type Definition struct {
	Name     string    `yaml:"name"`
	Elements []Element `yaml:"elements,omitempty"`
}

// Element is one UI element. Its path is the dot-joined names from the root.
type Element struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Props    map[string]any `yaml:"props,omitempty"`
	Elements []Element      `yaml:"elements,omitempty"`
}

// Node is an element flattened to its path.
type Node struct {
	Path   string
	Parent string
	Kind   string
	Props  map[string]any
	Depth  int
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDefinition, "failed to parse application definition").
			UserAction().
			Build()
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and parses the definition at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NotFoundError("application definition not found").
				WithContext("file", path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryDefinition, "failed to read application definition").
			WithContext("file", path).
			Build()
	}
	def, err := Parse(data)
	if err != nil {
		if ce, ok := ferrors.AsClassified(err); ok {
			return nil, ce.WithContext("file", path)
		}
		return nil, err
	}
	return def, nil
}

// Validate checks names and kinds. Kinds are only checked for presence; the
// runtime decides which kinds exist.
func (d *Definition) Validate() error {
	if err := validateName(d.Name, "name"); err != nil {
		return err
	}
	return validateElements(d.Elements, d.Name)
}

func validateElements(elements []Element, parent string) error {
	seen := make(map[string]struct{}, len(elements))
	for i, el := range elements {
		where := fmt.Sprintf("%s.elements[%d]", parent, i)
		if err := validateName(el.Name, where); err != nil {
			return err
		}
		if _, dup := seen[el.Name]; dup {
			return ferrors.DefinitionError("duplicate element name").
				WithPath(pubsub.Join(parent, el.Name)).
				Build()
		}
		seen[el.Name] = struct{}{}
		if strings.TrimSpace(el.Kind) == "" {
			return ferrors.DefinitionError("element has no kind").
				WithPath(pubsub.Join(parent, el.Name)).
				Build()
		}
		if err := validateElements(el.Elements, pubsub.Join(parent, el.Name)); err != nil {
			return err
		}
	}
	return nil
}

func validateName(name, where string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return ferrors.DefinitionError("name must not be empty").WithContext("at", where).Build()
	case strings.Contains(name, pubsub.Separator):
		return ferrors.DefinitionError("name must not contain the path separator").
			WithContext("at", where).
			WithContext("name", name).
			Build()
	}
	return nil
}

// Nodes flattens the tree in pre-order, root first.
func (d *Definition) Nodes() []Node {
	nodes := []Node{{Path: d.Name, Kind: RootKind, Props: map[string]any{"name": d.Name}}}
	var walk func(elements []Element, parent string, depth int)
	walk = func(elements []Element, parent string, depth int) {
		for _, el := range elements {
			path := pubsub.Join(parent, el.Name)
			nodes = append(nodes, Node{
				Path:   path,
				Parent: parent,
				Kind:   el.Kind,
				Props:  maps.Clone(el.Props),
				Depth:  depth,
			})
			walk(el.Elements, path, depth+1)
		}
	}
	walk(d.Elements, d.Name, 1)
	return nodes
}

// Marshal encodes the definition as YAML.
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Example returns a small sign-up application touching every built-in kind.
func Example() *Definition {
	return &Definition{
		Name: "app1",
		Elements: []Element{
			{
				Name:  "page1",
				Kind:  "page",
				Props: map[string]any{"title": "Sign up"},
				Elements: []Element{
					{Name: "intro", Kind: "text", Props: map[string]any{"text": "Tell us who you are"}},
					{
						Name:  "form1",
						Kind:  "form",
						Props: map[string]any{"title": "Details"},
						Elements: []Element{
							{Name: "name", Kind: "field", Props: map[string]any{"label": "Name", "initial": "", "required": true}},
							{Name: "email", Kind: "field", Props: map[string]any{"label": "Email", "initial": ""}},
							{Name: "submit", Kind: "button", Props: map[string]any{"label": "Submit"}},
						},
					},
					{Name: "visits", Kind: "counter", Props: map[string]any{"start": 0}},
					{Name: "tags", Kind: "list", Props: map[string]any{"items": []any{"new", "trial"}}},
				},
			},
		},
	}
}
