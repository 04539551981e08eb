package configuration

import (
	"fmt"
	"strings"
)

// Field describes one expected property of a base.
type Field struct {
	Key      string
	Kind     Kind
	Required bool
	// Elem constrains array members when Kind is KindArray.
	Elem Kind
}

// Schema describes the keys a family of bases is expected to carry.
// Properties not named by the schema are permitted.
type Schema struct {
	Name   string
	Fields []Field
}

// FieldProblem is one violation found while validating a base.
type FieldProblem struct {
	Key    string
	Reason string
}

// SchemaError collects every problem found in one document.
type SchemaError struct {
	Path     string
	Schema   string
	Problems []FieldProblem
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: %s", p.Key, p.Reason)
	}
	return fmt.Sprintf("configuration base %s does not match schema %s: %s",
		e.Path, e.Schema, strings.Join(parts, "; "))
}

// Validate checks b against the schema and returns a *SchemaError listing
// all problems, or nil.
func (s *Schema) Validate(b *Base) error {
	var problems []FieldProblem
	for _, f := range s.Fields {
		v, ok := b.Get(f.Key)
		if !ok {
			if f.Required {
				problems = append(problems, FieldProblem{Key: f.Key, Reason: "missing"})
			}
			continue
		}
		if v.Kind() != f.Kind {
			problems = append(problems, FieldProblem{
				Key:    f.Key,
				Reason: fmt.Sprintf("expected %s, found %s", f.Kind, v.Kind()),
			})
			continue
		}
		if f.Kind == KindArray && f.Elem != KindInvalid {
			items, _ := v.AsArray()
			for i, item := range items {
				if item.Kind() != f.Elem {
					problems = append(problems, FieldProblem{
						Key:    fmt.Sprintf("%s[%d]", f.Key, i),
						Reason: fmt.Sprintf("expected %s, found %s", f.Elem, item.Kind()),
					})
				}
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &SchemaError{Path: b.Path(), Schema: s.Name, Problems: problems}
}

var (
	ManifestSchema = &Schema{
		Name: "bundle_manifest",
		Fields: []Field{
			{Key: "uuid", Kind: KindString, Required: true},
			{Key: "folders", Kind: KindArray, Elem: KindString, Required: true},
		},
	}

	WidgetSchema = &Schema{
		Name: "widget",
		Fields: []Field{
			{Key: "uuid", Kind: KindString, Required: true},
			{Key: "position_x", Kind: KindInteger, Required: true},
			{Key: "position_y", Kind: KindInteger, Required: true},
			{Key: "width", Kind: KindInteger, Required: true},
			{Key: "height", Kind: KindInteger, Required: true},
			{Key: "url", Kind: KindString},
		},
	}

	WifiSchema = &Schema{
		Name: "wifi_network",
		Fields: []Field{
			{Key: "name", Kind: KindString, Required: true},
			{Key: "password", Kind: KindString, Required: true},
		},
	}

	DashboardSchema = &Schema{
		Name: "dashboard",
		Fields: []Field{
			{Key: "screen_width", Kind: KindInteger, Required: true},
			{Key: "screen_height", Kind: KindInteger, Required: true},
		},
	}
)
