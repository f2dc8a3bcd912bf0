package api

import (
	"encoding/json"
	"fmt"
)

// FieldSpec describes one expected field of a generated payload.
type FieldSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "string", "integer", or "object"
	Required bool   `json:"required"`
}

// OutputSchema is a structural description of the payload a generation
// must produce. It is not a prose prompt: the executor renders it into the
// provider's schema-constrained output format and validates the returned
// payload against it.
//
// For object outputs only Fields is set. For list outputs ListField names
// the array property, Item describes the element fields, and MinItems/
// MaxItems bound the cardinality. When CrossRefField is set, each element's
// map under that field must key only values of KeyField carried by other
// elements of the same list.
type OutputSchema struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields,omitempty"`

	ListField string      `json:"list_field,omitempty"`
	Item      []FieldSpec `json:"item,omitempty"`
	MinItems  int         `json:"min_items,omitempty"`
	MaxItems  int         `json:"max_items,omitempty"`

	CrossRefField string `json:"cross_ref_field,omitempty"`
	KeyField      string `json:"key_field,omitempty"`
}

// IsList reports whether the schema describes a list output.
func (s OutputSchema) IsList() bool {
	return s.ListField != ""
}

// Validate checks a generated payload against the schema. Violations are
// validation errors: the executor treats them as recoverable and retries.
func (s OutputSchema) Validate(payload json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return NewValidationError("", fmt.Sprintf("payload is not a JSON object: %s", err.Error()))
	}

	if !s.IsList() {
		return validateFields(doc, s.Fields, "")
	}

	raw, ok := doc[s.ListField]
	if !ok {
		return NewValidationError(s.ListField, "missing list field")
	}
	items, ok := raw.([]any)
	if !ok {
		return NewValidationError(s.ListField, "list field is not an array")
	}
	if s.MinItems > 0 && len(items) < s.MinItems {
		return NewValidationError(s.ListField,
			fmt.Sprintf("expected at least %d items, got %d", s.MinItems, len(items)))
	}
	if s.MaxItems > 0 && len(items) > s.MaxItems {
		return NewValidationError(s.ListField,
			fmt.Sprintf("expected at most %d items, got %d", s.MaxItems, len(items)))
	}

	elems := make([]map[string]any, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return NewValidationError(s.ListField, fmt.Sprintf("item %d is not an object", i))
		}
		if err := validateFields(obj, s.Item, fmt.Sprintf("%s[%d].", s.ListField, i)); err != nil {
			return err
		}
		elems = append(elems, obj)
	}

	if s.CrossRefField != "" && s.KeyField != "" {
		return s.validateCrossRefs(elems)
	}
	return nil
}

// validateCrossRefs enforces that every key of each element's cross-ref
// map names another element of the same list. A dangling or self-directed
// reference is a validation failure, not a silent pass-through.
func (s OutputSchema) validateCrossRefs(elems []map[string]any) error {
	keys := make(map[string]bool, len(elems))
	for _, e := range elems {
		if k, ok := e[s.KeyField].(string); ok {
			keys[k] = true
		}
	}
	for i, e := range elems {
		self, _ := e[s.KeyField].(string)
		raw, ok := e[s.CrossRefField]
		if !ok || raw == nil {
			continue
		}
		refs, ok := raw.(map[string]any)
		if !ok {
			return NewValidationError(s.CrossRefField,
				fmt.Sprintf("%s[%d].%s is not an object", s.ListField, i, s.CrossRefField))
		}
		for ref := range refs {
			if !keys[ref] {
				return NewValidationError(s.CrossRefField,
					fmt.Sprintf("%s[%d] references unknown %s %q", s.ListField, i, s.KeyField, ref))
			}
			if ref == self {
				return NewValidationError(s.CrossRefField,
					fmt.Sprintf("%s[%d] references itself", s.ListField, i))
			}
		}
	}
	return nil
}

func validateFields(obj map[string]any, fields []FieldSpec, prefix string) error {
	for _, f := range fields {
		raw, ok := obj[f.Name]
		if !ok || raw == nil {
			if f.Required {
				return NewValidationError(prefix+f.Name, "missing required field")
			}
			continue
		}
		switch f.Type {
		case "string":
			str, ok := raw.(string)
			if !ok {
				return NewValidationError(prefix+f.Name, "expected a string")
			}
			if f.Required && str == "" {
				return NewValidationError(prefix+f.Name, "required field is empty")
			}
		case "integer":
			// JSON numbers decode as float64.
			num, ok := raw.(float64)
			if !ok || num != float64(int64(num)) {
				return NewValidationError(prefix+f.Name, "expected an integer")
			}
		case "object":
			if _, ok := raw.(map[string]any); !ok {
				return NewValidationError(prefix+f.Name, "expected an object")
			}
		}
	}
	return nil
}

// JSONSchema renders the output schema as a JSON Schema document for
// providers that support schema-constrained output.
func (s OutputSchema) JSONSchema() map[string]any {
	if !s.IsList() {
		return objectSchema(s.Fields)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			s.ListField: map[string]any{
				"type":     "array",
				"items":    objectSchema(s.Item),
				"minItems": s.MinItems,
				"maxItems": s.MaxItems,
			},
		},
		"required":             []string{s.ListField},
		"additionalProperties": false,
	}
}

func objectSchema(fields []FieldSpec) map[string]any {
	props := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		switch f.Type {
		case "integer":
			props[f.Name] = map[string]any{"type": "integer"}
		case "object":
			props[f.Name] = map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			}
		default:
			props[f.Name] = map[string]any{"type": "string"}
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
