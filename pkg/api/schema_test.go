package api

import (
	"encoding/json"
	"testing"
)

func projectSummarySchema() OutputSchema {
	return OutputSchema{
		Name: "project_summary",
		Fields: []FieldSpec{
			{Name: "title", Type: "string", Required: true},
			{Name: "genre", Type: "string", Required: true},
			{Name: "description", Type: "string", Required: true},
		},
	}
}

func characterListSchema(min, max int) OutputSchema {
	return OutputSchema{
		Name:      "character_list",
		ListField: "characters",
		Item: []FieldSpec{
			{Name: "name", Type: "string", Required: true},
			{Name: "role", Type: "string", Required: true},
			{Name: "description", Type: "string", Required: true},
			{Name: "relationships", Type: "object", Required: false},
		},
		MinItems:      min,
		MaxItems:      max,
		CrossRefField: "relationships",
		KeyField:      "name",
	}
}

func TestOutputSchemaValidate_Object(t *testing.T) {
	schema := projectSummarySchema()

	valid := json.RawMessage(`{"title":"Nebula Noir","genre":"sci-fi","description":"A detective drifts between stations."}`)
	if err := schema.Validate(valid); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	tests := []struct {
		name    string
		payload string
	}{
		{"missing field", `{"title":"Nebula Noir","genre":"sci-fi"}`},
		{"empty required", `{"title":"","genre":"sci-fi","description":"d"}`},
		{"wrong type", `{"title":42,"genre":"sci-fi","description":"d"}`},
		{"not an object", `["a"]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := schema.Validate(json.RawMessage(tc.payload))
			if err == nil {
				t.Fatal("invalid payload accepted")
			}
			if TypeOf(err) != ErrorTypeValidation {
				t.Errorf("error type = %q, want validation_error", TypeOf(err))
			}
		})
	}
}

func TestOutputSchemaValidate_ListCardinality(t *testing.T) {
	schema := characterListSchema(3, 8)

	short := json.RawMessage(`{"characters":[
		{"name":"Vex","role":"protagonist","description":"a detective"},
		{"name":"Mara","role":"antagonist","description":"a smuggler"}
	]}`)
	if err := schema.Validate(short); err == nil {
		t.Fatal("list below minimum cardinality accepted")
	}

	ok := json.RawMessage(`{"characters":[
		{"name":"Vex","role":"protagonist","description":"a detective"},
		{"name":"Mara","role":"antagonist","description":"a smuggler"},
		{"name":"Ilo","role":"supporting","description":"a dock clerk"}
	]}`)
	if err := schema.Validate(ok); err != nil {
		t.Fatalf("valid list rejected: %v", err)
	}
}

func TestOutputSchemaValidate_CrossReferences(t *testing.T) {
	schema := characterListSchema(1, 8)

	dangling := json.RawMessage(`{"characters":[
		{"name":"Vex","role":"protagonist","description":"d","relationships":{"Ghost":"former partner"}},
		{"name":"Mara","role":"antagonist","description":"d"}
	]}`)
	err := schema.Validate(dangling)
	if err == nil {
		t.Fatal("dangling cross-reference accepted")
	}
	if TypeOf(err) != ErrorTypeValidation {
		t.Errorf("error type = %q, want validation_error", TypeOf(err))
	}

	self := json.RawMessage(`{"characters":[
		{"name":"Vex","role":"protagonist","description":"d","relationships":{"Vex":"itself"}}
	]}`)
	if err := schema.Validate(self); err == nil {
		t.Fatal("self-reference accepted")
	}

	valid := json.RawMessage(`{"characters":[
		{"name":"Vex","role":"protagonist","description":"d","relationships":{"Mara":"rival"}},
		{"name":"Mara","role":"antagonist","description":"d","relationships":{"Vex":"rival"}}
	]}`)
	if err := schema.Validate(valid); err != nil {
		t.Fatalf("valid cross-references rejected: %v", err)
	}
}

func TestOutputSchemaJSONSchema(t *testing.T) {
	rendered := characterListSchema(3, 8).JSONSchema()
	props, ok := rendered["properties"].(map[string]any)
	if !ok {
		t.Fatal("rendered schema has no properties")
	}
	list, ok := props["characters"].(map[string]any)
	if !ok {
		t.Fatal("rendered schema missing list property")
	}
	if list["minItems"] != 3 || list["maxItems"] != 8 {
		t.Errorf("cardinality bounds not rendered: %v", list)
	}

	obj := projectSummarySchema().JSONSchema()
	req, _ := obj["required"].([]string)
	if len(req) != 3 {
		t.Errorf("required fields = %v, want 3 entries", req)
	}
}
