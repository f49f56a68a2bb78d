package engine

import "testing"

const issueSchema = `{
  "type": "object",
  "required": ["issue"],
  "properties": {
    "issue": {
      "type": "object",
      "required": ["description"],
      "properties": {"description": {"type": "string", "minLength": 1}}
    }
  }
}`

func TestSchemaValidator(t *testing.T) {
	v, err := CompileSchema("test", issueSchema)
	if err != nil {
		t.Fatalf("CompileSchema: %v", err)
	}

	tests := []struct {
		name  string
		input map[string]any
		want  bool
	}{
		{"valid", map[string]any{"issue": map[string]any{"description": "payment failed"}}, true},
		{"nil input", nil, false},
		{"missing issue", map[string]any{}, false},
		{"empty description", map[string]any{"issue": map[string]any{"description": ""}}, false},
		{"wrong type", map[string]any{"issue": "payment failed"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Valid(tt.input); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileSchemaRejectsBadDocument(t *testing.T) {
	if _, err := CompileSchema("broken", `{"type": 12}`); err == nil {
		t.Error("CompileSchema() = nil, want error for invalid schema")
	}
}
