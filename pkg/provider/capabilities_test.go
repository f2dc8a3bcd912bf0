package provider

import (
	"testing"

	"github.com/storyloom/storyloom/pkg/api"
)

func TestValidateCapabilities(t *testing.T) {
	schema := &api.OutputSchema{Name: "x", Fields: []api.FieldSpec{{Name: "a", Type: "string"}}}

	tests := []struct {
		name    string
		caps    Capabilities
		req     Request
		wantErr bool
	}{
		{
			name:    "structured output supported",
			caps:    Capabilities{StructuredOutput: true},
			req:     Request{Model: "m", Schema: schema, Variants: 1},
			wantErr: false,
		},
		{
			name:    "structured output unsupported",
			caps:    Capabilities{StructuredOutput: false},
			req:     Request{Model: "m", Schema: schema, Variants: 1},
			wantErr: true,
		},
		{
			name:    "too many variants",
			caps:    Capabilities{StructuredOutput: true, MaxVariants: 2},
			req:     Request{Model: "m", Variants: 3},
			wantErr: true,
		},
		{
			name:    "variants within limit",
			caps:    Capabilities{StructuredOutput: true, MaxVariants: 5},
			req:     Request{Model: "m", Variants: 3},
			wantErr: false,
		},
		{
			name:    "model not served",
			caps:    Capabilities{StructuredOutput: true, SupportedModels: []string{"a", "b"}},
			req:     Request{Model: "c", Variants: 1},
			wantErr: true,
		},
		{
			name:    "model served",
			caps:    Capabilities{StructuredOutput: true, SupportedModels: []string{"a", "b"}},
			req:     Request{Model: "b", Variants: 1},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCapabilities(tt.caps, &tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCapabilities() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err.Type != api.ErrorTypeCapability {
				t.Errorf("error type = %q, want capability_error", err.Type)
			}
		})
	}
}
