package engine

import (
	"testing"

	"github.com/storyloom/storyloom/pkg/api"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name       string
		directives []api.Directive
		want       api.GenerationMode
	}{
		{"no instructions", nil, api.ModeReview},
		{"no directives", []api.Directive{api.DirectiveNone, api.DirectiveNone}, api.ModeReview},
		{"direct", []api.Directive{api.DirectiveDirect}, api.ModeDirect},
		{"review", []api.Directive{api.DirectiveReview}, api.ModeReview},
		{"first wins", []api.Directive{api.DirectiveDirect, api.DirectiveReview}, api.ModeDirect},
		{"none skipped", []api.Directive{api.DirectiveNone, api.DirectiveReview, api.DirectiveDirect}, api.ModeReview},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ins := make([]api.Instruction, len(tc.directives))
			for i, d := range tc.directives {
				ins[i] = api.Instruction{Directive: d}
			}
			if got := Decide(ins); got != tc.want {
				t.Errorf("Decide() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDecideDoesNotMutate(t *testing.T) {
	ins := []api.Instruction{
		{Directive: api.DirectiveNone, Text: "a"},
		{Directive: api.DirectiveDirect, Text: "b"},
	}
	before := make([]api.Instruction, len(ins))
	copy(before, ins)

	Decide(ins)

	for i := range ins {
		if ins[i] != before[i] {
			t.Fatalf("instruction %d mutated: %+v", i, ins[i])
		}
	}
}
