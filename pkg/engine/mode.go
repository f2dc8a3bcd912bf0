package engine

import "github.com/storyloom/storyloom/pkg/api"

// Decide determines the generation mode from already-resolved instructions.
// It is a pure function: instructions arrive most specific first, and the
// first explicit directive wins. Directive parsing happened once at
// instruction ingestion; no free text is inspected here. With no directive
// anywhere, the default is review.
func Decide(resolved []api.Instruction) api.GenerationMode {
	for _, ins := range resolved {
		switch ins.Directive {
		case api.DirectiveDirect:
			return api.ModeDirect
		case api.DirectiveReview:
			return api.ModeReview
		}
	}
	return api.ModeReview
}
