package api

import "strings"

// Directive is the enumerated generation-mode intent attached to an
// instruction. It is parsed from the instruction text exactly once, when
// the instruction is written; mode decisions never re-scan free text.
type Directive string

const (
	// DirectiveNone means the instruction says nothing about review mode.
	DirectiveNone Directive = ""

	// DirectiveDirect requests unattended application of generated output.
	DirectiveDirect Directive = "direct"

	// DirectiveReview requests that output pass through draft review.
	DirectiveReview Directive = "review"
)

// MaxPriority is the upper bound of the instruction priority range.
const MaxPriority = 1000

// Instruction is a creative instruction attached to exactly one scope node.
// Priority breaks ties among instructions at the same scope level for the
// same content kind; scope level always dominates priority.
type Instruction struct {
	ID          string      `json:"id"`
	ScopeKind   EntityKind  `json:"scope_kind"`
	ScopeID     string      `json:"scope_id"`
	ContentKind ContentKind `json:"content_kind"`
	Text        string      `json:"text"`
	Priority    int         `json:"priority"`
	Directive   Directive   `json:"directive,omitempty"`
	Active      bool        `json:"active"`
	CreatedAt   int64       `json:"created_at"`
}

// directKeywords and reviewKeywords are matched case-insensitively against
// instruction text at ingestion time. Direct keywords are checked first;
// an instruction asking to "skip review" contains "review" as a substring.
var (
	directKeywords = []string{
		"auto-apply", "auto apply", "apply directly", "without review",
		"skip review", "no review", "unattended",
	}
	reviewKeywords = []string{
		"review", "approval", "approve", "confirm before",
	}
)

// ParseDirective extracts the mode directive from free instruction text.
// Returns DirectiveNone when the text carries no recognizable intent.
func ParseDirective(text string) Directive {
	lower := strings.ToLower(text)
	for _, kw := range directKeywords {
		if strings.Contains(lower, kw) {
			return DirectiveDirect
		}
	}
	for _, kw := range reviewKeywords {
		if strings.Contains(lower, kw) {
			return DirectiveReview
		}
	}
	return DirectiveNone
}
