package api

// DraftStatus is the review lifecycle state of a draft.
type DraftStatus string

const (
	// DraftStatusPending holds freshly generated variants awaiting a decision.
	DraftStatusPending DraftStatus = "pending"

	// DraftStatusSelected records the user's variant choice; the payload is
	// queued to be applied to the target entity.
	DraftStatusSelected DraftStatus = "selected"

	// DraftStatusRejected means no variant was accepted. The draft is kept
	// for audit and never deleted.
	DraftStatusRejected DraftStatus = "rejected"

	// DraftStatusRevised means feedback was attached and a follow-up
	// generation was spawned. The successor draft links back through
	// CreatedFromDraftID.
	DraftStatusRevised DraftStatus = "revised"

	// DraftStatusApplied means the selected variant has been committed to
	// the target entity. Terminal for this draft.
	DraftStatusApplied DraftStatus = "applied"

	// DraftStatusSuperseded means a newer generation for the same target
	// and content kind replaced this pending draft.
	DraftStatusSuperseded DraftStatus = "superseded"
)

// Variant count bounds for a pending draft.
const (
	MinVariants = 1
	MaxVariants = 5
)

// Draft wraps the output of one generation attempt-chain and tracks its
// review lifecycle. At most one draft per (TargetID, ContentKind) may be
// pending at a time.
type Draft struct {
	ID          string      `json:"id"`
	TargetKind  EntityKind  `json:"target_kind"`
	TargetID    string      `json:"target_id"`
	ContentKind ContentKind `json:"content_kind"`

	Variants []Variant   `json:"variants"`
	Status   DraftStatus `json:"status"`

	// SelectedVariant is the chosen variant index; nil until selected.
	SelectedVariant *int `json:"selected_variant,omitempty"`

	// Feedback is attached when the draft is revised.
	Feedback string `json:"feedback,omitempty"`

	// CreatedFromDraftID links a revision's successor back to its origin.
	CreatedFromDraftID string `json:"created_from_draft_id,omitempty"`

	// GenerationID names the attempt-chain that produced the variants.
	GenerationID string `json:"generation_id,omitempty"`

	// Error records a system failure attached during apply (for example a
	// rejected atomic batch).
	Error string `json:"error,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
