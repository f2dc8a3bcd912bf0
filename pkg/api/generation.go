package api

// GenerationStatus is the execution state of a generation attempt-chain.
type GenerationStatus string

const (
	GenerationStatusQueued    GenerationStatus = "queued"
	GenerationStatusRunning   GenerationStatus = "running"
	GenerationStatusCompleted GenerationStatus = "completed"
	GenerationStatusFailed    GenerationStatus = "failed"
	GenerationStatusCancelled GenerationStatus = "cancelled"
)

// Terminal reports whether the status allows no further transitions.
func (s GenerationStatus) Terminal() bool {
	switch s {
	case GenerationStatusCompleted, GenerationStatusFailed, GenerationStatusCancelled:
		return true
	}
	return false
}

// Generation tracks one generation attempt-chain as a single logical unit.
// Retries update AttemptCount on this record; they never create additional
// records. Only the executor and the draft lifecycle mutate a Generation.
type Generation struct {
	ID         string     `json:"id"`
	TaskKind   TaskKind   `json:"task_kind"`
	TargetKind EntityKind `json:"target_kind"`
	TargetID   string     `json:"target_id"`

	Mode  GenerationMode `json:"mode"`
	Model string         `json:"model,omitempty"`

	Status       GenerationStatus `json:"status"`
	AttemptCount int              `json:"attempt_count"`

	// StartedAt and FinishedAt are unix timestamps; zero means unset.
	StartedAt  int64 `json:"started_at,omitempty"`
	FinishedAt int64 `json:"finished_at,omitempty"`

	// Error preserves the last failure of the attempt-chain.
	Error string `json:"error,omitempty"`

	// DraftID is set once the chain's output is parked in a draft.
	DraftID string `json:"draft_id,omitempty"`

	CreatedAt int64 `json:"created_at"`
}
