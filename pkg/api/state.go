package api

import "fmt"

// draftTransitions enumerates the legal draft lifecycle. An empty "from"
// status represents the initial state before the draft exists. Every
// status may move to revised except superseded and revised itself; the
// revision spawns a successor draft rather than reusing this one.
// A selected draft falls back to rejected when its apply batch fails.
// Applied, superseded, and revised are otherwise terminal.
var draftTransitions = map[DraftStatus][]DraftStatus{
	"":                  {DraftStatusPending},
	DraftStatusPending:  {DraftStatusSelected, DraftStatusRejected, DraftStatusSuperseded, DraftStatusRevised},
	DraftStatusSelected: {DraftStatusApplied, DraftStatusRejected, DraftStatusRevised},
	DraftStatusRejected: {DraftStatusRevised},
	DraftStatusApplied:  {DraftStatusRevised},
	DraftStatusSuperseded: {}, // terminal
	DraftStatusRevised:    {}, // terminal; successor draft starts at pending
}

// ValidateDraftTransition checks whether a draft status transition is
// legal. No transition skips states: pending cannot reach applied without
// passing through selected.
func ValidateDraftTransition(from, to DraftStatus) *Error {
	allowed, exists := draftTransitions[from]
	if !exists {
		return NewConflictError(fmt.Sprintf("invalid draft transition from %s to %s", from, to))
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return NewConflictError(fmt.Sprintf("invalid draft transition from %s to %s", from, to))
}

// generationTransitions enumerates the legal generation lifecycle.
// Completed, failed, and cancelled are terminal. Cancellation is distinct
// from failure and may interrupt a queued or running chain.
var generationTransitions = map[GenerationStatus][]GenerationStatus{
	"":                      {GenerationStatusQueued},
	GenerationStatusQueued:  {GenerationStatusRunning, GenerationStatusCancelled},
	GenerationStatusRunning: {GenerationStatusCompleted, GenerationStatusFailed, GenerationStatusCancelled},
	GenerationStatusCompleted: {}, // terminal
	GenerationStatusFailed:    {}, // terminal
	GenerationStatusCancelled: {}, // terminal
}

// ValidateGenerationTransition checks whether a generation status
// transition is legal.
func ValidateGenerationTransition(from, to GenerationStatus) *Error {
	allowed, exists := generationTransitions[from]
	if !exists {
		return NewConflictError(fmt.Sprintf("invalid generation transition from %s to %s", from, to))
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return NewConflictError(fmt.Sprintf("invalid generation transition from %s to %s", from, to))
}
