package jobs

import (
	"fmt"

	"veriscope/internal/services"
)

// pipelineOrder lists the stages a job moves through, in execution order.
// StatusFailed is reachable from every non-terminal status and is therefore
// not part of the chain.
var pipelineOrder = []Status{
	StatusPending,
	StatusValidating,
	StatusExtracting,
	StatusTranscribing,
	StatusInferVideo,
	StatusInferAudio,
	StatusLipsync,
	StatusFusion,
	StatusReport,
	StatusDone,
}

var stageIndex = func() map[Status]int {
	idx := make(map[Status]int, len(pipelineOrder))
	for i, status := range pipelineOrder {
		idx[status] = i
	}
	return idx
}()

// PipelineOrder returns the stage chain from pending to done.
func PipelineOrder() []Status {
	cp := make([]Status, len(pipelineOrder))
	copy(cp, pipelineOrder)
	return cp
}

// NextStage returns the stage that follows current in pipeline order. The
// second return is false when current is terminal or unknown.
func NextStage(current Status) (Status, bool) {
	idx, ok := stageIndex[current]
	if !ok || idx+1 >= len(pipelineOrder) {
		return "", false
	}
	return pipelineOrder[idx+1], true
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status Status) bool {
	return status == StatusDone || status == StatusFailed
}

// ActiveStatuses returns every status a live job can hold, pending through
// report. Terminal statuses are excluded.
func ActiveStatuses() []Status {
	active := make([]Status, 0, len(pipelineOrder)-1)
	for _, status := range pipelineOrder {
		if status == StatusDone {
			continue
		}
		active = append(active, status)
	}
	return active
}

// CanTransition reports whether moving a job from one status to another is
// legal. Every non-terminal status may move to StatusFailed; otherwise only
// the immediately following stage is allowed. Skipping stages is not.
func CanTransition(from, to Status) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StatusFailed {
		_, known := statusSet[from]
		return known
	}
	next, ok := NextStage(from)
	return ok && next == to
}

// ValidateTransition returns a state error when from cannot move to to.
func ValidateTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: job cannot move from %s to %s", services.ErrState, from, to)
}
