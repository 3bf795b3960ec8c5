package ingestion

import "time"

// Stage is a state of the ingestion state machine.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageEmbedding  Stage = "embedding"
	StageUpserting  Stage = "upserting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Stages lists the working stages in execution order.
var Stages = []Stage{StageFetching, StageExtracting, StageEmbedding, StageUpserting}

// Observer provides hooks to watch submissions move through the stages.
// Implementations must be safe for concurrent use.
type Observer interface {
	StageStarted(url string, stage Stage)
	StageFinished(url string, stage Stage, elapsed time.Duration, err error)
	Finished(outcome *Outcome)
}

// noopObserver is a no-op implementation of Observer
type noopObserver struct{}

var _ Observer = (*noopObserver)(nil)

func (n *noopObserver) StageStarted(_ string, _ Stage) {}
func (n *noopObserver) StageFinished(_ string, _ Stage, _ time.Duration, _ error) {}
func (n *noopObserver) Finished(_ *Outcome) {}
