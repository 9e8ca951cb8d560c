package event

import (
	"time"

	"github.com/google/uuid"
)

// SnippetSubmitted is published when a submission has been accepted and a
// task spawned for it.
type SnippetSubmitted struct {
	TaskID uuid.UUID
	Bytes  int
}

func (SnippetSubmitted) Event() {}

// ExecutionFinished is published when a task has run to completion, whether
// the snippet succeeded or produced a diagnostic trace.
type ExecutionFinished struct {
	TaskID   uuid.UUID
	Failed   bool
	Duration time.Duration
}

func (ExecutionFinished) Event() {}

// HistoryCleared is published after the history log has been reset.
type HistoryCleared struct {
	Version int
}

func (HistoryCleared) Event() {}
