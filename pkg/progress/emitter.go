// Package progress publishes coarse lifecycle events for long-running jobs.
package progress

import (
	"context"
	"sync"
)

type Stage string

const (
	StagePrepare    Stage = "prepare"
	StageGenerating Stage = "generating"
	StageSaving     Stage = "saving"
	StageDone       Stage = "done"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Generation progress is spread over this range.
const (
	generatingFrom = 30
	generatingTo   = 80
)

type Event struct {
	Type     EventType   `json:"type"`
	JobID    string      `json:"jobId,omitempty"`
	Progress int         `json:"progress"`
	Label    string      `json:"label"`
	Stage    Stage       `json:"stage,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Sink delivers events to whoever watches the job.
type Sink interface {
	Deliver(ctx context.Context, event Event)
}

type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Deliver(ctx context.Context, event Event) { f(ctx, event) }

// Emitter never lets the reported percentage go backwards and goes quiet after the job
// completed or failed. Progress is informational only.
type Emitter struct {
	sink  Sink
	jobID string

	mu       sync.Mutex
	last     int
	finished bool
}

func NewEmitter(sink Sink, jobID string) *Emitter {
	return &Emitter{sink: sink, jobID: jobID}
}

func (e *Emitter) Stage(ctx context.Context, stage Stage, percent int, label string) {
	e.emit(ctx, Event{Type: EventProgress, Stage: stage, Progress: percent, Label: label}, false)
}

// Generating reports done out of total units inside the generating range.
func (e *Emitter) Generating(ctx context.Context, done, total int, label string) {
	percent := generatingFrom
	if total > 0 {
		if done > total {
			done = total
		}
		percent += (generatingTo - generatingFrom) * done / total
	}
	e.Stage(ctx, StageGenerating, percent, label)
}

func (e *Emitter) Complete(ctx context.Context, label string, data interface{}) {
	e.emit(ctx, Event{Type: EventComplete, Stage: StageDone, Progress: 100, Label: label, Data: data}, true)
}

func (e *Emitter) Fail(ctx context.Context, label, errMsg string) {
	e.emit(ctx, Event{Type: EventError, Label: label, Error: errMsg}, true)
}

func (e *Emitter) Last() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *Emitter) emit(ctx context.Context, event Event, final bool) {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return
	}
	if event.Progress > 100 {
		event.Progress = 100
	}
	if event.Progress < e.last {
		event.Progress = e.last
	}
	e.last = event.Progress
	e.finished = final
	event.JobID = e.jobID
	e.mu.Unlock()

	if e.sink != nil {
		e.sink.Deliver(ctx, event)
	}
}
