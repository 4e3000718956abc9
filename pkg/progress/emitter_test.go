package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder() (*[]Event, Sink) {
	var events []Event
	return &events, SinkFunc(func(ctx context.Context, e Event) { events = append(events, e) })
}

func TestEmitter_Lifecycle(t *testing.T) {
	events, sink := recorder()
	e := NewEmitter(sink, "job-1")
	ctx := context.Background()

	e.Stage(ctx, StagePrepare, 5, "Validating request")
	e.Stage(ctx, StagePrepare, 10, "Building prompt")
	e.Generating(ctx, 0, 4, "Generating questions")
	e.Generating(ctx, 2, 4, "Generating questions")
	e.Generating(ctx, 4, 4, "Generating questions")
	e.Stage(ctx, StageSaving, 90, "Saving")
	e.Complete(ctx, "Done", map[string]interface{}{"count": 4})

	require.Len(t, *events, 7)
	var percents []int
	for _, ev := range *events {
		percents = append(percents, ev.Progress)
		assert.Equal(t, "job-1", ev.JobID)
	}
	assert.Equal(t, []int{5, 10, 30, 55, 80, 90, 100}, percents)
	last := (*events)[6]
	assert.Equal(t, EventComplete, last.Type)
	assert.Equal(t, StageDone, last.Stage)
}

func TestEmitter_Monotonic(t *testing.T) {
	events, sink := recorder()
	e := NewEmitter(sink, "")
	ctx := context.Background()

	e.Stage(ctx, StageSaving, 90, "Saving")
	e.Stage(ctx, StagePrepare, 5, "late")
	e.Stage(ctx, StageSaving, 150, "overflow")

	require.Len(t, *events, 3)
	assert.Equal(t, 90, (*events)[1].Progress)
	assert.Equal(t, 100, (*events)[2].Progress)
	assert.Equal(t, 100, e.Last())
}

func TestEmitter_SilentAfterTerminal(t *testing.T) {
	events, sink := recorder()
	e := NewEmitter(sink, "")
	ctx := context.Background()

	e.Stage(ctx, StageGenerating, 40, "Generating")
	e.Fail(ctx, "Generation failed", "backend unavailable")
	e.Complete(ctx, "Done", nil)
	e.Stage(ctx, StageSaving, 90, "Saving")

	require.Len(t, *events, 2)
	assert.Equal(t, EventError, (*events)[1].Type)
	assert.Equal(t, 40, (*events)[1].Progress)
	assert.Equal(t, "backend unavailable", (*events)[1].Error)
}
