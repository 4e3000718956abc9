package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectRoundTrip(t *testing.T) {
	assert.Equal(t, "events.SESSION_COMPLETED", Subject("SESSION_COMPLETED"))
	assert.Equal(t, "SESSION_COMPLETED", EventType("events.SESSION_COMPLETED"))
	assert.Equal(t, "OTHER", EventType("OTHER"))
}

func TestDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	event, err := decode("events.QUIZ_COMPLETED", []byte(`{"result_id":"r-1","occurred_at":"`+at.Format(time.RFC3339Nano)+`"}`))
	require.NoError(t, err)
	assert.Equal(t, "QUIZ_COMPLETED", event.EventType())
	assert.Equal(t, "r-1", event.Payload()["result_id"])
	assert.True(t, at.Equal(event.Timestamp()))

	_, err = decode("events.QUIZ_COMPLETED", []byte(`not json`))
	assert.Error(t, err)
}
