package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/repository/memory"
	"ai-interview-be/pkg/ledger"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newCLI(t *testing.T) (*ledger.Ledger, *clock) {
	t.Helper()
	color.NoColor = true
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := ledger.New(memory.NewStore(), ledger.Config{FreeCredits: 2, RefundRetries: 1, RefundBackoff: time.Millisecond},
		logger.NewNopLogger(), ledger.WithClock(c.Now), ledger.WithSleep(func(time.Duration) {}))
	return l, c
}

func run(t *testing.T, l *ledger.Ledger, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(l)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPendingAndAbort(t *testing.T) {
	l, c := newCLI(t)
	userID := uuid.New()
	res, err := l.Begin(context.Background(), ledger.BeginRequest{UserID: userID, WorkType: "quiz", IdempotencyKey: "k1"})
	require.NoError(t, err)
	recordID := res.Ticket.RecordID

	out, err := run(t, l, "pending", "--older-than", "30m")
	require.NoError(t, err)
	assert.Contains(t, out, "No stale pending records")

	c.now = c.now.Add(time.Hour)
	out, err = run(t, l, "pending", "--older-than", "30m")
	require.NoError(t, err)
	assert.Contains(t, out, recordID.String())
	assert.Contains(t, out, "1 record(s) pending")

	out, err = run(t, l, "abort", recordID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "refunded")

	out, err = run(t, l, "balance", userID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "free:      2")
	assert.Contains(t, out, "total:     2")

	out, err = run(t, l, "pending", "--older-than", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "No stale pending records")
}

func TestCommandErrors(t *testing.T) {
	l, _ := newCLI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"abort needs a uuid", []string{"abort", "nope"}, "invalid record id"},
		{"abort unknown record", []string{"abort", uuid.NewString()}, ledger.ErrRecordNotFound.Error()},
		{"balance needs a uuid", []string{"balance", "42"}, "invalid user id"},
		{"negative threshold", []string{"pending", "--older-than=-1m"}, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, l, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
