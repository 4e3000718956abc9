package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJobKinds_Defaults(t *testing.T) {
	reg, err := LoadJobKinds("")
	require.NoError(t, err)

	mock, ok := reg.Get("mock_interview")
	require.True(t, ok)
	assert.Equal(t, ModeConversational, mock.Mode)
	assert.Equal(t, 30, mock.MaxDurationMinutes)
	assert.Contains(t, mock.RenderOpening("Backend Engineer"), "Backend Engineer")

	quiz, ok := reg.Get("quiz")
	require.True(t, ok)
	assert.Equal(t, ModeOneShot, quiz.Mode)
	assert.Len(t, reg.All(), 3)
}

func TestLoadJobKinds_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
job_kinds:
  - name: panel
    mode: conversational
    max_duration_minutes: 60
    opening: "Welcome to {title}"
    title: the panel
    closing: bye
`), 0o600))

	reg, err := LoadJobKinds(path)
	require.NoError(t, err)
	panel, ok := reg.Get("panel")
	require.True(t, ok)
	assert.Equal(t, "panel", panel.WorkType)
	assert.Equal(t, "Welcome to the panel", panel.RenderOpening(""))
}

func TestParseJobKinds_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "job_kinds: []"},
		{"unknown mode", "job_kinds: [{name: a, mode: batch}]"},
		{"missing duration", "job_kinds: [{name: a, mode: conversational, opening: x, closing: y}]"},
		{"missing opening", "job_kinds: [{name: a, mode: conversational, max_duration_minutes: 5}]"},
		{"duplicate", "job_kinds: [{name: a, mode: one_shot}, {name: a, mode: one_shot}]"},
		{"not yaml", "job_kinds: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJobKinds([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseCreditPackages(t *testing.T) {
	packages, err := ParseCreditPackages("starter:10:50000, pro:30:135000")
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, CreditPackage{Id: "pro", Credits: 30, GrossAmount: 135000}, packages[1])

	_, err = ParseCreditPackages("broken:10")
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_INT", "nope")

	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 7, getEnvAsInt("TEST_INT", 7))
}
