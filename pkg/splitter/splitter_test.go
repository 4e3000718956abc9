package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func feed(s *Splitter, fragments []string) []Event {
	var events []Event
	for _, f := range fragments {
		events = append(events, s.Push(f)...)
	}
	return append(events, s.Close()...)
}

func collect(events []Event) (primary, secondary string, boundaries []string) {
	var p, sec strings.Builder
	for _, e := range events {
		switch e.Kind {
		case KindPrimary:
			p.WriteString(e.Delta)
		case KindSecondary:
			sec.WriteString(e.Delta)
		case KindBoundary:
			boundaries = append(boundaries, e.Segment)
		}
	}
	return p.String(), sec.String(), boundaries
}

func TestSplitter_MarkerAcrossFragments(t *testing.T) {
	s := New("[MARKER]")
	events := feed(s, []string{"he", "llo[MARK", "ER]wor", "ld"})

	primary, secondary, boundaries := collect(events)
	assert.Equal(t, "hello", primary)
	assert.Equal(t, "world", secondary)
	assert.Equal(t, []string{"hello"}, boundaries)
	assert.Equal(t, "hello", s.Primary())
	assert.Equal(t, "world", s.Secondary())
}

func TestSplitter_EventOrder(t *testing.T) {
	s := New("[MARKER]")
	events := feed(s, []string{"he", "llo[MARK", "ER]wor", "ld"})

	var kinds []Kind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []Kind{KindPrimary, KindPrimary, KindBoundary, KindSecondary, KindSecondary}, kinds)
	// "[MARK" is held back until the next fragment resolves it
	assert.Equal(t, "llo", events[1].Delta)
}

func TestSplitter_Cases(t *testing.T) {
	tests := []struct {
		name       string
		fragments  []string
		primary    string
		secondary  string
		boundaries int
	}{
		{"no marker is reclassified as primary", []string{"what is ", "a goroutine?"}, "what is a goroutine?", "", 0},
		{"dangling marker prefix released at close", []string{"answer [MARK"}, "answer [MARK", "", 0},
		{"false prefix released on next fragment", []string{"a [MA", "ybe] b"}, "a [MAybe] b", "", 0},
		{"marker first", []string{"[MARKER]rest"}, "", "rest", 1},
		{"marker last", []string{"question", "[MARKER]"}, "question", "", 1},
		{"second marker stays in secondary", []string{"q[MARKER]a[MARKER]b"}, "q", "a[MARKER]b", 1},
		{"one char at a time", strings.Split("ab[MARKER]cd", ""), "ab", "cd", 1},
		{"empty fragments ignored", []string{"", "x", "", "[MARKER]", "", "y"}, "x", "y", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("[MARKER]")
			primary, secondary, boundaries := collect(feed(s, tt.fragments))
			assert.Equal(t, tt.primary, primary)
			assert.Equal(t, tt.secondary, secondary)
			assert.Len(t, boundaries, tt.boundaries)
			assert.Equal(t, tt.primary, s.Primary())
			assert.Equal(t, tt.secondary, s.Secondary())
		})
	}
}

func TestSplitter_PushAfterClose(t *testing.T) {
	s := New("[MARKER]")
	s.Push("a")
	s.Close()
	assert.Nil(t, s.Push("b"))
	assert.Nil(t, s.Close())
	assert.Equal(t, "a", s.Primary())
}

func TestSplit(t *testing.T) {
	p, sec, found := Split("Tell me about channels.[MARKER]They are typed conduits.", "[MARKER]")
	assert.True(t, found)
	assert.Equal(t, "Tell me about channels.", p)
	assert.Equal(t, "They are typed conduits.", sec)
}
