// Package splitter re-partitions a stream of text fragments into a primary and a secondary
// segment separated by an in-band marker.
package splitter

import "strings"

type Kind int

const (
	// KindPrimary carries a delta of the text before the marker.
	KindPrimary Kind = iota
	// KindBoundary fires once, when the marker is recognized. Segment holds the full primary text.
	KindBoundary
	// KindSecondary carries a delta of the text after the marker.
	KindSecondary
)

func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindBoundary:
		return "boundary"
	case KindSecondary:
		return "secondary"
	}
	return "unknown"
}

type Event struct {
	Kind    Kind
	Delta   string
	Segment string
}

// Splitter is not safe for concurrent use; one instance serves one stream.
type Splitter struct {
	marker string
	buf    strings.Builder

	found       bool
	markerAt    int
	primarySent int
	secondSent  int
	closed      bool
}

func New(marker string) *Splitter {
	return &Splitter{marker: marker}
}

// Push appends a fragment and returns the events it makes available. Text that could be the
// start of a marker is held back until the next fragment disambiguates it.
func (s *Splitter) Push(fragment string) []Event {
	if s.closed || fragment == "" {
		return nil
	}
	s.buf.WriteString(fragment)
	acc := s.buf.String()

	var events []Event
	if !s.found {
		idx := -1
		if s.marker != "" {
			idx = strings.Index(acc, s.marker)
		}
		if idx < 0 {
			safe := len(acc) - s.pendingPrefix(acc)
			if safe > s.primarySent {
				events = append(events, Event{Kind: KindPrimary, Delta: acc[s.primarySent:safe]})
				s.primarySent = safe
			}
			return events
		}

		if idx > s.primarySent {
			events = append(events, Event{Kind: KindPrimary, Delta: acc[s.primarySent:idx]})
		}
		s.primarySent = idx
		s.found = true
		s.markerAt = idx
		s.secondSent = idx + len(s.marker)
		events = append(events, Event{Kind: KindBoundary, Segment: acc[:idx]})
	}

	if len(acc) > s.secondSent {
		events = append(events, Event{Kind: KindSecondary, Delta: acc[s.secondSent:]})
		s.secondSent = len(acc)
	}
	return events
}

// Close ends the stream. Without a marker, everything still held back is released as primary.
func (s *Splitter) Close() []Event {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.found {
		return nil
	}
	acc := s.buf.String()
	if len(acc) > s.primarySent {
		delta := acc[s.primarySent:]
		s.primarySent = len(acc)
		return []Event{{Kind: KindPrimary, Delta: delta}}
	}
	return nil
}

// pendingPrefix is the length of the longest suffix of acc that is a proper prefix of the marker.
func (s *Splitter) pendingPrefix(acc string) int {
	n := len(s.marker) - 1
	if n > len(acc) {
		n = len(acc)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(acc, s.marker[:n]) {
			return n
		}
	}
	return 0
}

func (s *Splitter) Found() bool { return s.found }

// Primary is the text before the marker, or all text when no marker was seen.
func (s *Splitter) Primary() string {
	if s.found {
		return s.buf.String()[:s.markerAt]
	}
	return s.buf.String()
}

func (s *Splitter) Secondary() string {
	if !s.found {
		return ""
	}
	return s.buf.String()[s.markerAt+len(s.marker):]
}

// Split applies the same rules to a complete text.
func Split(text, marker string) (primary, secondary string, found bool) {
	s := New(marker)
	s.Push(text)
	s.Close()
	return s.Primary(), s.Secondary(), s.Found()
}
