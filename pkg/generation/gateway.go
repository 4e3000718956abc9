// Package generation turns an interview context into a stream of interviewer text.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"ai-interview-be/pkg/llm"
	"ai-interview-be/pkg/splitter"
)

const (
	DefaultSegmentMarker = "[[ANSWER]]"
	DefaultEndToken      = "[[END_INTERVIEW]]"
)

var ErrEmptyGeneration = errors.New("generation produced no question")

type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

type Turn struct {
	Speaker Speaker
	Text    string
}

// PromptContext is everything the backend needs to produce the next interviewer turn.
type PromptContext struct {
	JobKind        string
	Position       string
	JobDescription string
	ResumeText     string
	History        []Turn
	QuestionNumber int
	TotalQuestions int
	ElapsedMinutes int
	TargetMinutes  int
}

// Outcome is the structured result that terminates a generation stream.
type Outcome struct {
	EndFlag   bool
	Primary   string
	Secondary string
}

// Event is either a text fragment or, as the last event, an Outcome or an error.
type Event struct {
	Fragment string
	Outcome  *Outcome
	Err      error
}

type Gateway interface {
	// Generate streams fragments on the returned channel, which is closed after the final event.
	// Cancelling ctx stops generation.
	Generate(ctx context.Context, pc PromptContext) (<-chan Event, error)
}

type Config struct {
	SegmentMarker string
	EndToken      string
	Temperature   float64
	MaxTokens     int
}

type LLMGateway struct {
	provider llm.StreamingProvider
	cfg      Config
}

var _ Gateway = (*LLMGateway)(nil)

func NewLLMGateway(provider llm.StreamingProvider, cfg Config) *LLMGateway {
	if cfg.SegmentMarker == "" {
		cfg.SegmentMarker = DefaultSegmentMarker
	}
	if cfg.EndToken == "" {
		cfg.EndToken = DefaultEndToken
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &LLMGateway{provider: provider, cfg: cfg}
}

func (g *LLMGateway) Generate(ctx context.Context, pc PromptContext) (<-chan Event, error) {
	opts := []llm.Option{llm.WithTemperature(g.cfg.Temperature)}
	if g.cfg.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(g.cfg.MaxTokens))
	}

	chunks, err := g.provider.Stream(ctx, BuildMessages(pc, g.cfg.SegmentMarker, g.cfg.EndToken), opts...)
	if err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		send := func(e Event) bool {
			select {
			case events <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// A reply that opens with the end token is a closing remark. It is held back and carried
		// only by the Outcome. A token found later is cut out of the visible text the same way
		// segments are split.
		endCut := splitter.New(g.cfg.EndToken)
		forward := func(evs []splitter.Event) bool {
			for _, ev := range evs {
				if ev.Kind == splitter.KindPrimary && ev.Delta != "" {
					if !send(Event{Fragment: ev.Delta}) {
						return false
					}
				}
			}
			return true
		}

		var head, closing strings.Builder
		decided, closingMode := false, false
		accept := func(text string, final bool) bool {
			if decided {
				if closingMode {
					closing.WriteString(text)
					return true
				}
				return forward(endCut.Push(text))
			}
			head.WriteString(text)
			lead := strings.TrimLeftFunc(head.String(), unicode.IsSpace)
			switch {
			case strings.HasPrefix(lead, g.cfg.EndToken):
				decided, closingMode = true, true
				closing.WriteString(strings.TrimPrefix(lead, g.cfg.EndToken))
				return true
			case !final && strings.HasPrefix(g.cfg.EndToken, lead):
				return true
			}
			decided = true
			return forward(endCut.Push(head.String()))
		}

		done := false
		for chunk := range chunks {
			if chunk.Err != nil {
				send(Event{Err: chunk.Err})
				return
			}
			if !accept(chunk.Text, false) {
				return
			}
			if chunk.Done {
				done = true
				break
			}
		}
		if !done {
			err := ctx.Err()
			if err == nil {
				err = errors.New("generation stream closed unexpectedly")
			}
			send(Event{Err: err})
			return
		}
		if !decided && !accept("", true) {
			return
		}
		if closingMode {
			remark, _, _ := splitter.Split(strings.ReplaceAll(closing.String(), g.cfg.EndToken, ""), g.cfg.SegmentMarker)
			send(Event{Outcome: &Outcome{EndFlag: true, Primary: strings.TrimSpace(remark)}})
			return
		}
		if !forward(endCut.Close()) {
			return
		}

		primary, secondary, _ := splitter.Split(endCut.Primary(), g.cfg.SegmentMarker)
		outcome := &Outcome{
			EndFlag:   endCut.Found(),
			Primary:   strings.TrimSpace(primary),
			Secondary: strings.TrimSpace(secondary),
		}
		if !outcome.EndFlag && outcome.Primary == "" {
			send(Event{Err: ErrEmptyGeneration})
			return
		}
		send(Event{Outcome: outcome})
	}()
	return events, nil
}

// BuildMessages renders the interviewer prompt. Interviewer turns become assistant messages
// and candidate turns user messages.
func BuildMessages(pc PromptContext, marker, endToken string) []llm.Message {
	var sys strings.Builder
	sys.WriteString("You are a professional interviewer conducting a practice interview")
	if pc.Position != "" {
		fmt.Fprintf(&sys, " for the position of %s", pc.Position)
	}
	sys.WriteString(".\n")
	if pc.JobDescription != "" {
		fmt.Fprintf(&sys, "\nJob description:\n%s\n", truncate(pc.JobDescription, 4000))
	}
	if pc.ResumeText != "" {
		fmt.Fprintf(&sys, "\nCandidate resume:\n%s\n", truncate(pc.ResumeText, 6000))
	}
	sys.WriteString("\nRules:\n")
	sys.WriteString("- Ask exactly one question per reply, building on the candidate's previous answers.\n")
	fmt.Fprintf(&sys, "- After the question write %s followed by a concise model answer the candidate will not see.\n", marker)
	fmt.Fprintf(&sys, "- If the interview has covered enough ground, start your reply with %s followed by a short closing remark and nothing else.\n", endToken)
	if pc.TotalQuestions > 0 {
		fmt.Fprintf(&sys, "- This is question %d of at most %d.\n", pc.QuestionNumber, pc.TotalQuestions)
	}
	if pc.TargetMinutes > 0 {
		fmt.Fprintf(&sys, "- %d of %d minutes have elapsed.\n", pc.ElapsedMinutes, pc.TargetMinutes)
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: sys.String()}}
	for _, turn := range pc.History {
		role := llm.RoleUser
		if turn.Speaker == SpeakerInterviewer {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	if len(pc.History) == 0 || pc.History[len(pc.History)-1].Speaker != SpeakerCandidate {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: "Please ask your next question."})
	}
	return messages
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
