package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-interview-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider streams the given fragments, then Done.
type scriptedProvider struct {
	fragments []string
	failAfter int
	streamErr error
	received  []llm.Message
	noDone    bool
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return strings.Join(p.fragments, ""), nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, nil, opts...)
}

func (p *scriptedProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	p.received = history
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for i, f := range p.fragments {
			if p.failAfter > 0 && i == p.failAfter {
				llm.Send(ctx, ch, llm.Chunk{Err: errors.New("backend reset")})
				return
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: f}) {
				return
			}
		}
		if !p.noDone {
			llm.Send(ctx, ch, llm.Chunk{Done: true})
		}
	}()
	return ch, nil
}

func drain(t *testing.T, events <-chan Event) (string, *Outcome, error) {
	t.Helper()
	var text strings.Builder
	var outcome *Outcome
	var err error
	for e := range events {
		switch {
		case e.Err != nil:
			err = e.Err
		case e.Outcome != nil:
			outcome = e.Outcome
		default:
			text.WriteString(e.Fragment)
		}
	}
	return text.String(), outcome, err
}

func TestGenerate_SplitsQuestionAndAnswer(t *testing.T) {
	p := &scriptedProvider{fragments: []string{"Why ", "Go?[[ANS", "WER]] Because", " it is simple."}}
	g := NewLLMGateway(p, Config{})

	events, err := g.Generate(context.Background(), PromptContext{Position: "Backend Engineer"})
	require.NoError(t, err)

	text, outcome, err := drain(t, events)
	require.NoError(t, err)
	assert.Equal(t, "Why Go?[[ANSWER]] Because it is simple.", text)
	require.NotNil(t, outcome)
	assert.False(t, outcome.EndFlag)
	assert.Equal(t, "Why Go?", outcome.Primary)
	assert.Equal(t, "Because it is simple.", outcome.Secondary)
}

func TestGenerate_DetectsAndStripsEndToken(t *testing.T) {
	p := &scriptedProvider{fragments: []string{"Thanks, that is all. [[END_", "INTERVIEW]]", " trailing"}}
	g := NewLLMGateway(p, Config{})

	events, err := g.Generate(context.Background(), PromptContext{})
	require.NoError(t, err)

	text, outcome, err := drain(t, events)
	require.NoError(t, err)
	assert.Equal(t, "Thanks, that is all. ", text)
	require.NotNil(t, outcome)
	assert.True(t, outcome.EndFlag)
	assert.Equal(t, "Thanks, that is all.", outcome.Primary)
}

func TestGenerate_BackendErrorEndsStream(t *testing.T) {
	p := &scriptedProvider{fragments: []string{"Tell me", " about", " yourself"}, failAfter: 2}
	g := NewLLMGateway(p, Config{})

	events, err := g.Generate(context.Background(), PromptContext{})
	require.NoError(t, err)

	_, outcome, err := drain(t, events)
	assert.Nil(t, outcome)
	assert.EqualError(t, err, "backend reset")
}

func TestGenerate_StreamClosedWithoutDone(t *testing.T) {
	p := &scriptedProvider{fragments: []string{"partial"}, noDone: true}
	g := NewLLMGateway(p, Config{})

	events, err := g.Generate(context.Background(), PromptContext{})
	require.NoError(t, err)
	_, outcome, err := drain(t, events)
	assert.Nil(t, outcome)
	assert.Error(t, err)
}

func TestGenerate_EmptyOutputIsAnError(t *testing.T) {
	p := &scriptedProvider{fragments: []string{"  ", "[[ANSWER]]x"}}
	g := NewLLMGateway(p, Config{})

	events, err := g.Generate(context.Background(), PromptContext{})
	require.NoError(t, err)
	_, _, err = drain(t, events)
	assert.ErrorIs(t, err, ErrEmptyGeneration)
}

func TestGenerate_StartFailure(t *testing.T) {
	g := NewLLMGateway(&scriptedProvider{streamErr: errors.New("connection refused")}, Config{})
	_, err := g.Generate(context.Background(), PromptContext{})
	assert.ErrorContains(t, err, "connection refused")
}

func TestGenerate_LeadingEndTokenHoldsBackClosing(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		closing   string
	}{
		{name: "token in one fragment", fragments: []string{"[[END_INTERVIEW]] Thank you", " for your time."}, closing: "Thank you for your time."},
		{name: "token split across fragments", fragments: []string{"  [[EN", "D_INTER", "VIEW]]Good luck!"}, closing: "Good luck!"},
		{name: "answer marker dropped", fragments: []string{"[[END_INTERVIEW]]Bye.[[ANSWER]] n/a"}, closing: "Bye."},
		{name: "bare token", fragments: []string{"[[END_INTERVIEW]]"}, closing: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewLLMGateway(&scriptedProvider{fragments: tt.fragments}, Config{})
			events, err := g.Generate(context.Background(), PromptContext{})
			require.NoError(t, err)

			text, outcome, err := drain(t, events)
			require.NoError(t, err)
			assert.Empty(t, text, "closing text is not streamed")
			require.NotNil(t, outcome)
			assert.True(t, outcome.EndFlag)
			assert.Equal(t, tt.closing, outcome.Primary)
			assert.Empty(t, outcome.Secondary)
		})
	}
}

func TestGenerate_PartialTokenPrefixIsReleased(t *testing.T) {
	p := &scriptedProvider{fragments: []string{"[[", "Why Go?"}}
	g := NewLLMGateway(p, Config{})

	events, err := g.Generate(context.Background(), PromptContext{})
	require.NoError(t, err)

	text, outcome, err := drain(t, events)
	require.NoError(t, err)
	assert.Equal(t, "[[Why Go?", text)
	require.NotNil(t, outcome)
	assert.False(t, outcome.EndFlag)
	assert.Equal(t, "[[Why Go?", outcome.Primary)
}

func TestBuildMessages(t *testing.T) {
	pc := PromptContext{
		Position:       "SRE",
		JobDescription: "Keep things running",
		History: []Turn{
			{Speaker: SpeakerInterviewer, Text: "Welcome."},
			{Speaker: SpeakerCandidate, Text: "Hi."},
		},
		QuestionNumber: 2,
		TotalQuestions: 8,
		ElapsedMinutes: 3,
		TargetMinutes:  30,
	}
	msgs := BuildMessages(pc, "[[ANSWER]]", "[[END_INTERVIEW]]")

	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "SRE")
	assert.Contains(t, msgs[0].Content, "[[ANSWER]]")
	assert.Contains(t, msgs[0].Content, "question 2 of at most 8")
	assert.Contains(t, msgs[0].Content, "3 of 30 minutes")
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, llm.RoleUser, msgs[2].Role)

	// Without a pending candidate answer the model is nudged explicitly
	msgs = BuildMessages(PromptContext{}, "[[ANSWER]]", "[[END_INTERVIEW]]")
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
}
