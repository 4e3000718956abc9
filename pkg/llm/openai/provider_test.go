package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-interview-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_ServerSentEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"What ", "is ", "a channel?"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewProvider("test-key", srv.URL+"/v1", "gpt")
	ch, err := p.Stream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "go"}})
	require.NoError(t, err)

	var sb strings.Builder
	done := false
	for c := range ch {
		require.NoError(t, c.Err)
		sb.WriteString(c.Text)
		done = done || c.Done
	}
	assert.True(t, done)
	assert.Equal(t, "What is a channel?", sb.String())
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"  hello  "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	out, err := NewProvider("test-key", srv.URL+"/v1", "gpt").Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}
