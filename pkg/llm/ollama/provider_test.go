package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-interview-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan llm.Chunk) (string, bool, error) {
	t.Helper()
	var sb strings.Builder
	done := false
	var err error
	for c := range ch {
		if c.Err != nil {
			err = c.Err
			continue
		}
		sb.WriteString(c.Text)
		done = done || c.Done
	}
	return sb.String(), done, err
}

func TestStream_ReadsNDJSON(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		for _, part := range []string{"Tell ", "me ", "more."} {
			fmt.Fprintf(w, `{"model":"llama3","message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", time.Second)
	ch, err := p.Stream(context.Background(), []llm.Message{{Role: "model", Content: "hi"}}, llm.WithTemperature(0.2))
	require.NoError(t, err)

	text, done, err := collect(t, ch)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "Tell me more.", text)
	assert.True(t, got.Stream)
	assert.Equal(t, "assistant", got.Messages[0].Role)
	assert.Equal(t, 0.2, got.Options.Temperature)
}

func TestStream_TruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"half"},"done":false}`)
	}))
	defer srv.Close()

	ch, err := NewOllamaProvider(srv.URL, "llama3", time.Second).Stream(context.Background(), nil)
	require.NoError(t, err)
	text, done, err := collect(t, ch)
	assert.Equal(t, "half", text)
	assert.False(t, done)
	assert.Error(t, err)
}

func TestStream_ErrorLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not loaded"}`)
	}))
	defer srv.Close()

	ch, err := NewOllamaProvider(srv.URL, "llama3", time.Second).Stream(context.Background(), nil)
	require.NoError(t, err)
	_, _, err = collect(t, ch)
	assert.ErrorContains(t, err, "model not loaded")
}

func TestStream_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3", time.Second).Stream(context.Background(), nil)
	assert.ErrorContains(t, err, "status 404")
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"[]"},"done":true}`)
	}))
	defer srv.Close()

	out, err := NewOllamaProvider(srv.URL, "llama3", time.Second).Generate(context.Background(), "quiz", llm.WithJSONMode())
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
