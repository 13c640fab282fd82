package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGemini_Summarize(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" Patient reports a headache. "}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini("k", "test-model", srv.URL+"/")
	text, err := g.Summarize(context.Background(), []string{"Ann: my head hurts", "Dr. Grey: rest"})
	require.NoError(t, err)
	assert.Equal(t, "Patient reports a headache.", text)

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Contains(t, got.Contents[0].Parts[0].Text, "Transcript:\nAnn: my head hurts\nDr. Grey: rest")
}

func TestGemini_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
	}))
	defer srv.Close()

	_, err := NewGemini("k", "", srv.URL).Summarize(context.Background(), []string{"a: b"})
	assert.ErrorContains(t, err, "http 429")

	_, err = NewGemini("", "", srv.URL).Summarize(context.Background(), []string{"a: b"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestGemini_EmptyTranscriptSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	text, err := NewGemini("k", "", srv.URL).Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, EmptyTranscript, text)
	assert.False(t, called)
}
