package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Reply(t *testing.T) {
	var body struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Perfecto, Ana."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", srv.URL+"/v1", "")
	reply, err := c.Reply(context.Background(), sampleHistory)
	require.NoError(t, err)
	assert.Equal(t, "Perfecto, Ana.", reply)

	assert.Equal(t, "gpt-4.1-mini", body.Model)
	assert.InDelta(t, 0.7, body.Temperature, 0.001)
	assert.Equal(t, 150, body.MaxTokens)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "Ana Torres", body.Messages[2].Content)
}

func TestOpenAIClient_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server_error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`},
		{"no_choices", http.StatusOK, `{"id":"c1","choices":[]}`},
		{"blank", http.StatusOK, `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":" "}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			c := NewOpenAIClient("key", srv.URL+"/v1", "m")
			_, err := c.Reply(context.Background(), sampleHistory)
			assert.Error(t, err)
		})
	}
}
