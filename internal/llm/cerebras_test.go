package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var sampleHistory = []Message{
	{Role: RoleSystem, Content: "Eres María."},
	{Role: RoleAssistant, Content: "¿Cuál es tu nombre completo?"},
	{Role: RoleUser, Content: "Ana Torres"},
}

func redirect(srv *httptest.Server) *http.Client {
	return &http.Client{Timeout: 1 * time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}
}

func TestCerebras_NoKey(t *testing.T) {
	c := NewCerebrasClient("", "model")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Reply(ctx, sampleHistory); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestCerebras_SendsHistory(t *testing.T) {
	var got chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  Gracias, Ana. "}}]}`))
	}))
	defer srv.Close()

	c := NewCerebrasClient("key", "model")
	c.HTTPClient = redirect(srv)
	reply, err := c.Reply(context.Background(), sampleHistory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Gracias, Ana." {
		t.Fatalf("reply = %q", reply)
	}
	if len(got.Messages) != 3 || got.Messages[0].Role != "system" || got.Messages[2].Content != "Ana Torres" {
		t.Fatalf("history not forwarded: %+v", got.Messages)
	}
}

func TestCerebras_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("not-json")) }},
		{"empty_choices", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"blank_content", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewCerebrasClient("key", "model")
			c.HTTPClient = redirect(srv)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := c.Reply(ctx, sampleHistory); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestCerebras_BlankContentIsEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""}}]}`))
	}))
	defer srv.Close()
	c := NewCerebrasClient("key", "model")
	c.HTTPClient = redirect(srv)
	if _, err := c.Reply(context.Background(), sampleHistory); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("want ErrEmptyReply, got %v", err)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
