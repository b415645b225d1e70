package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/synapse-ai/synapse/internal/log"
)

func testConnector(t *testing.T, handler http.Handler) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewConnector(log.NewNop())
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.baseURL = srv.URL
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestTranscript(t *testing.T) {
	messages := []Message{
		{Text: "hello", User: "U1"},
		{Text: "", User: "U2"},
		{Text: "no author"},
	}
	got := Transcript(messages, "general")
	want := "[general] U1: hello\n[general] unknown: no author"
	if got != want {
		t.Errorf("Transcript = %q, want %q", got, want)
	}
}

func TestTranscriptEmpty(t *testing.T) {
	if got := Transcript(nil, "general"); got != "" {
		t.Errorf("Transcript(nil) = %q", got)
	}
}

func TestClientOKFalseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": false, "error": "invalid_auth"})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient("xoxb-token", rate.NewLimiter(rate.Inf, 1), log.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.baseURL = srv.URL

	_, err = client.ListChannels(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid_auth") {
		t.Fatalf("ListChannels error = %v", err)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("", nil, nil); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestListResources(t *testing.T) {
	var joined []string
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations.list", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, map[string]any{
			"ok": true,
			"channels": []map[string]any{
				{"id": "C1", "name": "general", "is_member": true},
				{"id": "C2", "name": "random", "is_member": false},
				{"id": "C3", "name": "locked", "is_member": false},
				{"id": "", "name": "broken"},
			},
		})
	})
	mux.HandleFunc("/conversations.join", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing join form: %v", err)
		}
		channel := r.Form.Get("channel")
		joined = append(joined, channel)
		if channel == "C3" {
			writeJSON(w, map[string]any{"ok": false, "error": "method_not_supported_for_channel_type"})
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	})
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"ok": true,
			"messages": []map[string]any{
				{"text": "newest", "user": "U2", "ts": "2"},
				{"text": "oldest", "user": "U1", "ts": "1"},
			},
		})
	})

	c := testConnector(t, mux)
	docs, err := c.ListResources(context.Background(), "xoxb-token")
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}

	// C1 readable, C2 joined then readable, C3 unjoinable and skipped.
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if len(joined) != 2 || joined[0] != "C2" || joined[1] != "C3" {
		t.Errorf("join attempts = %v", joined)
	}

	doc := docs[0]
	if doc.ID != "slack-C1" || doc.Title != "#general" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Content != "[general] U2: newest\n[general] U1: oldest" {
		t.Errorf("content = %q", doc.Content)
	}
	if doc.Metadata["channelId"] != "C1" || doc.Metadata["messageCount"] != "2" {
		t.Errorf("metadata = %v", doc.Metadata)
	}
}

func TestWorkspaceName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/team.info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"ok":   true,
			"team": map[string]any{"id": "T1", "name": "Acme Corp"},
		})
	})

	c := testConnector(t, mux)
	name, err := c.WorkspaceName(context.Background(), "xoxb-token")
	if err != nil {
		t.Fatalf("WorkspaceName: %v", err)
	}
	if name != "Acme Corp" {
		t.Errorf("name = %q, want %q", name, "Acme Corp")
	}
}

func TestWorkspaceNameBadToken(t *testing.T) {
	c := testConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": false, "error": "invalid_auth"})
	}))

	if _, err := c.WorkspaceName(context.Background(), "xoxb-bad"); err == nil {
		t.Fatal("expected error for rejected token")
	}
}

func TestListResourcesListFailure(t *testing.T) {
	c := testConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))

	_, err := c.ListResources(context.Background(), "xoxb-token")
	if err == nil {
		t.Fatal("expected error when channel listing fails")
	}
}
