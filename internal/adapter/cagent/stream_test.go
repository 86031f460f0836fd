package cagent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentchat/agentchat/internal/domain"
)

func TestExecuteAgentStreamsEvents(t *testing.T) {
	var gotPath string
	var gotBody []domain.ExecuteAgentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body is not an array: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"agent_choice_reasoning\",\"content\":\"hmm\",\"agent_name\":\"root\"}\n")
		fmt.Fprint(w, "data: not json at all\n")
		fmt.Fprint(w, "data: {\"type\":\"agent_choice\",\"content\":\"hi\",\"agent_name\":\"root\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"never_seen_before\"}\n")
		fmt.Fprint(w, "data: [DONE]\n")
		fmt.Fprint(w, "data: {\"type\":\"agent_choice\",\"content\":\"after done\"}\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)

	var events []domain.StreamEvent
	completed := make(chan struct{})
	s := client.ExecuteAgent(context.Background(), "sess_1", "root", "", &domain.ExecuteAgentRequest{Content: "hello"}, StreamCallbacks{
		OnEvent: func(ev domain.StreamEvent) { events = append(events, ev) },
		OnError: func(err error) { t.Errorf("unexpected stream error: %v", err) },
		OnComplete: func() { close(completed) },
	})

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not complete")
	}
	<-s.Done()

	if gotPath != "/sessions/sess_1/agent/root" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if len(gotBody) != 1 || gotBody[0].Content != "hello" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}

	// Malformed line skipped, unknown type surfaced as ignored, nothing
	// after the sentinel.
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if _, ok := events[0].(*domain.ReasoningChunk); !ok {
		t.Fatalf("expected reasoning first, got %T", events[0])
	}
	if _, ok := events[1].(*domain.AnswerChunk); !ok {
		t.Fatalf("expected answer second, got %T", events[1])
	}
	if ig, ok := events[2].(*domain.IgnoredEvent); !ok || ig.RawType != "never_seen_before" {
		t.Fatalf("expected ignored event, got %+v", events[2])
	}
}

func TestExecuteAgentSubAgentPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, "data: [DONE]\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	s := client.ExecuteAgent(context.Background(), "sess_1", "root", "helper", &domain.ExecuteAgentRequest{Content: "x"}, StreamCallbacks{})
	<-s.Done()

	if gotPath != "/sessions/sess_1/agent/root/helper" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestExecuteAgentOutlivesRequestTimeout(t *testing.T) {
	// Approval pauses can hold a stream open far longer than any REST
	// call; the stream must not inherit the whole-request timeout.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"agent_choice\",\"content\":\"before\"}\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, "data: {\"type\":\"agent_choice\",\"content\":\"after\"}\n")
		fmt.Fprint(w, "data: [DONE]\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, 50*time.Millisecond)

	var events []domain.StreamEvent
	completed := make(chan struct{})
	s := client.ExecuteAgent(context.Background(), "sess_1", "root", "", &domain.ExecuteAgentRequest{Content: "x"}, StreamCallbacks{
		OnEvent:    func(ev domain.StreamEvent) { events = append(events, ev) },
		OnError:    func(err error) { t.Errorf("unexpected stream error: %v", err) },
		OnComplete: func() { close(completed) },
	})

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not complete")
	}
	<-s.Done()

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if ev, ok := events[1].(*domain.AnswerChunk); !ok || ev.Content != "after" {
		t.Fatalf("expected the post-pause chunk, got %+v", events[1])
	}
}

func TestExecuteAgentCancel(t *testing.T) {
	firstEvent := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"agent_choice\",\"content\":\"start\"}\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		close(firstEvent)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)

	completed := make(chan struct{})
	s := client.ExecuteAgent(context.Background(), "sess_1", "root", "", &domain.ExecuteAgentRequest{Content: "x"}, StreamCallbacks{
		OnError: func(err error) { t.Errorf("cancellation must not surface an error: %v", err) },
		OnComplete: func() { close(completed) },
	})

	select {
	case <-firstEvent:
	case <-time.After(2 * time.Second):
		t.Fatal("server never sent the first event")
	}
	s.Cancel()

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not complete after cancel")
	}
	if !s.Cancelled() {
		t.Fatal("Cancelled should report true")
	}
}

func TestExecuteAgentServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)

	errCh := make(chan error, 1)
	s := client.ExecuteAgent(context.Background(), "sess_1", "root", "", &domain.ExecuteAgentRequest{Content: "x"}, StreamCallbacks{
		OnError:    func(err error) { errCh <- err },
		OnComplete: func() { t.Error("complete must not fire on transport error") },
	})
	<-s.Done()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected error")
		}
	default:
		t.Fatal("OnError did not fire")
	}
}
