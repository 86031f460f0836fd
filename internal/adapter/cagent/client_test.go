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

func TestListAgents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `[{"name":"root","description":"top agent","multi":true}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	agents, err := client.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 1 || agents[0].Name != "root" || !agents[0].Multi {
		t.Fatalf("unexpected agents: %+v", agents)
	}
}

func TestCreateSession(t *testing.T) {
	var gotReq domain.CreateSessionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sessions" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"id":"sess_1","tools_approved":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	session, err := client.CreateSession(context.Background(), &domain.CreateSessionRequest{ToolsApproved: true})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID != "sess_1" || !session.ToolsApproved {
		t.Fatalf("unexpected session: %+v", session)
	}
	if !gotReq.ToolsApproved {
		t.Fatalf("tools_approved not sent: %+v", gotReq)
	}
}

func TestResumeSession(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/sess_1/resume" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"message":"resumed"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	if err := client.ResumeSession(context.Background(), "sess_1", ConfirmationApproveSession); err != nil {
		t.Fatalf("ResumeSession failed: %v", err)
	}
	if gotBody["confirmation"] != "approve-session" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
}

func TestResumeElicitation(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/sess_1/elicitation" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"message":"ok"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	if err := client.ResumeElicitation(context.Background(), "sess_1", ElicitationAccept, nil); err != nil {
		t.Fatalf("ResumeElicitation failed: %v", err)
	}
	if gotBody["action"] != "accept" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
	if _, ok := gotBody["content"]; !ok {
		t.Fatalf("content missing from body: %+v", gotBody)
	}
}

func TestGetAgentYAML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/team.yaml/yaml" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, "version: \"2\"\nagents:\n  root:\n    model: gpt\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	yamlText, err := client.GetAgentYAML(context.Background(), "team.yaml")
	if err != nil {
		t.Fatalf("GetAgentYAML failed: %v", err)
	}
	if yamlText == "" {
		t.Fatal("expected yaml content")
	}
}

func TestUpdateAgentYAML(t *testing.T) {
	const valid = "version: \"2\"\nagents:\n  root:\n    model: gpt\n"

	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, gotBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	stored, err := client.UpdateAgentYAML(context.Background(), "team.yaml", valid)
	if err != nil {
		t.Fatalf("UpdateAgentYAML failed: %v", err)
	}
	if stored != valid || gotBody != valid {
		t.Fatalf("yaml did not round-trip: %q", stored)
	}
	if gotContentType != "text/plain" {
		t.Fatalf("unexpected content type: %s", gotContentType)
	}
}

func TestUpdateAgentYAMLRejectsInvalidLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be contacted for invalid yaml")
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	if _, err := client.UpdateAgentYAML(context.Background(), "team.yaml", "agents: [broken"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestErrorStatusIsSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.GetSession(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, 0)
	if _, err := client.ListSessions(ctx); err == nil {
		t.Fatal("expected error after context timeout")
	}
}
