package cagent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/agentchat/agentchat/internal/domain"
)

// doneSentinel terminates the event stream.
const doneSentinel = "[DONE]"

// StreamCallbacks receive the lifecycle of one execution stream. OnEvent
// fires once per decoded event; exactly one of OnError or OnComplete fires
// afterwards. Nil callbacks are skipped.
type StreamCallbacks struct {
	OnEvent    func(ev domain.StreamEvent)
	OnError    func(err error)
	OnComplete func()
}

// Stream is the cancellable handle for one in-flight execution. Cancel is
// safe to call more than once and from any goroutine; events already in
// flight when Cancel lands are dropped rather than delivered.
type Stream struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

// Cancel aborts the stream. The transport request is torn down and no
// further callbacks fire except OnComplete.
func (s *Stream) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

// Cancelled reports whether Cancel has been called.
func (s *Stream) Cancelled() bool {
	return s.cancelled.Load()
}

// Done is closed once the stream has fully terminated and its final
// callback has returned.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// ExecuteAgent starts one streamed execution turn and returns immediately
// with its handle. The server expects the request wrapped in a one-element
// array. Events arrive as "data: <json>" lines; a malformed line is logged
// and skipped so one bad event never aborts the turn.
func (c *Client) ExecuteAgent(ctx context.Context, sessionID, agentName, subAgent string, req *domain.ExecuteAgentRequest, cb StreamCallbacks) *Stream {
	path := "/sessions/" + url.PathEscape(sessionID) + "/agent/" + url.PathEscape(agentName)
	if subAgent != "" {
		path += "/" + url.PathEscape(subAgent)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()

		err := c.runStream(ctx, path, req, s, cb)
		switch {
		case err == nil, s.Cancelled(), ctx.Err() != nil:
			if cb.OnComplete != nil {
				cb.OnComplete()
			}
		default:
			if cb.OnError != nil {
				cb.OnError(err)
			}
		}
	}()

	return s
}

func (c *Client) runStream(ctx context.Context, path string, req *domain.ExecuteAgentRequest, s *Stream, cb StreamCallbacks) error {
	body, err := json.Marshal([]domain.ExecuteAgentRequest{*req})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if s.Cancelled() {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == doneSentinel {
			return nil
		}

		ev, err := domain.DecodeStreamEvent([]byte(payload))
		if err != nil {
			log.Printf("WARN: skipping malformed stream event: %v", err)
			continue
		}
		if cb.OnEvent != nil {
			cb.OnEvent(ev)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}
