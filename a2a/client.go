package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/task"
)

// ErrTaskFailed is returned by SendText when the remote task did not complete.
var ErrTaskFailed = errors.New("remote task failed")

// ClientOptions configures a Client.
type ClientOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client talks to a task server exposed by package server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, optFns ...func(o *ClientOptions)) (*Client, error) {
	opts := ClientOptions{Timeout: 60 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{baseURL: u, http: hc}, nil
}

// Card fetches the agent card.
func (c *Client) Card(ctx context.Context) (AgentCard, error) {
	var card AgentCard
	err := c.do(ctx, http.MethodGet, "/.well-known/agent.json", nil, &card)
	return card, err
}

// SendMessage submits a request and waits for the final task.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodPost, "/v1/message:send", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SendText sends text as a single-part message and returns the task result.
// A task that ends failed yields ErrTaskFailed carrying the task's message.
func (c *Client) SendText(ctx context.Context, contextID, text string) (core.Message, error) {
	t, err := c.SendMessage(ctx, SendRequest{ContextID: contextID, Parts: []Part{TextPart(text)}})
	if err != nil {
		return core.Message{}, err
	}
	if t.State != task.StateCompleted || t.Result == nil {
		return core.Message{}, fmt.Errorf("%w: task %s %s: %s", ErrTaskFailed, t.ID, t.State, t.Error)
	}
	return *t.Result, nil
}

// StreamMessage submits a request and calls fn for every lifecycle event the
// server streams back, in order.
func (c *Client) StreamMessage(ctx context.Context, req SendRequest, fn func(task.Event) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/message:stream"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	return ReadEvents(resp.Body, func(name string, data []byte) error {
		if name == "error" {
			var er ErrorResponse
			if err := json.Unmarshal(data, &er); err != nil {
				return fmt.Errorf("decode error event: %w", err)
			}
			return fmt.Errorf("remote error: %s", er.Error)
		}
		var ev task.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		return fn(ev)
	})
}

// ReadEvents parses a server-sent event stream and calls fn once per event
// with its name (empty when the stream sets none) and data.
func ReadEvents(r io.Reader, fn func(name string, data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		name string
		data []string
	)
	flush := func() error {
		if len(data) == 0 {
			name = ""
			return nil
		}
		err := fn(name, []byte(strings.Join(data, "\n")))
		name, data = "", data[:0]
		return err
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask cancels a task by id.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(taskID)+"/cancel", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ErrorResponse is the JSON body of a failed call.
type ErrorResponse struct {
	Error string `json:"error"`
}

func decodeError(resp *http.Response) error {
	var er ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)
	if er.Error == "" {
		er.Error = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", task.ErrNotFound, er.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrTaskExists, er.Error)
	default:
		return fmt.Errorf("remote error (%d): %s", resp.StatusCode, er.Error)
	}
}
