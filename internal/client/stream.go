package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxSSELine bounds a single SSE line; event payloads are capped well below it.
const maxSSELine = 1 << 20

// ErrStreamEnded is returned by Stream when the server closes the stream
// without a disconnect notice.
var ErrStreamEnded = errors.New("stream ended")

// Stream opens the project's live event stream and calls fn for each
// message until ctx is cancelled, fn returns an error, or the server
// disconnects the subscriber. Retained history arrives first. A server
// disconnect is passed to fn as a StreamEvent with Disconnect set and then
// Stream returns nil.
func (c *HTTPClient) Stream(ctx context.Context, projectID string, opts *StreamOptions, fn func(StreamEvent) error) error {
	path := projectPath(projectID, "/events/stream")
	if q := streamQuery(opts); len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp, body)
	}

	err = readSSE(resp.Body, fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func streamQuery(opts *StreamOptions) url.Values {
	q := url.Values{}
	if opts == nil {
		return q
	}
	if opts.SubscriberID != "" {
		q.Set("subscriber", opts.SubscriberID)
	}
	if len(opts.Kinds) > 0 {
		q.Set("kinds", strings.Join(opts.Kinds, ","))
	}
	if len(opts.Actors) > 0 {
		q.Set("actors", strings.Join(opts.Actors, ","))
	}
	for _, w := range opts.Where {
		q.Add("where", w)
	}
	return q
}

// readSSE parses an event stream. Comment lines (keepalives) are skipped.
func readSSE(r io.Reader, fn func(StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxSSELine)

	var id, name, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "":
			if data == "" {
				id, name = "", ""
				continue
			}
			msg, err := decodeSSE(id, name, data)
			id, name, data = "", "", ""
			if err != nil {
				return err
			}
			if err := fn(msg); err != nil {
				return err
			}
			if msg.Disconnect != "" {
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return ErrStreamEnded
}

func decodeSSE(id, name, data string) (StreamEvent, error) {
	// Disconnect notices carry no id; events always do.
	if id == "" && name == "disconnect" {
		var notice struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(data), &notice); err != nil {
			return StreamEvent{}, fmt.Errorf("decoding disconnect notice: %w", err)
		}
		if notice.Reason == "" {
			notice.Reason = "disconnected"
		}
		return StreamEvent{Disconnect: notice.Reason}, nil
	}
	var msg StreamEvent
	if err := json.Unmarshal([]byte(data), &msg.Event); err != nil {
		return StreamEvent{}, fmt.Errorf("decoding event %s: %w", id, err)
	}
	return msg, nil
}
