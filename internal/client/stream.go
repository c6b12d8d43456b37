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
	"strconv"
	"strings"
)

// Event is one message received from GET /v1/events/stream.
type Event struct {
	ID    uint64
	Topic string
	Data  json.RawMessage
}

// StreamEvents connects to the server's event stream and calls fn for every
// event whose topic matches one of topics (NATS-style patterns; none means
// all). Pass the ID of the last event seen as lastID to resume after a
// reconnect. It returns when ctx is done, the server closes the stream, or
// fn returns an error.
func (c *HTTPClient) StreamEvents(ctx context.Context, topics []string, lastID uint64, fn func(Event) error) error {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatUint(lastID, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return decodeAPIError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var evt Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			evt.ID, _ = strconv.ParseUint(strings.TrimPrefix(line, "id:"), 10, 64)
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			evt.Data = json.RawMessage(strings.TrimPrefix(line, "data:"))
		case line == "" && evt.Topic != "":
			if err := fn(evt); err != nil {
				return err
			}
			evt = Event{}
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}
