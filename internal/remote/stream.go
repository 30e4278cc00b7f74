package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// streamClient speaks the Realtime Database REST streaming protocol:
// a long-lived GET with Accept: text/event-stream delivering put/patch
// events against the watched location. The client materializes the
// location's full value from those events and emits it as one JSON
// snapshot per change, the first event included.
//
// There is no automatic reconnect. When the server ends the stream
// (cancel, auth_revoked, connection loss) the snapshot channel closes
// and the consumer observes the termination.
type streamClient struct {
	baseURL string
	tokens  oauth2.TokenSource
	client  *http.Client
	log     zerolog.Logger
}

func newStreamClient(baseURL string, tokens oauth2.TokenSource, log zerolog.Logger) *streamClient {
	return &streamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: 0},
		log:     log,
	}
}

// listen opens a listener on path (optionally restricted by query
// params) and returns a channel of full-value snapshots. Cancelling ctx
// closes the underlying connection and the channel; superseded
// snapshots the consumer never read are dropped.
func (c *streamClient) listen(ctx context.Context, path string, params url.Values) (<-chan json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/%s.json", c.baseURL, path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	tok.SetAuthHeader(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream for %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream for %s rejected: %s", path, resp.Status)
	}

	out := make(chan json.RawMessage, 1)
	go c.consume(ctx, path, resp.Body, out)
	return out, nil
}

func (c *streamClient) consume(ctx context.Context, path string, body io.ReadCloser, out chan json.RawMessage) {
	defer close(out)
	defer body.Close()

	var root any

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(line[len("data:"):])
		case line == "":
			if event == "" {
				continue
			}
			switch event {
			case "put", "patch":
				var payload struct {
					Path string          `json:"path"`
					Data json.RawMessage `json:"data"`
				}
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					c.log.Warn().Err(err).Str("path", path).Msg("skipping malformed stream event")
					break
				}
				var value any
				if err := json.Unmarshal(payload.Data, &value); err != nil {
					c.log.Warn().Err(err).Str("path", path).Msg("skipping malformed stream payload")
					break
				}
				root = applyUpdate(root, payload.Path, value, event == "patch")
				buf, err := json.Marshal(root)
				if err != nil {
					c.log.Warn().Err(err).Str("path", path).Msg("failed to materialize snapshot")
					break
				}
				pushLatest(out, json.RawMessage(buf))
			case "keep-alive":
			case "cancel", "auth_revoked":
				c.log.Warn().Str("path", path).Str("event", event).Msg("stream terminated by server")
				return
			}
			event, data = "", ""
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.log.Error().Err(err).Str("path", path).Msg("stream read failed")
	} else {
		c.log.Debug().Str("path", path).Time("at", time.Now()).Msg("stream closed")
	}
}

// applyUpdate applies one streamed event to the materialized value.
// put replaces the value at path (nil deletes it); patch merges the
// event's children into the value at path.
func applyUpdate(root any, path string, value any, patch bool) any {
	segs := make([]string, 0, 4)
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}

	if len(segs) == 0 {
		if !patch {
			return value
		}
		patchMap, ok := value.(map[string]any)
		if !ok {
			return value
		}
		m, _ := root.(map[string]any)
		if m == nil {
			m = make(map[string]any)
		}
		for k, v := range patchMap {
			if v == nil {
				delete(m, k)
			} else {
				m[k] = v
			}
		}
		return m
	}

	m, ok := root.(map[string]any)
	if !ok || m == nil {
		m = make(map[string]any)
	}
	key := segs[0]
	child := applyUpdate(m[key], strings.Join(segs[1:], "/"), value, patch)
	if child == nil {
		delete(m, key)
	} else {
		m[key] = child
	}
	return m
}
