package logfeed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/phaseboard/internal/ctxlog"
)

// SocketSource adapts a push-based socket.io log backend to the pull-shaped
// Source contract. Pushed events are buffered; Fetch drains whatever arrived
// since the previous call for the requested session and discards the rest,
// so rows pushed for a previous session never leak across a switch. The
// effective-cursor re-scan the poller performs against polling backends is
// unnecessary here because the backend pushes cost backfills as ordinary row
// revisions.
type SocketSource struct {
	io *socket.Socket

	mu      sync.Mutex
	events  []*rowsEvent
	session string

	cursor    time.Time
	complete  bool
	totalCost float64
}

// SocketOptions configures DialSocketSource.
type SocketOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
}

// rowsEvent is the wire payload of one pushed "log_rows" event. SessionID
// tags which session the page belongs to; pages for any other session are
// dropped at Fetch time.
type rowsEvent struct {
	SessionID       string    `json:"session_id"`
	Rows            []*Row    `json:"rows"`
	Cursor          time.Time `json:"cursor"`
	SessionComplete bool      `json:"session_complete"`
	TotalCost       float64   `json:"total_cost"`
}

// DialSocketSource connects to a socket.io log backend and subscribes to its
// row stream. The connection attempt is bounded by the context and a 15s
// ceiling.
func DialSocketSource(ctx context.Context, opts SocketOptions) (*SocketSource, error) {
	logger := ctxlog.FromContext(ctx).With("source", "socketio", "url", opts.URL)
	logger.Info("Connecting to log source...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	sioOpts := socket.DefaultOptions()
	sioOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sioOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sioOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sioOpts)
	io := manager.Socket(opts.Namespace, sioOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to log source", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("connect_error: %v", errs[0])
		}
		connectChan <- err
	})

	src := &SocketSource{io: io}
	io.On(types.EventName("log_rows"), func(args ...any) {
		if len(args) == 0 {
			return
		}
		event, err := decodeRowsEvent(args[0])
		if err != nil {
			logger.Warn("Dropping undecodable log_rows event.", "error", err)
			return
		}
		src.push(event)
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return src, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(15 * time.Second):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after 15s waiting for socket.io connection")
	}
}

// push buffers one decoded event until the next Fetch drains it.
func (s *SocketSource) push(event *rowsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Fetch implements Source by draining the events buffered for the requested
// session. Switching sessions clears the derived aggregates, and buffered
// events tagged with any other session are thrown away. The after argument
// is ignored: a push backend never re-sends rows the client already has.
func (s *SocketSource) Fetch(ctx context.Context, sessionID string, after time.Time) (*FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != sessionID {
		s.session = sessionID
		s.cursor = time.Time{}
		s.complete = false
		s.totalCost = 0
	}

	events := s.events
	s.events = nil

	var rows []*Row
	for _, event := range events {
		if event.SessionID != sessionID {
			continue
		}
		rows = append(rows, event.Rows...)
		if event.Cursor.After(s.cursor) {
			s.cursor = event.Cursor
		}
		if event.SessionComplete {
			s.complete = true
		}
		if event.TotalCost != 0 {
			s.totalCost = event.TotalCost
		}
	}

	return &FetchResult{
		Rows:            rows,
		Cursor:          s.cursor,
		SessionComplete: s.complete,
		TotalCost:       s.totalCost,
	}, nil
}

// Close tears down the socket connection.
func (s *SocketSource) Close() error {
	s.io.Disconnect()
	return nil
}

// decodeRowsEvent converts an arbitrary socket.io payload into a rowsEvent
// via a JSON round trip, which tolerates both map payloads and pre-encoded
// strings.
func decodeRowsEvent(payload any) (*rowsEvent, error) {
	var raw []byte
	switch v := payload.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode payload: %w", err)
		}
		raw = encoded
	}
	var event rowsEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &event, nil
}
