package logfeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketSourceFetchFiltersBySession(t *testing.T) {
	base := time.Now()
	src := &SocketSource{}
	src.push(&rowsEvent{
		SessionID: "session-a",
		Rows:      []*Row{row("old-1", "n", RoleAssistant, base)},
		Cursor:    base,
	})
	src.push(&rowsEvent{
		SessionID: "session-b",
		Rows:      []*Row{row("new-1", "n", RoleAssistant, base.Add(time.Second))},
		Cursor:    base.Add(time.Second),
	})

	res, err := src.Fetch(context.Background(), "session-b", time.Time{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "new-1", res.Rows[0].MessageID)

	// The mismatched event is discarded, not held for later.
	res, err = src.Fetch(context.Background(), "session-a", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestSocketSourceSessionSwitchResetsAggregates(t *testing.T) {
	base := time.Now()
	src := &SocketSource{}
	src.push(&rowsEvent{
		SessionID:       "session-a",
		Cursor:          base,
		SessionComplete: true,
		TotalCost:       1.5,
	})

	res, err := src.Fetch(context.Background(), "session-a", time.Time{})
	require.NoError(t, err)
	assert.True(t, res.SessionComplete)
	assert.Equal(t, 1.5, res.TotalCost)

	res, err = src.Fetch(context.Background(), "session-b", time.Time{})
	require.NoError(t, err)
	assert.False(t, res.SessionComplete)
	assert.Zero(t, res.TotalCost)
	assert.True(t, res.Cursor.IsZero())
}

func TestSocketSourceBufferedRowsDoNotLeakAcrossReset(t *testing.T) {
	base := time.Now()
	src := &SocketSource{}
	src.push(&rowsEvent{
		SessionID: "session-a",
		Rows:      []*Row{row("old-1", "n", RolePhaseStart, base)},
		Cursor:    base,
	})

	p := NewPoller(src, Options{Interval: time.Millisecond})
	p.Reset("session-a")
	p.Reset("session-b")

	require.NoError(t, p.Poll(context.Background()))
	assert.Empty(t, p.Rows(), "rows pushed for the previous session must not appear after a switch")
}

func TestDecodeRowsEvent(t *testing.T) {
	t.Run("map payload", func(t *testing.T) {
		event, err := decodeRowsEvent(map[string]any{
			"session_id": "session-a",
			"rows": []any{map[string]any{
				"message_id": "m1",
				"node_name":  "n",
				"role":       "assistant",
				"content":    "hello",
				"timestamp":  time.Now().Format(time.RFC3339Nano),
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, "session-a", event.SessionID)
		require.Len(t, event.Rows, 1)
		assert.Equal(t, "m1", event.Rows[0].MessageID)
	})

	t.Run("structured row content decodes as text", func(t *testing.T) {
		event, err := decodeRowsEvent(map[string]any{
			"session_id": "session-a",
			"rows": []any{map[string]any{
				"message_id": "m1",
				"node_name":  "n",
				"role":       "error",
				"content":    map[string]any{"msg": "boom"},
				"timestamp":  time.Now().Format(time.RFC3339Nano),
			}},
		})
		require.NoError(t, err)
		require.Len(t, event.Rows, 1)
		assert.Contains(t, string(event.Rows[0].Content), "boom")
	})

	t.Run("undecodable payload errors", func(t *testing.T) {
		_, err := decodeRowsEvent("not json")
		assert.Error(t, err)
	})
}
