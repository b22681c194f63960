// Package logfeed maintains a deduplicated, append-ordered accumulator of
// execution log rows fetched from an external source on a schedule.
package logfeed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Text is row content as it arrives on the wire. Sources usually deliver a
// plain string, but error rows may carry structured JSON instead; decoding
// keeps strings as-is and keeps any other JSON value as its serialized text,
// so one structured row can never fail a whole page of rows.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// Role tags what kind of event a row records. The vocabulary is closed for
// rows the reducer reacts to; anything else is carried through untouched and
// only contributes to the accumulating fields.
type Role string

const (
	RolePhaseStart    Role = "phase_start"
	RoleStructure     Role = "structure"
	RolePhaseComplete Role = "phase_complete"
	RoleError         Role = "error"
	RoleTool          Role = "tool"
	RoleAssistant     Role = "assistant"
	RoleUser          Role = "user"
	RoleSystem        Role = "system"
)

// Row is one execution event. Rows are immutable once accumulated, with one
// narrow exception: Cost may be patched in place when the source backfills
// pricing after the row was first emitted.
type Row struct {
	MessageID string         `json:"message_id"`
	NodeName  string         `json:"node_name"`
	Role      Role           `json:"role"`
	Content   Text           `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Cost       float64 `json:"cost"`
	DurationMS float64 `json:"duration_ms"`
	TokensIn   int64   `json:"tokens_in"`
	TokensOut  int64   `json:"tokens_out"`
	Model      string  `json:"model,omitempty"`

	// SoundingIndex says which parallel attempt this row belongs to; nil for
	// rows outside any sounding.
	SoundingIndex *int `json:"sounding_index,omitempty"`
	// WinningSoundingIndex, when set, records which attempt won. It can
	// arrive on any row, in any order.
	WinningSoundingIndex *int `json:"winning_sounding_index,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Validate is the boundary check applied to every row returned by a source.
// Rows that fail are dropped before they reach the accumulator.
func (r *Row) Validate() error {
	if r == nil {
		return fmt.Errorf("nil row")
	}
	if strings.TrimSpace(r.MessageID) == "" {
		return fmt.Errorf("row missing message_id")
	}
	if strings.TrimSpace(r.NodeName) == "" {
		return fmt.Errorf("row %s missing node_name", r.MessageID)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("row %s missing timestamp", r.MessageID)
	}
	return nil
}

// Normalize canonicalizes fields the rest of the system keys on.
func (r *Row) Normalize() {
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	r.NodeName = strings.TrimSpace(r.NodeName)
}

// ErrorTagged reports whether the row marks an error, either by role or by a
// node_type=error metadata tag.
func (r *Row) ErrorTagged() bool {
	if r.Role == RoleError {
		return true
	}
	if r.Metadata == nil {
		return false
	}
	tag, _ := r.Metadata["node_type"].(string)
	return tag == "error"
}

// Images returns the image list carried in metadata, if any.
func (r *Row) Images() []string {
	if r.Metadata == nil {
		return nil
	}
	raw, ok := r.Metadata["images"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep enough copy for handing rows to concurrent readers.
func (r *Row) Clone() *Row {
	dup := *r
	if r.Metadata != nil {
		dup.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			dup.Metadata[k] = v
		}
	}
	if r.SoundingIndex != nil {
		idx := *r.SoundingIndex
		dup.SoundingIndex = &idx
	}
	if r.WinningSoundingIndex != nil {
		idx := *r.WinningSoundingIndex
		dup.WinningSoundingIndex = &idx
	}
	return &dup
}
