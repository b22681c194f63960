package state

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/vk/phaseboard/internal/logfeed"
)

// maxDecodeDepth bounds the decode-while-string loop so pathological nested
// encodings cannot spin forever.
const maxDecodeDepth = 8

// Reduce folds the ordered rows of one phase into a snapshot. Order matters:
// later rows override earlier ones field by field, except for the
// accumulating counters (cost, duration, tokens).
func Reduce(rows []*logfeed.Row) Snapshot {
	snap := Snapshot{Status: StatusPending}
	var cost, duration float64
	var tokensIn, tokensOut int64

	for _, row := range rows {
		if row == nil {
			continue
		}

		switch row.Role {
		case logfeed.RolePhaseStart, logfeed.RoleStructure:
			snap.Status = StatusRunning
		case logfeed.RolePhaseComplete:
			snap.Status = StatusSuccess
		case logfeed.RoleTool:
			if result, ok := unwrapResult(string(row.Content), false); ok {
				snap.Result = result
			}
		case logfeed.RoleAssistant:
			if result, ok := unwrapResult(string(row.Content), true); ok {
				snap.Result = result
			}
		}

		if row.ErrorTagged() {
			snap.Status = StatusError
			snap.Error = string(row.Content)
		}

		// Last writer wins for the image list.
		if images := row.Images(); images != nil {
			snap.Images = images
		}

		if row.DurationMS > 0 {
			duration += row.DurationMS
		}
		cost += row.Cost
		tokensIn += row.TokensIn
		tokensOut += row.TokensOut
		if row.Model != "" {
			snap.Model = row.Model
		}
	}

	if cost != 0 {
		rounded := math.Round(cost*1e6) / 1e6
		snap.Cost = &rounded
	}
	if duration != 0 {
		rounded := math.Round(duration)
		snap.Duration = &rounded
	}
	if tokensIn != 0 {
		snap.TokensIn = &tokensIn
	}
	if tokensOut != 0 {
		snap.TokensOut = &tokensOut
	}

	return snap
}

// unwrapResult repeatedly decodes content while it is itself an encoded
// string, up to maxDecodeDepth. The final value is the result, which may be
// the original string when the first decode fails.
//
// With quotedOnly set (assistant rows) decoding only proceeds while the
// string looks like an encoded string literal, i.e. starts with a quote;
// tool rows always get a decode attempt.
func unwrapResult(content string, quotedOnly bool) (any, bool) {
	if strings.TrimSpace(content) == "" {
		return nil, false
	}
	var current any = content
	for depth := 0; depth < maxDecodeDepth; depth++ {
		s, ok := current.(string)
		if !ok {
			break
		}
		if quotedOnly && !strings.HasPrefix(strings.TrimSpace(s), `"`) {
			break
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			break
		}
		current = decoded
	}
	return current, true
}
