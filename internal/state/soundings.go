package state

import "github.com/vk/phaseboard/internal/logfeed"

// WinningSounding recovers which parallel attempt won from the row set
// alone. The winner marker can arrive on any row in any order; the last one
// in log order is authoritative.
func WinningSounding(rows []*logfeed.Row) (int, bool) {
	winner, found := 0, false
	for _, row := range rows {
		if row != nil && row.WinningSoundingIndex != nil {
			winner = *row.WinningSoundingIndex
			found = true
		}
	}
	return winner, found
}

// SoundingRows filters the rows belonging to one attempt. Rows with no
// sounding index belong to the phase as a whole and are included for every
// attempt.
func SoundingRows(rows []*logfeed.Row, index int) []*logfeed.Row {
	var out []*logfeed.Row
	for _, row := range rows {
		if row == nil {
			continue
		}
		if row.SoundingIndex == nil || *row.SoundingIndex == index {
			out = append(out, row)
		}
	}
	return out
}
