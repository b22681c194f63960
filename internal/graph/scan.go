package graph

import "regexp"

// The dependency scan is a best-effort textual pass over the serialized phase
// body, not a parse of its real structure. It tolerates malformed or
// partially-filled templates: whatever matches, matches.
var (
	outputRefPattern = regexp.MustCompile(`outputs\.([A-Za-z_][A-Za-z0-9_-]*)`)
	inputRefPattern  = regexp.MustCompile(`\binput\.([A-Za-z_][A-Za-z0-9_-]*)`)
)

// scanOutputRefs returns the distinct phase names referenced as
// "outputs.<name>" in raw, in first-occurrence order.
func scanOutputRefs(raw string) []string {
	return scanRefs(outputRefPattern, raw)
}

// scanInputRefs returns the distinct input parameter names referenced as
// "input.<name>" in raw, in first-occurrence order.
func scanInputRefs(raw string) []string {
	return scanRefs(inputRefPattern, raw)
}

func scanRefs(pattern *regexp.Regexp, raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range pattern.FindAllStringSubmatch(raw, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
