package formatting

import "strings"

const (
	condensedDefaultLead = "Building a React component"
	condensedMaxFeatures = 3
	condensedMaxLines    = 14
)

// CondenseResponse shortens a long free-form reply: the first line describing
// what is being built, then up to three further lines that are not code or
// examples, capped at fourteen lines.
func CondenseResponse(response string) string {
	var lines []string
	for _, line := range strings.Split(response, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	lead := ""
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "building") || strings.Contains(lower, "creating") ||
			strings.Contains(lower, "component") || strings.Contains(lower, "feature") {
			lead = line
			break
		}
	}
	if lead == "" {
		lead = condensedDefaultLead
	}

	out := []string{lead}
	features := 0
	for _, line := range lines {
		if features == condensedMaxFeatures {
			break
		}
		lower := strings.ToLower(line)
		if line == lead || strings.Contains(line, "```") ||
			strings.Contains(lower, "example") || strings.Contains(lower, "code") {
			continue
		}
		out = append(out, line)
		features++
	}

	joined := strings.Split(strings.Join(out, "\n"), "\n")
	if len(joined) > condensedMaxLines {
		joined = joined[:condensedMaxLines]
	}
	return strings.Join(joined, "\n")
}
