package placescout

import (
	"fmt"
	"strings"
)

const (
	// MaxSummaryRunes bounds every summary.
	MaxSummaryRunes = 600
	// maxOpaqueRunes bounds the echo of a payload that is not a resolution.
	maxOpaqueRunes = 500
	// maxSummaryOptions is how many disambiguation options are shown to the user.
	maxSummaryOptions = 5
)

// SummarizeFacts renders a get_location_info transport payload as a short sentence.
// Payloads that are not resolution objects are echoed, truncated.
func SummarizeFacts(payload string) string {
	if payload == "" {
		return "No information was retrieved."
	}
	result, err := ParseResolution(payload)
	if err != nil {
		return truncateRunes(payload, maxOpaqueRunes)
	}
	return Summarize(result)
}

// Summarize renders a resolution result as a short sentence of at most MaxSummaryRunes characters.
func Summarize(result ResolutionResult) string {
	var out string
	switch result.Kind {
	case ResolutionFound:
		title := result.ResolvedTitle
		if title == "" {
			title = result.Requested
		}
		if title == "" {
			title = "Unknown"
		}
		out = fmt.Sprintf("%s: %s Source: %s", title, result.Excerpt, result.URL)
	case ResolutionDisambiguated:
		opts := result.Options
		if len(opts) > maxSummaryOptions {
			opts = opts[:maxSummaryOptions]
		}
		out = fmt.Sprintf("Multiple possible matches: %s. Please specify more details (country/region).", strings.Join(opts, ", "))
	case ResolutionNotFound:
		out = fmt.Sprintf("I could not find a page for '%s'. Please check spelling or add a country or region.", result.Requested)
	default:
		kind := string(result.Kind)
		if kind == "" {
			kind = string(ResolutionFailed)
		}
		out = fmt.Sprintf("Error fetching facts (%s). Try again later.", kind)
	}
	return truncateRunes(out, MaxSummaryRunes)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
