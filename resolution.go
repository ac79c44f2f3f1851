package placescout

import (
	"encoding/json"
	"errors"
)

// ResolutionKind tags the variant held by a ResolutionResult.
type ResolutionKind string

const (
	ResolutionFound         ResolutionKind = "found"
	ResolutionNotFound      ResolutionKind = "not_found"
	ResolutionDisambiguated ResolutionKind = "disambiguation"
	ResolutionFailed        ResolutionKind = "general"
)

const (
	// MaxExcerptRunes bounds ResolutionResult.Excerpt.
	MaxExcerptRunes = 500
	// MaxDisambiguationOptions bounds ResolutionResult.Options.
	MaxDisambiguationOptions = 10
)

// ResolutionResult is the outcome of resolving one place name.
type ResolutionResult struct {
	Kind          ResolutionKind
	Requested     string
	ResolvedTitle string   // found
	URL           string   // found
	Excerpt       string   // found
	Options       []string // disambiguation
	Details       string   // general
}

// Found builds a successful resolution.
func Found(requested, title, url, excerpt string) ResolutionResult {
	return ResolutionResult{
		Kind:          ResolutionFound,
		Requested:     requested,
		ResolvedTitle: title,
		URL:           url,
		Excerpt:       excerpt,
	}
}

// NotFound builds a resolution that matched nothing.
func NotFound(requested string) ResolutionResult {
	return ResolutionResult{Kind: ResolutionNotFound, Requested: requested}
}

// Disambiguated builds a resolution that hit an ambiguous title.
func Disambiguated(requested string, options []string) ResolutionResult {
	if len(options) > MaxDisambiguationOptions {
		options = options[:MaxDisambiguationOptions]
	}
	return ResolutionResult{
		Kind:      ResolutionDisambiguated,
		Requested: requested,
		Options:   append([]string(nil), options...),
	}
}

// Failed builds a resolution that hit an unexpected error.
func Failed(requested string, err error) ResolutionResult {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return ResolutionResult{Kind: ResolutionFailed, Requested: requested, Details: details}
}

// resolutionPayload is the transport shape of a get_location_info result.
type resolutionPayload struct {
	Error         string   `json:"error,omitempty"`
	Requested     string   `json:"requested"`
	ResolvedTitle string   `json:"resolved_title,omitempty"`
	URL           string   `json:"url,omitempty"`
	Excerpt       string   `json:"excerpt,omitempty"`
	Options       []string `json:"options,omitempty"`
	Details       string   `json:"details,omitempty"`
}

// MarshalJSON encodes the result as the get_location_info transport payload.
func (r ResolutionResult) MarshalJSON() ([]byte, error) {
	p := resolutionPayload{Requested: r.Requested}
	switch r.Kind {
	case ResolutionFound:
		p.ResolvedTitle = r.ResolvedTitle
		p.URL = r.URL
		p.Excerpt = r.Excerpt
	case ResolutionDisambiguated:
		p.Error = string(ResolutionDisambiguated)
		p.Options = r.Options
		if p.Options == nil {
			p.Options = []string{}
		}
	case ResolutionNotFound:
		p.Error = string(ResolutionNotFound)
	default:
		p.Error = string(ResolutionFailed)
		p.Details = r.Details
	}
	return json.Marshal(p)
}

// UnmarshalJSON decodes a get_location_info transport payload.
func (r *ResolutionResult) UnmarshalJSON(data []byte) error {
	var p resolutionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ResolutionResult{
		Requested:     p.Requested,
		ResolvedTitle: p.ResolvedTitle,
		URL:           p.URL,
		Excerpt:       p.Excerpt,
		Options:       p.Options,
		Details:       p.Details,
	}
	switch p.Error {
	case "":
		r.Kind = ResolutionFound
	case string(ResolutionNotFound):
		r.Kind = ResolutionNotFound
	case string(ResolutionDisambiguated):
		r.Kind = ResolutionDisambiguated
	default:
		r.Kind = ResolutionKind(p.Error)
	}
	return nil
}

// Encode returns the transport string for the result.
func (r ResolutionResult) Encode() string {
	b, err := json.Marshal(r)
	if err != nil {
		// Only strings and string slices are encoded; this cannot fail in practice.
		return `{"error":"general","requested":"","details":"encode failed"}`
	}
	return string(b)
}

// ParseResolution decodes a transport string. The payload must be a JSON object.
func ParseResolution(payload string) (ResolutionResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return ResolutionResult{}, err
	}
	if raw == nil {
		return ResolutionResult{}, errors.New("payload is not an object")
	}
	var r ResolutionResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return ResolutionResult{}, err
	}
	return r, nil
}
