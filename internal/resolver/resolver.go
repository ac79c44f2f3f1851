// Package resolver maps a free-text place name to a single encyclopedia article.
//
// Resolution runs in two passes. The direct pass tries exact titles built from
// surface-form variants of the name. When none of them exists, the search pass
// runs a full-text search and scores the fetched hits, keeping the first
// candidate with the highest score.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
)

const (
	// MaxCandidates bounds how many search hits are fetched and scored.
	MaxCandidates = 10

	scoreExactTitle = 100
	scoreSubstring  = 40
	scoreCityTitle  = 15
	scorePopulated  = 25
)

// Encyclopedia is the article service the resolver queries.
type Encyclopedia interface {
	// Page fetches an article. With autoSuggest the service may correct the title first.
	// Failures may be a *placescout.DisambiguationError or match placescout.ErrArticleNotFound.
	Page(ctx context.Context, title string, autoSuggest bool) (placescout.Article, error)
	// Search returns up to limit titles for a full-text query, best first.
	Search(ctx context.Context, query string, limit int) ([]string, error)
	// Categories lists the categories an article belongs to.
	Categories(ctx context.Context, title string) ([]string, error)
}

// Resolver resolves place names against an Encyclopedia.
type Resolver struct {
	wiki   Encyclopedia
	logger *slog.Logger
}

// New creates a Resolver.
func New(wiki Encyclopedia, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{wiki: wiki, logger: logger.With("component", "resolver")}
}

// Resolve returns the best article for name. Lookup failures on individual
// variants and candidates are absorbed; the result is never a Go error.
func (r *Resolver) Resolve(ctx context.Context, name string) placescout.ResolutionResult {
	raw := strings.TrimSpace(name)
	ascii := strings.TrimSpace(unidecode.Unidecode(raw))
	r.logger.Info("fetching location facts", "name", name)

	for _, variant := range Variants(raw) {
		if err := ctx.Err(); err != nil {
			return placescout.Failed(name, placescout.NewCancelledError("resolve.direct", err))
		}
		article, err := r.wiki.Page(ctx, variant, false)
		if err != nil {
			r.logger.Debug("direct lookup missed", "variant", variant, "error", err)
			continue
		}
		r.logger.Debug("direct lookup matched", "variant", variant, "title", article.Title)
		return found(name, article)
	}

	results, err := r.wiki.Search(ctx, ascii, MaxCandidates)
	if err != nil {
		if ctx.Err() != nil {
			return placescout.Failed(name, placescout.NewCancelledError("resolve.search", ctx.Err()))
		}
		return placescout.Failed(name, placescout.NewExternalServiceError("resolve.search", "encyclopedia search", err))
	}
	if len(results) == 0 {
		r.logger.Debug("search returned nothing", "query", ascii)
		return placescout.NotFound(name)
	}
	if len(results) > MaxCandidates {
		results = results[:MaxCandidates]
	}
	r.logger.Debug("search results", "query", ascii, "results", results)

	var (
		best      placescout.Article
		bestScore = -1
	)
	for _, title := range results {
		if err := ctx.Err(); err != nil {
			return placescout.Failed(name, placescout.NewCancelledError("resolve.search", err))
		}
		article, err := r.wiki.Page(ctx, title, true)
		if err != nil {
			var dis *placescout.DisambiguationError
			if errors.As(err, &dis) {
				r.logger.Warn("disambiguation while scoring candidates", "candidate", title, "options", len(dis.Options))
				return placescout.Disambiguated(name, dis.Options)
			}
			r.logger.Debug("candidate lookup failed", "candidate", title, "error", err)
			continue
		}

		score := r.score(ctx, raw, ascii, article)
		r.logger.Debug("scored candidate", "candidate", article.Title, "score", score)
		if score > bestScore {
			bestScore = score
			best = article
		}
	}

	if bestScore < 0 {
		return placescout.NotFound(name)
	}
	return found(name, best)
}

// score rates how likely article is the place the user meant.
func (r *Resolver) score(ctx context.Context, raw, ascii string, article placescout.Article) int {
	title := strings.ToLower(article.Title)
	rawLower := strings.ToLower(raw)

	score := 0
	if title == rawLower || title == strings.ToLower(ascii) {
		score += scoreExactTitle
	}
	if strings.Contains(title, rawLower) {
		score += scoreSubstring
	}
	if strings.Contains(title, "city") {
		score += scoreCityTitle
	}

	categories, err := r.wiki.Categories(ctx, article.Title)
	if err != nil {
		r.logger.Debug("categories unavailable", "title", article.Title, "error", err)
		return score
	}
	for _, c := range categories {
		c = strings.ToLower(c)
		if strings.Contains(c, "cities") || strings.Contains(c, "populated places") {
			score += scorePopulated
			break
		}
	}
	return score
}

// Variants returns the surface forms tried by the direct pass, in precedence
// order and without duplicates: raw, title-cased, transliterated,
// title-cased transliterated, then both hyphenated.
func Variants(name string) []string {
	raw := strings.TrimSpace(name)
	ascii := strings.TrimSpace(unidecode.Unidecode(raw))

	candidates := []string{
		raw,
		titleCase(raw),
		ascii,
		titleCase(ascii),
		strings.ReplaceAll(raw, " ", "-"),
		strings.ReplaceAll(ascii, " ", "-"),
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "o'fallon" becomes "O'Fallon" and
// "winston-salem" becomes "Winston-Salem".
func titleCase(s string) string {
	caser := cases.Title(language.Und)
	var b strings.Builder
	b.Grow(len(s))
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(caser.String(s[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}

func found(requested string, article placescout.Article) placescout.ResolutionResult {
	return placescout.Found(requested, article.Title, article.URL, Excerpt(article.Content))
}
