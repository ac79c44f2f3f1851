package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
)

type fakeWiki struct {
	exact      map[string]placescout.Article
	exactErr   error
	suggested  map[string]placescout.Article
	suggestErr map[string]error
	results    []string
	searchErr  error
	categories map[string][]string

	exactCalls []string
	queries    []string
}

func (f *fakeWiki) Page(_ context.Context, title string, autoSuggest bool) (placescout.Article, error) {
	if !autoSuggest {
		f.exactCalls = append(f.exactCalls, title)
		if f.exactErr != nil {
			return placescout.Article{}, f.exactErr
		}
		if a, ok := f.exact[title]; ok {
			return a, nil
		}
		return placescout.Article{}, placescout.NewNotFoundError("test", title)
	}
	if err, ok := f.suggestErr[title]; ok {
		return placescout.Article{}, err
	}
	if a, ok := f.suggested[title]; ok {
		return a, nil
	}
	return placescout.Article{}, placescout.NewNotFoundError("test", title)
}

func (f *fakeWiki) Search(_ context.Context, query string, _ int) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.results, f.searchErr
}

func (f *fakeWiki) Categories(_ context.Context, title string) ([]string, error) {
	cats, ok := f.categories[title]
	if !ok {
		return nil, errors.New("categories unavailable")
	}
	return cats, nil
}

func article(title string) placescout.Article {
	return placescout.Article{
		Title:   title,
		URL:     "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_"),
		Content: title + " is a place.\n\nMore text.",
	}
}

func TestVariants_OrderAndDedup(t *testing.T) {
	assert.Equal(t,
		[]string{"são paulo", "São Paulo", "sao paulo", "Sao Paulo", "são-paulo", "sao-paulo"},
		Variants("  são paulo "))

	assert.Equal(t, []string{"Prague"}, Variants("Prague"))
	assert.Equal(t, []string{"Zürich", "Zurich"}, Variants("Zürich"))
}

func TestVariants_TitleCasesEveryLetterRun(t *testing.T) {
	assert.Equal(t, []string{"o'fallon", "O'Fallon"}, Variants("o'fallon"))
	assert.Contains(t, Variants("winston-salem"), "Winston-Salem")
	assert.Contains(t, Variants("NEW YORK"), "New York")
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"o'fallon":           "O'Fallon",
		"winston-salem":      "Winston-Salem",
		"são paulo":          "São Paulo",
		"NEW YORK":           "New York",
		"st. john's":         "St. John'S",
		"3rd arrondissement": "3Rd Arrondissement",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, titleCase(in), in)
	}
}

func TestResolve_DirectPassFirstVariantWins(t *testing.T) {
	wiki := &fakeWiki{exact: map[string]placescout.Article{
		"São Paulo": article("São Paulo"),
		"Sao Paulo": article("Sao Paulo"),
	}}

	got := New(wiki, nil).Resolve(context.Background(), "são paulo")

	require.Equal(t, placescout.ResolutionFound, got.Kind)
	assert.Equal(t, "São Paulo", got.ResolvedTitle)
	assert.Equal(t, "são paulo", got.Requested)
	assert.Equal(t, "São Paulo is a place.", got.Excerpt)
	assert.Equal(t, []string{"são paulo", "São Paulo"}, wiki.exactCalls)
	assert.Empty(t, wiki.queries, "search must not run after a direct hit")
}

func TestResolve_DirectPassSwallowsAnyError(t *testing.T) {
	wiki := &fakeWiki{
		exactErr:  errors.New("connection reset"),
		results:   []string{"Brno"},
		suggested: map[string]placescout.Article{"Brno": article("Brno")},
	}

	got := New(wiki, nil).Resolve(context.Background(), "brno")

	require.Equal(t, placescout.ResolutionFound, got.Kind)
	assert.Equal(t, "Brno", got.ResolvedTitle)
	assert.Len(t, wiki.exactCalls, len(Variants("brno")))
	assert.Equal(t, []string{"brno"}, wiki.queries)
}

func TestResolve_SearchScoringPicksPopulatedExactMatch(t *testing.T) {
	wiki := &fakeWiki{
		results: []string{"Paris", "Paris, Texas", "Paris (mythology)"},
		suggested: map[string]placescout.Article{
			"Paris":             article("Paris"),
			"Paris, Texas":      article("Paris, Texas"),
			"Paris (mythology)": article("Paris (mythology)"),
		},
		categories: map[string][]string{
			"Paris":             {"Capitals in Europe", "Populated places on the Seine"},
			"Paris, Texas":      {"1990 films"},
			"Paris (mythology)": {"Trojans"},
		},
	}
	// Force the search pass by rejecting every exact title.
	wiki.exactErr = placescout.NewNotFoundError("test", "paris")

	got := New(wiki, nil).Resolve(context.Background(), "paris")

	require.Equal(t, placescout.ResolutionFound, got.Kind)
	assert.Equal(t, "Paris", got.ResolvedTitle)
}

func TestResolve_TieGoesToEarliestCandidate(t *testing.T) {
	wiki := &fakeWiki{
		exactErr: placescout.NewNotFoundError("test", "x"),
		results:  []string{"Springfield, Oregon", "Springfield, Ohio"},
		suggested: map[string]placescout.Article{
			"Springfield, Oregon": article("Springfield, Oregon"),
			"Springfield, Ohio":   article("Springfield, Ohio"),
		},
		categories: map[string][]string{
			"Springfield, Oregon": {"Cities in Oregon"},
			"Springfield, Ohio":   {"Cities in Ohio"},
		},
	}

	got := New(wiki, nil).Resolve(context.Background(), "Springfield")

	require.Equal(t, placescout.ResolutionFound, got.Kind)
	assert.Equal(t, "Springfield, Oregon", got.ResolvedTitle)
}

func TestResolve_AllZeroScoresKeepFirstFetched(t *testing.T) {
	wiki := &fakeWiki{
		exactErr: placescout.NewNotFoundError("test", "x"),
		results:  []string{"Unfetchable", "Alpha", "Beta"},
		suggested: map[string]placescout.Article{
			"Alpha": article("Alpha"),
			"Beta":  article("Beta"),
		},
	}

	got := New(wiki, nil).Resolve(context.Background(), "qqq")

	require.Equal(t, placescout.ResolutionFound, got.Kind)
	assert.Equal(t, "Alpha", got.ResolvedTitle)
}

func TestResolve_DisambiguationInSearchPass(t *testing.T) {
	options := make([]string, 12)
	for i := range options {
		options[i] = fmt.Sprintf("Springfield %d", i)
	}
	wiki := &fakeWiki{
		exactErr: placescout.NewNotFoundError("test", "x"),
		results:  []string{"Springfield", "Springfield, Illinois"},
		suggestErr: map[string]error{
			"Springfield": &placescout.DisambiguationError{Title: "Springfield", Options: options},
		},
		suggested: map[string]placescout.Article{"Springfield, Illinois": article("Springfield, Illinois")},
	}

	got := New(wiki, nil).Resolve(context.Background(), "Springfield")

	require.Equal(t, placescout.ResolutionDisambiguated, got.Kind)
	assert.Len(t, got.Options, placescout.MaxDisambiguationOptions)
	assert.Equal(t, "Springfield 0", got.Options[0])
}

func TestResolve_NotFound(t *testing.T) {
	t.Run("empty search", func(t *testing.T) {
		got := New(&fakeWiki{}, nil).Resolve(context.Background(), "Xyzzyville")
		assert.Equal(t, placescout.ResolutionNotFound, got.Kind)
		assert.Equal(t, "Xyzzyville", got.Requested)
	})

	t.Run("no candidate fetched", func(t *testing.T) {
		wiki := &fakeWiki{results: []string{"Ghost", "Phantom"}}
		got := New(wiki, nil).Resolve(context.Background(), "Xyzzyville")
		assert.Equal(t, placescout.ResolutionNotFound, got.Kind)
	})
}

func TestResolve_SearchFailureIsReported(t *testing.T) {
	wiki := &fakeWiki{searchErr: errors.New("503 from upstream")}

	got := New(wiki, nil).Resolve(context.Background(), "Prague")

	assert.Equal(t, placescout.ResolutionFailed, got.Kind)
	assert.Contains(t, got.Details, "encyclopedia search")
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := New(&fakeWiki{}, nil).Resolve(ctx, "Prague")
	assert.Equal(t, placescout.ResolutionFailed, got.Kind)
}

func TestExcerpt(t *testing.T) {
	t.Run("first paragraph only", func(t *testing.T) {
		assert.Equal(t, "Prague is the capital.", Excerpt("  Prague is the capital.  \n\nSecond paragraph."))
	})

	t.Run("long text is cut at a word boundary", func(t *testing.T) {
		long := strings.Repeat("word ", 200)
		got := Excerpt(long)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), placescout.MaxExcerptRunes)
		assert.True(t, strings.HasSuffix(got, "word…"), "got %q", got[len(got)-20:])
	})

	t.Run("long text without spaces", func(t *testing.T) {
		got := Excerpt(strings.Repeat("é", 800))
		assert.Equal(t, placescout.MaxExcerptRunes, utf8.RuneCountInString(got))
		assert.True(t, strings.HasSuffix(got, "…"))
	})

	t.Run("exactly at the limit is kept", func(t *testing.T) {
		exact := strings.Repeat("a", placescout.MaxExcerptRunes)
		assert.Equal(t, exact, Excerpt(exact))
	})
}
