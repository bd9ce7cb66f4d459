package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/bioportal"
	"github.com/kirklandnuts/ontology-batch-query/ontology"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/rs/zerolog"
)

// PageSize is the number of matches the search endpoint returns per page.
const PageSize = 50

const DefaultDelay = 150 * time.Millisecond

var ErrInvalidLimit = errors.New("match limit must be positive")

type searchClient interface {
	SearchURL(term types.Term, scope types.OntologyScope) string
	Search(ctx context.Context, pageURL string) (bioportal.SearchPage, error)
	ChildCount(ctx context.Context, childrenURL string) (int, error)
	Parents(ctx context.Context, parentsURL string) ([]string, error)
}

type metadataCache interface {
	Get(ctx context.Context, acronym string) (types.OntologyMetadata, error)
}

type Resolver struct {
	client    searchClient
	cache     metadataCache
	pacer     *pacer
	obqLogger zerolog.Logger
}

func New(client searchClient, cache metadataCache, delay time.Duration, obqLogger zerolog.Logger) *Resolver {
	return &Resolver{
		client:    client,
		cache:     cache,
		pacer:     newPacer(delay),
		obqLogger: obqLogger,
	}
}

// ResolveBatch resolves terms one after another. The first failure aborts the
// batch and no partial result set is returned.
func (r *Resolver) ResolveBatch(ctx context.Context, terms []types.Term, scope types.OntologyScope, limit int) (types.ResultSet, error) {
	results := make(types.ResultSet, 0, len(terms))
	for _, term := range terms {
		result, err := r.ResolveTerm(ctx, term, scope, limit)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	r.obqLogger.Info().
		Int("terms", len(terms)).
		Int("matches", results.MatchCount()).
		Int("unresolved", len(results.Unresolved())).
		Msg("Finished batch")
	return results, nil
}

func (r *Resolver) ResolveTerm(ctx context.Context, term types.Term, scope types.OntologyScope, limit int) (types.TermResult, error) {
	if limit <= 0 {
		return types.TermResult{}, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	termLogger := r.obqLogger.With().Str("term", string(term)).Logger()

	queryURL := r.client.SearchURL(term, scope)
	page, err := r.client.Search(ctx, queryURL)
	if err != nil {
		return types.TermResult{}, fmt.Errorf("searching term %q: %w", term, err)
	}
	if page.TotalCount == 0 {
		termLogger.Warn().Msgf("'%s' could not be resolved on BioPortal", term)
		return types.TermResult{
			Term:   term,
			Status: types.StatusUnresolved,
			Reason: "no matches found",
		}, nil
	}

	raws, err := r.collectMatches(ctx, page, limit, &termLogger)
	if err != nil {
		return types.TermResult{}, fmt.Errorf("paging results of term %q: %w", term, err)
	}

	matches := make([]types.EnrichedMatch, 0, len(raws))
	for i, raw := range raws {
		if err = r.pacer.wait(ctx); err != nil {
			return types.TermResult{}, err
		}
		match, err := r.enrich(ctx, term, raw)
		r.pacer.done()
		if err != nil {
			return types.TermResult{}, fmt.Errorf("enriching match %d of term %q: %w", i+1, term, err)
		}
		matches = append(matches, match)
	}
	termLogger.Info().Int("total_count", page.TotalCount).Int("matches", len(matches)).Msg("Resolved term")
	return types.TermResult{
		Term:    term,
		Status:  types.StatusResolved,
		Matches: matches,
	}, nil
}

// collectMatches walks the nextPage links until limit matches are gathered.
// limit is clamped to the reported total; below PageSize only the first page
// is used.
func (r *Resolver) collectMatches(ctx context.Context, page bioportal.SearchPage, limit int, termLogger *zerolog.Logger) ([]types.RawMatch, error) {
	if page.TotalCount < limit {
		limit = page.TotalCount
	}
	if limit < PageSize {
		return head(page.Collection, limit), nil
	}

	fullPages := limit / PageSize
	lastPageMatches := limit % PageSize

	raws := append([]types.RawMatch(nil), page.Collection...)
	fetched := 1
	for fetched < fullPages || (fetched == fullPages && lastPageMatches != 0) {
		if page.Links.NextPage == "" {
			termLogger.Debug().Int("pages", fetched).Msg("No next page, stopping early")
			break
		}
		next, err := r.client.Search(ctx, page.Links.NextPage)
		if err != nil {
			return nil, err
		}
		page = next
		fetched++
		if fetched > fullPages {
			raws = append(raws, head(page.Collection, lastPageMatches)...)
			break
		}
		raws = append(raws, page.Collection...)
	}
	return raws, nil
}

func (r *Resolver) enrich(ctx context.Context, term types.Term, raw types.RawMatch) (types.EnrichedMatch, error) {
	match := raw.Normalize(term)

	if acronym := ontology.AcronymFromLink(raw.Links.Ontology); acronym != "" {
		metadata, err := r.cache.Get(ctx, acronym)
		if err != nil {
			return match, err
		}
		match.OntologyAcronym = acronym
		match.OntologyName = metadata.Name
		match.LastUpdated = metadata.LastUpdated
	}

	if raw.Links.Children != "" {
		children, err := r.client.ChildCount(ctx, raw.Links.Children)
		if err != nil {
			return match, err
		}
		match.HasChild = children > 0
	}

	if raw.Links.Parents != "" {
		parents, err := r.client.Parents(ctx, raw.Links.Parents)
		if err != nil {
			return match, err
		}
		if len(parents) > 0 {
			match.Parents = parents
		}
	}
	return match, nil
}

func head(matches []types.RawMatch, n int) []types.RawMatch {
	if n > len(matches) {
		n = len(matches)
	}
	return append([]types.RawMatch(nil), matches[:n]...)
}
