// Package ontology keeps the per-run memo of ontology metadata so that every
// acronym costs at most one submissions request per run.
package ontology

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kirklandnuts/ontology-batch-query/bioportal"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/rs/zerolog"
)

const ontologiesPathSegment = "/ontologies/"

type submissionsFetcher interface {
	Submissions(ctx context.Context, acronym string) ([]bioportal.Submission, error)
}

type Cache struct {
	sync.Mutex
	fetcher   submissionsFetcher
	stored    map[string]types.OntologyMetadata
	obqLogger zerolog.Logger
}

func NewCache(fetcher submissionsFetcher, obqLogger zerolog.Logger) *Cache {
	return &Cache{
		fetcher:   fetcher,
		stored:    make(map[string]types.OntologyMetadata),
		obqLogger: obqLogger,
	}
}

// Get returns the metadata of acronym, fetching the ontology's most recent
// submission on first use. The lock is held across the fetch so concurrent
// callers never request the same acronym twice.
func (c *Cache) Get(ctx context.Context, acronym string) (types.OntologyMetadata, error) {
	c.Lock()
	defer c.Unlock()
	if metadata, ok := c.stored[acronym]; ok {
		return metadata, nil
	}

	submissions, err := c.fetcher.Submissions(ctx, acronym)
	if err != nil {
		return types.OntologyMetadata{}, fmt.Errorf("fetching submissions of ontology %s: %w", acronym, err)
	}
	metadata := types.OntologyMetadata{
		Acronym:     acronym,
		Name:        types.NotAvailable,
		LastUpdated: types.NotAvailable,
	}
	if len(submissions) == 0 {
		c.obqLogger.Warn().Str("acronym", acronym).Msg("Ontology has no submissions")
	} else {
		latest := submissions[0]
		if latest.Ontology.Name != "" {
			metadata.Name = latest.Ontology.Name
		}
		if date := latest.CreationDate; date != "" {
			if len(date) > 10 {
				date = date[:10]
			}
			metadata.LastUpdated = date
		}
	}
	c.stored[acronym] = metadata
	c.obqLogger.Debug().Str("acronym", acronym).Str("name", metadata.Name).Msg("Cached ontology metadata")
	return metadata, nil
}

func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.stored)
}

// AcronymFromLink recovers the acronym from a link such as
// http://data.bioontology.org/ontologies/NCIT.
func AcronymFromLink(link string) string {
	idx := strings.LastIndex(link, ontologiesPathSegment)
	if idx < 0 {
		return ""
	}
	acronym := link[idx+len(ontologiesPathSegment):]
	if end := strings.IndexAny(acronym, "/?#"); end >= 0 {
		acronym = acronym[:end]
	}
	return acronym
}
