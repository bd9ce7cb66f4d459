package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/bioportal"
	"github.com/kirklandnuts/ontology-batch-query/ontology"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/rs/zerolog"
)

type bioportalClient interface {
	searchClient
	Submissions(ctx context.Context, acronym string) ([]bioportal.Submission, error)
}

// Runner is the process-wide entry point for batches. Batches run one at a
// time over a shared client and pacer, each with a fresh ontology cache.
type Runner struct {
	mu        sync.Mutex
	client    bioportalClient
	pacer     *pacer
	obqLogger zerolog.Logger
}

func NewRunner(client bioportalClient, delay time.Duration, obqLogger zerolog.Logger) *Runner {
	return &Runner{
		client:    client,
		pacer:     newPacer(delay),
		obqLogger: obqLogger,
	}
}

func (r *Runner) ResolveBatch(ctx context.Context, terms []types.Term, scope types.OntologyScope, limit int) (types.ResultSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := &Resolver{
		client:    r.client,
		cache:     ontology.NewCache(r.client, r.obqLogger),
		pacer:     r.pacer,
		obqLogger: r.obqLogger,
	}
	return batch.ResolveBatch(ctx, terms, scope, limit)
}
