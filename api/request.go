package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kirklandnuts/ontology-batch-query/report"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/kirklandnuts/ontology-batch-query/utils"
	"github.com/rs/zerolog"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

type batchResolver interface {
	ResolveBatch(ctx context.Context, terms []types.Term, scope types.OntologyScope, limit int) (types.ResultSet, error)
}

// Request serves POST /resolve. Resolver is expected to serialize batches with
// every other user of the BioPortal client, as resolver.Runner does.
type Request struct {
	Resolver     batchResolver
	DefaultLimit int
	Logger       *zerolog.Logger
}

type resolveParams struct {
	scope       types.OntologyScope
	limit       int
	format      string
	omitParents bool
}

func (req *Request) ResolveTerms(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(req.baseLogger(), r)

	if r.Method != http.MethodPost {
		logger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'POST' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	params, err := req.parseParams(r)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Invalid query parameters")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	terms, err := utils.ReadTerms(r.Body)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	logger.Info().Int("terms", len(terms)).Msg("Starting batch for request from API")
	results, err := req.Resolver.ResolveBatch(r.Context(), terms, params.scope, params.limit)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadGateway).Msg("Batch resolution failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	var body bytes.Buffer
	switch params.format {
	case FormatJSON:
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(&body).Encode(results)
	default:
		w.Header().Set("Content-Type", "text/csv")
		err = report.WriteCSV(&body, results, report.Options{OmitParents: params.omitParents})
	}
	if err != nil {
		logger.Err(err).Int("status", http.StatusInternalServerError).Msg("Could not render response")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body.Bytes())
	logger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}

func (req *Request) parseParams(r *http.Request) (resolveParams, error) {
	query := r.URL.Query()
	params := resolveParams{
		scope:  types.ParseScope(query["scope"]...),
		limit:  req.DefaultLimit,
		format: query.Get("format"),
	}
	if params.limit <= 0 {
		params.limit = types.DefaultMatchLimit
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return params, errInvalidLimit(raw)
		}
		params.limit = limit
	}
	switch params.format {
	case "", FormatCSV:
		params.format = FormatCSV
	case FormatJSON:
	default:
		return params, errInvalidFormat(params.format)
	}
	if raw := query.Get("omit_parents"); raw != "" {
		omit, err := strconv.ParseBool(raw)
		if err != nil {
			return params, err
		}
		params.omitParents = omit
	}
	return params, nil
}

func (req *Request) baseLogger() zerolog.Logger {
	if req.Logger != nil {
		return *req.Logger
	}
	return defaultLogger
}
