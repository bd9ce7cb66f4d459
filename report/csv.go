package report

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/types"
)

const (
	listSeparator   = "; "
	timestampLayout = "20060102T150405"
)

var header = []string{
	"searched_term", "matched_term", "definition", "synonyms", "ontology_acronym", "ontology_name",
	"last_updated", "has_child", "parent(s)", "URL",
}

const parentsColumn = 8

type Options struct {
	OmitParents bool
}

func Header(opts Options) []string {
	if !opts.OmitParents {
		return append([]string(nil), header...)
	}
	columns := make([]string, 0, len(header)-1)
	columns = append(columns, header[:parentsColumn]...)
	return append(columns, header[parentsColumn+1:]...)
}

func Record(match types.EnrichedMatch, opts Options) []string {
	record := []string{
		orNA(string(match.SearchedTerm)),
		orNA(match.PrefLabel),
		joinOrNA(match.Definition),
		joinOrNA(match.Synonym),
		orNA(match.OntologyAcronym),
		orNA(match.OntologyName),
		orNA(match.LastUpdated),
		strconv.FormatBool(match.HasChild),
		joinOrNA(match.Parents),
		orNA(match.ID),
	}
	if opts.OmitParents {
		return append(record[:parentsColumn], record[parentsColumn+1:]...)
	}
	return record
}

// WriteCSV writes the header and one row per match, terms in result order.
func WriteCSV(w io.Writer, results types.ResultSet, opts Options) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(opts)); err != nil {
		return err
	}
	for _, result := range results {
		for _, match := range result.Matches {
			if err := writer.Write(Record(match, opts)); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// DefaultOutputName derives <input>_resolved_<timestamp>.csv from the input file name.
func DefaultOutputName(inputFile string, now time.Time) string {
	base := strings.TrimSuffix(inputFile, filepath.Ext(inputFile))
	return base + "_resolved_" + now.Format(timestampLayout) + ".csv"
}

func orNA(s string) string {
	if s == "" {
		return types.NotAvailable
	}
	return s
}

func joinOrNA(values []string) string {
	if len(values) == 0 {
		return types.NotAvailable
	}
	return strings.Join(values, listSeparator)
}
