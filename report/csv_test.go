package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/stretchr/testify/require"
)

func sampleResults() types.ResultSet {
	return types.ResultSet{
		{
			Term:   "eye",
			Status: types.StatusResolved,
			Matches: []types.EnrichedMatch{
				{
					SearchedTerm:    "eye",
					PrefLabel:       "eye",
					Definition:      []string{"An organ, that detects light."},
					Synonym:         []string{"eyeball", "orbit"},
					OntologyAcronym: "UBERON",
					OntologyName:    "Uber Anatomy Ontology",
					LastUpdated:     "2017-06-02",
					HasChild:        true,
					Parents:         []string{"organ"},
					ID:              "http://purl.obolibrary.org/obo/UBERON_0000970",
				},
			},
		},
		{Term: "heart", Status: types.StatusUnresolved},
		{
			Term:   "lung",
			Status: types.StatusResolved,
			Matches: []types.EnrichedMatch{
				types.RawMatch{}.Normalize("lung"),
			},
		},
	}
}

func readAll(t *testing.T, b []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults(), Options{}))

	records := readAll(t, buf.Bytes())
	require.Equal(t, [][]string{
		{"searched_term", "matched_term", "definition", "synonyms", "ontology_acronym", "ontology_name",
			"last_updated", "has_child", "parent(s)", "URL"},
		{"eye", "eye", "An organ, that detects light.", "eyeball; orbit", "UBERON", "Uber Anatomy Ontology",
			"2017-06-02", "true", "organ", "http://purl.obolibrary.org/obo/UBERON_0000970"},
		{"lung", "NA", "NA", "NA", "NA", "NA", "NA", "false", "NA", "NA"},
	}, records)
}

func TestWriteCSVOmitParents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults(), Options{OmitParents: true}))

	records := readAll(t, buf.Bytes())
	require.Len(t, records, 3)
	require.NotContains(t, records[0], "parent(s)")
	require.Equal(t, "URL", records[0][8])
	for _, record := range records {
		require.Len(t, record, 9)
	}
	require.Equal(t, "true", records[1][7])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, Options{}))
	require.Len(t, readAll(t, buf.Bytes()), 1)
}

func TestDefaultOutputName(t *testing.T) {
	now := time.Date(2017, 6, 13, 9, 5, 7, 0, time.UTC)
	require.Equal(t, "search-terms_resolved_20170613T090507.csv", DefaultOutputName("search-terms.txt", now))
	require.Equal(t, "terms_resolved_20170613T090507.csv", DefaultOutputName("terms", now))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteFile(path, sampleResults(), Options{}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, readAll(t, b), 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.Error(t, WriteFile(filepath.Join(dir, "missing", "out.csv"), sampleResults(), Options{}))
}
