package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirklandnuts/ontology-batch-query/bioportal/bioportaltest"
	"github.com/kirklandnuts/ontology-batch-query/resolver"
	"github.com/stretchr/testify/require"
)

func setupBackend(t *testing.T) *bioportaltest.Server {
	t.Helper()
	srv := bioportaltest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddOntology("UBERON", bioportaltest.Ontology{Name: "Uber Anatomy Ontology", CreationDate: "2017-06-02T01:03:04-07:00"})
	srv.AddTerm("eye", bioportaltest.Term{Classes: []bioportaltest.Class{{
		PrefLabel:  "eye",
		Definition: []string{"Organ of sight."},
		Synonym:    []string{"eyeball", "camera-type eye"},
		ID:         "http://purl.obolibrary.org/obo/UBERON_0000970",
		Ontology:   "UBERON",
		Children:   1,
		Parents:    []string{"organ"},
	}}})

	t.Setenv("BIOPORTAL_API_KEY", bioportaltest.APIKey)
	t.Setenv("BIOPORTAL_REST_URL", srv.URL)
	t.Setenv("OBQ_REQUEST_DELAY", "0s")
	return srv
}

func writeTerms(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "terms.txt"), []byte(content), 0o644))
	return dir
}

func readReport(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func warnings(t *testing.T, logs *bytes.Buffer) []string {
	t.Helper()
	var messages []string
	scanner := bufio.NewScanner(bytes.NewReader(logs.Bytes()))
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		if line["level"] == "warn" {
			messages = append(messages, line["message"].(string))
		}
	}
	return messages
}

func TestEndToEnd(t *testing.T) {
	setupBackend(t)
	dir := writeTerms(t, "eye\nheart\n")
	var stdout, logs bytes.Buffer

	err := run([]string{"-o", "out.csv", dir, "terms.txt"}, &stdout, &logs)
	require.NoError(t, err)

	records := readReport(t, filepath.Join(dir, "out.csv"))
	require.Equal(t, [][]string{
		{"searched_term", "matched_term", "definition", "synonyms", "ontology_acronym", "ontology_name",
			"last_updated", "has_child", "parent(s)", "URL"},
		{"eye", "eye", "Organ of sight.", "eyeball; camera-type eye", "UBERON", "Uber Anatomy Ontology",
			"2017-06-02", "true", "organ", "http://purl.obolibrary.org/obo/UBERON_0000970"},
	}, records)
	require.Equal(t, []string{"'heart' could not be resolved on BioPortal"}, warnings(t, &logs))

	require.Contains(t, stdout.String(), "You have not defined a scope; the program will query all ontologies.")
	require.Contains(t, stdout.String(), "Results have been stored in "+filepath.Join(dir, "out.csv"))
}

func TestDefaultOutputName(t *testing.T) {
	setupBackend(t)
	dir := writeTerms(t, "eye\n")
	var stdout, logs bytes.Buffer

	require.NoError(t, run([]string{"-s", "UBERON", "-omit-parents", dir, "terms.txt"}, &stdout, &logs))

	matches, err := filepath.Glob(filepath.Join(dir, "terms_resolved_*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	records := readReport(t, matches[0])
	require.Len(t, records, 2)
	require.NotContains(t, records[0], "parent(s)")
	require.Contains(t, stdout.String(), "Your scope is: UBERON")
}

func TestFailedRunWritesNoReport(t *testing.T) {
	srv := setupBackend(t)
	srv.FailOn("/classes/")
	dir := writeTerms(t, "eye\nheart\n")
	var stdout, logs bytes.Buffer

	err := run([]string{"-o", "out.csv", dir, "terms.txt"}, &stdout, &logs)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "terms.txt", entries[0].Name())
}

func TestProfile(t *testing.T) {
	srv := setupBackend(t)
	profiles := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(profiles, "anatomy.yaml"),
		[]byte("scope: [UBERON, FMA]\nlimit: 3\nomit_parents: true\n"),
		0o644,
	))
	t.Setenv("OBQ_PROFILES_PATH", profiles)
	dir := writeTerms(t, "eye\n")
	var stdout, logs bytes.Buffer

	require.NoError(t, run([]string{"-profile", "anatomy", "-o", "out.csv", dir, "terms.txt"}, &stdout, &logs))
	require.Equal(t, []string{"UBERON,FMA"}, srv.Scopes())
	require.NotContains(t, readReport(t, filepath.Join(dir, "out.csv"))[0], "parent(s)")

	err := run([]string{"-profile", "missing", dir, "terms.txt"}, &stdout, &logs)
	require.Error(t, err)
}

func TestProfileOverriddenByFlags(t *testing.T) {
	opts := options{profile: "anatomy", limit: 7, omitParents: false}
	profiles := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(profiles, "anatomy.yaml"),
		[]byte("scope: [UBERON]\nlimit: 3\nomit_parents: true\n"),
		0o644,
	))

	require.NoError(t, applyProfile(&opts, map[string]bool{"n": true, "omit-parents": true}, profiles))
	require.Equal(t, 7, opts.limit)
	require.False(t, opts.omitParents)
	require.Equal(t, scopeFlag{"UBERON"}, opts.scope)
}

func TestArguments(t *testing.T) {
	var logs bytes.Buffer

	_, _, err := parseArgs([]string{"dir"}, &logs)
	require.True(t, errors.Is(err, errUsage))

	opts, set, err := parseArgs([]string{"-s", "MESH,NCIT", "-s", "SNOMEDCT", "-n", "4", "dir", "in.txt"}, &logs)
	require.NoError(t, err)
	require.Equal(t, scopeFlag{"MESH,NCIT", "SNOMEDCT"}, opts.scope)
	require.Equal(t, 4, opts.limit)
	require.Equal(t, "dir", opts.directory)
	require.Equal(t, "in.txt", opts.inputFile)
	require.True(t, set["s"])
	require.False(t, set["o"])

	opts, _, err = parseArgs([]string{"-api"}, &logs)
	require.NoError(t, err)
	require.True(t, opts.serveAPI)
}

func TestInvalidLimit(t *testing.T) {
	setupBackend(t)
	dir := writeTerms(t, "eye\n")
	var stdout, logs bytes.Buffer

	err := run([]string{"-n", "0", dir, "terms.txt"}, &stdout, &logs)
	require.True(t, errors.Is(err, resolver.ErrInvalidLimit))
}

func TestMissingAPIKey(t *testing.T) {
	setupBackend(t)
	require.NoError(t, os.Unsetenv("BIOPORTAL_API_KEY"))
	dir := writeTerms(t, "eye\n")
	var stdout, logs bytes.Buffer

	err := run([]string{dir, "terms.txt"}, &stdout, &logs)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "BIOPORTAL_API_KEY"))
}
