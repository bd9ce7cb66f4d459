package types

import (
	"encoding/json"
	"strings"
)

// NotAvailable fills every optional field the service did not return.
const NotAvailable = "NA"

type Term string

type OntologyScope []string

func (scope OntologyScope) IsEmpty() bool {
	return len(scope) == 0
}

func (scope OntologyScope) Param() string {
	return strings.Join(scope, ",")
}

// ParseScope splits comma separated acronym lists. Acronyms are case sensitive.
func ParseScope(values ...string) OntologyScope {
	var scope OntologyScope
	for _, value := range values {
		for _, acronym := range strings.Split(value, ",") {
			acronym = strings.TrimSpace(acronym)
			if acronym != "" {
				scope = append(scope, acronym)
			}
		}
	}
	return scope
}

// Strings decodes a JSON string or an array of strings.
type Strings []string

func (s *Strings) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		if single != "" {
			*s = Strings{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type MatchLinks struct {
	Self     string `json:"self"`
	Ontology string `json:"ontology"`
	Children string `json:"children"`
	Parents  string `json:"parents"`
}

type RawMatch struct {
	PrefLabel  *string    `json:"prefLabel"`
	Definition Strings    `json:"definition"`
	Synonym    Strings    `json:"synonym"`
	ID         *string    `json:"@id"`
	Links      MatchLinks `json:"links"`
}

type OntologyMetadata struct {
	Acronym     string `json:"acronym"`
	Name        string `json:"name"`
	LastUpdated string `json:"last_updated"`
}

type EnrichedMatch struct {
	SearchedTerm    Term     `json:"searched_term"`
	PrefLabel       string   `json:"matched_term"`
	Definition      []string `json:"definition"`
	Synonym         []string `json:"synonyms"`
	OntologyAcronym string   `json:"ontology_acronym"`
	OntologyName    string   `json:"ontology_name"`
	LastUpdated     string   `json:"last_updated"`
	HasChild        bool     `json:"has_child"`
	Parents         []string `json:"parents"`
	ID              string   `json:"url"`
}

// Normalize copies the raw match into an EnrichedMatch, filling every absent
// field with NotAvailable. Ontology, child and parent data are left for the
// caller to attach.
func (raw RawMatch) Normalize(term Term) EnrichedMatch {
	return EnrichedMatch{
		SearchedTerm:    term,
		PrefLabel:       stringOrNA(raw.PrefLabel),
		Definition:      listOrNA(raw.Definition),
		Synonym:         listOrNA(raw.Synonym),
		OntologyAcronym: NotAvailable,
		OntologyName:    NotAvailable,
		LastUpdated:     NotAvailable,
		Parents:         []string{NotAvailable},
		ID:              stringOrNA(raw.ID),
	}
}

func stringOrNA(s *string) string {
	if s == nil || *s == "" {
		return NotAvailable
	}
	return *s
}

func listOrNA(list []string) []string {
	if len(list) == 0 {
		return []string{NotAvailable}
	}
	return append([]string(nil), list...)
}
