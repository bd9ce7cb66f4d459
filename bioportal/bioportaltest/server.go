// Package bioportaltest provides an in-process stand-in for the BioPortal REST
// service, serving search pages, ontology submissions, children and parents
// from fixtures and counting every request.
package bioportaltest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const (
	APIKey   = "test-api-key"
	pageSize = 50
)

type Class struct {
	PrefLabel  string
	Definition []string
	Synonym    []string
	ID         string
	Ontology   string
	Children   int
	Parents    []string
}

type Term struct {
	// TotalCount overrides the reported total; zero means len(Classes).
	TotalCount int
	Classes    []Class
}

type Ontology struct {
	Name         string
	CreationDate string
}

type Server struct {
	*httptest.Server
	sync.Mutex
	terms      map[string]Term
	ontologies map[string]Ontology
	classes    map[string]Class
	requests   map[string]int
	scopes     []string
	failPath   string
}

func NewServer() *Server {
	s := &Server{
		terms:      make(map[string]Term),
		ontologies: make(map[string]Ontology),
		classes:    make(map[string]Class),
		requests:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) AddTerm(q string, term Term) {
	s.Lock()
	defer s.Unlock()
	s.terms[q] = term
}

func (s *Server) AddOntology(acronym string, ontology Ontology) {
	s.Lock()
	defer s.Unlock()
	s.ontologies[acronym] = ontology
}

// FailOn makes every request whose path starts with prefix answer 500.
func (s *Server) FailOn(prefix string) {
	s.Lock()
	defer s.Unlock()
	s.failPath = prefix
}

// Requests counts requests by kind: "search", "children", "parents" or
// "submissions:<ACRONYM>".
func (s *Server) Requests(kind string) int {
	s.Lock()
	defer s.Unlock()
	return s.requests[kind]
}

func (s *Server) Scopes() []string {
	s.Lock()
	defer s.Unlock()
	return append([]string(nil), s.scopes...)
}

func GenerateClasses(n int, ontology string) []Class {
	classes := make([]Class, n)
	for i := range classes {
		classes[i] = Class{
			PrefLabel:  fmt.Sprintf("class %d", i+1),
			Definition: []string{fmt.Sprintf("definition %d", i+1)},
			ID:         fmt.Sprintf("http://purl.example.org/%s_%d", ontology, i+1),
			Ontology:   ontology,
		}
	}
	return classes
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.Lock()
	defer s.Unlock()

	if r.Header.Get("Authorization") != "apikey token="+APIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.failPath != "" && strings.HasPrefix(r.URL.Path, s.failPath) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "search":
		s.requests["search"]++
		s.search(w, r.URL.Query())
	case len(parts) == 3 && parts[0] == "ontologies" && parts[2] == "submissions":
		s.requests["submissions:"+parts[1]]++
		s.submissions(w, parts[1])
	case len(parts) == 3 && parts[0] == "classes" && parts[2] == "children":
		s.requests["children"]++
		writeJSON(w, map[string]interface{}{"totalCount": s.classes[parts[1]].Children, "collection": []interface{}{}})
	case len(parts) == 3 && parts[0] == "classes" && parts[2] == "parents":
		s.requests["parents"]++
		parents := make([]map[string]interface{}, 0)
		for _, label := range s.classes[parts[1]].Parents {
			parents = append(parents, map[string]interface{}{"prefLabel": label})
		}
		writeJSON(w, parents)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) search(w http.ResponseWriter, query url.Values) {
	q := query.Get("q")
	if scope := query.Get("ontologies"); scope != "" {
		s.scopes = append(s.scopes, scope)
	}
	term := s.terms[q]
	total := term.TotalCount
	if total == 0 {
		total = len(term.Classes)
	}
	pageNumber, err := strconv.Atoi(query.Get("page"))
	if err != nil || pageNumber < 1 {
		pageNumber = 1
	}
	pageCount := (len(term.Classes) + pageSize - 1) / pageSize

	start := (pageNumber - 1) * pageSize
	end := start + pageSize
	if start > len(term.Classes) {
		start = len(term.Classes)
	}
	if end > len(term.Classes) {
		end = len(term.Classes)
	}

	collection := make([]map[string]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		collection = append(collection, s.renderClass(q, i, term.Classes[i]))
	}

	var nextPage interface{}
	if pageNumber < pageCount {
		next := url.Values{}
		next.Set("q", q)
		next.Set("page", strconv.Itoa(pageNumber+1))
		if scope := query.Get("ontologies"); scope != "" {
			next.Set("ontologies", scope)
		}
		nextPage = s.URL + "/search?" + next.Encode()
	}
	writeJSON(w, map[string]interface{}{
		"page":       pageNumber,
		"pageCount":  pageCount,
		"totalCount": total,
		"links":      map[string]interface{}{"nextPage": nextPage, "prevPage": nil},
		"collection": collection,
	})
}

func (s *Server) renderClass(q string, idx int, class Class) map[string]interface{} {
	key := fmt.Sprintf("%x-%d", q, idx)
	s.classes[key] = class
	rendered := map[string]interface{}{
		"links": map[string]interface{}{
			"ontology": s.URL + "/ontologies/" + class.Ontology,
			"children": s.URL + "/classes/" + key + "/children",
			"parents":  s.URL + "/classes/" + key + "/parents",
		},
	}
	if class.PrefLabel != "" {
		rendered["prefLabel"] = class.PrefLabel
	}
	if class.Definition != nil {
		rendered["definition"] = class.Definition
	}
	if class.Synonym != nil {
		rendered["synonym"] = class.Synonym
	}
	if class.ID != "" {
		rendered["@id"] = class.ID
	}
	return rendered
}

func (s *Server) submissions(w http.ResponseWriter, acronym string) {
	ontology, ok := s.ontologies[acronym]
	if !ok {
		writeJSON(w, []interface{}{})
		return
	}
	writeJSON(w, []map[string]interface{}{
		{
			"creationDate": ontology.CreationDate,
			"ontology":     map[string]interface{}{"acronym": acronym, "name": ontology.Name},
		},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
