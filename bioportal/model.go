package bioportal

import "github.com/kirklandnuts/ontology-batch-query/types"

// SearchPage is one page of /search results. The service pages by 50.
type SearchPage struct {
	Page       int              `json:"page"`
	PageCount  int              `json:"pageCount"`
	TotalCount int              `json:"totalCount"`
	Links      PageLinks        `json:"links"`
	Collection []types.RawMatch `json:"collection"`
}

type PageLinks struct {
	NextPage string `json:"nextPage"`
	PrevPage string `json:"prevPage"`
}

type Submission struct {
	CreationDate string `json:"creationDate"`
	Ontology     struct {
		Acronym string `json:"acronym"`
		Name    string `json:"name"`
	} `json:"ontology"`
}

type childrenPage struct {
	TotalCount int `json:"totalCount"`
}

type parentClass struct {
	PrefLabel string `json:"prefLabel"`
}
