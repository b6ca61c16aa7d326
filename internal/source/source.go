// Package source retrieves raw incident candidates from web search and
// provides the demo feed used when no search key is configured.
package source

import (
	"context"
	"fmt"
	"slices"
)

// Source tags attached to queries.
const (
	TagNews      = "news"
	TagEmergency = "emergency"
)

// DefaultLocation is used in queries when no address is given.
const DefaultLocation = "Delhi NCR"

// Candidate is one raw search hit.
type Candidate struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Content   string  `json:"content"`
	Published string  `json:"published_date,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// Searcher is the incident source capability.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Query is one category search and the source tag it is attributed to.
type Query struct {
	Text   string
	Source string
}

var queryTemplates = []Query{
	{"fire accident emergency %s today", TagNews},
	{"road accident injury %s breaking", TagNews},
	{"building collapse emergency %s", TagNews},
	{"chemical leak gas hazmat %s", TagNews},
	{"stampede crowd crush %s", TagNews},
	{"explosion blast attack %s", TagNews},
	{"train metro accident %s today", TagNews},
	{"hospital emergency mass casualty %s", TagEmergency},
}

// Queries builds the category searches around address. An empty address
// searches the default region. When include is non-empty only queries with
// one of those source tags are returned.
func Queries(address string, include []string) []Query {
	location := DefaultLocation
	if address != "" {
		location = "near " + address
	}

	out := make([]Query, 0, len(queryTemplates))
	for _, t := range queryTemplates {
		if len(include) > 0 && !slices.Contains(include, t.Source) {
			continue
		}
		out = append(out, Query{Text: fmt.Sprintf(t.Text, location), Source: t.Source})
	}
	return out
}
