package model

import (
	"sort"
	"strings"
)

// Source identifies the site a listing was scraped from.
type Source string

const (
	SourceArgenprop    Source = "argenprop"
	SourceZonaprop     Source = "zonaprop"
	SourceMercadolibre Source = "mercadolibre"
	SourceInmobusqueda Source = "inmobusqueda"
)

// Listing is the canonical rental record every scraper produces.
// Nil numeric fields mean the value could not be extracted.
type Listing struct {
	ID       string `json:"id"`
	Price    *int   `json:"price"`
	Expensas *int   `json:"expensas"`
	Rooms    *int   `json:"rooms"`
	Address  string `json:"address"`
	URL      string `json:"url"`
	Source   Source `json:"source"`
}

// Int returns a pointer to v, for building listings by hand.
func Int(v int) *int {
	return &v
}

// Complete reports whether the fields needed for matching are present.
func (l Listing) Complete() bool {
	return l.Price != nil && l.Rooms != nil
}

// ListingID builds the dedup key for a listing. A stable numeric id from the
// ad URL is preferred; the full URL is the fallback.
func ListingID(src Source, numericID, url string) string {
	if numericID != "" {
		return string(src) + "_" + numericID
	}
	return url
}

// IDSet is the set of listing ids already evaluated.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (s IDSet) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseSource maps a configured source name to a Source.
func ParseSource(name string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(name))) {
	case SourceArgenprop:
		return SourceArgenprop, true
	case SourceZonaprop:
		return SourceZonaprop, true
	case SourceMercadolibre:
		return SourceMercadolibre, true
	case SourceInmobusqueda:
		return SourceInmobusqueda, true
	}
	return "", false
}
