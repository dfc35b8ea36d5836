package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/rsilvagit/deptos/internal/httpclient"
	"github.com/rsilvagit/deptos/internal/model"
)

// Scraper defines the contract every listing site adapter must satisfy.
type Scraper interface {
	// Name identifies the site.
	Name() model.Source

	// Fetch walks up to maxPages result pages and returns the listings found.
	// Listings collected before a failure are returned together with it.
	Fetch(ctx context.Context, maxPages int) ([]model.Listing, error)
}

// Browser runs fn in an isolated tab of a shared headless browser.
// *browser.Manager implements it.
type Browser interface {
	Do(ctx context.Context, fn func(tabCtx context.Context) error) error
}

// Options tunes the adapters.
type Options struct {
	// PageDelay is the pause between two page fetches of one site.
	PageDelay time.Duration
	// PageTimeout bounds one browser page load.
	PageTimeout time.Duration
	// InmobusquedaPublicado is the site's "publicado" filter code;
	// "5" limits results to the last 15 days. Empty disables it.
	InmobusquedaPublicado string
}

func (o Options) withDefaults() Options {
	if o.PageTimeout == 0 {
		o.PageTimeout = 30 * time.Second
	}
	return o
}

// Registry returns every adapter. HTTP sites share client; browser sites
// share b.
func Registry(client *httpclient.Client, b Browser, opts Options) []Scraper {
	opts = opts.withDefaults()
	return []Scraper{
		NewArgenprop(client, opts),
		NewZonaprop(b, opts),
		NewMercadolibre(b, opts),
		NewInmobusqueda(client, opts),
	}
}

// Select keeps the scrapers named in names, in the order of names.
func Select(all []Scraper, names []string) ([]Scraper, error) {
	byName := make(map[model.Source]Scraper, len(all))
	for _, s := range all {
		byName[s.Name()] = s
	}

	selected := make([]Scraper, 0, len(names))
	for _, name := range names {
		src, ok := model.ParseSource(name)
		if !ok {
			return nil, fmt.Errorf("scraper: unknown source %q", name)
		}
		s, ok := byName[src]
		if !ok {
			return nil, fmt.Errorf("scraper: source %q not registered", name)
		}
		selected = append(selected, s)
	}
	return selected, nil
}
