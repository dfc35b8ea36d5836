package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rsilvagit/deptos/internal/httpclient"
	"github.com/rsilvagit/deptos/internal/model"
)

// pageFunc fetches one result page. cards is the number of listing cards
// seen on the page, including the ones that could not be parsed.
type pageFunc func(ctx context.Context, page int) (listings []model.Listing, cards int, err error)

// batch collects listings across pages. Browser adapters fill it from the
// browser goroutine, so access is locked.
type batch struct {
	mu       sync.Mutex
	listings []model.Listing
}

func (b *batch) add(ls []model.Listing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings = append(b.listings, ls...)
}

func (b *batch) all() []model.Listing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Listing(nil), b.listings...)
}

// paginate fetches pages 1..maxPages in order. It stops at the first page
// that fails or has no cards; whatever was collected stays in out and the
// error of the failed or cancelled page is returned.
func paginate(ctx context.Context, src model.Source, maxPages int, delay time.Duration, fetch pageFunc, out *batch) error {
	log := slog.With("source", src)

	for page := 1; page <= maxPages; page++ {
		if page > 1 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				log.Warn("scrape cancelled, keeping partial results", "page", page, "error", ctx.Err())
				return fmt.Errorf("page %d: %w", page, ctx.Err())
			}
		}

		listings, cards, err := fetch(ctx, page)
		if err != nil {
			log.Error("page failed, keeping partial results", "page", page, "error", err)
			return fmt.Errorf("page %d: %w", page, err)
		}
		if cards == 0 {
			log.Info("no listings on page, stopping", "page", page)
			return nil
		}

		out.add(listings)
		log.Debug("page scraped", "page", page, "cards", cards, "listings", len(listings))
	}
	return nil
}

// cardFunc turns one card into a listing. ok is false when the card must
// be skipped; reason says why.
type cardFunc func() (l model.Listing, ok bool, reason string)

// safeCard runs parse, logging and skipping cards that fail or panic.
func safeCard(src model.Source, parse cardFunc) (l model.Listing, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("card parse panicked, skipping", "source", src, "panic", r)
			ok = false
		}
	}()

	l, ok, reason := parse()
	if !ok {
		slog.Warn("skipping card", "source", src, "reason", reason)
	}
	return l, ok
}

// fetchDocument downloads pageURL and parses it as HTML.
func fetchDocument(ctx context.Context, client *httpclient.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// absURL resolves href against base. Unparseable input is returned as is.
func absURL(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// cardText flattens the text of a card to single spaces.
func cardText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
