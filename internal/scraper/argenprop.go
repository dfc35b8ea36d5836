package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rsilvagit/deptos/internal/httpclient"
	"github.com/rsilvagit/deptos/internal/model"
	"github.com/rsilvagit/deptos/internal/parse"
)

var argenpropIDRe = regexp.MustCompile(`--(\d+)(?:[?#/]|$)`)

type Argenprop struct {
	client  *httpclient.Client
	baseURL string
	delay   time.Duration
}

func NewArgenprop(client *httpclient.Client, opts Options) *Argenprop {
	return &Argenprop{
		client:  client,
		baseURL: "https://www.argenprop.com",
		delay:   opts.PageDelay,
	}
}

func (a *Argenprop) Name() model.Source {
	return model.SourceArgenprop
}

func (a *Argenprop) Fetch(ctx context.Context, maxPages int) ([]model.Listing, error) {
	var out batch
	if err := paginate(ctx, a.Name(), maxPages, a.delay, a.page, &out); err != nil {
		return out.all(), fmt.Errorf("argenprop: %w", err)
	}
	return out.all(), nil
}

func (a *Argenprop) pageURL(page int) string {
	u := a.baseURL + "/departamentos/alquiler/la-plata"
	if page > 1 {
		u += fmt.Sprintf("-pagina-%d", page)
	}
	return u
}

func (a *Argenprop) page(ctx context.Context, page int) ([]model.Listing, int, error) {
	doc, err := fetchDocument(ctx, a.client, a.pageURL(page))
	if err != nil {
		return nil, 0, err
	}
	listings, cards := a.parseDocument(doc)
	return listings, cards, nil
}

func (a *Argenprop) parseDocument(doc *goquery.Document) ([]model.Listing, int) {
	cards := doc.Find("div.listing__item")

	var listings []model.Listing
	cards.Each(func(_ int, s *goquery.Selection) {
		if l, ok := safeCard(a.Name(), func() (model.Listing, bool, string) { return a.parseCard(s) }); ok {
			listings = append(listings, l)
		}
	})
	return listings, cards.Length()
}

func (a *Argenprop) parseCard(s *goquery.Selection) (model.Listing, bool, string) {
	href, ok := s.Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return model.Listing{}, false, "missing link"
	}
	link := absURL(a.baseURL, href)

	priceEl := s.Find(".card__price").First()
	if priceEl.Length() == 0 {
		return model.Listing{}, false, "missing price: " + link
	}
	priceText := strings.TrimSpace(priceEl.Text())
	price, expensas := parse.PriceAndExpensas(priceText)
	if price == nil {
		return model.Listing{}, false, fmt.Sprintf("unparseable price %q: %s", priceText, link)
	}

	text := cardText(s)
	if expensas == nil {
		expensas = parse.Expensas(text)
	}

	address := strings.Join(strings.Fields(s.Find(".card__address").First().Text()), " ")
	if address == "" {
		address = parse.Address(text)
	}

	var numericID string
	if m := argenpropIDRe.FindStringSubmatch(link); m != nil {
		numericID = m[1]
	}

	return model.Listing{
		ID:       model.ListingID(model.SourceArgenprop, numericID, link),
		Price:    price,
		Expensas: expensas,
		Rooms:    parse.Rooms(text),
		Address:  address,
		URL:      link,
		Source:   model.SourceArgenprop,
	}, true, ""
}
