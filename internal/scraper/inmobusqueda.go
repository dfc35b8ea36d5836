package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rsilvagit/deptos/internal/httpclient"
	"github.com/rsilvagit/deptos/internal/model"
	"github.com/rsilvagit/deptos/internal/parse"
)

var inmobusquedaIDRe = regexp.MustCompile(`id=(\d+)`)

// Inmobusqueda scrapes the casco urbano search, filtered server side by
// publication date.
type Inmobusqueda struct {
	client    *httpclient.Client
	baseURL   string
	delay     time.Duration
	publicado string
}

func NewInmobusqueda(client *httpclient.Client, opts Options) *Inmobusqueda {
	return &Inmobusqueda{
		client:    client,
		baseURL:   "https://www.inmobusqueda.com.ar",
		delay:     opts.PageDelay,
		publicado: opts.InmobusquedaPublicado,
	}
}

func (in *Inmobusqueda) Name() model.Source {
	return model.SourceInmobusqueda
}

func (in *Inmobusqueda) Fetch(ctx context.Context, maxPages int) ([]model.Listing, error) {
	var out batch
	if err := paginate(ctx, in.Name(), maxPages, in.delay, in.page, &out); err != nil {
		return out.all(), fmt.Errorf("inmobusqueda: %w", err)
	}
	return out.all(), nil
}

func (in *Inmobusqueda) pageURL(page int) string {
	u := in.baseURL + "/departamento-alquiler-la-plata-casco-urbano"
	if page > 1 {
		u += fmt.Sprintf("-pagina-%d", page)
	}
	u += ".html"
	if in.publicado != "" {
		u += "?" + url.Values{"publicado": {in.publicado}}.Encode()
	}
	return u
}

func (in *Inmobusqueda) page(ctx context.Context, page int) ([]model.Listing, int, error) {
	doc, err := fetchDocument(ctx, in.client, in.pageURL(page))
	if err != nil {
		return nil, 0, err
	}
	listings, cards := in.parseDocument(doc)
	return listings, cards, nil
}

func (in *Inmobusqueda) parseDocument(doc *goquery.Document) ([]model.Listing, int) {
	cards := doc.Find(".resultadoContenedorDatosResultados")

	var listings []model.Listing
	cards.Each(func(_ int, s *goquery.Selection) {
		if l, ok := safeCard(in.Name(), func() (model.Listing, bool, string) { return in.parseCard(s) }); ok {
			listings = append(listings, l)
		}
	})
	return listings, cards.Length()
}

func (in *Inmobusqueda) parseCard(s *goquery.Selection) (model.Listing, bool, string) {
	href, _ := s.Find(`a[href*="ficha"]`).First().Attr("href")
	if strings.TrimSpace(href) == "" {
		return model.Listing{}, false, "missing link"
	}
	link := absURL(in.baseURL, href)

	priceText := strings.TrimSpace(s.Find(".resultadoPrecio").First().Text())
	price, expensas := parse.PriceAndExpensas(priceText)
	if price == nil {
		return model.Listing{}, false, fmt.Sprintf("unparseable price %q: %s", priceText, link)
	}

	text := cardText(s)
	if expensas == nil {
		expensas = parse.Expensas(text)
	}

	var numericID string
	if m := inmobusquedaIDRe.FindStringSubmatch(link); m != nil {
		numericID = m[1]
	}

	return model.Listing{
		ID:       model.ListingID(model.SourceInmobusqueda, numericID, link),
		Price:    price,
		Expensas: expensas,
		Rooms:    parse.Rooms(text),
		Address:  parse.Address(text),
		URL:      link,
		Source:   model.SourceInmobusqueda,
	}, true, ""
}
