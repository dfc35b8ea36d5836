package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rsilvagit/deptos/internal/model"
	"github.com/rsilvagit/deptos/internal/parse"
)

const mercadolibrePageSize = 48

const mercadolibreScript = `(() => {
	let cards = document.querySelectorAll('li.ui-search-layout__item');
	if (!cards.length) cards = document.querySelectorAll('.poly-card');
	if (!cards.length) cards = document.querySelectorAll('.ui-search-result');
	return Array.from(cards).map(card => {
		const a = card.querySelector('a[href*="departamento"]') || card.querySelector('a');
		const p = card.querySelector('.andes-money-amount__fraction') || card.querySelector('[class*="price"]');
		const c = card.querySelector('.andes-money-amount__currency-symbol');
		return {
			href: a ? (a.href || '') : '',
			text: card.innerText || '',
			price: p ? (p.innerText || '') : '',
			currency: c ? (c.innerText || '') : ''
		};
	});
})()`

var mercadolibreIDRe = regexp.MustCompile(`MLA-?(\d+)`)

type Mercadolibre struct {
	browser Browser
	baseURL string
	delay   time.Duration
	cards   cardsFunc
}

func NewMercadolibre(b Browser, opts Options) *Mercadolibre {
	opts = opts.withDefaults()
	return &Mercadolibre{
		browser: b,
		baseURL: "https://inmuebles.mercadolibre.com.ar",
		delay:   opts.PageDelay,
		cards: chromeCards("li.ui-search-layout__item, .poly-card, .ui-search-result",
			mercadolibreScript, opts.PageTimeout, 2*time.Second),
	}
}

func (ml *Mercadolibre) Name() model.Source {
	return model.SourceMercadolibre
}

func (ml *Mercadolibre) Fetch(ctx context.Context, maxPages int) ([]model.Listing, error) {
	var out batch
	err := ml.browser.Do(ctx, func(tabCtx context.Context) error {
		return paginate(tabCtx, ml.Name(), maxPages, ml.delay, func(ctx context.Context, page int) ([]model.Listing, int, error) {
			cards, err := ml.cards(ctx, ml.pageURL(page))
			if err != nil {
				return nil, 0, err
			}
			return ml.parseCards(cards), len(cards), nil
		}, &out)
	})
	if err != nil {
		return out.all(), fmt.Errorf("mercadolibre: %w", err)
	}
	return out.all(), nil
}

// pageURL uses the site's 1-based item offset: page 2 starts at _Desde_49.
func (ml *Mercadolibre) pageURL(page int) string {
	u := ml.baseURL + "/departamentos/alquiler/la-plata"
	if page > 1 {
		u += fmt.Sprintf("_Desde_%d", (page-1)*mercadolibrePageSize+1)
	}
	return u
}

func (ml *Mercadolibre) parseCards(cards []renderedCard) []model.Listing {
	var listings []model.Listing
	for _, c := range cards {
		if l, ok := safeCard(ml.Name(), func() (model.Listing, bool, string) { return ml.parseCard(c) }); ok {
			listings = append(listings, l)
		}
	}
	return listings
}

func (ml *Mercadolibre) parseCard(c renderedCard) (model.Listing, bool, string) {
	link := strings.TrimSpace(c.Href)
	if link == "" || !strings.Contains(link, "mercadolibre") {
		return model.Listing{}, false, fmt.Sprintf("missing or foreign link %q", link)
	}
	if strings.TrimSpace(c.Price) == "" {
		return model.Listing{}, false, "missing price: " + link
	}
	if parse.IsForeignCurrency(c.Currency) || parse.IsForeignCurrency(c.Price) {
		return model.Listing{}, false, "price not in pesos: " + link
	}
	price := parse.Int(c.Price)
	if price == nil {
		return model.Listing{}, false, fmt.Sprintf("unparseable price %q: %s", c.Price, link)
	}

	var numericID string
	if m := mercadolibreIDRe.FindStringSubmatch(link); m != nil {
		numericID = "MLA" + m[1]
	}

	return model.Listing{
		ID:       model.ListingID(model.SourceMercadolibre, numericID, link),
		Price:    price,
		Expensas: parse.Expensas(c.Text),
		Rooms:    parse.Rooms(c.Text),
		Address:  parse.Address(c.Text),
		URL:      link,
		Source:   model.SourceMercadolibre,
	}, true, ""
}
