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

const zonapropScript = `Array.from(document.querySelectorAll('div[data-posting-type]')).map(card => {
	const a = card.querySelector('a[href*="/propiedades/"]') || card.querySelector('a');
	return {href: a ? (a.getAttribute('href') || '') : '', text: card.innerText || '', price: '', currency: ''};
})`

var (
	zonapropIDRe      = regexp.MustCompile(`-(\d+)\.html`)
	zonapropAddressRe = regexp.MustCompile(`\b\d{1,2}\b.*\b\d{1,2}\b`)
	zonapropSkipRe    = regexp.MustCompile(`(?i)amb|dorm|m²|m2|baño`)
)

// Zonaprop renders its results client side and is scraped through the
// shared browser, newest listings first.
type Zonaprop struct {
	browser Browser
	baseURL string
	delay   time.Duration
	cards   cardsFunc
}

func NewZonaprop(b Browser, opts Options) *Zonaprop {
	opts = opts.withDefaults()
	return &Zonaprop{
		browser: b,
		baseURL: "https://www.zonaprop.com.ar",
		delay:   opts.PageDelay,
		cards:   chromeCards("div[data-posting-type]", zonapropScript, opts.PageTimeout, 2*time.Second),
	}
}

func (z *Zonaprop) Name() model.Source {
	return model.SourceZonaprop
}

func (z *Zonaprop) Fetch(ctx context.Context, maxPages int) ([]model.Listing, error) {
	var out batch
	err := z.browser.Do(ctx, func(tabCtx context.Context) error {
		return paginate(tabCtx, z.Name(), maxPages, z.delay, func(ctx context.Context, page int) ([]model.Listing, int, error) {
			cards, err := z.cards(ctx, z.pageURL(page))
			if err != nil {
				return nil, 0, err
			}
			return z.parseCards(cards), len(cards), nil
		}, &out)
	})
	if err != nil {
		return out.all(), fmt.Errorf("zonaprop: %w", err)
	}
	return out.all(), nil
}

func (z *Zonaprop) pageURL(page int) string {
	u := z.baseURL + "/departamentos-alquiler-la-plata-orden-publicado-descendente"
	if page > 1 {
		u += fmt.Sprintf("-pagina-%d", page)
	}
	return u + ".html"
}

func (z *Zonaprop) parseCards(cards []renderedCard) []model.Listing {
	var listings []model.Listing
	for _, c := range cards {
		if l, ok := safeCard(z.Name(), func() (model.Listing, bool, string) { return z.parseCard(c) }); ok {
			listings = append(listings, l)
		}
	}
	return listings
}

// parseCard reads the card's rendered text line by line: the first "$" line
// is the rent, the "expensas" line the fee, the "amb"/"dorm" line the rooms.
func (z *Zonaprop) parseCard(c renderedCard) (model.Listing, bool, string) {
	if strings.TrimSpace(c.Href) == "" {
		return model.Listing{}, false, "missing link"
	}
	link := absURL(z.baseURL, c.Href)

	var (
		price, expensas, rooms *int
		address                string
	)
	for _, line := range strings.Split(c.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		hasFee := strings.Contains(lower, "expensas")

		switch {
		case price == nil && strings.HasPrefix(line, "$") && !hasFee:
			price, _ = parse.PriceAndExpensas(line)
		case expensas == nil && hasFee:
			expensas = parse.Expensas(line)
		case rooms == nil && (strings.Contains(lower, "amb") || strings.Contains(lower, "dorm")):
			rooms = parse.Rooms(line)
		case address == "" && !strings.HasPrefix(line, "$") && !zonapropSkipRe.MatchString(line) &&
			(strings.Contains(lower, "la plata") || zonapropAddressRe.MatchString(line)):
			address = line
		}
	}
	if price == nil {
		return model.Listing{}, false, "missing price: " + link
	}

	var numericID string
	if m := zonapropIDRe.FindStringSubmatch(link); m != nil {
		numericID = m[1]
	}

	return model.Listing{
		ID:       model.ListingID(model.SourceZonaprop, numericID, link),
		Price:    price,
		Expensas: expensas,
		Rooms:    rooms,
		Address:  address,
		URL:      link,
		Source:   model.SourceZonaprop,
	}, true, ""
}
