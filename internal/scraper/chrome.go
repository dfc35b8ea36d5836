package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// renderedCard is what the in-page scripts return for one listing card.
type renderedCard struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// cardsFunc loads pageURL in the tab behind ctx and returns its cards.
type cardsFunc func(ctx context.Context, pageURL string) ([]renderedCard, error)

const cardWaitTimeout = 15 * time.Second

// chromeCards returns a cardsFunc that navigates, waits for readySelector
// and runs script. A page where readySelector never shows up has no cards.
func chromeCards(readySelector, script string, pageTimeout, settle time.Duration) cardsFunc {
	return func(ctx context.Context, pageURL string) ([]renderedCard, error) {
		navCtx, cancel := context.WithTimeout(ctx, pageTimeout)
		defer cancel()
		if err := chromedp.Run(navCtx, chromedp.Navigate(pageURL)); err != nil {
			return nil, fmt.Errorf("navigating to %s: %w", pageURL, err)
		}

		waitCtx, cancelWait := context.WithTimeout(ctx, cardWaitTimeout)
		defer cancelWait()
		if err := chromedp.Run(waitCtx, chromedp.WaitReady(readySelector, chromedp.ByQuery)); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, nil
			}
			return nil, fmt.Errorf("waiting for cards on %s: %w", pageURL, err)
		}

		var cards []renderedCard
		err := chromedp.Run(ctx,
			chromedp.Sleep(settle),
			chromedp.Evaluate(script, &cards),
		)
		if err != nil {
			return nil, fmt.Errorf("reading cards on %s: %w", pageURL, err)
		}
		return cards, nil
	}
}
