package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rsilvagit/deptos/internal/model"
)

const discordMessageLimit = 2000

// DiscordNotifier posts listings to one Discord channel via webhook.
// The recipient only labels the message.
type DiscordNotifier struct {
	webhookURL string
	attempts   int
	delay      time.Duration
	client     *http.Client
}

func NewDiscordNotifier(webhookURL string, attempts int, delay time.Duration) *DiscordNotifier {
	if attempts == 0 {
		attempts = 3
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		attempts:   attempts,
		delay:      delay,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (dn *DiscordNotifier) Notify(ctx context.Context, recipient string, l model.Listing) error {
	return dn.send(ctx, formatDiscordListing(recipient, l))
}

func (dn *DiscordNotifier) SendText(ctx context.Context, recipient, text string) error {
	for _, chunk := range splitMessage(fmt.Sprintf("**[%s]**\n%s", recipient, text), discordMessageLimit) {
		if err := dn.send(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func formatDiscordListing(recipient string, l model.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Nuevo depto en alquiler (La Plata)** [%s]\n", recipient)
	fmt.Fprintf(&b, "> Alquiler: $%s\n", FormatNumber(l.Price))
	fmt.Fprintf(&b, "> Expensas: $%s\n", FormatNumber(l.Expensas))
	fmt.Fprintf(&b, "> %s ambientes\n", formatRooms(l.Rooms))
	if l.Address != "" {
		fmt.Fprintf(&b, "> Dirección: %s\n", l.Address)
	}
	fmt.Fprintf(&b, "> Fuente: %s\n", l.Source)
	if l.URL != "" {
		fmt.Fprintf(&b, "> [Ver aviso](%s)\n", l.URL)
	}
	return b.String()
}

type discordPayload struct {
	Content string `json:"content"`
}

func (dn *DiscordNotifier) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(discordPayload{Content: text})
	if err != nil {
		return fmt.Errorf("discord: marshaling payload: %w", err)
	}

	return deliver(ctx, "discord", dn.attempts, dn.delay, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, dn.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return false, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := dn.client.Do(req)
		if err != nil {
			return ctx.Err() == nil, fmt.Errorf("sending message: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var result map[string]interface{}
			json.NewDecoder(resp.Body).Decode(&result)
			retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
			return retry, fmt.Errorf("API error %d: %v", resp.StatusCode, result["message"])
		}
		return false, nil
	})
}
