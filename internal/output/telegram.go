package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rsilvagit/deptos/internal/model"
)

const telegramMessageLimit = 4096

// TelegramOptions configures the Bot API client.
type TelegramOptions struct {
	APIURL     string
	Attempts   int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// TelegramNotifier sends listings to Telegram chats via the Bot API.
// The recipient is the chat id.
type TelegramNotifier struct {
	token    string
	apiURL   string
	attempts int
	delay    time.Duration
	client   *http.Client
}

func NewTelegramNotifier(token string, opts TelegramOptions) *TelegramNotifier {
	if opts.APIURL == "" {
		opts.APIURL = "https://api.telegram.org"
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		token:    token,
		apiURL:   opts.APIURL,
		attempts: opts.Attempts,
		delay:    opts.RetryDelay,
		client:   &http.Client{Timeout: opts.Timeout},
	}
}

func (tn *TelegramNotifier) Notify(ctx context.Context, chatID string, l model.Listing) error {
	return tn.send(ctx, chatID, FormatListingHTML(l), "HTML")
}

func (tn *TelegramNotifier) SendText(ctx context.Context, chatID, text string) error {
	for _, chunk := range splitMessage(text, telegramMessageLimit) {
		if err := tn.send(ctx, chatID, chunk, ""); err != nil {
			return err
		}
	}
	return nil
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (tn *TelegramNotifier) send(ctx context.Context, chatID, text, parseMode string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshaling payload: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", tn.apiURL, tn.token)

	return deliver(ctx, "telegram", tn.attempts, tn.delay, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := tn.client.Do(req)
		if err != nil {
			return ctx.Err() == nil, fmt.Errorf("sending message: %w", err)
		}
		defer resp.Body.Close()

		var result telegramResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&result)

		if resp.StatusCode != http.StatusOK {
			retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
			return retry, fmt.Errorf("API error %d: %s", resp.StatusCode, result.Description)
		}
		if decodeErr != nil {
			return true, fmt.Errorf("decoding response: %w", decodeErr)
		}
		if !result.OK {
			return false, fmt.Errorf("API error: %s", result.Description)
		}
		return false, nil
	})
}
