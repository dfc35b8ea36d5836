package output

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rsilvagit/deptos/internal/model"
)

// ErrDelivery wraps every failure to hand a message to a channel.
var ErrDelivery = errors.New("delivery failed")

// Notifier delivers matched listings and free text to one recipient.
type Notifier interface {
	// Notify sends one listing.
	Notify(ctx context.Context, recipient string, l model.Listing) error

	// SendText sends a plain message, such as a search summary.
	SendText(ctx context.Context, recipient, text string) error
}

// FormatNumber renders n with period thousands separators: 510000 -> "510.000".
func FormatNumber(n *int) string {
	if n == nil {
		return "N/A"
	}
	v := *n
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}

	digits := strconv.Itoa(v)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

func formatRooms(n *int) string {
	if n == nil {
		return "N/A"
	}
	return strconv.Itoa(*n)
}

// FormatListingHTML is the Telegram message for one listing.
func FormatListingHTML(l model.Listing) string {
	var b strings.Builder
	b.WriteString("🏠 <b>Nuevo depto en alquiler (La Plata)</b>\n\n")
	fmt.Fprintf(&b, "💲 Alquiler: $%s\n", FormatNumber(l.Price))
	fmt.Fprintf(&b, "🧾 Expensas: $%s\n", FormatNumber(l.Expensas))
	fmt.Fprintf(&b, "🛏 %s ambientes\n", formatRooms(l.Rooms))
	if l.Address != "" {
		fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(l.Address))
	}
	fmt.Fprintf(&b, "\n🔗 %s", html.EscapeString(l.URL))
	return b.String()
}

// splitMessage cuts text into pieces of at most limit bytes, breaking at
// line ends where possible.
func splitMessage(text string, limit int) []string {
	var chunks []string
	var current strings.Builder

	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			cut := limit
			for cut > 0 && !utf8Start(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if current.Len()+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// deliver calls send up to attempts times, waiting delay between tries.
// send reports whether its failure is worth retrying.
func deliver(ctx context.Context, channel string, attempts int, delay time.Duration, send func() (retry bool, err error)) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var retry bool
		retry, err = send()
		if err == nil {
			return nil
		}
		if !retry || attempt == attempts {
			break
		}

		slog.Warn("delivery attempt failed, retrying",
			"channel", channel, "attempt", attempt, "max", attempts, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrDelivery, channel, ctx.Err())
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrDelivery, channel, err)
}
