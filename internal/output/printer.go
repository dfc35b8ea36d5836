package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/rsilvagit/deptos/internal/model"
)

// ConsolePrinter collects deliveries for a dry run and prints them as a
// table on Flush. Text messages are printed right away.
type ConsolePrinter struct {
	out  io.Writer
	mu   sync.Mutex
	rows []printedRow
}

type printedRow struct {
	recipient string
	listing   model.Listing
}

func NewConsolePrinter(out io.Writer) *ConsolePrinter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsolePrinter{out: out}
}

func (cp *ConsolePrinter) Notify(_ context.Context, recipient string, l model.Listing) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.rows = append(cp.rows, printedRow{recipient: recipient, listing: l})
	return nil
}

func (cp *ConsolePrinter) SendText(_ context.Context, recipient, text string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	_, err := fmt.Fprintf(cp.out, "[%s]\n%s\n", recipient, text)
	return err
}

// Flush prints and forgets the collected deliveries.
func (cp *ConsolePrinter) Flush() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if len(cp.rows) == 0 {
		fmt.Fprintln(cp.out, "No hay avisos para enviar.")
		return nil
	}

	w := tabwriter.NewWriter(cp.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DESTINO\tFUENTE\tALQUILER\tEXPENSAS\tAMB\tDIRECCION\tURL")
	fmt.Fprintln(w, "-------\t------\t--------\t--------\t---\t---------\t---")
	for _, r := range cp.rows {
		l := r.listing
		fmt.Fprintf(w, "%s\t%s\t$%s\t$%s\t%s\t%s\t%s\n",
			r.recipient, l.Source, FormatNumber(l.Price), FormatNumber(l.Expensas),
			formatRooms(l.Rooms), l.Address, l.URL)
	}
	cp.rows = nil
	return w.Flush()
}
