package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rsilvagit/deptos/internal/filter"
	"github.com/rsilvagit/deptos/internal/model"
)

// ErrAllSourcesFailed is returned by Search when no source produced listings
// and at least one reported an error.
var ErrAllSourcesFailed = errors.New("pipeline: every source failed")

// SearchResult is the outcome of an on-demand search.
type SearchResult struct {
	Criteria  filter.Criteria `json:"criteria"`
	Matches   []model.Listing `json:"matches"`
	Delivered int             `json:"delivered"`
	// Summary is the text sent back to the user.
	Summary string `json:"summary"`
}

// Search fetches every source for one user, ignoring quiet hours, and
// notifies them of each listing that matches their criteria and has never
// been evaluated by a cycle. The stores are not modified, so the scheduled
// cycle still evaluates those listings for every user.
//
// A summary is always sent to the user. It distinguishes zero new matches,
// which echoes the criteria, from a failed search.
func (r *Runner) Search(ctx context.Context, userID string) (SearchResult, error) {
	log := slog.With("run_id", uuid.NewString(), "user", userID)

	res, err := r.search(ctx, log, userID)
	if err != nil {
		log.Error("search failed", "error", err)
		res.Summary = failureSummary(err)
	} else {
		res.Summary = matchSummary(len(res.Matches), res.Criteria)
		log.Info("search finished", "matches", len(res.Matches), "delivered", res.Delivered)
	}

	if serr := r.notifier.SendText(ctx, userID, res.Summary); serr != nil {
		log.Error("sending search summary failed", "error", serr)
	}
	return res, err
}

func (r *Runner) search(ctx context.Context, log *slog.Logger, userID string) (SearchResult, error) {
	var res SearchResult

	c, err := r.users.Get(userID)
	if err != nil {
		return res, fmt.Errorf("pipeline: loading criteria: %w", err)
	}
	res.Criteria = c

	sent, err := r.store.LoadSent()
	if err != nil {
		return res, fmt.Errorf("pipeline: loading sent ids: %w", err)
	}

	batches := r.collect(ctx, log)
	if allFailed(batches) {
		return res, ErrAllSourcesFailed
	}

	seen := model.NewIDSet()
	for id := range sent {
		seen.Add(id)
	}
	fresh := markNew(batches, seen)
	res.Matches = filter.Apply(fresh, c)

	for _, l := range res.Matches {
		if err := r.notifier.Notify(ctx, userID, l); err != nil {
			log.Error("notification failed", "listing", l.ID, "error", err)
			continue
		}
		res.Delivered++
	}
	return res, nil
}

func allFailed(batches []sourceBatch) bool {
	failed := false
	for _, b := range batches {
		if len(b.listings) > 0 {
			return false
		}
		if b.err != nil {
			failed = true
		}
	}
	return failed
}

func matchSummary(n int, c filter.Criteria) string {
	switch n {
	case 0:
		return "No se encontraron avisos NUEVOS que coincidan con tus filtros.\n\n" +
			"Tus filtros:\n" + c.Describe()
	case 1:
		return "Se encontró 1 aviso nuevo que coincide con tus filtros."
	default:
		return fmt.Sprintf("Se encontraron %d avisos nuevos que coinciden con tus filtros.", n)
	}
}

func failureSummary(err error) string {
	return fmt.Sprintf("La búsqueda falló: %v\nProbá de nuevo en unos minutos.", err)
}
