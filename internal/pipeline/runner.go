package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rsilvagit/deptos/internal/filter"
	"github.com/rsilvagit/deptos/internal/model"
	"github.com/rsilvagit/deptos/internal/output"
	"github.com/rsilvagit/deptos/internal/scraper"
)

// Store persists the ids already evaluated and the overflow queue.
// *store.FileStore implements it.
type Store interface {
	LoadSent() (model.IDSet, error)
	SaveSent(model.IDSet) error
	LoadQueue() ([]model.Listing, error)
	SaveQueue([]model.Listing) error
}

// Users resolves the effective criteria of registered users.
// *store.UserConfigs implements it.
type Users interface {
	All() (map[string]filter.Criteria, error)
	Get(id string) (filter.Criteria, error)
}

// ResultCache keeps recent per-source fetch results. *cache.Cache implements it.
type ResultCache interface {
	Get(ctx context.Context, src model.Source, maxPages int) ([]model.Listing, bool, error)
	Set(ctx context.Context, src model.Source, maxPages int, listings []model.Listing) error
}

// Archiver records newly seen listings. *archive.PostgresArchive implements it.
type Archiver interface {
	Archive(ctx context.Context, listings []model.Listing, seenAt time.Time) (int64, error)
}

// Options configures a Runner. Cache, Archive and Browser are optional.
type Options struct {
	// Pages is the number of result pages fetched per source; sources
	// missing from the map fetch one page.
	Pages map[model.Source]int
	// PerSourceCap bounds how many new listings of one source are delivered
	// per cycle. The rest becomes the queue.
	PerSourceCap int
	Quiet        QuietHours

	Cache   ResultCache
	Archive Archiver
	// Browser is closed once every source has been fetched.
	Browser io.Closer

	Now func() time.Time
}

// Runner executes delivery cycles and on-demand searches.
type Runner struct {
	scrapers []scraper.Scraper
	store    Store
	users    Users
	notifier output.Notifier
	opts     Options
}

// New returns a Runner over scrapers, fetched in the given order.
func New(scrapers []scraper.Scraper, st Store, users Users, n output.Notifier, opts Options) *Runner {
	if opts.PerSourceCap <= 0 {
		opts.PerSourceCap = 2
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		scrapers: scrapers,
		store:    st,
		users:    users,
		notifier: n,
		opts:     opts,
	}
}

// Report summarizes one cycle.
type Report struct {
	RunID   string `json:"run_id"`
	Skipped bool   `json:"skipped"`
	// Fetched counts listings per source, including already known ones.
	Fetched map[model.Source]int `json:"fetched"`
	// Failed lists the sources whose fetch returned an error.
	Failed   []model.Source `json:"failed,omitempty"`
	New      int            `json:"new"`
	Selected int            `json:"selected"`
	Queued   int            `json:"queued"`
	// Delivered counts successful notifications per user id.
	Delivered      map[string]int `json:"delivered"`
	DeliveryErrors int            `json:"delivery_errors"`
}

type sourceBatch struct {
	source   model.Source
	listings []model.Listing
	err      error
}

// Run executes one cycle: fetch every source, mark unseen listings as seen,
// deliver up to PerSourceCap new listings per source to every active user
// whose criteria match, and replace the queue with the remainder. During
// quiet hours nothing happens.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{
		RunID:     uuid.NewString(),
		Fetched:   map[model.Source]int{},
		Delivered: map[string]int{},
	}
	log := slog.With("run_id", rep.RunID)

	now := r.opts.Now()
	if r.opts.Quiet.Contains(now) {
		log.Info("quiet hours, skipping cycle", "window", r.opts.Quiet.String())
		rep.Skipped = true
		return rep, nil
	}

	sent, err := r.store.LoadSent()
	if err != nil {
		return rep, fmt.Errorf("pipeline: loading sent ids: %w", err)
	}
	if sent == nil {
		sent = model.NewIDSet()
	}
	queue, err := r.store.LoadQueue()
	if err != nil {
		return rep, fmt.Errorf("pipeline: loading queue: %w", err)
	}
	log.Info("cycle started", "sent", len(sent), "queued", len(queue))

	batches := r.collect(ctx, log)
	for _, b := range batches {
		rep.Fetched[b.source] = len(b.listings)
		if b.err != nil {
			rep.Failed = append(rep.Failed, b.source)
		}
	}

	fresh := markNew(batches, sent)
	rep.New = len(fresh)
	log.Info("listings partitioned", "fetched", total(rep.Fetched), "new", len(fresh))

	r.archive(ctx, log, fresh, now)

	selected, overflow := capPerSource(fresh, r.opts.PerSourceCap)
	rep.Selected = len(selected)
	rep.Queued = len(overflow)
	if len(queue) > 0 {
		log.Debug("dropping previous queue", "count", len(queue))
	}

	if len(selected) > 0 {
		users, err := r.users.All()
		if err != nil {
			log.Error("loading user configs failed, nothing delivered", "error", err)
		} else {
			rep.DeliveryErrors = r.deliver(ctx, log, selected, users, rep.Delivered)
		}
	} else {
		log.Info("no listings to send")
	}

	if err := r.store.SaveSent(sent); err != nil {
		return rep, fmt.Errorf("pipeline: saving sent ids: %w", err)
	}
	if err := r.store.SaveQueue(overflow); err != nil {
		return rep, fmt.Errorf("pipeline: saving queue: %w", err)
	}

	log.Info("cycle finished",
		"new", rep.New,
		"selected", rep.Selected,
		"notifications", total(rep.Delivered),
		"delivery_errors", rep.DeliveryErrors,
		"queued", rep.Queued,
	)
	return rep, nil
}

// collect fetches every source in order. A failing or panicking source
// keeps whatever it returned and does not stop the others.
func (r *Runner) collect(ctx context.Context, log *slog.Logger) []sourceBatch {
	batches := make([]sourceBatch, 0, len(r.scrapers))
	for _, s := range r.scrapers {
		start := time.Now()
		listings, err := r.fetch(ctx, log, s)
		if err != nil {
			log.Error("source failed", "source", s.Name(), "partial", len(listings), "error", err)
		} else {
			log.Info("source fetched", "source", s.Name(), "listings", len(listings), "elapsed", time.Since(start).Round(time.Millisecond))
		}
		batches = append(batches, sourceBatch{source: s.Name(), listings: listings, err: err})
	}

	if r.opts.Browser != nil {
		if err := r.opts.Browser.Close(); err != nil {
			log.Warn("closing browser", "error", err)
		}
	}
	return batches
}

func (r *Runner) fetch(ctx context.Context, log *slog.Logger, s scraper.Scraper) (listings []model.Listing, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline: %s panicked: %v", s.Name(), rec)
		}
	}()

	pages := r.pages(s.Name())
	if r.opts.Cache != nil {
		cached, ok, cerr := r.opts.Cache.Get(ctx, s.Name(), pages)
		switch {
		case cerr != nil:
			log.Warn("cache read failed", "source", s.Name(), "error", cerr)
		case ok:
			log.Debug("cache hit", "source", s.Name(), "listings", len(cached))
			return cached, nil
		}
	}

	listings, err = s.Fetch(ctx, pages)
	if err == nil && r.opts.Cache != nil {
		if cerr := r.opts.Cache.Set(ctx, s.Name(), pages, listings); cerr != nil {
			log.Warn("cache write failed", "source", s.Name(), "error", cerr)
		}
	}
	return listings, err
}

func (r *Runner) pages(src model.Source) int {
	if n := r.opts.Pages[src]; n > 0 {
		return n
	}
	return 1
}

func (r *Runner) archive(ctx context.Context, log *slog.Logger, fresh []model.Listing, seenAt time.Time) {
	if r.opts.Archive == nil || len(fresh) == 0 {
		return
	}
	n, err := r.opts.Archive.Archive(ctx, fresh, seenAt)
	if err != nil {
		log.Warn("archiving listings failed", "error", err)
		return
	}
	log.Debug("listings archived", "inserted", n)
}

// deliver sends every matching listing to every active user and returns the
// number of failed notifications.
func (r *Runner) deliver(ctx context.Context, log *slog.Logger, listings []model.Listing, users map[string]filter.Criteria, delivered map[string]int) int {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	failures := 0
	for _, id := range ids {
		c := users[id]
		if !c.Active {
			continue
		}
		for _, l := range listings {
			if !filter.Matches(l, c) {
				continue
			}
			if err := r.notifier.Notify(ctx, id, l); err != nil {
				log.Error("notification failed", "user", id, "listing", l.ID, "error", err)
				failures++
				continue
			}
			log.Info("notification sent", "user", id, "listing", l.ID, "url", l.URL)
			delivered[id]++
		}
	}
	return failures
}

// markNew returns the listings whose id is not in sent, in fetch order, and
// adds their ids to sent. Repeated ids within the cycle count once.
func markNew(batches []sourceBatch, sent model.IDSet) []model.Listing {
	var fresh []model.Listing
	for _, b := range batches {
		for _, l := range b.listings {
			if sent.Add(l.ID) {
				fresh = append(fresh, l)
			}
		}
	}
	return fresh
}

// capPerSource keeps the first limit listings of each source, preserving
// order, and returns the rest as overflow.
func capPerSource(listings []model.Listing, limit int) (selected, overflow []model.Listing) {
	counts := map[model.Source]int{}
	for _, l := range listings {
		if counts[l.Source] >= limit {
			overflow = append(overflow, l)
			continue
		}
		counts[l.Source]++
		selected = append(selected, l)
	}
	return selected, overflow
}

func total[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
