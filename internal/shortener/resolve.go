package shortener

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/JLChnToZ/shota-url/internal/errx"
	"github.com/JLChnToZ/shota-url/internal/opengraph"
)

// backgroundOpTimeout bounds the fire-and-forget saves and deletions that
// outlive the request that triggered them.
const backgroundOpTimeout = 5 * time.Second

// Engine resolves public ids into redirect or landing decisions. It owns
// the liveness check, the weighted target selection and the per-visit
// bookkeeping; all of its writes are asynchronous to the visit response.
type Engine struct {
	repo    Repository
	logger  *slog.Logger
	baseURL string
	now     func() time.Time
	draw    func() float64
	spawn   func(func())
}

// EngineConfig configures an Engine. Repo is required. BaseURL is the
// service's own root, used to rewrite canonical metadata URLs.
type EngineConfig struct {
	Repo    Repository
	Logger  *slog.Logger
	BaseURL string
	Now     func() time.Time
	Draw    func() float64 // uniform draw from [0, 1); defaults to math/rand/v2

	// Spawn runs the fire-and-forget bookkeeping tasks. Defaults to a plain
	// goroutine; tests substitute a synchronous runner.
	Spawn func(func())
}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	draw := cfg.Draw
	if draw == nil {
		draw = rand.Float64
	}
	spawn := cfg.Spawn
	if spawn == nil {
		spawn = func(f func()) { go f() }
	}
	return &Engine{
		repo:    cfg.Repo,
		logger:  logger,
		baseURL: cfg.BaseURL,
		now:     now,
		draw:    draw,
		spawn:   spawn,
	}
}

// Resolve decides the outcome of a visit to publicID.
//
// A dead entry (expired or exhausted) is deleted in the background and
// reported as NotFound, indistinguishable from an id that never existed.
// A live visit decrements the use budget, optionally refreshes the expiry,
// persists both asynchronously and picks a target.
func (e *Engine) Resolve(ctx context.Context, publicID string) (Decision, error) {
	const op = "shortener.Engine.Resolve"

	entry, err := e.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return Decision{}, errx.E(op, errx.NotFound, err)
		}
		return Decision{}, errx.E(op, errx.Internal, err)
	}

	now := e.now()
	if !entry.Alive(now) {
		e.deleteAsync(entry.PublicID)
		return Decision{}, errx.E(op, errx.NotFound, errors.New("entry expired or exhausted"))
	}

	if len(entry.Targets) == 0 {
		return Decision{}, errx.E(op, errx.Internal, errors.New("entry has no targets"))
	}

	if entry.RemainingUses != UnlimitedUses {
		entry.RemainingUses--
	}
	if entry.RefreshTTLOnVisit {
		entry.ExpiresAt = now.Add(entry.TTL)
	}
	e.saveVisitAsync(entry.PublicID, entry.ExpiresAt)

	return e.decide(entry, publicID), nil
}

// decide runs target selection and shapes the caller-facing result.
func (e *Engine) decide(entry *Entry, publicID string) Decision {
	randomized := entry.Randomize && len(entry.Targets) > 1

	var chosen int
	var pages []string
	if entry.Randomize {
		chosen = e.pick(entry.Targets)
		pages = []string{entry.Targets[chosen].URL}
	} else {
		chosen = 0
		pages = make([]string, len(entry.Targets))
		for i, t := range entry.Targets {
			pages[i] = t.URL
		}
	}

	if entry.AutoRedirect {
		// A randomized pick among several targets must not be cached.
		status := http.StatusMovedPermanently
		if randomized {
			status = http.StatusFound
		}
		return Decision{Redirect: &Redirect{URL: pages[0], Status: status}}
	}

	return Decision{Landing: &Landing{
		Pages:      pages,
		Random:     entry.Randomize,
		Comments:   entry.Comments,
		Properties: opengraph.Flatten(entry.Targets[chosen].Metadata, e.baseURL+"/"+publicID),
	}}
}

// pick selects a target index by weight, falling back to a uniform pick
// when the weights are degenerate.
func (e *Engine) pick(targets []Target) int {
	weights := make([]float64, len(targets))
	for i, t := range targets {
		weights[i] = t.Weight
	}

	if idx := pickWeighted(weights, e.draw()); idx >= 0 {
		return idx
	}

	idx := int(e.draw() * float64(len(targets)))
	if idx >= len(targets) {
		idx = len(targets) - 1
	}
	return idx
}

// pickWeighted walks ws accumulating weight and returns the first index
// whose cumulative weight strictly exceeds draw*total. Returns -1 when the
// total weight is zero or the walk falls through on a floating-point edge,
// leaving the fallback to the caller.
func pickWeighted(ws []float64, draw float64) int {
	total := 0.0
	for _, w := range ws {
		total += w
	}
	if total <= 0 {
		return -1
	}

	r := draw * total
	acc := 0.0
	for i, w := range ws {
		acc += w
		if acc > r {
			return i
		}
	}
	return -1
}

// deleteAsync removes a dead entry without blocking the visit response.
// Failure only costs storage, not correctness: the entry stays dead.
func (e *Engine) deleteAsync(publicID string) {
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
		defer cancel()

		if err := e.repo.Delete(ctx, publicID); err != nil && errx.KindOf(err) != errx.NotFound {
			e.logger.Error("lazy deletion failed", "public_id", publicID, "error", err)
		}
	})
}

// saveVisitAsync persists visit bookkeeping without blocking the response.
// The visit has already been served; a lost decrement is an accepted,
// logged inconsistency.
func (e *Engine) saveVisitAsync(publicID string, expiresAt time.Time) {
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
		defer cancel()

		if err := e.repo.SaveVisit(ctx, publicID, expiresAt); err != nil && errx.KindOf(err) != errx.NotFound {
			e.logger.Error("visit save failed", "public_id", publicID, "error", err)
		}
	})
}
