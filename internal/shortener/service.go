package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/JLChnToZ/shota-url/internal/errx"
	"github.com/JLChnToZ/shota-url/internal/markdown"
	"github.com/JLChnToZ/shota-url/internal/opengraph"
	"github.com/JLChnToZ/shota-url/internal/seq"
	"github.com/JLChnToZ/shota-url/shortid"
)

// DefaultMaxTTL caps entry lifetimes when no ceiling is configured.
const DefaultMaxTTL = 365 * 24 * time.Hour

// reservedIDs are the literal path segments claimed by other routes; they
// can never be issued or registered as public ids.
var reservedIDs = map[string]bool{
	"add":         true,
	"check":       true,
	"remove":      true,
	"preview":     true,
	"assets":      true,
	"favicon.ico": true,
}

// TargetRequest is one destination in a creation request. A nil Weight
// means the default weight of 1.
type TargetRequest struct {
	URL    string
	Weight *float64
}

// CreateRequest carries everything needed to register a new entry.
type CreateRequest struct {
	// ID is the optional caller-chosen public id. When empty one is derived
	// from the allocator sequence.
	ID string

	// Comments is raw markdown, rendered to HTML before storage.
	Comments string

	Targets []TargetRequest

	// TTL is the entry lifetime; must lie in [0, MaxTTL].
	TTL time.Duration

	// RemainingUses is the visit budget; UnlimitedUses means no budget.
	// Fractional inputs are rounded by the HTTP layer before this point.
	RemainingUses int64

	Randomize         bool
	AutoRedirect      bool
	RefreshTTLOnVisit bool
	OGPolicy          int
}

// CreateResult is the caller-visible outcome of a successful creation.
type CreateResult struct {
	ID        string
	RemovalID string
}

// Service assembles and persists entries and answers the bookkeeping
// queries that do not belong to the resolution path.
type Service struct {
	repo      Repository
	allocator *seq.Allocator
	codec     *shortid.Codec
	enricher  *opengraph.Enricher
	renderer  *markdown.Renderer
	logger    *slog.Logger
	maxTTL    time.Duration
	now       func() time.Time
}

// ServiceConfig configures a Service. Repo, Allocator and Codec are
// required; the rest falls back to defaults.
type ServiceConfig struct {
	Repo      Repository
	Allocator *seq.Allocator
	Codec     *shortid.Codec
	Enricher  *opengraph.Enricher
	Renderer  *markdown.Renderer
	Logger    *slog.Logger
	MaxTTL    time.Duration
	Now       func() time.Time
}

// NewService builds a Service from cfg.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = markdown.NewRenderer()
	}
	enricher := cfg.Enricher
	if enricher == nil {
		enricher = opengraph.NewEnricher(opengraph.EnricherConfig{Logger: logger})
	}
	maxTTL := cfg.MaxTTL
	if maxTTL <= 0 {
		maxTTL = DefaultMaxTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repo,
		allocator: cfg.Allocator,
		codec:     cfg.Codec,
		enricher:  enricher,
		renderer:  renderer,
		logger:    logger,
		maxTTL:    maxTTL,
		now:       now,
	}
}

// Create validates req, assembles the entry and persists it. A Conflict on
// either id propagates to the caller, who may retry with a fresh draw.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	const op = "shortener.Service.Create"

	if err := validateRequest(req); err != nil {
		return CreateResult{}, errx.E(op, errx.Invalid, err)
	}
	if err := s.validateTTL(req.TTL); err != nil {
		return CreateResult{}, errx.E(op, errx.Invalid, err)
	}

	seqNum := s.allocator.Next()

	publicID := req.ID
	if publicID == "" {
		var err error
		publicID, err = s.codec.EncodePublic(seqNum)
		if err != nil {
			return CreateResult{}, errx.E(op, errx.Internal, err)
		}
	}
	removalID, err := s.codec.EncodeRemoval(seqNum)
	if err != nil {
		return CreateResult{}, errx.E(op, errx.Internal, err)
	}

	comments := ""
	if req.Comments != "" {
		comments, err = s.renderer.Render(req.Comments)
		if err != nil {
			return CreateResult{}, errx.E(op, errx.Invalid, fmt.Errorf("render comments: %w", err))
		}
	}

	now := s.now()
	entry := &Entry{
		PublicID:          publicID,
		RemovalID:         removalID,
		Comments:          comments,
		Targets:           s.buildTargets(ctx, req),
		RemainingUses:     req.RemainingUses,
		ExpiresAt:         now.Add(req.TTL),
		TTL:               req.TTL,
		Randomize:         req.Randomize,
		AutoRedirect:      req.AutoRedirect,
		RefreshTTLOnVisit: req.RefreshTTLOnVisit,
		OGPolicy:          req.OGPolicy,
		CreatedAt:         now,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return CreateResult{}, errx.E(op, errx.KindOf(err), err)
	}

	s.logger.Info("entry created",
		"public_id", publicID,
		"targets", len(entry.Targets),
		"ttl_ms", req.TTL.Milliseconds(),
	)
	return CreateResult{ID: publicID, RemovalID: removalID}, nil
}

// buildTargets maps requested targets to stored ones, enriching each with
// metadata when the policy asks for it. Enrichment is best-effort per
// target; a failed target is simply stored bare.
func (s *Service) buildTargets(ctx context.Context, req CreateRequest) []Target {
	targets := make([]Target, 0, len(req.Targets))
	for _, t := range req.Targets {
		weight := 1.0
		if t.Weight != nil {
			weight = *t.Weight
		}

		target := Target{URL: t.URL, Weight: weight}
		if req.OGPolicy != 0 {
			target.Metadata, target.PreviewImage = s.enricher.Enrich(ctx, t.URL, req.OGPolicy)
		}
		targets = append(targets, target)
	}
	return targets
}

// Remove deletes the entry holding the given removal token. Possession of
// the token is the only authorization. Reports whether an entry was removed.
func (s *Service) Remove(ctx context.Context, removalID string) (bool, error) {
	const op = "shortener.Service.Remove"

	entry, err := s.repo.GetByRemovalID(ctx, removalID)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return false, nil
		}
		return false, errx.E(op, errx.Internal, err)
	}

	if err := s.repo.Delete(ctx, entry.PublicID); err != nil {
		if errx.KindOf(err) == errx.NotFound {
			// Lost a race with lazy deletion; the entry is gone either way.
			return true, nil
		}
		return false, errx.E(op, errx.Internal, err)
	}
	return true, nil
}

// CheckAvailability reports whether candidateID could be registered as a
// public id right now.
func (s *Service) CheckAvailability(ctx context.Context, candidateID string) (bool, error) {
	const op = "shortener.Service.CheckAvailability"

	if !shortid.ValidID(candidateID) || reservedIDs[strings.ToLower(candidateID)] {
		return false, nil
	}

	_, err := s.repo.GetByPublicID(ctx, candidateID)
	switch {
	case err == nil:
		return false, nil
	case errx.KindOf(err) == errx.NotFound:
		return true, nil
	default:
		return false, errx.E(op, errx.Internal, err)
	}
}

// PreviewImage returns the stored preview image of the target at index for
// the entry matching id, which may be either a removal token or a public
// id. Returns NotFound when the entry, target or image is absent.
func (s *Service) PreviewImage(ctx context.Context, id string, index int) ([]byte, error) {
	const op = "shortener.Service.PreviewImage"

	entry, err := s.repo.GetByRemovalID(ctx, id)
	if err != nil {
		if errx.KindOf(err) != errx.NotFound {
			return nil, errx.E(op, errx.Internal, err)
		}
		entry, err = s.repo.GetByPublicID(ctx, id)
		if err != nil {
			return nil, errx.E(op, errx.KindOf(err), err)
		}
	}

	if index < 0 || index >= len(entry.Targets) {
		return nil, errx.E(op, errx.NotFound, errors.New("no such target"))
	}
	img := entry.Targets[index].PreviewImage
	if len(img) == 0 {
		return nil, errx.E(op, errx.NotFound, errors.New("target has no preview image"))
	}
	return img, nil
}

func (s *Service) validateTTL(ttl time.Duration) error {
	if ttl < 0 {
		return errors.New("ttl cannot be negative")
	}
	if ttl > s.maxTTL {
		return fmt.Errorf("ttl exceeds maximum of %s", s.maxTTL)
	}
	return nil
}

func validateRequest(req CreateRequest) error {
	if len(req.Targets) == 0 {
		return errors.New("at least one target is required")
	}
	for i, t := range req.Targets {
		if err := validateTargetURL(t.URL); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
		if t.Weight != nil && (*t.Weight < 0 || math.IsNaN(*t.Weight) || math.IsInf(*t.Weight, 0)) {
			return fmt.Errorf("target %d: weight must be a non-negative number", i)
		}
	}
	if req.ID != "" {
		if !shortid.ValidID(req.ID) {
			return errors.New("id contains invalid characters")
		}
		if reservedIDs[strings.ToLower(req.ID)] {
			return errors.New("id is reserved")
		}
	}
	if req.RemainingUses < UnlimitedUses {
		return errors.New("remaining uses must be -1 (unlimited) or non-negative")
	}
	return nil
}

func validateTargetURL(raw string) error {
	if raw == "" {
		return errors.New("url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}
