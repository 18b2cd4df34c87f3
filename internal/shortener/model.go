package shortener

import (
	"time"

	"github.com/JLChnToZ/shota-url/internal/opengraph"
)

// UnlimitedUses is the sentinel meaning an entry never exhausts by visits.
const UnlimitedUses int64 = -1

// Target is one destination URL with its selection weight and optional
// link-preview data.
type Target struct {
	URL          string         `json:"url"`
	Weight       float64        `json:"weight"`
	Metadata     opengraph.Tree `json:"metadata,omitempty"`
	PreviewImage []byte         `json:"preview_image,omitempty"`
}

// Entry is the persisted mapping from a public short id to one or more
// destination targets plus its lifecycle bookkeeping.
type Entry struct {
	PublicID  string
	RemovalID string

	// Comments is pre-rendered HTML; the engine treats it as opaque.
	Comments string

	Targets []Target

	// RemainingUses counts visits left; UnlimitedUses disables the budget.
	RemainingUses int64

	ExpiresAt time.Time

	// TTL is the duration ExpiresAt was computed from, kept so a visit can
	// reapply it when RefreshTTLOnVisit is set.
	TTL time.Duration

	Randomize         bool
	AutoRedirect      bool
	RefreshTTLOnVisit bool

	// OGPolicy: 0 = no enrichment, > 0 = full metadata plus preview image,
	// < 0 = metadata with media properties stripped.
	OGPolicy int

	CreatedAt time.Time
}

// Exhausted reports whether the entry's visit budget has run out.
func (e *Entry) Exhausted() bool {
	return e.RemainingUses != UnlimitedUses && e.RemainingUses < 1
}

// Expired reports whether the entry's lifetime has elapsed at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Alive reports whether a resolution at now may serve this entry.
func (e *Entry) Alive(now time.Time) bool {
	return !e.Exhausted() && !e.Expired(now)
}

// Redirect instructs the caller to send the visitor to URL. Status is 301
// when the destination was the only possible outcome and 302 when a
// weighted random pick occurred, so caches never pin a random choice.
type Redirect struct {
	URL    string
	Status int
}

// Landing carries everything a landing page needs: the page set, the
// entry's comments and the flattened preview metadata of the chosen target.
type Landing struct {
	Pages      []string
	Random     bool
	Comments   string
	Properties []opengraph.Property
}

// Decision is the outcome of a successful resolution: exactly one of
// Redirect or Landing is set.
type Decision struct {
	Redirect *Redirect
	Landing  *Landing
}
