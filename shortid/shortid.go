// Package shortid turns allocator sequence numbers into the two ids every
// entry carries: the public short code and the secret removal token. Each id
// is a reversible sqids encoding of the same number under a different
// alphabet, so neither can be derived from the other without knowing both
// alphabets.
package shortid

import (
	"errors"
	"regexp"

	"github.com/sqids/sqids-go"
)

const (
	// DefaultPublicAlphabet seeds the public-id encoder. Treat it as a salt:
	// deployments should override it so ids are not portable across sites.
	DefaultPublicAlphabet = "k3G7QAe51FCsiWrNOYBUwM6XzZvdLT4j9JhyHKg2cVbxfERq0mSoI8lDpunPat"

	// DefaultRemovalAlphabet seeds the removal-token encoder and must differ
	// from the public alphabet.
	DefaultRemovalAlphabet = "E5FBxJUWiyLdvfTqNnD93V8herXazH02woZRYCt6OAbQs4MKlSPcgGpm7ujk1I"

	// PublicIDMinLength pads public ids so short sequence numbers do not
	// yield guessably short codes.
	PublicIDMinLength = 10
)

// pattern is the charset custom ids must match. Letters, digits and a small
// URL-safe punctuation set; length capped so ids stay path-segment sized.
var pattern = regexp.MustCompile(`^[A-Za-z0-9_~.-]{1,64}$`)

// Codec encodes sequence numbers into public ids and removal tokens.
type Codec struct {
	public  *sqids.Sqids
	removal *sqids.Sqids
}

// Options configures a Codec. Zero-valued fields fall back to the defaults.
type Options struct {
	PublicAlphabet  string
	RemovalAlphabet string
}

// NewCodec builds a Codec from opts.
func NewCodec(opts Options) (*Codec, error) {
	pubAlphabet := opts.PublicAlphabet
	if pubAlphabet == "" {
		pubAlphabet = DefaultPublicAlphabet
	}
	remAlphabet := opts.RemovalAlphabet
	if remAlphabet == "" {
		remAlphabet = DefaultRemovalAlphabet
	}
	if pubAlphabet == remAlphabet {
		return nil, errors.New("public and removal alphabets must differ")
	}

	public, err := sqids.New(sqids.Options{
		Alphabet:  pubAlphabet,
		MinLength: PublicIDMinLength,
	})
	if err != nil {
		return nil, err
	}

	removal, err := sqids.New(sqids.Options{
		Alphabet: remAlphabet,
	})
	if err != nil {
		return nil, err
	}

	return &Codec{public: public, removal: removal}, nil
}

// EncodePublic derives the public short code for a sequence number.
func (c *Codec) EncodePublic(seq uint64) (string, error) {
	return c.public.Encode([]uint64{seq})
}

// EncodeRemoval derives the removal token for a sequence number.
func (c *Codec) EncodeRemoval(seq uint64) (string, error) {
	return c.removal.Encode([]uint64{seq})
}

// ValidID reports whether s is acceptable as a public id: non-empty, within
// the length cap, and drawn from the allowed charset.
func ValidID(s string) bool {
	return pattern.MatchString(s)
}
