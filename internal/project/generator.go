package project

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// Generator mints candidate project identifiers.
type Generator interface {
	Generate() (ID, error)
}

// Reserver claims an identifier. It returns false when the identifier is taken.
type Reserver interface {
	Reserve(ctx context.Context, id string) (bool, error)
}

var adjectives = []string{
	"amber", "ancient", "autumn", "bold", "brave", "bright", "calm", "clever",
	"cold", "crimson", "curly", "damp", "dark", "dawn", "delicate", "eager",
	"early", "fancy", "fierce", "floral", "fragrant", "frosty", "gentle", "golden",
	"green", "hidden", "hollow", "icy", "jolly", "late", "lively", "lucky",
	"misty", "modern", "nimble", "noisy", "old", "patient", "plain", "polished",
	"proud", "purple", "quiet", "rapid", "restless", "rough", "round", "shiny",
	"silent", "small", "snowy", "soft", "solitary", "sparkling", "spring", "still",
	"summer", "swift", "tall", "tiny", "twilight", "wandering", "wild", "witty",
}

var nouns = []string{
	"apple", "badger", "bird", "breeze", "brook", "bush", "butterfly", "cloud",
	"comet", "dawn", "dew", "dream", "dust", "falcon", "feather", "field",
	"fire", "firefly", "flower", "fog", "forest", "frog", "glade", "grass",
	"harbor", "haze", "hill", "island", "lake", "leaf", "meadow", "moon",
	"morning", "mountain", "night", "oak", "ocean", "otter", "paper", "pine",
	"pond", "rain", "resonance", "river", "sea", "shadow", "shape", "silence",
	"sky", "smoke", "snow", "sound", "star", "sun", "sunset", "thunder",
	"tree", "violet", "water", "wave", "wildflower", "wind", "wolf", "wood",
}

// WordGenerator produces pronounceable adjective-adjective-noun slugs.
type WordGenerator struct{}

// NewWordGenerator returns a generator backed by crypto/rand.
func NewWordGenerator() *WordGenerator {
	return &WordGenerator{}
}

// Generate draws one slug.
func (WordGenerator) Generate() (ID, error) {
	parts := make([]string, 0, 3)
	for _, list := range [][]string{adjectives, adjectives, nouns} {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
		if err != nil {
			return "", ferrors.InternalError("random source failed").WithCause(err).Build()
		}
		parts = append(parts, list[n.Int64()])
	}
	return ID(strings.Join(parts, "-")), nil
}

// UniqueGenerator reserves every drawn identifier and re-draws on collision.
type UniqueGenerator struct {
	gen      Generator
	reserver Reserver
	attempts int
}

// NewUniqueGenerator combines a Generator with a Reserver. attempts bounds the
// number of draws for a single call.
func NewUniqueGenerator(gen Generator, reserver Reserver, attempts int) *UniqueGenerator {
	if attempts <= 0 {
		attempts = 1
	}
	return &UniqueGenerator{gen: gen, reserver: reserver, attempts: attempts}
}

// Next returns an identifier no other caller has received.
func (u *UniqueGenerator) Next(ctx context.Context) (ID, error) {
	for range u.attempts {
		id, err := u.gen.Generate()
		if err != nil {
			return "", err
		}
		if err := Validate(string(id)); err != nil {
			return "", ferrors.InternalError("generator produced an invalid project id").WithCause(err).Build()
		}
		ok, err := u.reserver.Reserve(ctx, string(id))
		if err != nil {
			return "", ferrors.InternalError("failed to reserve project id").
				WithCause(err).WithContext("project_id", string(id)).Build()
		}
		if ok {
			return id, nil
		}
	}
	return "", ferrors.InternalError("no free project id found").
		WithContext("attempts", u.attempts).Build()
}
