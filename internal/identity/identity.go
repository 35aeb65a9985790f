package identity

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/google/uuid"

	"github.com/sparrowretail/shelfline-backend/pkg/embed"
)

// pointNamespace seeds every deterministic point id. It never changes; the
// same tenant and natural key must always map to the same point.
var pointNamespace = uuid.MustParse("7f9c24e5-2b6a-4f06-9c2d-1f5e8a3b7d41")

// PointID derives the stable point id for an entity from its tenant and
// natural key. Identical inputs always yield the same UUID, so re-ingesting
// an entity overwrites its point instead of duplicating it.
func PointID(shopID string, parts ...string) string {
	name := strings.ToLower(strings.TrimSpace(shopID))
	for _, part := range parts {
		name += "|" + strings.ToLower(strings.TrimSpace(part))
	}
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

// PlaceholderVector produces a deterministic unit-range vector seeded from
// the text digest. It stands in when no embedding service is configured or
// the service fails, so identity stays stable either way.
func PlaceholderVector(text string, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	seed := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	vector := make([]float32, dim)
	block := seed[:]
	for i := 0; i < dim; i++ {
		if i > 0 && i%8 == 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		word := binary.BigEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
		// Map to [-1, 1).
		vector[i] = float32(word)/float32(1<<31) - 1
	}
	return vector
}

// Resolver turns entity text into the vector stored alongside its payload.
type Resolver struct {
	embedder embed.Embedder
	dim      int
}

// NewResolver builds a vector resolver. A nil embedder means every vector
// is a deterministic placeholder.
func NewResolver(embedder embed.Embedder, dim int) *Resolver {
	return &Resolver{embedder: embedder, dim: dim}
}

// ResolveVector embeds the text when a service is configured and falls back
// to the placeholder on any failure. It never returns an error; vector
// quality degrades, identity does not.
func (r *Resolver) ResolveVector(ctx context.Context, text string) []float32 {
	if r.embedder != nil {
		if vector, err := r.embedder.EmbedText(ctx, text); err == nil && len(vector) > 0 {
			return vector
		}
	}
	return PlaceholderVector(text, r.dim)
}

// Dim returns the configured vector dimensionality.
func (r *Resolver) Dim() int {
	return r.dim
}
