// File path: internal/embed/embed.go
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexa-ai/nexa/internal/common"
	"github.com/nexa-ai/nexa/internal/common/telemetry"
)

// ErrUnavailable reports that the embedding backend failed or timed out.
// Callers degrade to omitting the affected evidence instead of surfacing the
// failure to the end user.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder is the minimal contract for turning text into vectors.
type Embedder interface {
	Embed(ctx context.Context, input []string) ([][]float32, error)
}

// Config bounds the cost of a single embedding call.
type Config struct {
	// MaxInputRunes truncates each input before it is sent; embedding an
	// entire untruncated chunk wastes tokens without improving ranking.
	MaxInputRunes int
	// Timeout caps one backend round trip.
	Timeout time.Duration
}

// DefaultConfig returns the bounds used when no overrides are provided.
func DefaultConfig() Config {
	return Config{
		MaxInputRunes: 2000,
		Timeout:       15 * time.Second,
	}
}

// Client wraps a backend embedder with input truncation, a bounded timeout,
// and a single distinguishable failure mode.
type Client struct {
	backend Embedder
	config  Config
}

// NewClient wires the backend embedder into a bounded client.
func NewClient(backend Embedder, cfg Config) *Client {
	if cfg.MaxInputRunes <= 0 {
		cfg.MaxInputRunes = DefaultConfig().MaxInputRunes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{backend: backend, config: cfg}
}

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty vector returned", ErrUnavailable)
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input, in input order. Inputs are
// truncated to the configured rune budget before the call.
func (c *Client) EmbedBatch(ctx context.Context, input []string) ([][]float32, error) {
	if c.backend == nil {
		return nil, fmt.Errorf("%w: no backend configured", ErrUnavailable)
	}
	if len(input) == 0 {
		return nil, nil
	}
	truncated := make([]string, len(input))
	for i, text := range input {
		truncated[i] = Truncate(text, c.config.MaxInputRunes)
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	start := time.Now()
	vectors, err := c.backend.Embed(ctx, truncated)
	telemetry.RecordEmbedding(time.Since(start), err)
	if err != nil {
		common.Logger().Warn("embed: backend call failed", "inputs", len(input), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vectors) != len(input) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrUnavailable, len(vectors), len(input))
	}
	return vectors, nil
}

// Truncate bounds text to at most limit runes.
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
