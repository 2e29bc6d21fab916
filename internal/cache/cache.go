// Package cache stores answered responses keyed by the request fields that
// distinguish them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sells-group/siteqa/internal/model"
)

// DefaultTTL is how long an answer stays fresh.
const DefaultTTL = 10 * time.Minute

// Cache is the answer store used by the request handler. A miss is
// (nil, false, nil); a non-nil error means the backend failed.
type Cache interface {
	Get(ctx context.Context, key string) (*model.Response, bool, error)
	Set(ctx context.Context, key string, resp *model.Response) error
	Delete(ctx context.Context, key string) error
}

// Entry is a stored response and the time it was written.
type Entry struct {
	Key      string         `json:"key"`
	Payload  model.Response `json:"payload"`
	StoredAt time.Time      `json:"stored_at"`
}

// Key derives a cache key from the request-distinguishing fields. The
// question is trimmed, whitespace-collapsed and lower-cased first so that
// trivially different spellings share an entry.
func Key(question, baseURL string, preset model.Preset, modelID string) string {
	q := strings.ToLower(strings.Join(strings.Fields(question), " "))
	h := sha256.New()
	for _, part := range []string{q, baseURL, string(preset), modelID} {
		h.Write([]byte(part))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// clone copies a response so callers cannot mutate cached state.
func clone(r *model.Response) *model.Response {
	out := *r
	out.Sources = append([]model.Source(nil), r.Sources...)
	if out.Sources == nil {
		out.Sources = []model.Source{}
	}
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	return &out
}
