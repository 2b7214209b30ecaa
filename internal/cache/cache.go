// Package cache provides the report cache used by the reporting
// endpoints. Redis backs it in production; a no-op implementation
// keeps the service working without a cache.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReportCache stores serialized report payloads keyed by report
// parameters. Implementations must be safe for concurrent use.
type ReportCache interface {
	// GetJSON unmarshals a cached payload into dst and reports whether
	// the key existed.
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	// SetJSON serializes v as JSON and stores it under key with ttl.
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	// InvalidatePrefix drops every key beginning with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Key joins parts into a cache key, e.g. Key("reports", "sales", from, to).
func Key(parts ...any) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, fmt.Sprint(p))
	}
	return strings.Join(segs, ":")
}

// Noop is a ReportCache that stores nothing. Every lookup misses.
type Noop struct{}

func (Noop) GetJSON(context.Context, string, any) (bool, error) { return false, nil }

func (Noop) SetJSON(context.Context, string, any, time.Duration) error { return nil }

func (Noop) InvalidatePrefix(context.Context, string) error { return nil }
