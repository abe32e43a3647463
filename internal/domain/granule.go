package domain

import (
	"context"
	"sort"
	"time"
)

// GranuleCatalog searches an external acquisition catalog for granules
// covering a bounding box within a time range. Implementations authenticate
// with an explicit credential passed at construction, never a process-wide
// singleton.
type GranuleCatalog interface {
	Search(ctx context.Context, bounds BoundingBox, start, end time.Time) ([]Granule, error)
}

// DefaultCloudCoverCeilingPercent discards acquisitions too cloudy to yield
// usable radiance.
const DefaultCloudCoverCeilingPercent = 40.0

// SelectBestGranule ranks candidates ascending by cloud cover, discards those
// above the ceiling, and returns the best remaining. The second return is
// false when nothing usable is available. That is an expected outcome, not an error,
// so callers can widen the search window and retry.
func SelectBestGranule(candidates []Granule, cloudCeilingPercent float64) (Granule, bool) {
	ranked := make([]Granule, 0, len(candidates))
	for _, g := range candidates {
		if g.CloudCoverPercent <= cloudCeilingPercent {
			ranked = append(ranked, g)
		}
	}
	if len(ranked) == 0 {
		return Granule{}, false
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CloudCoverPercent < ranked[j].CloudCoverPercent
	})
	return ranked[0], true
}
