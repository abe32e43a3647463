package analysis

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/nocturna/skyglow-etl/internal/domain"
)

// ChangeConfig holds the grid-differencing constants.
type ChangeConfig struct {
	// CellSizeDeg is the grid cell edge in degrees; 0.005° is roughly 500 m
	// at the equator.
	CellSizeDeg float64 `koanf:"cell_size_deg"`

	// MaterialityThreshold is the minimum |delta| (mag units) before a cell
	// counts as changed at all. Smaller shifts are noise.
	MaterialityThreshold float64 `koanf:"materiality_threshold"`

	// HotspotThreshold is the stronger positive delta required to label a
	// cell a hotspot. Positive deltas below it are suppressed.
	HotspotThreshold float64 `koanf:"hotspot_threshold"`

	// MaxCells caps the emitted change layer, keeping the strongest cells.
	// Zero means unlimited.
	MaxCells int `koanf:"max_cells"`
}

// DefaultChangeConfig returns the production change-detection defaults.
func DefaultChangeConfig() ChangeConfig {
	return ChangeConfig{
		CellSizeDeg:          0.005,
		MaterialityThreshold: 2.0,
		HotspotThreshold:     3.0,
		MaxCells:             500,
	}
}

// gridKey identifies one snapped cell. Integer indices avoid float key
// instability in the map.
type gridKey struct {
	latIdx int
	lonIdx int
}

// snap rounds a coordinate to its grid cell via deterministic nearest-cell
// rounding, never random binning.
func snap(lat, lon, cellSize float64) gridKey {
	return gridKey{
		latIdx: int(math.Round(lat / cellSize)),
		lonIdx: int(math.Round(lon / cellSize)),
	}
}

// centroid returns the geographic center of a cell.
func (k gridKey) centroid(cellSize float64) (lat, lon float64) {
	return float64(k.latIdx) * cellSize, float64(k.lonIdx) * cellSize
}

// DetectChanges grid-snaps two periods of samples and differences their
// per-cell means. A cell present in only one period has nothing to compare
// against and is excluded, never defaulted to zero. Cells are emitted only
// where the shift clears the configured thresholds: a hotspot where the sky
// brightened by at least HotspotThreshold, a reduction where it darkened by
// at least MaterialityThreshold.
//
// The result is ordered by |delta| descending (then by cell identity for
// determinism) and capped at MaxCells.
func DetectChanges(baseline, current []domain.BrightnessSample, cfg ChangeConfig) []domain.ChangeCell {
	baseCells := binSamples(baseline, cfg.CellSizeDeg)
	curCells := binSamples(current, cfg.CellSizeDeg)

	cells := make([]domain.ChangeCell, 0)
	for key, curValues := range curCells {
		baseValues, ok := baseCells[key]
		if !ok {
			continue
		}

		baseMean, errB := stats.Mean(baseValues)
		curMean, errC := stats.Mean(curValues)
		if errB != nil || errC != nil {
			continue
		}

		delta := curMean - baseMean
		var category domain.ChangeCategory
		switch {
		case delta >= cfg.HotspotThreshold:
			category = domain.ChangeHotspot
		case delta <= -cfg.MaterialityThreshold:
			category = domain.ChangeReduction
		default:
			continue
		}

		lat, lon := key.centroid(cfg.CellSizeDeg)
		cells = append(cells, domain.ChangeCell{
			Latitude:     lat,
			Longitude:    lon,
			Delta:        delta,
			Category:     category,
			BaselineMean: baseMean,
			CurrentMean:  curMean,
		})
	}

	sort.Slice(cells, func(i, j int) bool {
		di, dj := math.Abs(cells[i].Delta), math.Abs(cells[j].Delta)
		if di != dj {
			return di > dj
		}
		if cells[i].Latitude != cells[j].Latitude {
			return cells[i].Latitude < cells[j].Latitude
		}
		return cells[i].Longitude < cells[j].Longitude
	})

	if cfg.MaxCells > 0 && len(cells) > cfg.MaxCells {
		cells = cells[:cfg.MaxCells]
	}
	return cells
}

// binSamples groups valid sample brightness values by snapped grid cell.
func binSamples(samples []domain.BrightnessSample, cellSize float64) map[gridKey][]float64 {
	cells := make(map[gridKey][]float64)
	for _, s := range samples {
		if math.IsNaN(s.SkyBrightnessMag) {
			continue
		}
		key := snap(s.Latitude, s.Longitude, cellSize)
		cells[key] = append(cells[key], s.SkyBrightnessMag)
	}
	return cells
}
