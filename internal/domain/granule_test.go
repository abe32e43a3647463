package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBestGranule(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	}

	t.Run("picks least cloudy under ceiling", func(t *testing.T) {
		candidates := []Granule{
			{ID: "g1", CloudCoverPercent: 35, AcquisitionTime: day(1)},
			{ID: "g2", CloudCoverPercent: 5, AcquisitionTime: day(2)},
			{ID: "g3", CloudCoverPercent: 20, AcquisitionTime: day(3)},
		}

		best, ok := SelectBestGranule(candidates, DefaultCloudCoverCeilingPercent)
		require.True(t, ok)
		assert.Equal(t, "g2", best.ID)
	})

	t.Run("discards candidates above the ceiling", func(t *testing.T) {
		candidates := []Granule{
			{ID: "g1", CloudCoverPercent: 80},
			{ID: "g2", CloudCoverPercent: 95},
		}

		_, ok := SelectBestGranule(candidates, 40)
		assert.False(t, ok, "all-cloudy candidates yield an explicit none-available result")
	})

	t.Run("empty candidate list", func(t *testing.T) {
		_, ok := SelectBestGranule(nil, 40)
		assert.False(t, ok)
	})

	t.Run("ceiling is inclusive", func(t *testing.T) {
		best, ok := SelectBestGranule([]Granule{{ID: "g1", CloudCoverPercent: 40}}, 40)
		require.True(t, ok)
		assert.Equal(t, "g1", best.ID)
	})

	t.Run("tie keeps the earlier candidate", func(t *testing.T) {
		candidates := []Granule{
			{ID: "first", CloudCoverPercent: 10},
			{ID: "second", CloudCoverPercent: 10},
		}

		best, ok := SelectBestGranule(candidates, 40)
		require.True(t, ok)
		assert.Equal(t, "first", best.ID)
	})
}
