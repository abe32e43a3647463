// Command genmock generates mock granule fixtures for the ETL test suite and
// local runs. It writes the same JSON layout the granulefile reader consumes,
// with a radial city-glow radiance profile and a configurable fraction of
// cloudy pixels.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/VNP46A2_lahore_202406.json \
//	  -granule-id VNP46A2.A2024153.h25v05.001 \
//	  -bounds 73.9,31.4,74.2,31.7 \
//	  -width 64 -height 64 -seed 1
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/nocturna/skyglow-etl/internal/adapter/granulefile"
	"github.com/nocturna/skyglow-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the granule fixture")
	granuleID := flag.String("granule-id", "VNP46A2.A2024153.h25v05.001", "granule identifier")
	boundsArg := flag.String("bounds", "73.9,31.4,74.2,31.7", "west,south,east,north coverage")
	width := flag.Int("width", 64, "raster width in pixels")
	height := flag.Int("height", 64, "raster height in pixels")
	peak := flag.Float64("peak", 250, "radiance at the city core, nW/cm²/sr")
	cloudFraction := flag.Float64("cloud-fraction", 0.1, "fraction of pixels flagged confident cloudy")
	seed := flag.Int64("seed", 1, "random seed for reproducible fixtures")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	bounds, err := parseBounds(*boundsArg)
	if err != nil {
		return err
	}

	raster := generate(*granuleID, bounds, *width, *height, *peak, *cloudFraction, rand.New(rand.NewSource(*seed)))
	if err := granulefile.Write(*out, raster); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}

	log.Printf("wrote %dx%d granule fixture: %s", *width, *height, *out)
	return nil
}

func parseBounds(s string) (domain.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, fmt.Errorf("bounds must be west,south,east,north, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("parsing bounds component %q: %w", p, err)
		}
		vals[i] = v
	}
	return domain.BoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}, nil
}

// generate builds a raster whose radiance peaks at the center and falls off
// radially, mimicking a city core surrounded by darker outskirts. A random
// subset of pixels carries confident-cloudy flags so quality screening has
// something to reject.
func generate(granuleID string, bounds domain.BoundingBox, width, height int, peak, cloudFraction float64, rng *rand.Rand) *domain.Raster {
	n := width * height
	radiance := make([]float64, n)
	flags := make([]uint16, n)
	moonIllum := make([]float64, n)
	lunarZenith := make([]float64, n)

	illum := 0.2 + rng.Float64()*0.6
	zenith := 20 + rng.Float64()*50

	cx, cy := float64(width)/2, float64(height)/2
	maxDist := math.Hypot(cx, cy)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			dist := math.Hypot(float64(x)-cx, float64(y)-cy) / maxDist
			// Exponential falloff from the core plus multiplicative noise.
			base := peak * math.Exp(-4*dist)
			radiance[i] = base * (0.8 + rng.Float64()*0.4)

			if rng.Float64() < cloudFraction {
				flags[i] = 0b0011 // confident cloudy
			}
			moonIllum[i] = illum
			lunarZenith[i] = zenith
		}
	}

	return &domain.Raster{
		GranuleID: granuleID,
		Source:    domain.ProductShortName,
		Width:     width,
		Height:    height,
		Transform: domain.GeoTransform{
			bounds.West, (bounds.East - bounds.West) / float64(width), 0,
			bounds.North, 0, -(bounds.North - bounds.South) / float64(height),
		},
		Radiance:         radiance,
		QualityFlags:     flags,
		MoonIllumination: moonIllum,
		LunarZenith:      lunarZenith,
	}
}
