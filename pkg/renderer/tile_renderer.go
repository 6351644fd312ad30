package renderer

import (
	"image"

	"github.com/df07/go-pathtracer/pkg/core"
)

// TileRenderer renders rectangular regions of the image into shared pixel statistics
type TileRenderer struct {
	raytracer *Raytracer
}

// NewTileRenderer creates a new tile renderer on top of a raytracer
func NewTileRenderer(raytracer *Raytracer) *TileRenderer {
	return &TileRenderer{raytracer: raytracer}
}

// RenderTileBounds brings every pixel within bounds up to targetSamples samples.
// Pixels that already have enough samples are left untouched.
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, pixelStats [][]PixelStats, sampler core.Sampler, targetSamples int) RenderStats {
	stats := tr.initRenderStatsForBounds(bounds, targetSamples)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ps := &pixelStats[y][x]
			initialSampleCount := ps.SampleCount

			for ps.SampleCount < targetSamples {
				ps.AddSample(tr.raytracer.SamplePixel(x, y, sampler))
			}

			tr.updateStats(&stats, ps.SampleCount-initialSampleCount)
		}
	}

	tr.finalizeStats(&stats)
	return stats
}

// initRenderStatsForBounds initializes the render statistics tracking for specific bounds
func (tr *TileRenderer) initRenderStatsForBounds(bounds image.Rectangle, maxSamples int) RenderStats {
	return RenderStats{
		TotalPixels: bounds.Dx() * bounds.Dy(),
		MaxSamples:  maxSamples,
		MinSamples:  maxSamples, // Start with max, will be reduced
	}
}

// updateStats updates the render statistics with data from a single pixel
func (tr *TileRenderer) updateStats(stats *RenderStats, samplesUsed int) {
	stats.TotalSamples += samplesUsed
	stats.MinSamples = min(stats.MinSamples, samplesUsed)
	stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, samplesUsed)
}

// finalizeStats calculates final statistics after all pixels are rendered
func (tr *TileRenderer) finalizeStats(stats *RenderStats) {
	if stats.TotalPixels > 0 {
		stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	}
}
