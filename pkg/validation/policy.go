package validation

import (
	"math"

	"github.com/anime-shed/image-quality-engine/pkg/models"
)

var bandLevels = [4]models.QualityLevel{
	models.LevelExcellent,
	models.LevelGood,
	models.LevelFair,
	models.LevelPoor,
}

// Classify maps a raw metric value onto a QualityLevel using the metric's band
// and direction. A value exactly on a cut point takes the better level.
func Classify(metric models.Metric, raw float64, thresholds QualityThresholds) models.QualityLevel {
	return ClassifyBand(raw, thresholds.Band(metric), metric.HigherIsBetter())
}

// ClassifyBand walks the cut points from Excellent towards Poor and returns
// the first level whose cut point v reaches. NaN is always Rejected.
func ClassifyBand(v float64, band Band, higherIsBetter bool) models.QualityLevel {
	if math.IsNaN(v) {
		return models.LevelRejected
	}
	for i, cut := range band.cuts() {
		if higherIsBetter && v >= cut || !higherIsBetter && v <= cut {
			return bandLevels[i]
		}
	}
	return models.LevelRejected
}

// ClassifyAll classifies every metric of scores.
func ClassifyAll(scores models.MetricScores, thresholds QualityThresholds) models.MetricLevels {
	var levels models.MetricLevels
	for _, m := range models.AllMetrics {
		levels.Set(m, Classify(m, scores.Get(m), thresholds))
	}
	return levels
}
