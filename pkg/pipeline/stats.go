package pipeline

import (
	"math"
	"time"
)

// stableStdDevRatio: FPS is considered stable when the standard deviation
// of instantaneous FPS stays below this fraction of the mean.
const stableStdDevRatio = 0.15

// FPSStats summarizes frame-rate behavior over a run.
type FPSStats struct {
	FramesProcessed int           `json:"frames_processed"`
	Duration        time.Duration `json:"duration"`
	FPSMean         float64       `json:"fps_mean"`
	FPSStdDev       float64       `json:"fps_stddev"`
	FPSMin          float64       `json:"fps_min"`
	FPSMax          float64       `json:"fps_max"`
	IsStable        bool          `json:"is_stable"`
}

// CalculateFPSStats derives FPS statistics from per-frame timestamps.
// Instantaneous FPS is measured per frame interval; fewer than two frames
// yields zeroed stats.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *FPSStats {
	stats := &FPSStats{
		FramesProcessed: len(frameTimes),
		Duration:        totalDuration,
	}
	if len(frameTimes) < 2 || totalDuration <= 0 {
		return stats
	}

	stats.FPSMean = float64(len(frameTimes)) / totalDuration.Seconds()

	instant := make([]float64, 0, len(frameTimes)-1)
	stats.FPSMin = math.Inf(1)
	for i := 1; i < len(frameTimes); i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval <= 0 {
			continue
		}
		fps := 1 / interval
		instant = append(instant, fps)
		if fps < stats.FPSMin {
			stats.FPSMin = fps
		}
		if fps > stats.FPSMax {
			stats.FPSMax = fps
		}
	}
	if len(instant) == 0 {
		stats.FPSMin = 0
		return stats
	}

	mean := 0.0
	for _, fps := range instant {
		mean += fps
	}
	mean /= float64(len(instant))

	variance := 0.0
	for _, fps := range instant {
		variance += (fps - mean) * (fps - mean)
	}
	variance /= float64(len(instant))
	stats.FPSStdDev = math.Sqrt(variance)

	stats.IsStable = stats.FPSStdDev < stableStdDevRatio*mean
	return stats
}
