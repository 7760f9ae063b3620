package rtmpose

import (
	"image"
	"math"
)

// decodeSimCC decodes SimCC classification tensors into keypoints in model
// input coordinates. Per keypoint, the location is the argmax bin on each
// axis divided by the split ratio, and the score is the mean of the two
// axis maxima. Keypoints whose score misses the threshold (or whose maxima
// are non-positive) keep their score but get (-1, -1) coordinates.
func decodeSimCC(simccX, simccY []float32, numKeypoints, xBins, yBins int, splitRatio, scoreThr float32) []Keypoint {
	kps := make([]Keypoint, numKeypoints)
	for k := 0; k < numKeypoints; k++ {
		locX, valX := argmax(simccX[k*xBins : (k+1)*xBins])
		locY, valY := argmax(simccY[k*yBins : (k+1)*yBins])

		score := (valX + valY) / 2
		if score < scoreThr || valX <= 0 || valY <= 0 {
			kps[k] = Keypoint{X: -1, Y: -1, Score: score}
			continue
		}
		kps[k] = Keypoint{
			X:     float32(locX) / splitRatio,
			Y:     float32(locY) / splitRatio,
			Score: score,
		}
	}
	return kps
}

func argmax(vals []float32) (int, float32) {
	best := 0
	bestVal := float32(math.Inf(-1))
	for i, v := range vals {
		if v > bestVal {
			best = i
			bestVal = v
		}
	}
	return best, bestVal
}

// ExpandBox grows a detection box by the padding ratio and adjusts it to
// the target aspect ratio (width/height) around the same center, the
// standard top-down crop used before pose inference. The result is not
// clamped to any image bounds.
func ExpandBox(box image.Rectangle, aspect, padding float64) image.Rectangle {
	cx := float64(box.Min.X+box.Max.X) / 2
	cy := float64(box.Min.Y+box.Max.Y) / 2
	w := float64(box.Dx()) * padding
	h := float64(box.Dy()) * padding

	if w/h > aspect {
		h = w / aspect
	} else {
		w = h * aspect
	}

	return image.Rect(
		int(math.Round(cx-w/2)),
		int(math.Round(cy-h/2)),
		int(math.Round(cx+w/2)),
		int(math.Round(cy+h/2)),
	)
}
