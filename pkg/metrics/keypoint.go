// Package metrics implements 2D keypoint evaluation metrics (PCK, AUC,
// EPE, NME) over batches of predicted and ground-truth poses.
//
// Shapes follow the usual pose-estimation convention:
//   - N instances, K keypoints per instance, 2 coordinates per keypoint.
//   - mask[n][k] marks keypoint k of instance n as valid for evaluation.
//   - norm[n] is a per-instance (x, y) normalization factor.
package metrics

import "math"

// Point is a single 2D keypoint coordinate.
type Point [2]float64

// calcDistances computes normalized distances between predictions and
// ground truth, transposed to [K][N]. Invalid entries are -1: masked-out
// keypoints and instances whose normalization factor is <= 0 on any axis.
func calcDistances(pred, gt [][]Point, mask [][]bool, norm []Point) [][]float64 {
	n := len(pred)
	if n == 0 {
		return nil
	}
	k := len(pred[0])

	distances := make([][]float64, k)
	for ki := range distances {
		distances[ki] = make([]float64, n)
		for ni := range distances[ki] {
			distances[ki][ni] = -1
		}
	}

	for ni := 0; ni < n; ni++ {
		if norm[ni][0] <= 0 || norm[ni][1] <= 0 {
			continue
		}
		for ki := 0; ki < k; ki++ {
			if !mask[ni][ki] {
				continue
			}
			dx := (pred[ni][ki][0] - gt[ni][ki][0]) / norm[ni][0]
			dy := (pred[ni][ki][1] - gt[ni][ki][1]) / norm[ni][1]
			distances[ki][ni] = math.Hypot(dx, dy)
		}
	}
	return distances
}

// distanceAccuracy returns the fraction of valid distances below thr,
// or -1 when no distance is valid.
func distanceAccuracy(distances []float64, thr float64) float64 {
	valid, hit := 0, 0
	for _, d := range distances {
		if d == -1 {
			continue
		}
		valid++
		if d < thr {
			hit++
		}
	}
	if valid == 0 {
		return -1
	}
	return float64(hit) / float64(valid)
}

// PCKAccuracy computes the Percentage of Correct Keypoints at threshold thr.
// Distances are normalized per instance by norm before thresholding.
//
// Returns per-keypoint accuracies (-1 where a keypoint has no valid
// instance), the accuracy averaged over valid keypoints, and the number of
// valid keypoints.
func PCKAccuracy(pred, gt [][]Point, mask [][]bool, thr float64, norm []Point) (acc []float64, avgAcc float64, cnt int) {
	distances := calcDistances(pred, gt, mask, norm)

	acc = make([]float64, len(distances))
	sum := 0.0
	for ki, d := range distances {
		acc[ki] = distanceAccuracy(d, thr)
		if acc[ki] >= 0 {
			sum += acc[ki]
			cnt++
		}
	}
	if cnt > 0 {
		avgAcc = sum / float64(cnt)
	}
	return acc, avgAcc, cnt
}

// AUC computes the area under the PCK curve, sweeping the threshold over
// numSteps evenly spaced values in [0, 1) with a fixed pixel normalization
// factor (30 px is the conventional default).
func AUC(pred, gt [][]Point, mask [][]bool, normFactor float64, numSteps int) float64 {
	norm := make([]Point, len(pred))
	for i := range norm {
		norm[i] = Point{normFactor, normFactor}
	}

	auc := 0.0
	for i := 0; i < numSteps; i++ {
		thr := float64(i) / float64(numSteps)
		_, avgAcc, _ := PCKAccuracy(pred, gt, mask, thr, norm)
		auc += avgAcc / float64(numSteps)
	}
	return auc
}

// EPE computes the mean end-point error in pixels over valid keypoints.
func EPE(pred, gt [][]Point, mask [][]bool) float64 {
	norm := make([]Point, len(pred))
	for i := range norm {
		norm[i] = Point{1, 1}
	}
	return meanValidDistance(calcDistances(pred, gt, mask, norm))
}

// NME computes the normalized mean error over valid keypoints, with a
// per-instance normalization factor (e.g. box size or inter-ocular
// distance).
func NME(pred, gt [][]Point, mask [][]bool, norm []Point) float64 {
	return meanValidDistance(calcDistances(pred, gt, mask, norm))
}

func meanValidDistance(distances [][]float64) float64 {
	sum, valid := 0.0, 0
	for _, row := range distances {
		for _, d := range row {
			if d == -1 {
				continue
			}
			sum += d
			valid++
		}
	}
	if valid == 0 {
		return 0
	}
	return sum / float64(valid)
}
