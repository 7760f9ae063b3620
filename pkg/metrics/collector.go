package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// NormItem selects the per-instance normalization factor for PCK.
type NormItem string

const (
	// NormBBox normalizes by the longer side of the ground-truth box (PCK).
	NormBBox NormItem = "bbox"
	// NormHead normalizes by the annotated head size (PCKh).
	NormHead NormItem = "head"
	// NormTorso normalizes by the torso keypoint distance (tPCK).
	NormTorso NormItem = "torso"
)

// Torso size is the distance between these keypoint indices (JHMDB layout).
const (
	torsoKeypointA = 4
	torsoKeypointB = 5
)

// DefaultKeypointIndices maps dataset names to the keypoint pair used as
// the NME normalization distance (typically outer eye corners).
var DefaultKeypointIndices = map[string][2]int{
	"horse10":             {0, 1},
	"300w":                {36, 45},
	"coco_wholebody_face": {36, 45},
	"cofw":                {8, 9},
	"wflw":                {60, 72},
}

// ErrNoResults is returned when a metric is computed over an empty collector.
var ErrNoResults = errors.New("metrics: no results collected")

// Instance holds one evaluated pose: predicted and ground-truth keypoints,
// a visibility mask, and whichever normalization sizes the dataset provides.
type Instance struct {
	Pred    []Point
	GT      []Point
	Visible []bool

	// BBoxSize is the longer side of the ground-truth bounding box.
	BBoxSize float64
	// HeadSize is the annotated head segment length (PCKh datasets).
	HeadSize float64
}

// Collector accumulates instances and computes metrics over the batch.
type Collector struct {
	instances []Instance
}

// Add validates and stores one instance.
func (c *Collector) Add(inst Instance) error {
	k := len(inst.Pred)
	if k == 0 {
		return errors.New("metrics: instance has no keypoints")
	}
	if len(inst.GT) != k || len(inst.Visible) != k {
		return fmt.Errorf("metrics: keypoint count mismatch: pred=%d gt=%d visible=%d",
			k, len(inst.GT), len(inst.Visible))
	}
	if len(c.instances) > 0 && len(c.instances[0].Pred) != k {
		return fmt.Errorf("metrics: instance has %d keypoints, collector has %d",
			k, len(c.instances[0].Pred))
	}
	c.instances = append(c.instances, inst)
	return nil
}

// Len returns the number of collected instances.
func (c *Collector) Len() int { return len(c.instances) }

func (c *Collector) batch() (pred, gt [][]Point, mask [][]bool) {
	for _, inst := range c.instances {
		pred = append(pred, inst.Pred)
		gt = append(gt, inst.GT)
		mask = append(mask, inst.Visible)
	}
	return pred, gt, mask
}

// PCK computes PCK accuracy at thr, normalized per normItem.
// Returns per-keypoint accuracies and the averaged accuracy.
func (c *Collector) PCK(thr float64, normItem NormItem) (acc []float64, avgAcc float64, err error) {
	if len(c.instances) == 0 {
		return nil, 0, ErrNoResults
	}

	norm := make([]Point, len(c.instances))
	for i, inst := range c.instances {
		var size float64
		switch normItem {
		case NormBBox:
			size = inst.BBoxSize
		case NormHead:
			size = inst.HeadSize
		case NormTorso:
			size = c.torsoSize(inst)
		default:
			return nil, 0, fmt.Errorf("metrics: unknown norm item %q", normItem)
		}
		if size <= 0 {
			return nil, 0, fmt.Errorf("metrics: instance %d has no %s size", i, normItem)
		}
		norm[i] = Point{size, size}
	}

	pred, gt, mask := c.batch()
	acc, avgAcc, _ = PCKAccuracy(pred, gt, mask, thr, norm)
	return acc, avgAcc, nil
}

// torsoSize measures the ground-truth torso keypoint distance, falling back
// to the predicted torso when the annotation is degenerate (< 1 px).
func (c *Collector) torsoSize(inst Instance) float64 {
	size := pointDistance(inst.GT[torsoKeypointA], inst.GT[torsoKeypointB])
	if size < 1 {
		size = pointDistance(inst.Pred[torsoKeypointA], inst.Pred[torsoKeypointB])
		logrus.Warn("ground truth torso size < 1, using predicted torso size instead")
	}
	return size
}

// AUC computes the area under the PCK curve with a fixed pixel
// normalization factor.
func (c *Collector) AUC(normFactor float64, numSteps int) (float64, error) {
	if len(c.instances) == 0 {
		return 0, ErrNoResults
	}
	pred, gt, mask := c.batch()
	return AUC(pred, gt, mask, normFactor, numSteps), nil
}

// EPE computes the mean end-point error over the batch.
func (c *Collector) EPE() (float64, error) {
	if len(c.instances) == 0 {
		return 0, ErrNoResults
	}
	pred, gt, mask := c.batch()
	return EPE(pred, gt, mask), nil
}

// NME computes the normalized mean error, using the ground-truth distance
// between two keypoints (typically the outer eye corners) as the
// per-instance normalization factor.
func (c *Collector) NME(idx1, idx2 int) (float64, error) {
	if len(c.instances) == 0 {
		return 0, ErrNoResults
	}
	k := len(c.instances[0].Pred)
	if idx1 < 0 || idx1 >= k || idx2 < 0 || idx2 >= k {
		return 0, fmt.Errorf("metrics: keypoint indices (%d, %d) out of range for %d keypoints", idx1, idx2, k)
	}

	norm := make([]Point, len(c.instances))
	for i, inst := range c.instances {
		d := pointDistance(inst.GT[idx1], inst.GT[idx2])
		norm[i] = Point{d, d}
	}
	pred, gt, mask := c.batch()
	return NME(pred, gt, mask, norm), nil
}

// NMEBySize computes NME using a caller-provided per-instance size, e.g.
// the box size for datasets without a canonical keypoint pair.
func (c *Collector) NMEBySize(sizeOf func(Instance) float64) (float64, error) {
	if len(c.instances) == 0 {
		return 0, ErrNoResults
	}
	norm := make([]Point, len(c.instances))
	for i, inst := range c.instances {
		d := sizeOf(inst)
		norm[i] = Point{d, d}
	}
	pred, gt, mask := c.batch()
	return NME(pred, gt, mask, norm), nil
}

func pointDistance(a, b Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}
