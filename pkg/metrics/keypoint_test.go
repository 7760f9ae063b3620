package metrics

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < epsilon }

func TestPCKAccuracy(t *testing.T) {
	// One instance, two keypoints: first exact, second off by (6, 8)
	// with norm 10 -> normalized distance 1.0.
	pred := [][]Point{{{100, 100}, {56, 58}}}
	gt := [][]Point{{{100, 100}, {50, 50}}}
	mask := [][]bool{{true, true}}
	norm := []Point{{10, 10}}

	acc, avgAcc, cnt := PCKAccuracy(pred, gt, mask, 0.5, norm)
	if cnt != 2 {
		t.Fatalf("cnt = %d, want 2", cnt)
	}
	if !almostEqual(acc[0], 1) || !almostEqual(acc[1], 0) {
		t.Errorf("acc = %v, want [1 0]", acc)
	}
	if !almostEqual(avgAcc, 0.5) {
		t.Errorf("avgAcc = %v, want 0.5", avgAcc)
	}

	// Raising the threshold above 1.0 accepts the second keypoint too.
	_, avgAcc, _ = PCKAccuracy(pred, gt, mask, 1.1, norm)
	if !almostEqual(avgAcc, 1) {
		t.Errorf("avgAcc@1.1 = %v, want 1", avgAcc)
	}
}

func TestPCKAccuracyMasked(t *testing.T) {
	pred := [][]Point{{{0, 0}, {1, 1}}}
	gt := [][]Point{{{0, 0}, {500, 500}}}
	mask := [][]bool{{true, false}}
	norm := []Point{{10, 10}}

	acc, avgAcc, cnt := PCKAccuracy(pred, gt, mask, 0.5, norm)
	if cnt != 1 {
		t.Fatalf("cnt = %d, want 1", cnt)
	}
	if !almostEqual(acc[1], -1) {
		t.Errorf("masked keypoint acc = %v, want -1", acc[1])
	}
	if !almostEqual(avgAcc, 1) {
		t.Errorf("avgAcc = %v, want 1", avgAcc)
	}
}

func TestPCKAccuracyInvalidNorm(t *testing.T) {
	pred := [][]Point{{{0, 0}}}
	gt := [][]Point{{{0, 0}}}
	mask := [][]bool{{true}}
	norm := []Point{{0, 0}}

	_, avgAcc, cnt := PCKAccuracy(pred, gt, mask, 0.5, norm)
	if cnt != 0 || avgAcc != 0 {
		t.Errorf("cnt = %d, avgAcc = %v, want 0, 0", cnt, avgAcc)
	}
}

func TestEPE(t *testing.T) {
	// Two instances, one keypoint each: errors 5 px and 0 px.
	pred := [][]Point{{{3, 4}}, {{10, 10}}}
	gt := [][]Point{{{0, 0}}, {{10, 10}}}
	mask := [][]bool{{true}, {true}}

	if got := EPE(pred, gt, mask); !almostEqual(got, 2.5) {
		t.Errorf("EPE = %v, want 2.5", got)
	}
}

func TestAUCPerfectPrediction(t *testing.T) {
	pred := [][]Point{{{5, 5}, {7, 7}}}
	gt := [][]Point{{{5, 5}, {7, 7}}}
	mask := [][]bool{{true, true}}

	// Threshold sweep includes thr=0 where the strict comparison fails,
	// so a perfect prediction scores (n-1)/n.
	if got := AUC(pred, gt, mask, 30, 20); !almostEqual(got, 0.95) {
		t.Errorf("AUC = %v, want 0.95", got)
	}
}

func TestNME(t *testing.T) {
	pred := [][]Point{{{6, 8}}}
	gt := [][]Point{{{0, 0}}}
	mask := [][]bool{{true}}
	norm := []Point{{20, 20}}

	if got := NME(pred, gt, mask, norm); !almostEqual(got, 0.5) {
		t.Errorf("NME = %v, want 0.5", got)
	}
}

func TestCollectorPCK(t *testing.T) {
	var c Collector
	inst := Instance{
		Pred:     []Point{{10, 10}, {20, 20}},
		GT:       []Point{{10, 10}, {26, 28}},
		Visible:  []bool{true, true},
		BBoxSize: 100,
	}
	if err := c.Add(inst); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	// distances: 0 and 10/100 = 0.1
	_, avgAcc, err := c.PCK(0.05, NormBBox)
	if err != nil {
		t.Fatalf("PCK() error: %v", err)
	}
	if !almostEqual(avgAcc, 0.5) {
		t.Errorf("avgAcc = %v, want 0.5", avgAcc)
	}

	_, avgAcc, err = c.PCK(0.2, NormBBox)
	if err != nil {
		t.Fatalf("PCK() error: %v", err)
	}
	if !almostEqual(avgAcc, 1) {
		t.Errorf("avgAcc@0.2 = %v, want 1", avgAcc)
	}
}

func TestCollectorValidation(t *testing.T) {
	var c Collector

	if _, _, err := c.PCK(0.05, NormBBox); !errors.Is(err, ErrNoResults) {
		t.Errorf("PCK on empty collector: err = %v, want ErrNoResults", err)
	}
	if _, err := c.EPE(); !errors.Is(err, ErrNoResults) {
		t.Errorf("EPE on empty collector: err = %v, want ErrNoResults", err)
	}

	err := c.Add(Instance{
		Pred:    []Point{{0, 0}},
		GT:      []Point{{0, 0}, {1, 1}},
		Visible: []bool{true},
	})
	if err == nil {
		t.Error("Add() accepted mismatched keypoint counts")
	}

	if err := c.Add(Instance{Pred: []Point{{0, 0}}, GT: []Point{{0, 0}}, Visible: []bool{true}}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	err = c.Add(Instance{
		Pred:    []Point{{0, 0}, {1, 1}},
		GT:      []Point{{0, 0}, {1, 1}},
		Visible: []bool{true, true},
	})
	if err == nil {
		t.Error("Add() accepted inconsistent keypoint count across instances")
	}
}

func TestCollectorNME(t *testing.T) {
	var c Collector
	// Inter-ocular distance (keypoints 0 and 1) = 10; keypoint 2 error = 5.
	err := c.Add(Instance{
		Pred:    []Point{{0, 0}, {10, 0}, {8, 4}},
		GT:      []Point{{0, 0}, {10, 0}, {5, 0}},
		Visible: []bool{false, false, true},
	})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	got, err := c.NME(0, 1)
	if err != nil {
		t.Fatalf("NME() error: %v", err)
	}
	if !almostEqual(got, 0.5) {
		t.Errorf("NME = %v, want 0.5", got)
	}

	if _, err := c.NME(0, 7); err == nil {
		t.Error("NME() accepted out-of-range keypoint index")
	}
}
