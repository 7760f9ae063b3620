package rtmdet

import (
	"image"
	"testing"
)

func TestDecodeDets(t *testing.T) {
	// Two detections in 320x320 model space, source image 640x640
	// (factors 2.0): one confident person, one below threshold.
	dets := []float32{
		10, 20, 110, 220, 0.9,
		50, 50, 60, 60, 0.3,
	}
	labels := []int64{0, 0}

	boxes, scores, classes := decodeDets(dets, labels, 0.65, 2, 2, 640, 640)
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	want := image.Rect(20, 40, 220, 440)
	if boxes[0] != want {
		t.Errorf("box = %v, want %v", boxes[0], want)
	}
	if scores[0] != 0.9 {
		t.Errorf("score = %v, want 0.9", scores[0])
	}
	if classes[0] != 0 {
		t.Errorf("class = %d, want 0", classes[0])
	}
}

func TestDecodeDetsClampsToImage(t *testing.T) {
	dets := []float32{-40, -10, 700, 500, 0.8}
	labels := []int64{2}

	boxes, _, classes := decodeDets(dets, labels, 0.5, 1, 1, 640, 480)
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	want := image.Rect(0, 0, 640, 480)
	if boxes[0] != want {
		t.Errorf("box = %v, want %v", boxes[0], want)
	}
	if classes[0] != 2 {
		t.Errorf("class = %d, want 2", classes[0])
	}
}

func TestDecodeDetsDropsDegenerateBoxes(t *testing.T) {
	// Entirely outside the image: clamps to a zero-area box on the edge.
	dets := []float32{700, 700, 750, 750, 0.9}
	labels := []int64{0}

	boxes, _, _ := decodeDets(dets, labels, 0.5, 1, 1, 640, 480)
	if len(boxes) != 0 {
		t.Errorf("got %d boxes, want 0", len(boxes))
	}
}

func TestDecodeDetsEmptyAndMismatched(t *testing.T) {
	if boxes, _, _ := decodeDets(nil, nil, 0.5, 1, 1, 640, 480); len(boxes) != 0 {
		t.Errorf("nil input: got %d boxes, want 0", len(boxes))
	}

	// Truncated labels limit how many entries are decoded.
	dets := []float32{
		10, 10, 50, 50, 0.9,
		60, 60, 90, 90, 0.9,
	}
	labels := []int64{1}
	boxes, _, classes := decodeDets(dets, labels, 0.5, 1, 1, 640, 480)
	if len(boxes) != 1 || classes[0] != 1 {
		t.Errorf("truncated labels: got %d boxes (classes %v), want 1 box of class 1", len(boxes), classes)
	}
}
