package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseNMEPair(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		idx1    int
		idx2    int
		wantErr bool
	}{
		{name: "dataset 300w", input: "300w", idx1: 36, idx2: 45},
		{name: "dataset wflw", input: "wflw", idx1: 60, idx2: 72},
		{name: "explicit pair", input: "1,2", idx1: 1, idx2: 2},
		{name: "pair with spaces", input: " 3 , 7 ", idx1: 3, idx2: 7},
		{name: "unknown dataset", input: "mystery", wantErr: true},
		{name: "one index", input: "5", wantErr: true},
		{name: "not a number", input: "a,b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx1, idx2, err := parseNMEPair(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseNMEPair(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseNMEPair(%q) error: %v", tt.input, err)
			}
			if idx1 != tt.idx1 || idx2 != tt.idx2 {
				t.Errorf("parseNMEPair(%q) = (%d, %d), want (%d, %d)", tt.input, idx1, idx2, tt.idx1, tt.idx2)
			}
		})
	}
}

func TestLoadInstances(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "instances.json")
	data := `[
		{"pred": [[1, 2], [3, 4]], "gt": [[1, 2], [3, 4]], "visible": [true, true], "bbox_size": 100},
		{"pred": [[5, 6], [7, 8]], "gt": [[5, 5], [7, 7]], "bbox_size": 100}
	]`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	collector, err := loadInstances(file)
	if err != nil {
		t.Fatalf("loadInstances: %v", err)
	}
	if collector.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", collector.Len())
	}

	// First instance matches exactly, second is off by 1px on both
	// keypoints. With bbox norm 100 and thr 0.2 everything passes.
	_, avgAcc, err := collector.PCK(0.2, "bbox")
	if err != nil {
		t.Fatalf("PCK: %v", err)
	}
	if avgAcc != 1.0 {
		t.Errorf("avgAcc = %v, want 1.0", avgAcc)
	}
}

func TestLoadInstancesErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := loadInstances(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte("[]"), 0o644)
	if _, err := loadInstances(empty); err == nil {
		t.Error("expected error for empty batch")
	}

	mismatch := filepath.Join(dir, "mismatch.json")
	os.WriteFile(mismatch, []byte(`[{"pred": [[1, 2]], "gt": [], "visible": []}]`), 0o644)
	if _, err := loadInstances(mismatch); err == nil {
		t.Error("expected error for keypoint count mismatch")
	}
}
