package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMetadataToNames(t *testing.T) {
	tests := []struct {
		name string
		meta string
		want []string
	}{
		{
			name: "two classes",
			meta: "{0: 'person', 1: 'bicycle'}",
			want: []string{"person", "bicycle"},
		},
		{
			name: "single class",
			meta: "{0: 'person'}",
			want: []string{"person"},
		},
		{
			name: "empty metadata",
			meta: "{}",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MetadataToNames(tt.meta)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MetadataToNames(%q) = %v, want %v", tt.meta, got, tt.want)
			}
		})
	}
}

func TestReadNames(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(file, []byte("person\n\ncat\n dog \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := ReadNames(file)
	if err != nil {
		t.Fatalf("ReadNames() error: %v", err)
	}
	want := []string{"person", "cat", "dog"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("ReadNames() = %v, want %v", names, want)
	}

	if _, err := ReadNames(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("ReadNames() expected error for missing file")
	}
}

func TestReadNamesMetadataMap(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(file, []byte("{0: 'person', 1: 'bicycle', 2: 'car'}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := ReadNames(file)
	if err != nil {
		t.Fatalf("ReadNames() error: %v", err)
	}
	want := []string{"person", "bicycle", "car"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("ReadNames() = %v, want %v", names, want)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		pt   float32
		max  int
		want int
	}{
		{-3.2, 640, 0},
		{0, 640, 0},
		{12.6, 640, 13},
		{639.5, 640, 640},
		{712.1, 640, 640},
	}

	for _, tt := range tests {
		if got := Clamp(tt.pt, tt.max); got != tt.want {
			t.Errorf("Clamp(%v, %d) = %d, want %d", tt.pt, tt.max, got, tt.want)
		}
	}
}
