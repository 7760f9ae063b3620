package utils

import (
	"os"
	"strings"
)

// ReadNames loads class names from a text file, one name per line.
// Blank lines are skipped. A file holding a class-name map in the form
// "{0: 'person', 1: 'bicycle'}", as dumped by the export tooling, is
// parsed through MetadataToNames instead.
func ReadNames(file string) ([]string, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(string(b))
	if strings.HasPrefix(content, "{") && strings.HasSuffix(content, "}") {
		return MetadataToNames(content), nil
	}

	names := []string{}
	for _, v := range strings.Split(content, "\n") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		names = append(names, v)
	}
	return names, nil
}

// MetadataToNames parses a class-name map in ONNX-metadata form,
// e.g. "{0: 'person', 1: 'bicycle'}", into an ordered name list.
func MetadataToNames(meta string) []string {
	names := []string{}
	entries := strings.Split(strings.TrimSuffix(strings.TrimPrefix(meta, "{"), "}"), ",")
	for _, entry := range entries {
		kv := strings.Split(entry, ":")
		if len(kv) > 1 {
			names = append(names, strings.Trim(strings.TrimSpace(kv[1]), `'`))
		}
	}
	return names
}
