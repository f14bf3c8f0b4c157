package dataset

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Default returns the built-in English correction dataset
func Default() *Dataset {
	d, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded dataset is invalid: %v", err))
	}
	return d
}

// Parse decodes and validates a YAML dataset
func Parse(data []byte) (*Dataset, error) {
	var d Dataset
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}

	return &d, nil
}

// LoadFile reads a YAML dataset from disk. An empty path returns the
// built-in dataset.
func LoadFile(path string) (*Dataset, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// WriteFile writes the dataset as YAML, replacing path atomically
func WriteFile(path string, d *Dataset) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(d); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
