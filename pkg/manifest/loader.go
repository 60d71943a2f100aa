package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a manifest from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json for
// JSON. Unrecognized extensions try YAML first, then JSON. After parsing,
// defaults are applied and the manifest is validated.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes. The path
// parameter is used for error messages and format detection.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	m, err := parseManifest(data, path)
	if err != nil {
		return nil, err
	}

	m.ApplyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseManifest(data []byte, path string) (*Manifest, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		if m, err := parseYAML(data); err == nil {
			return m, nil
		}
		return parseJSON(data)
	}
}

func parseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	// Unknown keys are a manifest typo, not something to ignore silently.
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest YAML: %w", err)
	}
	return &m, nil
}

func parseJSON(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	return &m, nil
}

// Validate checks manifest invariants after defaults have been applied.
func (m *Manifest) Validate() error {
	if m.Version != "1.0" {
		return fmt.Errorf("unsupported manifest version %q (want \"1.0\")", m.Version)
	}
	if strings.TrimSpace(m.Sources.JobsRoot) == "" {
		return errors.New("sources.jobs_root is required")
	}
	if m.Sheet.DeleteBatchSize < 1 {
		return fmt.Errorf("sheet.delete_batch_size must be >= 1, got %d", m.Sheet.DeleteBatchSize)
	}
	if m.Sheet.InsertBatchSize < 1 {
		return fmt.Errorf("sheet.insert_batch_size must be >= 1, got %d", m.Sheet.InsertBatchSize)
	}
	if m.Sheet.DesignatorCap < 1 {
		return fmt.Errorf("sheet.designator_cap must be >= 1, got %d", m.Sheet.DesignatorCap)
	}
	if m.Policy.OrderNoWidth < 1 {
		return fmt.Errorf("policy.order_no_width must be >= 1, got %d", m.Policy.OrderNoWidth)
	}
	if _, ok := m.Sheet.ColumnMapping["WO#"]; !ok {
		return errors.New("sheet.column_mapping must map \"WO#\"")
	}
	return nil
}
