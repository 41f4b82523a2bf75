package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

var settingsExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// LoadSettings parses one asset settings record. Every threshold key must be
// present with a numeric value; a missing id falls back to the given default.
func LoadSettings(data []byte, defaultID string) (domain.AssetSettings, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.AssetSettings{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidSettings, defaultID, err)
	}
	for _, key := range domain.SettingsFields {
		v, ok := raw[key]
		if !ok {
			return domain.AssetSettings{}, fmt.Errorf("%w: %s: missing %s", domain.ErrInvalidSettings, defaultID, key)
		}
		switch v.(type) {
		case int, int64, uint64, float64:
		case nil:
			return domain.AssetSettings{}, fmt.Errorf("%w: %s: %s has no value", domain.ErrInvalidSettings, defaultID, key)
		default:
			return domain.AssetSettings{}, fmt.Errorf("%w: %s: %s is not a number", domain.ErrInvalidSettings, defaultID, key)
		}
	}

	var s domain.AssetSettings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return domain.AssetSettings{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidSettings, defaultID, err)
	}
	if s.ID == "" {
		s.ID = defaultID
	}
	if err := s.Check(); err != nil {
		return domain.AssetSettings{}, err
	}
	return s, nil
}

// LoadSettingsDir reads every .yaml, .yml or .json file in dir as the
// settings of the asset named by the file stem, sorted by file name.
func LoadSettingsDir(dir string) ([]domain.AssetSettings, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !settingsExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	out := make([]domain.AssetSettings, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		s, err := LoadSettings(data, stem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, ok := seen[s.ID]; ok {
			return nil, fmt.Errorf("%w: asset %s defined in both %s and %s", domain.ErrInvalidSettings, s.ID, prev, name)
		}
		seen[s.ID] = name
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no asset settings found in %s", dir)
	}
	return out, nil
}
