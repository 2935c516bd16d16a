package config

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

const (
	DefaultPreset = "default"
	HighPreset    = "high"
	RobustPreset  = "robust"
	FastPreset    = "fast"
)

// Preset is a named bundle of NodeODM processing options.
// Option names follow https://docs.opendronemap.org/arguments/.
type Preset struct {
	Name    string
	Options map[string]any
}

// Presets maps a preset name to its options.
type Presets map[string]map[string]any

func DefaultPresets() Presets {
	return Presets{
		DefaultPreset: {
			"feature-quality":     "high",
			"min-num-features":    10000,
			"matcher-neighbors":   8,
			"matcher-distance":    3,
			"feature-type":        "sift",
			"optimize-disk-space": true,
			"pc-quality":          "high",
			"pc-filter":           2.5,
			"depthmap-resolution": 640,
			"dem-resolution":      "2",
			"orthophoto-cutline":  true,
			"use-3dmesh":          true,
			"cog":                 true,
			"auto-boundary":       true,
			"dsm":                 false,
			"dtm":                 false,
			"skip-3dmodel":        true,
			"skip-report":         true,
			"pc-classify":         false,
		},
		HighPreset: {
			"feature-quality":     "high",
			"min-num-features":    16000,
			"matcher-neighbors":   10,
			"matcher-distance":    3,
			"feature-type":        "sift",
			"optimize-disk-space": false,
			"pc-quality":          "high",
			"pc-filter":           2.5,
			"depthmap-resolution": 1024,
			"dem-resolution":      "1",
			"orthophoto-cutline":  true,
			"use-3dmesh":          true,
			"cog":                 true,
			"auto-boundary":       true,
			"dsm":                 false,
			"dtm":                 false,
			"skip-3dmodel":        true,
			"skip-report":         true,
			"pc-classify":         false,
		},
		// tolerant of noisy GPS and low quality imagery
		RobustPreset: {
			"feature-quality":     "high",
			"min-num-features":    8000,
			"matcher-neighbors":   12,
			"matcher-distance":    5,
			"feature-type":        "sift",
			"optimize-disk-space": true,
			"pc-quality":          "high",
			"pc-filter":           3.0,
			"depthmap-resolution": 512,
			"dem-resolution":      "2",
			"orthophoto-cutline":  true,
			"use-3dmesh":          true,
			"cog":                 true,
			"auto-boundary":       true,
			"dsm":                 false,
			"dtm":                 false,
			"skip-3dmodel":        true,
			"skip-report":         true,
			"force-gps":           true,
			"gps-accuracy":        10,
			"pc-classify":         false,
		},
		FastPreset: {
			"feature-quality":     "medium",
			"min-num-features":    6000,
			"matcher-neighbors":   6,
			"feature-type":        "sift",
			"optimize-disk-space": true,
			"pc-quality":          "medium",
			"pc-filter":           2.5,
			"depthmap-resolution": 384,
			"dem-resolution":      "5",
			"orthophoto-cutline":  true,
			"use-3dmesh":          true,
			"cog":                 true,
			"auto-boundary":       true,
			"dsm":                 false,
			"dtm":                 false,
			"skip-3dmodel":        true,
			"skip-report":         true,
			"pc-classify":         false,
		},
	}
}

// LoadPresets returns the built-in presets merged with the ones defined in the
// YAML file at path. A preset in the file replaces the built-in preset of the
// same name. An empty path returns the built-in presets.
func LoadPresets(path string) (Presets, error) {
	presets := DefaultPresets()
	if path == "" {
		return presets, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets file %q: %w", path, err)
	}

	var overrides Presets
	if err := yaml.Unmarshal(contents, &overrides); err != nil {
		return nil, fmt.Errorf("decoding presets file %q: %w", path, err)
	}

	for name, opts := range overrides {
		if len(opts) == 0 {
			return nil, fmt.Errorf("preset %q has no options", name)
		}
		presets[name] = opts
	}

	return presets, nil
}

// Resolve returns a copy of the preset called name. Unknown names fall back to
// the default preset.
func (p Presets) Resolve(name string) Preset {
	opts, found := p[name]
	if !found {
		zap.S().Named("config").Warnw("preset not found, using default", "preset", name, "available", p.Names())
		name = DefaultPreset
		opts = p[DefaultPreset]
	}
	return Preset{Name: name, Options: maps.Clone(opts)}
}

func (p Presets) Names() []string {
	return slices.Sorted(maps.Keys(p))
}
