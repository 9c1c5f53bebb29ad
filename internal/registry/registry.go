package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/evora/mediagen-back/internal/domain"
)

var ErrNotFound = errors.New("model not found")

// DurationRange bounds the length of time-based media a model produces.
// Models emitting static media carry no range.
type DurationRange struct {
	Min     int
	Max     int
	Default int
}

// ModelCapability describes what one model/version accepts. Descriptors are
// validated when the registry is built and never mutated afterwards.
type ModelCapability struct {
	ModelKey              string
	VendorModelID         string
	SupportedModes        []domain.GenerationMode
	SupportedAspectRatios []string
	DurationRange         *DurationRange
	MaxSamples            int
}

// SupportsMode reports whether mode is accepted by this model.
func (c ModelCapability) SupportsMode(mode domain.GenerationMode) bool {
	for _, m := range c.SupportedModes {
		if m == mode {
			return true
		}
	}
	return false
}

// SupportsAspectRatio reports whether ratio is accepted by this model.
func (c ModelCapability) SupportsAspectRatio(ratio string) bool {
	for _, r := range c.SupportedAspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}

// ReferenceMediaCount returns how many reference media items mode requires.
func ReferenceMediaCount(mode domain.GenerationMode) int {
	switch mode {
	case domain.ModeImageToMedia:
		return 1
	case domain.ModeInterpolation:
		return 2
	default:
		return 0
	}
}

// Registry is the read-only catalog of model capabilities. It is built once
// at process start and safe for concurrent lookups without synchronization.
type Registry struct {
	models map[string]ModelCapability
	keys   []string
}

// New builds a registry from the given descriptors, rejecting any descriptor
// that is internally inconsistent. Adding a model is purely additive: no
// other component changes when a new descriptor is registered.
func New(capabilities ...ModelCapability) (*Registry, error) {
	registry := &Registry{
		models: make(map[string]ModelCapability, len(capabilities)),
		keys:   make([]string, 0, len(capabilities)),
	}

	for _, capability := range capabilities {
		if err := validateCapability(capability); err != nil {
			return nil, fmt.Errorf("model %q: %w", capability.ModelKey, err)
		}
		if _, exists := registry.models[capability.ModelKey]; exists {
			return nil, fmt.Errorf("model %q: duplicate model key", capability.ModelKey)
		}
		registry.models[capability.ModelKey] = capability
		registry.keys = append(registry.keys, capability.ModelKey)
	}

	sort.Strings(registry.keys)
	return registry, nil
}

// Lookup resolves a model key to its capability descriptor. The returned
// value is a copy; callers cannot alter registered capabilities.
func (r *Registry) Lookup(modelKey string) (ModelCapability, error) {
	capability, ok := r.models[modelKey]
	if !ok {
		return ModelCapability{}, ErrNotFound
	}
	return cloneCapability(capability), nil
}

// Keys returns every registered model key in sorted order, for UI population.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// All returns every capability descriptor in key order.
func (r *Registry) All() []ModelCapability {
	capabilities := make([]ModelCapability, 0, len(r.keys))
	for _, key := range r.keys {
		capabilities = append(capabilities, cloneCapability(r.models[key]))
	}
	return capabilities
}

func validateCapability(capability ModelCapability) error {
	if capability.ModelKey == "" {
		return errors.New("model key is required")
	}
	if capability.VendorModelID == "" {
		return errors.New("vendor model id is required")
	}
	if len(capability.SupportedModes) == 0 {
		return errors.New("at least one generation mode is required")
	}
	for _, mode := range capability.SupportedModes {
		switch mode {
		case domain.ModeTextToMedia, domain.ModeImageToMedia, domain.ModeInterpolation:
		default:
			return fmt.Errorf("unknown generation mode %q", mode)
		}
	}
	if len(capability.SupportedAspectRatios) == 0 {
		return errors.New("at least one aspect ratio is required")
	}
	for _, ratio := range capability.SupportedAspectRatios {
		if ratio == "" {
			return errors.New("empty aspect ratio")
		}
	}
	if capability.MaxSamples <= 0 {
		return errors.New("max samples must be positive")
	}
	if duration := capability.DurationRange; duration != nil {
		if duration.Min <= 0 {
			return errors.New("duration min must be positive")
		}
		if duration.Min > duration.Default || duration.Default > duration.Max {
			return errors.New("duration range must satisfy min <= default <= max")
		}
	}
	return nil
}

func cloneCapability(capability ModelCapability) ModelCapability {
	clone := capability
	clone.SupportedModes = append([]domain.GenerationMode(nil), capability.SupportedModes...)
	clone.SupportedAspectRatios = append([]string(nil), capability.SupportedAspectRatios...)
	if capability.DurationRange != nil {
		duration := *capability.DurationRange
		clone.DurationRange = &duration
	}
	return clone
}

// BuiltIn returns the registry of models this deployment supports. Static by
// design: capabilities change with a release, not at runtime.
func BuiltIn() (*Registry, error) {
	return New(
		ModelCapability{
			ModelKey:      "veo-2",
			VendorModelID: "veo-2.0-generate-001",
			SupportedModes: []domain.GenerationMode{
				domain.ModeTextToMedia,
				domain.ModeImageToMedia,
				domain.ModeInterpolation,
			},
			SupportedAspectRatios: []string{"16:9", "9:16"},
			DurationRange:         &DurationRange{Min: 5, Max: 8, Default: 8},
			MaxSamples:            4,
		},
		ModelCapability{
			ModelKey:      "veo-3",
			VendorModelID: "veo-3.0-generate-001",
			SupportedModes: []domain.GenerationMode{
				domain.ModeTextToMedia,
				domain.ModeImageToMedia,
			},
			SupportedAspectRatios: []string{"16:9", "9:16"},
			DurationRange:         &DurationRange{Min: 4, Max: 8, Default: 8},
			MaxSamples:            2,
		},
		ModelCapability{
			ModelKey:      "imagen-3",
			VendorModelID: "imagen-3.0-generate-002",
			SupportedModes: []domain.GenerationMode{
				domain.ModeTextToMedia,
			},
			SupportedAspectRatios: []string{"1:1", "3:4", "4:3", "9:16", "16:9"},
			MaxSamples:            4,
		},
	)
}
