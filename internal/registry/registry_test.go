package registry

import (
	"errors"
	"testing"

	"github.com/evora/mediagen-back/internal/domain"
)

func validCapability() ModelCapability {
	return ModelCapability{
		ModelKey:              "v1",
		VendorModelID:         "vendor-v1",
		SupportedModes:        []domain.GenerationMode{domain.ModeTextToMedia},
		SupportedAspectRatios: []string{"16:9"},
		DurationRange:         &DurationRange{Min: 4, Max: 8, Default: 6},
		MaxSamples:            4,
	}
}

func TestNewRejectsInvalidCapabilities(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ModelCapability)
	}{
		{"missing model key", func(c *ModelCapability) { c.ModelKey = "" }},
		{"missing vendor id", func(c *ModelCapability) { c.VendorModelID = "" }},
		{"no modes", func(c *ModelCapability) { c.SupportedModes = nil }},
		{"unknown mode", func(c *ModelCapability) {
			c.SupportedModes = []domain.GenerationMode{"teleport"}
		}},
		{"no aspect ratios", func(c *ModelCapability) { c.SupportedAspectRatios = nil }},
		{"zero max samples", func(c *ModelCapability) { c.MaxSamples = 0 }},
		{"default above max", func(c *ModelCapability) {
			c.DurationRange = &DurationRange{Min: 4, Max: 8, Default: 9}
		}},
		{"default below min", func(c *ModelCapability) {
			c.DurationRange = &DurationRange{Min: 4, Max: 8, Default: 3}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			capability := validCapability()
			tc.mutate(&capability)
			if _, err := New(capability); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestNewRejectsDuplicateKeys(t *testing.T) {
	if _, err := New(validCapability(), validCapability()); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLookupUnknownModel(t *testing.T) {
	reg, err := New(validCapability())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := reg.Lookup("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	reg, err := New(validCapability())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := reg.Lookup("v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.SupportedAspectRatios[0] = "mutated"
	first.DurationRange.Max = 999

	second, err := reg.Lookup("v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.SupportedAspectRatios[0] != "16:9" {
		t.Fatalf("registry aspect ratios mutated through lookup result: %v", second.SupportedAspectRatios)
	}
	if second.DurationRange.Max != 8 {
		t.Fatalf("registry duration range mutated through lookup result: %+v", second.DurationRange)
	}
}

func TestKeysAreSorted(t *testing.T) {
	b := validCapability()
	b.ModelKey = "b-model"
	a := validCapability()
	a.ModelKey = "a-model"

	reg, err := New(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := reg.Keys()
	if len(keys) != 2 || keys[0] != "a-model" || keys[1] != "b-model" {
		t.Fatalf("expected sorted keys, got %v", keys)
	}
}

func TestSupportsModeAndAspectRatio(t *testing.T) {
	capability := validCapability()

	if !capability.SupportsMode(domain.ModeTextToMedia) {
		t.Fatal("expected text-to-media to be supported")
	}
	if capability.SupportsMode(domain.ModeInterpolation) {
		t.Fatal("expected interpolation to be unsupported")
	}
	if !capability.SupportsAspectRatio("16:9") {
		t.Fatal("expected 16:9 to be supported")
	}
	if capability.SupportsAspectRatio("1:1") {
		t.Fatal("expected 1:1 to be unsupported")
	}
}

func TestReferenceMediaCount(t *testing.T) {
	if got := ReferenceMediaCount(domain.ModeTextToMedia); got != 0 {
		t.Fatalf("expected 0 for text-to-media, got %d", got)
	}
	if got := ReferenceMediaCount(domain.ModeImageToMedia); got != 1 {
		t.Fatalf("expected 1 for image-to-media, got %d", got)
	}
	if got := ReferenceMediaCount(domain.ModeInterpolation); got != 2 {
		t.Fatalf("expected 2 for interpolation, got %d", got)
	}
}

func TestBuiltInRegistryIsValid(t *testing.T) {
	reg, err := BuiltIn()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	imagen, err := reg.Lookup("imagen-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imagen.DurationRange != nil {
		t.Fatal("expected static model to carry no duration range")
	}

	veo, err := reg.Lookup("veo-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if veo.DurationRange == nil || veo.DurationRange.Default != 8 {
		t.Fatalf("unexpected veo-2 duration range: %+v", veo.DurationRange)
	}
}
