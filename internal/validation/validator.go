package validation

import (
	"fmt"

	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/registry"
)

type ErrorKind string

const (
	KindUnknownModel           ErrorKind = "unknown_model"
	KindUnsupportedMode        ErrorKind = "unsupported_mode"
	KindUnsupportedAspectRatio ErrorKind = "unsupported_aspect_ratio"
	KindDurationOutOfRange     ErrorKind = "duration_out_of_range"
	KindSampleCountExceeded    ErrorKind = "sample_count_exceeded"
	KindReferenceMediaMismatch ErrorKind = "reference_media_mismatch"
)

// Error is a single actionable validation failure. The validator evaluates
// every check but reports only the first failure in the documented order, so
// callers always get a deterministic message for a given request.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Validate checks a request against the registry entry for its model and
// returns a normalized snapshot with model defaults applied. It is pure: no
// network, no storage, no mutation of the input.
func Validate(request domain.GenerationRequest, reg *registry.Registry) (domain.ValidatedRequest, error) {
	capability, err := reg.Lookup(request.ModelKey)
	if err != nil {
		return domain.ValidatedRequest{}, &Error{
			Kind:    KindUnknownModel,
			Message: fmt.Sprintf("model %q is not registered", request.ModelKey),
		}
	}

	failures := make([]*Error, 0, 5)

	if !capability.SupportsMode(request.Mode) {
		failures = append(failures, &Error{
			Kind:    KindUnsupportedMode,
			Message: fmt.Sprintf("model %q does not support mode %q", request.ModelKey, request.Mode),
		})
	}

	if !capability.SupportsAspectRatio(request.AspectRatio) {
		failures = append(failures, &Error{
			Kind:    KindUnsupportedAspectRatio,
			Message: fmt.Sprintf("model %q does not support aspect ratio %q", request.ModelKey, request.AspectRatio),
		})
	}

	normalized := request
	normalized.ReferenceMedia = append([]domain.ReferenceMedia(nil), request.ReferenceMedia...)
	if request.ExtraParams != nil {
		normalized.ExtraParams = make(map[string]any, len(request.ExtraParams))
		for key, value := range request.ExtraParams {
			normalized.ExtraParams[key] = value
		}
	}

	if duration := capability.DurationRange; duration != nil {
		if request.DurationSeconds == 0 {
			normalized.DurationSeconds = duration.Default
		} else if request.DurationSeconds < duration.Min || request.DurationSeconds > duration.Max {
			failures = append(failures, &Error{
				Kind: KindDurationOutOfRange,
				Message: fmt.Sprintf(
					"duration %ds is outside the [%d, %d]s range of model %q",
					request.DurationSeconds, duration.Min, duration.Max, request.ModelKey,
				),
			})
		}
	} else {
		// Static media: a supplied duration is meaningless and dropped.
		normalized.DurationSeconds = 0
	}

	if request.SampleCount <= 0 || request.SampleCount > capability.MaxSamples {
		failures = append(failures, &Error{
			Kind: KindSampleCountExceeded,
			Message: fmt.Sprintf(
				"sample count %d must be between 1 and %d for model %q",
				request.SampleCount, capability.MaxSamples, request.ModelKey,
			),
		})
	}

	if required := registry.ReferenceMediaCount(request.Mode); len(request.ReferenceMedia) != required {
		failures = append(failures, &Error{
			Kind: KindReferenceMediaMismatch,
			Message: fmt.Sprintf(
				"mode %q requires %d reference media item(s), got %d",
				request.Mode, required, len(request.ReferenceMedia),
			),
		})
	}

	if len(failures) > 0 {
		return domain.ValidatedRequest{}, failures[0]
	}

	return domain.ValidatedRequest{GenerationRequest: normalized}, nil
}
