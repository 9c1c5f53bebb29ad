package handlers

import (
	"net/http"

	"github.com/evora/mediagen-back/internal/domain"
)

type durationRangeView struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

type modelView struct {
	ModelKey     string                  `json:"model_key"`
	Modes        []domain.GenerationMode `json:"modes"`
	AspectRatios []string                `json:"aspect_ratios"`
	Duration     *durationRangeView      `json:"duration,omitempty"`
	MaxSamples   int                     `json:"max_samples"`
}

// ListModels enumerates registry entries so the UI can populate its pickers.
func (api *API) ListModels(w http.ResponseWriter, _ *http.Request) {
	capabilities := api.generations.Models()
	models := make([]modelView, 0, len(capabilities))
	for _, capability := range capabilities {
		view := modelView{
			ModelKey:     capability.ModelKey,
			Modes:        capability.SupportedModes,
			AspectRatios: capability.SupportedAspectRatios,
			MaxSamples:   capability.MaxSamples,
		}
		if capability.DurationRange != nil {
			view.Duration = &durationRangeView{
				Min:     capability.DurationRange.Min,
				Max:     capability.DurationRange.Max,
				Default: capability.DurationRange.Default,
			}
		}
		models = append(models, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}
