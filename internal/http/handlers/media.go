package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/http/middleware"
	"github.com/evora/mediagen-back/internal/service"
)

type mediaItem struct {
	MediaID     string    `json:"media_id"`
	SourceJobID string    `json:"source_job_id"`
	ModelKey    string    `json:"model_key"`
	StorageRef  string    `json:"storage_ref"`
	AssetCount  int       `json:"asset_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListMedia returns the caller's own records, newest first. Ownership is the
// authorization boundary: the filter is always the resolved identity, never
// a caller-supplied email.
func (api *API) ListMedia(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "session identity missing")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	records, total, err := api.generations.ListMedia(r.Context(), identity, page, pageSize)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list media")
		return
	}

	items := make([]mediaItem, 0, len(records))
	for _, record := range records {
		items = append(items, mediaItem{
			MediaID:     record.MediaID,
			SourceJobID: record.SourceJobID,
			ModelKey:    record.ModelKey,
			StorageRef:  record.StorageRef,
			AssetCount:  len(record.AssetRefs),
			CreatedAt:   record.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}

// DownloadMediaAsset streams one stored sample back to its owner.
func (api *API) DownloadMediaAsset(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "session identity missing")
		return
	}

	mediaID := strings.TrimSpace(chi.URLParam(r, "mediaID"))
	if mediaID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "media_id is required")
		return
	}

	sample := 1
	if raw := r.URL.Query().Get("sample"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "sample must be a positive integer")
			return
		}
		sample = parsed
	}

	record, data, err := api.generations.MediaAsset(r.Context(), identity, mediaID, sample-1)
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "media not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to read asset")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(record))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentTypeFor(record *domain.MediaRecord) string {
	if len(record.AssetRefs) > 0 && strings.HasSuffix(record.AssetRefs[0], ".mp4") {
		return "video/mp4"
	}
	return "image/png"
}
