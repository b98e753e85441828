package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	v1 "montage/internal/contracts/slideshow/v1"
	"montage/internal/httpkit"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/ids"
)

type CreatePresetRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Defaults    v1.Defaults `json:"defaults"`
}

type UpdatePresetRequest struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Defaults    *v1.Defaults `json:"defaults,omitempty"`
}

func (h *Handler) PostPreset(w http.ResponseWriter, r *http.Request) error {
	var req CreatePresetRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return invalidBody(err)
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return errors.ValidationField("name", "name is required")
	}
	if err := req.Defaults.Validate(); err != nil {
		return prefixField(err, "defaults.")
	}

	p := &models.Preset{
		ID:          ids.New("pst"),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Defaults:    req.Defaults,
	}
	if err := h.presets.Create(r.Context(), p); err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"preset": p})
	return nil
}

func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) error {
	presets, err := h.presets.List(r.Context())
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"presets": presets})
	return nil
}

func (h *Handler) GetPreset(w http.ResponseWriter, r *http.Request) error {
	p, err := h.presets.Get(r.Context(), chi.URLParam(r, "presetId"))
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"preset": p})
	return nil
}

func (h *Handler) PatchPreset(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	p, err := h.presets.Get(ctx, chi.URLParam(r, "presetId"))
	if err != nil {
		return err
	}

	var req UpdatePresetRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return invalidBody(err)
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
		if p.Name == "" {
			return errors.ValidationField("name", "name cannot be empty")
		}
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Defaults != nil {
		if err := req.Defaults.Validate(); err != nil {
			return prefixField(err, "defaults.")
		}
		p.Defaults = *req.Defaults
	}

	if err := h.presets.Update(ctx, p); err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"preset": p})
	return nil
}

func (h *Handler) DeletePreset(w http.ResponseWriter, r *http.Request) error {
	if err := h.presets.Delete(r.Context(), chi.URLParam(r, "presetId")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// prefixField nests a validation error's field under a request key.
func prefixField(err error, prefix string) error {
	field, _ := errors.GetFields(err)["field"].(string)
	if field == "" {
		return err
	}
	return errors.ValidationField(prefix+field, errors.GetMessage(err))
}
