package handlers

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"montage/internal/httpkit"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/ids"
	"montage/internal/ports"
)

const signedURLTTL = 30 * time.Minute

func (h *Handler) PostAsset(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errors.ResourceExhausted(err, "upload too large")
		}
		return errors.WrapWithCode(err, errors.CodeBadRequest, "assets.form", "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	kind := strings.TrimSpace(r.FormValue("kind"))
	switch kind {
	case models.AssetKindImage, models.AssetKindAudio:
	case "":
		return errors.ValidationField("kind", "kind is required")
	default:
		return errors.ValidationField("kind", "kind must be image or audio")
	}
	label := strings.TrimSpace(r.FormValue("label"))

	file, header, err := r.FormFile("file")
	if err != nil {
		return errors.ValidationField("file", "file is required")
	}
	defer file.Close()

	br := bufio.NewReader(file)
	contentType := detectType(br, header.Header.Get("Content-Type"), header.Filename)

	a := &models.Asset{
		ID:    ids.New("ast"),
		Kind:  kind,
		Mime:  contentType,
		Label: label,
	}
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = guessExt(contentType)
	}
	if ext == "" {
		ext = ".bin"
	}

	out, err := h.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   fmt.Sprintf("assets/%s/original%s", a.ID, strings.ToLower(ext)),
		ContentType: contentType,
		Reader:      br,
		Size:        header.Size,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "assets.put", "storage put failed")
	}
	a.Provider = h.sp.Provider()
	a.ObjectKey = out.ObjectKey
	a.SizeBytes = out.Size

	if err := h.assets.Create(ctx, a); err != nil {
		if derr := h.sp.DeleteObject(ctx, out.ObjectKey); derr != nil {
			h.log.FromContext(ctx).Warn("orphaned object after failed insert", "object_key", out.ObjectKey, "error", derr.Error())
		}
		return err
	}

	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"asset": a})
	return nil
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) error {
	a, err := h.assets.Get(r.Context(), chi.URLParam(r, "assetId"))
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"asset": a})
	return nil
}

// GetAssetURL prefers a provider-signed URL and falls back to the content route.
func (h *Handler) GetAssetURL(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	a, err := h.assets.Get(ctx, chi.URLParam(r, "assetId"))
	if err != nil {
		return err
	}
	signed, err := h.sp.GetSignedURL(ctx, a.ObjectKey, signedURLTTL)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "assets.url", "cannot sign asset url")
	}
	url := signed.URL
	if url == "" {
		url = strings.TrimRight(h.baseURL, "/") + "/assets/" + a.ID + "/content"
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"asset_id":   a.ID,
		"url":        url,
		"expires_at": signed.ExpiresAt,
	})
	return nil
}

func (h *Handler) StreamAsset(w http.ResponseWriter, r *http.Request) error {
	a, err := h.assets.Get(r.Context(), chi.URLParam(r, "assetId"))
	if err != nil {
		return err
	}
	return h.streamAsset(w, r, a, "")
}

func (h *Handler) streamAsset(w http.ResponseWriter, r *http.Request, a *models.Asset, filename string) error {
	ctx := r.Context()
	rc, ct, size, err := h.sp.GetObject(ctx, a.ObjectKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.NotFound("asset content", a.ID).WithField("object_key", a.ObjectKey)
		}
		return errors.WrapWithCode(err, errors.CodeUnavailable, "assets.get", "storage get failed")
	}
	defer rc.Close()

	if ct == "" {
		ct = a.Mime
	}
	if size <= 0 {
		size = a.SizeBytes
	}
	if n, err := httpkit.Stream(w, ct, filename, size, rc); err != nil {
		h.log.FromContext(ctx).Warn("asset stream interrupted", "asset_id", a.ID, "written", n, "error", err.Error())
	}
	return nil
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	a, err := h.assets.Get(ctx, chi.URLParam(r, "assetId"))
	if err != nil {
		return err
	}
	inUse, err := h.assets.InUse(ctx, a.ID)
	if err != nil {
		return err
	}
	if inUse {
		return errors.New(errors.CodeConflict, "asset is referenced by job outputs").WithField("asset_id", a.ID)
	}
	if err := h.sp.DeleteObject(ctx, a.ObjectKey); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "assets.delete", "storage delete failed").
			WithField("object_key", a.ObjectKey)
	}
	if err := h.assets.Delete(ctx, a.ID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// detectType trusts a specific declared type, then the extension, then the bytes.
func detectType(br *bufio.Reader, declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "application/octet-stream"
	}
	return http.DetectContentType(head)
}

func guessExt(contentType string) string {
	if contentType == "" {
		return ""
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
