package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"acorn/internal/blob"
	"acorn/internal/models"
	"acorn/internal/mods"
)

// Same answer for a missing mod and a mod owned by someone else.
const modMutationDenied = "Mod does not exist or you are not its author"

type ModHandler struct {
	mods *mods.Service
}

func NewModHandler(service *mods.Service) *ModHandler {
	return &ModHandler{mods: service}
}

type ModResponse struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	GameName    string    `json:"gameName"`
	GameVersion string    `json:"gameVersion"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func modResponse(mod *models.Mod) ModResponse {
	return ModResponse{
		ID:          mod.ID,
		Author:      mod.Author,
		Title:       mod.Title,
		Description: mod.Description,
		GameName:    mod.GameName,
		GameVersion: mod.GameVersion(),
		Version:     mod.Version,
		CreatedAt:   mod.CreatedAt,
		UpdatedAt:   mod.UpdatedAt,
	}
}

// PUT /api/mod
type CreateModForm struct {
	Title       string                `form:"title" validate:"required"`
	Description string                `form:"description" validate:"required"`
	GameName    string                `form:"gameName" validate:"required"`
	GameVersion string                `form:"gameVersion" validate:"required,max=32"`
	FileData    *multipart.FileHeader `form:"fileData" validate:"required"`
}

func (h *ModHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form CreateModForm
	if err := decodeMultipart(r, &form); err != nil {
		writeDecodeError(w, err)
		return
	}

	file, err := form.FileData.Open()
	if err != nil {
		serverError(w, r, "error opening uploaded mod file", err)
		return
	}
	defer file.Close()

	mod, err := h.mods.Create(r.Context(), mods.CreateInput{
		Author:      GetUsername(r),
		Title:       form.Title,
		Description: form.Description,
		GameName:    form.GameName,
		GameVersion: form.GameVersion,
		File:        file,
	})
	if err != nil {
		h.writeModError(w, r, "error creating mod", err)
		return
	}

	w.Header().Set("Location", "/api/mod/"+mod.ID)
	w.WriteHeader(http.StatusNoContent)
}

// PATCH /api/mod
type UpdateModForm struct {
	ModID       string                `form:"modId" validate:"required,uuid"`
	Description *string               `form:"description"`
	FileData    *multipart.FileHeader `form:"fileData"`
}

func (h *ModHandler) Update(w http.ResponseWriter, r *http.Request) {
	var form UpdateModForm
	if err := decodeMultipart(r, &form); err != nil {
		writeDecodeError(w, err)
		return
	}
	if form.Description == nil && form.FileData == nil {
		badRequest(w, "description or fileData is required")
		return
	}

	in := mods.UpdateInput{
		ID:          form.ModID,
		Username:    GetUsername(r),
		Description: form.Description,
	}
	if form.FileData != nil {
		file, err := form.FileData.Open()
		if err != nil {
			serverError(w, r, "error opening uploaded mod file", err)
			return
		}
		defer file.Close()
		in.File = file
	}

	if _, err := h.mods.Update(r.Context(), in); err != nil {
		h.writeModError(w, r, "error updating mod", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/mod
type DeleteModForm struct {
	ModID string `form:"modId" validate:"required,uuid"`
}

func (h *ModHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var form DeleteModForm
	if err := decodeMultipart(r, &form); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.mods.Delete(r.Context(), form.ModID, GetUsername(r)); err != nil {
		h.writeModError(w, r, "error deleting mod", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/mod/{id}
func (h *ModHandler) Get(w http.ResponseWriter, r *http.Request) {
	modID, ok := modIDParam(w, r)
	if !ok {
		return
	}

	mod, err := h.mods.Get(r.Context(), modID)
	if errors.Is(err, mods.ErrModNotFound) {
		notFound(w, "Mod not found")
		return
	}
	if err != nil {
		serverError(w, r, "error getting mod", err)
		return
	}
	writeJSON(w, http.StatusOK, modResponse(mod))
}

// GET /api/mod/{id}/file
func (h *ModHandler) Download(w http.ResponseWriter, r *http.Request) {
	modID, ok := modIDParam(w, r)
	if !ok {
		return
	}

	mod, rc, err := h.mods.OpenFile(r.Context(), modID)
	if errors.Is(err, mods.ErrModNotFound) {
		notFound(w, "Mod not found")
		return
	}
	if err != nil {
		serverError(w, r, "error opening mod file", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-v%d"`, mod.ID, mod.Version))
	w.WriteHeader(http.StatusOK)
	// Headers are out; a copy failure can only be logged.
	if _, err := io.Copy(w, rc); err != nil {
		logCopyError(r, err)
	}
}

type SearchModsResponse struct {
	Mods []ModResponse `json:"mods"`
}

// GET /api/mods/search?q=...
func (h *ModHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if len(query) > 256 {
		badRequest(w, "q is too long")
		return
	}

	found, err := h.mods.Search(r.Context(), query)
	if err != nil {
		serverError(w, r, "error searching mods", err)
		return
	}

	resp := SearchModsResponse{Mods: make([]ModResponse, 0, len(found))}
	for i := range found {
		resp.Mods = append(resp.Mods, modResponse(&found[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ModHandler) writeModError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, mods.ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, mods.ErrForbidden), errors.Is(err, mods.ErrModNotFound):
		forbidden(w, modMutationDenied)
	case errors.Is(err, blob.ErrFileTooLarge):
		payloadTooLarge(w, "fileData is too large")
	case errors.Is(err, blob.ErrExecutableFile):
		badRequest(w, "fileData must not be an executable")
	default:
		serverError(w, r, msg, err)
	}
}

func modIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	parsed, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid mod id")
		return "", false
	}
	return parsed.String(), true
}

func logCopyError(r *http.Request, err error) {
	slog.Warn("error streaming mod file", "path", r.URL.Path, "error", err)
}
