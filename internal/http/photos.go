package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gestaozabele/demandas/internal/attachment"
)

const (
	photoField = "foto"
	// folga para cabeçalhos do multipart além do limite do arquivo
	multipartOverhead = 1 << 20
)

// UploadPhoto recebe a foto da solicitação ou da resolução (campo "foto").
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	kind, ok := attachment.ParseKind(chi.URLParam(r, "tipo"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "tipo de foto inválido", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, attachment.MaxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "Arquivo excede o limite de 50 MB", nil)
			return
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(photoField)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo obrigatório", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "falha ao ler arquivo", nil)
		return
	}

	doc, err := h.attachments.Upload(r.Context(), caller, chi.URLParam(r, "id"), kind, attachment.File{
		Name: header.Filename,
		Data: data,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

// DeletePhoto remove a foto indicada e limpa a referência.
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	kind, ok := attachment.ParseKind(chi.URLParam(r, "tipo"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "tipo de foto inválido", nil)
		return
	}

	doc, err := h.attachments.Delete(r.Context(), caller, chi.URLParam(r, "id"), kind)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}
