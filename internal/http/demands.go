package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gestaozabele/demandas/internal/demand"
	httpmiddleware "github.com/gestaozabele/demandas/internal/http/middleware"
)

const maxJSONBody = 1 << 20

// ListDemands lista demandas visíveis ao usuário com filtros e paginação.
func (h *Handler) ListDemands(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	criteria := demand.Criteria{
		Type:           strings.TrimSpace(q.Get("tipo")),
		Status:         strings.TrimSpace(q.Get("status")),
		From:           strings.TrimSpace(q.Get("data_inicio")),
		To:             strings.TrimSpace(q.Get("data_fim")),
		Address:        strings.TrimSpace(q.Get("endereco")),
		UserName:       strings.TrimSpace(q.Get("usuario")),
		DepartmentName: strings.TrimSpace(q.Get("secretaria")),
		Departments:    splitList(q.Get("secretaria_id")),
	}

	page, err := pageRequest(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	result, err := h.demands.List(r.Context(), caller, criteria, page, populate(r)...)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// GetDemand devolve uma demanda projetada para o papel do usuário.
func (h *Handler) GetDemand(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	doc, err := h.demands.Get(r.Context(), caller, chi.URLParam(r, "id"), populate(r)...)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

// CreateDemand abre uma nova demanda.
func (h *Handler) CreateDemand(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var in demand.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	doc, err := h.demands.Create(r.Context(), caller, in)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, doc)
}

// UpdateDemand altera campos livres da demanda.
func (h *Handler) UpdateDemand(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.demands.Update)
}

// AssignDemand associa operadores à demanda.
func (h *Handler) AssignDemand(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.demands.Assign)
}

// ReturnDemand devolve (operador) ou rejeita (secretário) a demanda.
func (h *Handler) ReturnDemand(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.demands.Return)
}

// ResolveDemand conclui a demanda.
func (h *Handler) ResolveDemand(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.demands.Resolve)
}

// DeleteDemand remove a demanda.
func (h *Handler) DeleteDemand(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	doc, err := h.demands.Delete(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

type transitionFunc func(ctx context.Context, caller demand.Caller, id string, in demand.Input) (demand.Document, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var in demand.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	doc, err := fn(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (demand.Caller, bool) {
	caller, err := httpmiddleware.GetCaller(r.Context())
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return demand.Caller{}, false
	}
	return caller, true
}

// decodeJSON aceita corpo vazio como objeto vazio.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return false
	}
	return true
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func populate(r *http.Request) []demand.Reference {
	return demand.ParseReferences(r.URL.Query().Get("populate"))
}

func pageRequest(r *http.Request) (demand.PageRequest, error) {
	q := r.URL.Query()
	var page demand.PageRequest

	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return page, errors.New("page inválido")
		}
		page.Page = v
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return page, errors.New("limit inválido")
		}
		page.Limit = v
	}

	switch strings.TrimSpace(q.Get("sort")) {
	case "", "-data_criacao":
	case "data_criacao":
		page.SortAsc = true
	default:
		return page, errors.New("sort inválido")
	}

	return page, nil
}
