package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/emaildid/internal/binding"
)

// BindingHandler はメールダイジェストからdid:keyを引くHTTPハンドラー。
type BindingHandler struct {
	store binding.Store
}

// NewBindingHandler はBindingHandlerを生成する。
func NewBindingHandler(store binding.Store) *BindingHandler {
	return &BindingHandler{store: store}
}

// Get はダイジェストに対応するバインディングを返す。
// GET /api/bindings/{digest}
func (h *BindingHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := binding.Lookup(r.Context(), h.store, chi.URLParam(r, "digest"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
