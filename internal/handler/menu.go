package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/canteenhq/canteen/internal/domain/menu"
)

// ListMenu handles GET /menu.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, it := range items {
				encodeMenuItem(e, it)
			}
		})
	})
}

// GetMenuItem handles GET /menu/{itemID}.
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	it, err := h.menu.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			writeError(w, http.StatusNotFound, "menu item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeMenuItem(e, *it)
	})
}

func encodeMenuItem(e *jx.Encoder, it menu.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, it.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(it.Category) })
	})
}
