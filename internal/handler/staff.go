package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/canteenhq/canteen/internal/domain/order"
)

// StaffListOrders handles GET /staff/orders: every member's orders.
func (h *Handler) StaffListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListAllOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeOrder(e, &list[i])
			}
		})
	})
}

// StaffUpdateOrderStatus handles PATCH /staff/orders/{orderID}/status.
func (h *Handler) StaffUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var status string
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "status":
				s, err := d.Str()
				status = s
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil || status == "" {
		writeError(w, http.StatusBadRequest, "invalid JSON body: status is required")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), order.Status(status))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// StaffApproveCredit handles POST /staff/credit/{memberID}/approve.
func (h *Handler) StaffApproveCredit(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Approve(r.Context(), chi.URLParam(r, "memberID")); err != nil {
		h.writeCreditError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StaffSetProbation handles POST /staff/credit/{memberID}/probation.
func (h *Handler) StaffSetProbation(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ApplyProbation(r.Context(), chi.URLParam(r, "memberID")); err != nil {
		h.writeCreditError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StaffSetBlocked handles POST /staff/credit/{memberID}/block.
func (h *Handler) StaffSetBlocked(w http.ResponseWriter, r *http.Request) {
	var blocked bool
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "blocked":
				b, err := d.Bool()
				blocked = b
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.ledger.SetBlocked(r.Context(), chi.URLParam(r, "memberID"), blocked); err != nil {
		h.writeCreditError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
