package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/canteenhq/canteen/internal/domain/credit"
)

// GetCreditAccount handles GET /credit: the member's account with current
// penalty accrual.
func (h *Handler) GetCreditAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.ledger.Account(r.Context(), MemberID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCreditAccount(e, acct)
	})
}

// RequestCreditAuthorization handles POST /credit/authorization.
func (h *Handler) RequestCreditAuthorization(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.RequestAuthorization(r.Context(), MemberID(r.Context()))
	if err != nil {
		h.writeCreditError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// PayCredit handles POST /credit/payments.
func (h *Handler) PayCredit(w http.ResponseWriter, r *http.Request) {
	var (
		amount    decimal.Decimal
		amountSet bool
	)
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "amount":
				v, err := decodeDecimal(d)
				amount = v
				amountSet = true
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil || !amountSet {
		writeError(w, http.StatusBadRequest, "invalid JSON body: amount is required")
		return
	}

	memberID := MemberID(r.Context())
	if err := h.ledger.Pay(r.Context(), memberID, amount); err != nil {
		h.writeCreditError(w, err)
		return
	}

	acct, err := h.ledger.Account(r.Context(), memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCreditAccount(e, acct)
	})
}

// writeCreditError maps credit domain errors to HTTP responses.
func (h *Handler) writeCreditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credit.ErrNotEligible):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, credit.ErrAlreadyRequested):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, credit.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, credit.ErrInsufficientCredit):
		writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func encodeCreditAccount(e *jx.Encoder, acct *credit.Account) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("member_id", func(e *jx.Encoder) { e.Str(acct.MemberID) })
		e.Field("eligible", func(e *jx.Encoder) { e.Bool(acct.Eligible) })
		e.Field("approved", func(e *jx.Encoder) { e.Bool(acct.Approved) })
		e.Field("auth_requested", func(e *jx.Encoder) { e.Bool(acct.AuthRequested) })
		e.Field("tier", func(e *jx.Encoder) { e.Int(acct.Tier) })
		e.Field("limit", func(e *jx.Encoder) { encodeDecimal(e, acct.Limit) })
		e.Field("effective_limit", func(e *jx.Encoder) { encodeDecimal(e, acct.EffectiveLimit()) })
		e.Field("available", func(e *jx.Encoder) { encodeDecimal(e, acct.Available()) })
		e.Field("balance", func(e *jx.Encoder) { encodeDecimal(e, acct.Balance) })
		e.Field("penalty", func(e *jx.Encoder) { encodeDecimal(e, acct.Penalty) })
		e.Field("total_due", func(e *jx.Encoder) { encodeDecimal(e, acct.TotalDue()) })
		if acct.DueDate != nil {
			e.Field("due_date", func(e *jx.Encoder) { e.Str(acct.DueDate.UTC().Format(time.RFC3339)) })
		}
		e.Field("days_late", func(e *jx.Encoder) { e.Int(acct.DaysLate) })
		e.Field("on_time_months", func(e *jx.Encoder) { e.Int(acct.OnTimeMonths) })
		e.Field("probation", func(e *jx.Encoder) { e.Bool(acct.Probation) })
		e.Field("blocked", func(e *jx.Encoder) { e.Bool(acct.Blocked) })
		e.Field("transactions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, tx := range acct.Transactions {
					e.Obj(func(e *jx.Encoder) {
						e.Field("kind", func(e *jx.Encoder) { e.Str(string(tx.Kind)) })
						e.Field("amount", func(e *jx.Encoder) { encodeDecimal(e, tx.Amount) })
						if tx.OrderID != "" {
							e.Field("order_id", func(e *jx.Encoder) { e.Str(tx.OrderID) })
						}
						e.Field("created_at", func(e *jx.Encoder) { e.Str(tx.CreatedAt.UTC().Format(time.RFC3339)) })
					})
				}
			})
		})
	})
}
