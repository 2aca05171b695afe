package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/canteenhq/canteen/internal/domain/credit"
	"github.com/canteenhq/canteen/internal/domain/order"
	"github.com/canteenhq/canteen/internal/domain/pricing"
)

// cartRequest is the decoded body shared by quote preview and placement.
type cartRequest struct {
	Lines         []order.CartLine
	PaymentMethod string
	GreenToken    bool
	Attendance    *decimal.Decimal
	Instructions  string
	Contact       string
}

func decodeCartRequest(r *http.Request) (*cartRequest, error) {
	var req cartRequest
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "lines":
				return d.Arr(func(d *jx.Decoder) error {
					var line order.CartLine
					if err := d.Obj(func(d *jx.Decoder, key string) error {
						switch key {
						case "item_id":
							s, err := d.Str()
							line.ItemID = s
							return err
						case "quantity":
							n, err := d.Int()
							line.Quantity = n
							return err
						default:
							return d.Skip()
						}
					}); err != nil {
						return err
					}
					req.Lines = append(req.Lines, line)
					return nil
				})
			case "payment_method":
				s, err := d.Str()
				req.PaymentMethod = s
				return err
			case "green_token":
				b, err := d.Bool()
				req.GreenToken = b
				return err
			case "attendance":
				if d.Next() == jx.Null {
					return d.Null()
				}
				v, err := decodeDecimal(d)
				if err != nil {
					return err
				}
				req.Attendance = &v
				return nil
			case "instructions":
				s, err := d.Str()
				req.Instructions = s
				return err
			case "contact":
				s, err := d.Str()
				req.Contact = s
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// QuoteCart handles POST /cart/quote: prices a cart without placing an order.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCartRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	quote, lines, err := h.orders.PriceCart(r.Context(), req.Lines, pricing.Input{
		GreenToken: req.GreenToken,
		Attendance: req.Attendance,
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("lines", func(e *jx.Encoder) { encodeLines(e, lines) })
			e.Field("quote", func(e *jx.Encoder) { encodeQuote(e, quote) })
		})
	})
}

// PlaceOrder handles POST /orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCartRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Without an explicit delivery contact, fall back to the member's
	// roster contact when that channel is verified.
	contact := req.Contact
	if contact == "" {
		if m := CurrentMember(r.Context()); m != nil && m.ContactVerified {
			contact = m.Contact
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		MemberID:      MemberID(r.Context()),
		Lines:         req.Lines,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		GreenToken:    req.GreenToken,
		Attendance:    req.Attendance,
		Instructions:  req.Instructions,
		Contact:       contact,
	})
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// ListOrders handles GET /orders: the member's own collection.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListOrders(r.Context(), MemberID(r.Context()))
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

// GetOrder handles GET /orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), MemberID(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// CancelOrder handles DELETE /orders/{orderID}.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), MemberID(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// SubmitFeedback handles POST /orders/{orderID}/feedback.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var (
		rating  int
		comment string
	)
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "rating":
				n, err := d.Int()
				rating = n
				return err
			case "comment":
				s, err := d.Str()
				comment = s
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

	if err := h.orders.SubmitFeedback(r.Context(), MemberID(r.Context()), chi.URLParam(r, "orderID"), rating, comment); err != nil {
		h.writeOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeOrderError maps order and credit domain errors to HTTP responses.
func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	var (
		iqErr  *order.InvalidQuantityError
		infErr *order.ItemNotFoundError
		irErr  *order.InvalidRatingError
		itErr  *order.InvalidTransitionError
	)
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrEmptyLines),
		errors.Is(err, order.ErrUnknownPaymentMethod):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &iqErr), errors.As(err, &infErr), errors.As(err, &irErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrOrderingBlocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, credit.ErrInsufficientCredit):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.As(err, &itErr),
		errors.Is(err, order.ErrFeedbackExists),
		errors.Is(err, order.ErrNotDelivered):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func encodeLines(e *jx.Encoder, lines []pricing.Line) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("item_id", func(e *jx.Encoder) { e.Str(l.ItemID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
				e.Field("unit_price", func(e *jx.Encoder) { encodeDecimal(e, l.UnitPrice) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
			})
		}
	})
}

func encodeQuote(e *jx.Encoder, q pricing.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, q.Subtotal) })
		e.Field("green_token_discount", func(e *jx.Encoder) { encodeDecimal(e, q.GreenToken) })
		e.Field("attendance_discount", func(e *jx.Encoder) { encodeDecimal(e, q.AttendanceDiscount) })
		e.Field("discount_percent", func(e *jx.Encoder) { encodeDecimal(e, q.DiscountPercent) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, q.Total) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("member_id", func(e *jx.Encoder) { e.Str(o.MemberID) })
		e.Field("lines", func(e *jx.Encoder) { encodeLines(e, o.Lines) })
		e.Field("quote", func(e *jx.Encoder) { encodeQuote(e, o.Quote) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		if o.Instructions != "" {
			e.Field("instructions", func(e *jx.Encoder) { e.Str(o.Instructions) })
		}
		if o.Contact != "" {
			e.Field("contact", func(e *jx.Encoder) { e.Str(o.Contact) })
		}
		if o.Suggestion != "" {
			e.Field("suggestion", func(e *jx.Encoder) { e.Str(o.Suggestion) })
		}
		e.Field("feedback_submitted", func(e *jx.Encoder) { e.Bool(o.FeedbackSubmitted) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")) })
	})
}
