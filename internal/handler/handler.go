// Package handler exposes the HTTP API: member-facing ordering and credit
// endpoints plus staff endpoints for the kitchen and credit administration.
package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/canteenhq/canteen/internal/domain/auth"
	"github.com/canteenhq/canteen/internal/domain/credit"
	"github.com/canteenhq/canteen/internal/domain/member"
	"github.com/canteenhq/canteen/internal/domain/menu"
	"github.com/canteenhq/canteen/internal/domain/order"
)

// Handler delegates business logic to the order service and credit ledger.
type Handler struct {
	menu    menu.Repository
	orders  *order.Service
	ledger  *credit.Ledger
	members member.Repository
	apikeys auth.Repository
	pepper  []byte
}

// NewHandler constructs a Handler with the required domain dependencies.
// pepper is the HMAC key for staff API key hashing.
func NewHandler(
	menuRepo menu.Repository,
	orders *order.Service,
	ledger *credit.Ledger,
	members member.Repository,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		menu:    menuRepo,
		orders:  orders,
		ledger:  ledger,
		members: members,
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Routes mounts all API routes. Member routes require the X-Member-ID header
// to name a roster member; staff routes require a scoped API key.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/menu", h.ListMenu)
	r.Get("/menu/{itemID}", h.GetMenuItem)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireMember)

		r.Post("/cart/quote", h.QuoteCart)

		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Delete("/orders/{orderID}", h.CancelOrder)
		r.Post("/orders/{orderID}/feedback", h.SubmitFeedback)

		r.Get("/credit", h.GetCreditAccount)
		r.Post("/credit/authorization", h.RequestCreditAuthorization)
		r.Post("/credit/payments", h.PayCredit)
	})

	r.Route("/staff", func(r chi.Router) {
		r.Use(h.RequireAPIKey(ScopeStaff))

		r.Get("/orders", h.StaffListOrders)
		r.Patch("/orders/{orderID}/status", h.StaffUpdateOrderStatus)

		r.Post("/credit/{memberID}/approve", h.StaffApproveCredit)
		r.Post("/credit/{memberID}/probation", h.StaffSetProbation)
		r.Post("/credit/{memberID}/block", h.StaffSetBlocked)
	})
}
