//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

const (
	testAPIKey = "integration-test-key"

	memberAsha   = "mem-asha"
	memberVikram = "mem-vikram"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestPlaceOrder_NoMember(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "thali-veg", Quantity: 1}},
		PaymentMethod: "cash",
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_UnknownMember(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "thali-veg", Quantity: 1}},
		PaymentMethod: "cash",
	}
	resp := doPostAsMember(t, "/api/orders", req, "mem-nobody")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_EmptyLines(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{},
		PaymentMethod: "cash",
	}
	resp := doPostAsMember(t, "/api/orders", req, memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_UnknownItem(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "no-such-item", Quantity: 1}},
		PaymentMethod: "cash",
	}
	resp := doPostAsMember(t, "/api/orders", req, memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestQuoteCart(t *testing.T) {
	// 2x dal-tadka 55.00 + 1x jeera-rice 45.00 = 155.00
	// green token: -5.00 -> 150.00
	// attendance 80 >= 75: -10% = -15.00 -> 135.00
	req := cartRequest{
		Lines: []cartLineRequest{
			{ItemID: "dal-tadka", Quantity: 2},
			{ItemID: "jeera-rice", Quantity: 1},
		},
		GreenToken: true,
		Attendance: "80",
	}
	resp := doPostAsMember(t, "/api/cart/quote", req, memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[cartQuoteResponse](t, resp)
	if body.Quote.Subtotal != "155.00" {
		t.Errorf("subtotal: got %q, want %q", body.Quote.Subtotal, "155.00")
	}
	if body.Quote.GreenTokenDiscount != "5.00" {
		t.Errorf("green token discount: got %q, want %q", body.Quote.GreenTokenDiscount, "5.00")
	}
	if body.Quote.AttendanceDiscount != "15.00" {
		t.Errorf("attendance discount: got %q, want %q", body.Quote.AttendanceDiscount, "15.00")
	}
	if body.Quote.Total != "135.00" {
		t.Errorf("total: got %q, want %q", body.Quote.Total, "135.00")
	}
	if len(body.Lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(body.Lines))
	}
}

func TestPlaceOrder_Cash(t *testing.T) {
	req := cartRequest{
		Lines: []cartLineRequest{
			{ItemID: "masala-dosa", Quantity: 1}, // 50.00
			{ItemID: "filter-coffee", Quantity: 2}, // 2x 15.00
		},
		PaymentMethod: "cash",
	}
	resp := doPostAsMember(t, "/api/orders", req, memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if !uuidPattern.MatchString(o.ID) {
		t.Errorf("order ID %q is not a valid UUID", o.ID)
	}
	if o.MemberID != memberAsha {
		t.Errorf("member: got %q, want %q", o.MemberID, memberAsha)
	}
	if o.Status != "placed" {
		t.Errorf("status: got %q, want %q", o.Status, "placed")
	}
	if o.Quote.Total != "80.00" {
		t.Errorf("total: got %q, want %q", o.Quote.Total, "80.00")
	}
	if len(o.Lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(o.Lines))
	}
}

func TestPlaceOrder_CreditWithoutApproval(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "thali-special", Quantity: 1}},
		PaymentMethod: "credit",
	}
	resp := doPostAsMember(t, "/api/orders", req, memberVikram)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
}

func TestGetOrder_OtherMember(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "masala-chai", Quantity: 1}},
		PaymentMethod: "cash",
	}
	placeResp := doPostAsMember(t, "/api/orders", req, memberAsha)
	placed := decodeJSON[orderResponse](t, placeResp)
	placeResp.Body.Close()

	resp := doGetAsMember(t, "/api/orders/"+placed.ID, memberVikram)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCancelOrder(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "idli-sambar", Quantity: 1}},
		PaymentMethod: "cash",
	}
	placeResp := doPostAsMember(t, "/api/orders", req, memberAsha)
	placed := decodeJSON[orderResponse](t, placeResp)
	placeResp.Body.Close()

	resp := doDeleteAsMember(t, "/api/orders/"+placed.ID, memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancelled := decodeJSON[orderResponse](t, resp)
	if cancelled.Status != "cancelled" {
		t.Errorf("status: got %q, want %q", cancelled.Status, "cancelled")
	}
}

func TestKitchenWorkflow(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "curd-rice", Quantity: 1}},
		PaymentMethod: "cash",
	}
	placeResp := doPostAsMember(t, "/api/orders", req, memberVikram)
	placed := decodeJSON[orderResponse](t, placeResp)
	placeResp.Body.Close()

	for _, status := range []string{"cooking", "ready", "delivered"} {
		resp := doAsStaff(t, http.MethodPatch, "/api/staff/orders/"+placed.ID+"/status",
			map[string]string{"status": status}, testAPIKey)

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			t.Fatalf("advance to %s: expected 200, got %d", status, resp.StatusCode)
		}

		o := decodeJSON[orderResponse](t, resp)
		resp.Body.Close()
		if o.Status != status {
			t.Fatalf("status: got %q, want %q", o.Status, status)
		}
	}

	// Delivered orders cannot be cancelled.
	resp := doDeleteAsMember(t, "/api/orders/"+placed.ID, memberVikram)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel delivered: expected 409, got %d", resp.StatusCode)
	}
}

func TestSubmitFeedback(t *testing.T) {
	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "gulab-jamun", Quantity: 2}},
		PaymentMethod: "cash",
	}
	placeResp := doPostAsMember(t, "/api/orders", req, memberVikram)
	placed := decodeJSON[orderResponse](t, placeResp)
	placeResp.Body.Close()

	feedback := map[string]any{"rating": 5, "comment": "excellent"}

	// Feedback before delivery is rejected.
	early := doPostAsMember(t, "/api/orders/"+placed.ID+"/feedback", feedback, memberVikram)
	if early.StatusCode != http.StatusConflict {
		early.Body.Close()
		t.Fatalf("feedback before delivery: expected 409, got %d", early.StatusCode)
	}
	early.Body.Close()

	for _, status := range []string{"cooking", "ready", "delivered"} {
		resp := doAsStaff(t, http.MethodPatch, "/api/staff/orders/"+placed.ID+"/status",
			map[string]string{"status": status}, testAPIKey)
		resp.Body.Close()
	}

	resp := doPostAsMember(t, "/api/orders/"+placed.ID+"/feedback", feedback, memberVikram)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// Second submission conflicts.
	again := doPostAsMember(t, "/api/orders/"+placed.ID+"/feedback", feedback, memberVikram)
	defer again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate feedback: expected 409, got %d", again.StatusCode)
	}
}

func TestStaffAuth(t *testing.T) {
	noKey := doRequestNoBody(t, http.MethodGet, "/api/staff/orders")
	defer noKey.Body.Close()
	if noKey.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: expected 401, got %d", noKey.StatusCode)
	}

	wrongKey := doAsStaff(t, http.MethodGet, "/api/staff/orders", nil, "wrong-key")
	defer wrongKey.Body.Close()
	if wrongKey.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", wrongKey.StatusCode)
	}

	goodKey := doAsStaff(t, http.MethodGet, "/api/staff/orders", nil, testAPIKey)
	defer goodKey.Body.Close()
	if goodKey.StatusCode != http.StatusOK {
		t.Fatalf("good key: expected 200, got %d", goodKey.StatusCode)
	}
}

func doRequestNoBody(t *testing.T, method, path string) *http.Response {
	t.Helper()
	return doRequest(t, method, path, nil, nil)
}
