//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestCreditAccount_Fresh(t *testing.T) {
	resp := doGetAsMember(t, "/api/credit", memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	acct := decodeJSON[creditAccountResponse](t, resp)
	if acct.MemberID != memberAsha {
		t.Errorf("member: got %q, want %q", acct.MemberID, memberAsha)
	}
	if acct.Approved {
		t.Error("fresh account should not be approved")
	}
	if acct.Balance != "0.00" {
		t.Errorf("balance: got %q, want %q", acct.Balance, "0.00")
	}
	if acct.Blocked {
		t.Error("fresh account should not be blocked")
	}
}

func TestRequestAuthorization_NotEligible(t *testing.T) {
	// Demo members start well below the monthly order threshold.
	resp := doPostAsMember(t, "/api/credit/authorization", struct{}{}, memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestPayCredit_InvalidAmount(t *testing.T) {
	resp := doPostAsMember(t, "/api/credit/payments", map[string]string{"amount": "-10"}, memberAsha)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStaffBlock(t *testing.T) {
	block := doAsStaff(t, http.MethodPost, "/api/staff/credit/"+memberVikram+"/block",
		map[string]bool{"blocked": true}, testAPIKey)
	block.Body.Close()
	if block.StatusCode != http.StatusNoContent {
		t.Fatalf("block: expected 204, got %d", block.StatusCode)
	}

	req := cartRequest{
		Lines:         []cartLineRequest{{ItemID: "masala-chai", Quantity: 1}},
		PaymentMethod: "cash",
	}
	placed := doPostAsMember(t, "/api/orders", req, memberVikram)
	placed.Body.Close()
	if placed.StatusCode != http.StatusForbidden {
		t.Fatalf("blocked member order: expected 403, got %d", placed.StatusCode)
	}

	unblock := doAsStaff(t, http.MethodPost, "/api/staff/credit/"+memberVikram+"/block",
		map[string]bool{"blocked": false}, testAPIKey)
	defer unblock.Body.Close()
	if unblock.StatusCode != http.StatusNoContent {
		t.Fatalf("unblock: expected 204, got %d", unblock.StatusCode)
	}
}
