//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListMenu(t *testing.T) {
	resp := doGet(t, "/api/menu")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]menuItemResponse](t, resp)
	if len(items) != 15 {
		t.Fatalf("expected 15 menu items, got %d", len(items))
	}
}

func TestListMenu_Fields(t *testing.T) {
	resp := doGet(t, "/api/menu")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]menuItemResponse](t, resp)

	var thali *menuItemResponse
	for i := range items {
		if items[i].ID == "thali-veg" {
			thali = &items[i]
			break
		}
	}

	if thali == nil {
		t.Fatal("menu item 'thali-veg' not found")
	}
	if thali.Name != "Veg Thali" {
		t.Errorf("name: got %q, want %q", thali.Name, "Veg Thali")
	}
	if thali.Price != "65.00" {
		t.Errorf("price: got %q, want %q", thali.Price, "65.00")
	}
	if thali.Category != "meals" {
		t.Errorf("category: got %q, want %q", thali.Category, "meals")
	}
}

func TestGetMenuItem(t *testing.T) {
	resp := doGet(t, "/api/menu/masala-dosa")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	item := decodeJSON[menuItemResponse](t, resp)
	if item.ID != "masala-dosa" {
		t.Errorf("id: got %q, want %q", item.ID, "masala-dosa")
	}
	if item.Name != "Masala Dosa" {
		t.Errorf("name: got %q, want %q", item.Name, "Masala Dosa")
	}
}

func TestGetMenuItem_NotFound(t *testing.T) {
	resp := doGet(t, "/api/menu/no-such-item")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
