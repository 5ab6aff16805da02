package email

import (
	"strings"
	"testing"
)

func TestActivationRequest_RendersHTML(t *testing.T) {
	req, err := ActivationRequest("ann@club.be", "Ann", "https://portal.example/?activate=ann%40club.be")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.To) != 1 || req.To[0] != "ann@club.be" {
		t.Errorf("unexpected recipients: %v", req.To)
	}
	if !strings.Contains(req.HTML, "Ann") {
		t.Error("body should greet the member by name")
	}
	if !strings.Contains(req.HTML, "https://portal.example/?activate=ann%40club.be") {
		t.Error("body should contain the activation link")
	}
	if !strings.Contains(req.HTML, "<h1") {
		t.Error("markdown heading should render as HTML")
	}
}

func TestActivationRequest_DefaultName(t *testing.T) {
	req, err := ActivationRequest("ann@club.be", "  ", "https://portal.example/activate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(req.HTML, "coach") {
		t.Error("blank name should fall back to a generic greeting")
	}
}
