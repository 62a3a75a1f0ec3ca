package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestDecodeRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","approval_status":"approved"}`))
	if err := Decode(req, &dst); err == nil {
		t.Fatal("expected unknown field error")
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := Decode(req, &dst); err == nil || err.Error() != "request body is empty" {
		t.Fatalf("expected empty body error, got %v", err)
	}
}

func TestIDParam(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "6F9619FF-8B86-D011-B42D-00C04FC964FF")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	id, err := IDParam(req, "id")
	if err != nil {
		t.Fatalf("id param: %v", err)
	}
	if id != "6f9619ff-8b86-d011-b42d-00c04fc964ff" {
		t.Fatalf("expected canonical lower-case uuid, got %q", id)
	}

	rctx.URLParams = chi.RouteParams{}
	rctx.URLParams.Add("id", "not-a-uuid")
	if _, err := IDParam(req, "id"); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestValidationMessageUsesJSONNames(t *testing.T) {
	v := NewValidator()
	type form struct {
		Title string `json:"title" validate:"required"`
	}
	err := v.Struct(form{})
	if got := ValidationMessage(err); got != "title is required" {
		t.Fatalf("unexpected message %q", got)
	}
}
