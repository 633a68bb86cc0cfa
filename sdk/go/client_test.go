package leavedesksdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsBearerAndDecodes(t *testing.T) {
	var gotAuth, gotReqID, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":3,"leaveType":"SICK","status":"PENDING_ACTING_OFFICER"}]`)
	}))
	defer srv.Close()

	c := New(srv.URL + "/").WithTokens(StaticToken("tok-1"))
	items, err := c.Pending(context.Background(), RoleActing)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Fatalf("expected request id header")
	}
	if gotPath != "/leaves/pending/acting" {
		t.Fatalf("path = %q", gotPath)
	}
	if len(items) != 1 || items[0].ID != "3" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestClientPlainTextSuccess(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leaves/9/acting-action" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, "Leave processed")
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Act(context.Background(), ActionPath("9", RoleActing), "approve", "ok")
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if resp.JSON || resp.Text != "Leave processed" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if body["action"] != "APPROVE" || body["comments"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if err := resp.Decode(&body); err == nil {
		t.Fatalf("expected decode error for text body")
	}
}

func TestClientAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/leaves/my-leaves" {
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := New(srv.URL)

	_, err := c.MyLeaves(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message() != "Token expired" {
		t.Fatalf("unexpected api error: %+v (%s)", apiErr, apiErr.Message())
	}

	_, err = c.DashboardCounts(context.Background())
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Error() != "HTTP error! status: 500" {
		t.Fatalf("fallback message = %q", apiErr.Error())
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := New(addr).Users(context.Background())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestClientCanceledContextIsNotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).Users(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		t.Fatalf("canceled request reported as network error")
	}
}

func TestValidatePath(t *testing.T) {
	cases := map[string]string{
		"CASUAL":    "/leaves/validate",
		"short":     "/leaves/validate-short-leave",
		"HALF_DAY":  "/leaves/validate-half-day",
		"MATERNITY": "/leaves/validate-maternity",
	}
	for in, want := range cases {
		if got := ValidatePath(in); got != want {
			t.Fatalf("ValidatePath(%s) = %s, want %s", in, got, want)
		}
	}
}
