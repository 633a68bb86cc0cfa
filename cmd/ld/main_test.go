package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"leavedesk/internal/app"
	"leavedesk/internal/config"
	"leavedesk/internal/domain"
	"leavedesk/internal/engine"
	"leavedesk/internal/session"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	ws := t.TempDir()
	if _, err := run(t, "config", "init", "-w", ws, "--base-url", ""); err == nil {
		t.Fatalf("expected base url error")
	}
	out, err := run(t, "config", "init", "-w", ws, "--base-url", "https://hr.example.com/api")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "leavedesk.yml") {
		t.Fatalf("output = %q", out)
	}
	cfg, err := config.Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://hr.example.com/api" {
		t.Fatalf("base url = %s", cfg.Backend.BaseURL)
	}
	if _, err := run(t, "config", "init", "-w", ws, "--base-url", "https://other.example.com"); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
}

func TestApprovalsWithoutLogin(t *testing.T) {
	ws := t.TempDir()
	_, err := run(t, "approvals", "list", "-w", ws, "--base-url", "http://127.0.0.1:1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if msg := engine.UserMessage(err); msg != session.ErrNotLoggedIn.Error() {
		t.Fatalf("message = %q", msg)
	}
}

func TestApprovalsListAndLog(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/leaves/pending/supervising":
			_ = json.NewEncoder(w).Encode([]domain.LeaveRecord{{
				ID:                       "5",
				EmployeeName:             "Nimali Silva",
				LeaveType:                "SICK",
				StartDate:                "2024-06-03",
				EndDate:                  "2024-06-04",
				Status:                   "PENDING_SUPERVISING_OFFICER",
				ActingOfficerEmail:       "a@corp.lk",
				ActingOfficerName:        "Ruwan",
				ActingOfficerStatus:      "APPROVED",
				ActingOfficerApprovedAt:  "2024-05-31T09:00:00",
				SupervisingOfficerEmail:  "officer@corp.lk",
				SupervisingOfficerName:   "Kasun",
				SupervisingOfficerStatus: "PENDING",
				ReceivedDate:             "2024-05-30",
			}})
		case "/leaves/pending/acting", "/leaves/pending/approval":
			_, _ = w.Write([]byte("[]"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer backend.Close()

	ws := t.TempDir()
	if err := os.WriteFile(config.Path(ws), []byte("backend:\n  base_url: "+backend.URL+"\ncache:\n  backend: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := app.Open(context.Background(), app.Options{Workspace: ws})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := a.Session.Save(context.Background(), "tok", "officer@corp.lk", nil); err != nil {
		t.Fatalf("save session: %v", err)
	}
	a.Close()

	out, err := run(t, "approvals", "list", "-w", ws, "--no-color")
	if err != nil {
		t.Fatalf("approvals: %v\n%s", err, out)
	}
	for _, want := range []string{"Nimali Silva", "Supervising", "page 1 of 1 (1 total)", "✔ Ruwan"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "approvals", "list", "-w", ws, "--json", "--status", "approved")
	if err != nil {
		t.Fatalf("approvals json: %v", err)
	}
	var page struct {
		Page engine.Page[engine.Item] `json:"page"`
	}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if page.Page.Total != 0 {
		t.Fatalf("status filter not applied: %+v", page.Page)
	}

	if _, err := run(t, "logout", "-w", ws, "--json=false"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	out, err = run(t, "log", "tail", "-w", ws, "--json")
	if err != nil {
		t.Fatalf("log tail: %v", err)
	}
	if !strings.Contains(out, "session.ended") {
		t.Fatalf("log missing logout:\n%s", out)
	}
}
