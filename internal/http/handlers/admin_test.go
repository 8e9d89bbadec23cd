package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
	"github.com/jmylchreest/genmedia-api/internal/service"
	"github.com/jmylchreest/genmedia-api/internal/worker"
)

type fakeCredentials struct {
	creds map[string]*models.APICredential
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{creds: map[string]*models.APICredential{
		"cred-1": {ID: "cred-1", Provider: "taskapi", Name: "primary", IsActive: true, UsageCount: 3, CreatedAt: time.Now()},
	}}
}

func (f *fakeCredentials) List(context.Context) ([]*models.APICredential, error) {
	out := make([]*models.APICredential, 0, len(f.creds))
	for _, c := range f.creds {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCredentials) Register(_ context.Context, provider, name, _ string) (bool, error) {
	for _, c := range f.creds {
		if c.Provider == provider && c.Name == name {
			return false, nil
		}
	}
	id := "cred-" + name
	f.creds[id] = &models.APICredential{ID: id, Provider: provider, Name: name, IsActive: true}
	return true, nil
}

func (f *fakeCredentials) SetActive(_ context.Context, id string, active bool) (*models.APICredential, error) {
	c, ok := f.creds[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c.IsActive = active
	return c, nil
}

type fakeGranter struct {
	refs    map[string]bool
	balance int
}

func (g *fakeGranter) Grant(_ context.Context, _ string, amount int, reference, _ string) (int, error) {
	if g.refs == nil {
		g.refs = map[string]bool{}
	}
	if g.refs[reference] {
		return 0, service.ErrDuplicateGrant
	}
	g.refs[reference] = true
	g.balance += amount
	return g.balance, nil
}

type fixedStats worker.Stats

func (s fixedStats) Stats() worker.Stats { return worker.Stats(s) }

func newAdminHandler() (*AdminHandler, *fakeCredentials, *fakeGranter) {
	creds := newFakeCredentials()
	granter := &fakeGranter{}
	return NewAdminHandler(creds, granter, fixedStats{Workers: 4, Capacity: 100, Queued: 2}, testLogger()), creds, granter
}

func TestAdmin_RequiresAdmin(t *testing.T) {
	h, _, _ := newAdminHandler()
	ctx := userCtx("user_1")

	if _, err := h.ListCredentials(ctx, nil); statusOf(t, err) != http.StatusForbidden {
		t.Errorf("ListCredentials() error = %v, want 403", err)
	}
	if _, err := h.QueueStats(ctx, nil); statusOf(t, err) != http.StatusForbidden {
		t.Errorf("QueueStats() error = %v, want 403", err)
	}
	in := &GrantCreditsInput{}
	in.Body.UserID, in.Body.Amount, in.Body.Reference = "user_1", 1000, "self-grant"
	if _, err := h.GrantCredits(ctx, in); statusOf(t, err) != http.StatusForbidden {
		t.Errorf("GrantCredits() error = %v, want 403", err)
	}
}

func TestAdmin_Credentials(t *testing.T) {
	h, creds, _ := newAdminHandler()
	ctx := adminCtx("ops")

	reg := &RegisterCredentialInput{}
	reg.Body.Provider, reg.Body.Name, reg.Body.Secret = "prediction", "backup", "sk-live"
	out, err := h.RegisterCredential(ctx, reg)
	if err != nil || !out.Body.Created {
		t.Fatalf("RegisterCredential() = %+v, %v", out, err)
	}
	out, err = h.RegisterCredential(ctx, reg)
	if err != nil || out.Body.Created {
		t.Errorf("second RegisterCredential() = %+v, %v; want created=false", out, err)
	}

	list, err := h.ListCredentials(ctx, nil)
	if err != nil {
		t.Fatalf("ListCredentials() error = %v", err)
	}
	if len(list.Body.Credentials) != 2 {
		t.Errorf("credentials = %d, want 2", len(list.Body.Credentials))
	}

	toggle := &SetCredentialActiveInput{ID: "cred-1"}
	toggle.Body.IsActive = false
	got, err := h.SetCredentialActive(ctx, toggle)
	if err != nil {
		t.Fatalf("SetCredentialActive() error = %v", err)
	}
	if got.Body.IsActive || creds.creds["cred-1"].IsActive {
		t.Error("credential still active")
	}

	toggle.ID = "cred-404"
	if _, err := h.SetCredentialActive(ctx, toggle); statusOf(t, err) != http.StatusNotFound {
		t.Errorf("unknown credential error = %v, want 404", err)
	}
}

func TestAdmin_GrantCredits(t *testing.T) {
	h, _, _ := newAdminHandler()
	ctx := adminCtx("ops")

	in := &GrantCreditsInput{}
	in.Body.UserID, in.Body.Amount, in.Body.Reference = "user_1", 250, "support-ticket-42"
	out, err := h.GrantCredits(ctx, in)
	if err != nil {
		t.Fatalf("GrantCredits() error = %v", err)
	}
	if out.Body.Balance != 250 {
		t.Errorf("Balance = %d, want 250", out.Body.Balance)
	}

	if _, err := h.GrantCredits(ctx, in); statusOf(t, err) != http.StatusConflict {
		t.Errorf("repeat grant error = %v, want 409", err)
	}
}

func TestAdmin_QueueStats(t *testing.T) {
	h, _, _ := newAdminHandler()
	out, err := h.QueueStats(adminCtx("ops"), nil)
	if err != nil {
		t.Fatalf("QueueStats() error = %v", err)
	}
	if out.Body.Workers != 4 || out.Body.Queued != 2 {
		t.Errorf("stats = %+v", out.Body)
	}
}
