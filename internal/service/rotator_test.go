package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/config"
	"github.com/jmylchreest/genmedia-api/internal/crypto"
)

// steppingClock advances one second per call so every selection has a
// distinct last-used time.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestRotator(t *testing.T, encryptor *crypto.Encryptor) *Rotator {
	t.Helper()
	r := NewRotator(setupTestRepos(t).Credential, encryptor, testLogger())
	clock := &steppingClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	return r
}

func TestRotator_RegisterIsIdempotent(t *testing.T) {
	r := newTestRotator(t, nil)
	ctx := context.Background()

	created, err := r.Register(ctx, "taskapi", "primary", "sk-1")
	if err != nil || !created {
		t.Fatalf("Register() = %v, %v; want created", created, err)
	}
	created, err = r.Register(ctx, "taskapi", "primary", "sk-other")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created {
		t.Error("re-registering should not create a credential")
	}

	creds, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(creds) != 1 {
		t.Errorf("credentials = %d, want 1", len(creds))
	}
}

func TestRotator_RegisterValidates(t *testing.T) {
	r := newTestRotator(t, nil)
	if _, err := r.Register(context.Background(), "taskapi", "", "sk"); err == nil {
		t.Error("Register() should reject an empty name")
	}
}

func TestRotator_SpreadsLoad(t *testing.T) {
	r := newTestRotator(t, nil)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if _, err := r.Register(ctx, "taskapi", name, "sk-"+name); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	// Bring every credential to five uses.
	for i := 0; i < 15; i++ {
		if _, err := r.Next(ctx, "taskapi"); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		cred, err := r.Next(ctx, "taskapi")
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if seen[cred.ID] {
			t.Errorf("credential %s selected twice in one round", cred.Name)
		}
		seen[cred.ID] = true
	}

	creds, _ := r.List(ctx)
	for _, c := range creds {
		if c.UsageCount != 6 {
			t.Errorf("%s UsageCount = %d, want 6", c.Name, c.UsageCount)
		}
	}
}

func TestRotator_ConcurrentNext(t *testing.T) {
	r := newTestRotator(t, nil)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		if _, err := r.Register(ctx, "prediction", name, "sk-"+name); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Next(ctx, "prediction"); err != nil {
				t.Errorf("Next() error = %v", err)
			}
		}()
	}
	wg.Wait()

	creds, _ := r.List(ctx)
	var total int64
	for _, c := range creds {
		total += c.UsageCount
	}
	if total != 20 {
		t.Errorf("total usage = %d, want 20", total)
	}
}

func TestRotator_SkipsInactive(t *testing.T) {
	r := newTestRotator(t, nil)
	ctx := context.Background()
	if _, err := r.Register(ctx, "taskapi", "only", "sk"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	creds, _ := r.List(ctx)

	if _, err := r.SetActive(ctx, creds[0].ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if ok, _ := r.HasActive(ctx, "taskapi"); ok {
		t.Error("HasActive() = true after deactivation")
	}
	if _, err := r.Next(ctx, "taskapi"); !errors.Is(err, ErrNoCredentialAvailable) {
		t.Errorf("Next() error = %v, want ErrNoCredentialAvailable", err)
	}
	if _, err := r.Next(ctx, "unknown"); !errors.Is(err, ErrNoCredentialAvailable) {
		t.Errorf("Next(unknown) error = %v, want ErrNoCredentialAvailable", err)
	}
}

func TestRotator_EncryptsSecrets(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}
	r := newTestRotator(t, enc)
	ctx := context.Background()

	if err := r.Provision(ctx, []config.ProviderCredential{{Provider: "taskapi", Name: "env", Secret: "sk-live-123"}}); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	creds, _ := r.List(ctx)
	if len(creds) != 1 || creds[0].SecretEncrypted == "sk-live-123" {
		t.Fatalf("secret should be stored encrypted: %+v", creds)
	}

	cred, err := r.Next(ctx, "taskapi")
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if cred.Secret != "sk-live-123" {
		t.Errorf("Secret = %q, want decrypted value", cred.Secret)
	}
}
