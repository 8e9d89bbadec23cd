package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

// ========================================
// EnsureUser
// ========================================

func TestLedgerRepository_EnsureUser(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	created, err := repos.Ledger.EnsureUser(ctx, "user_1", 25)
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if !created {
		t.Error("EnsureUser() created = false on first call")
	}

	created, err = repos.Ledger.EnsureUser(ctx, "user_1", 25)
	if err != nil {
		t.Fatalf("EnsureUser() second call error = %v", err)
	}
	if created {
		t.Error("EnsureUser() created = true on second call")
	}

	balance, err := repos.Ledger.GetBalance(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if balance != 25 {
		t.Errorf("balance = %d, want 25", balance)
	}

	txs, err := repos.Ledger.ListTransactions(ctx, "user_1", 10, 0)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 || txs[0].Type != models.TxTypeGrant {
		t.Errorf("transactions = %+v, want one grant", txs)
	}
}

func TestLedgerRepository_GetBalance_UnknownUser(t *testing.T) {
	repos := setupTestRepos(t)

	_, err := repos.Ledger.GetBalance(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetBalance() error = %v, want ErrUserNotFound", err)
	}
}

// ========================================
// Reserve
// ========================================

func TestLedgerRepository_Reserve(t *testing.T) {
	tests := []struct {
		name        string
		balance     int
		amount      int
		wantOK      bool
		wantBalance int
	}{
		{name: "sufficient", balance: 100, amount: 60, wantOK: true, wantBalance: 40},
		{name: "exact", balance: 100, amount: 100, wantOK: true, wantBalance: 0},
		{name: "insufficient", balance: 50, amount: 80, wantOK: false, wantBalance: 50},
		{name: "zero amount", balance: 0, amount: 0, wantOK: true, wantBalance: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := setupTestRepos(t)
			ctx := context.Background()
			insertTestUser(t, repos, "user_1", tt.balance)

			balance, ok, err := repos.Ledger.Reserve(ctx, "user_1", tt.amount, "test")
			if err != nil {
				t.Fatalf("Reserve() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("Reserve() ok = %v, want %v", ok, tt.wantOK)
			}
			if balance != tt.wantBalance {
				t.Errorf("Reserve() balance = %d, want %d", balance, tt.wantBalance)
			}

			stored, _ := repos.Ledger.GetBalance(ctx, "user_1")
			if stored != tt.wantBalance {
				t.Errorf("stored balance = %d, want %d", stored, tt.wantBalance)
			}
		})
	}
}

func TestLedgerRepository_Reserve_UnknownUser(t *testing.T) {
	repos := setupTestRepos(t)

	balance, ok, err := repos.Ledger.Reserve(context.Background(), "ghost", 10, "test")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if ok || balance != 0 {
		t.Errorf("Reserve() = (%d, %v), want (0, false)", balance, ok)
	}
}

func TestLedgerRepository_Reserve_Concurrent(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	insertTestUser(t, repos, "user_1", 100)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i], errs[i] = repos.Ledger.Reserve(ctx, "user_1", 60, "concurrent")
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := range 2 {
		if errs[i] != nil {
			t.Fatalf("Reserve() error = %v", errs[i])
		}
		if results[i] {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("successful reservations = %d, want 1", successes)
	}

	balance, _ := repos.Ledger.GetBalance(ctx, "user_1")
	if balance != 40 {
		t.Errorf("balance = %d, want 40", balance)
	}
}

// ========================================
// Refund / Grant
// ========================================

func TestLedgerRepository_RefundAndGrant(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	insertTestUser(t, repos, "user_1", 0)

	balance, err := repos.Ledger.Grant(ctx, "user_1", 200, "cs_test_1", "purchase")
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if balance != 200 {
		t.Errorf("Grant() balance = %d, want 200", balance)
	}

	if _, ok, err := repos.Ledger.Reserve(ctx, "user_1", 70, "job"); err != nil || !ok {
		t.Fatalf("Reserve() = %v, %v", ok, err)
	}

	balance, err = repos.Ledger.Refund(ctx, "user_1", 70, "job_1", "refund")
	if err != nil {
		t.Fatalf("Refund() error = %v", err)
	}
	if balance != 200 {
		t.Errorf("Refund() balance = %d, want 200", balance)
	}

	txs, err := repos.Ledger.ListTransactions(ctx, "user_1", 10, 0)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	sum := 0
	for _, tx := range txs {
		sum += tx.Amount
	}
	if sum != balance {
		t.Errorf("sum of transactions = %d, want balance %d", sum, balance)
	}
}

func TestLedgerRepository_Grant_DuplicateReference(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	insertTestUser(t, repos, "user_1", 0)

	if _, err := repos.Ledger.Grant(ctx, "user_1", 100, "cs_test_dup", "purchase"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	_, err := repos.Ledger.Grant(ctx, "user_1", 100, "cs_test_dup", "purchase")
	if !errors.Is(err, ErrDuplicateReference) {
		t.Errorf("second Grant() error = %v, want ErrDuplicateReference", err)
	}

	balance, _ := repos.Ledger.GetBalance(ctx, "user_1")
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}
}

func TestLedgerRepository_Refund_UnknownUser(t *testing.T) {
	repos := setupTestRepos(t)

	_, err := repos.Ledger.Refund(context.Background(), "ghost", 10, "job_1", "refund")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Refund() error = %v, want ErrUserNotFound", err)
	}
}
