package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tjfontaine/webcore/internal/core/domain"
)

func seed(t *testing.T, store *Store) {
	t.Helper()
	participants := []*domain.Participant{
		{Username: "alice", Giving: 500, Receiving: 0, Claimed: true},
		{Username: "bob", Giving: 300, Receiving: 700, Claimed: true},
		{Username: "carol", Giving: 300, Receiving: 100, Claimed: true},
		{Username: "stub", Giving: 0, Receiving: 900, Claimed: false},
	}
	for _, p := range participants {
		if err := store.AddParticipant(context.Background(), p); err != nil {
			t.Fatalf("AddParticipant(%s) error = %v", p.Username, err)
		}
	}
}

func TestSQLiteStore_GlobalStats(t *testing.T) {
	// Use in-memory SQLite with shared cache for testing
	store, err := New("file:memdb1?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	before, err := store.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("GlobalStats() error = %v", err)
	}
	if before.NParticipants != 0 || !before.UpdatedAt.IsZero() {
		t.Errorf("GlobalStats() before update = %+v, want zero", before)
	}

	seed(t, store)
	if err := store.UpdateGlobalStats(ctx); err != nil {
		t.Fatalf("UpdateGlobalStats() error = %v", err)
	}

	stats, err := store.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("GlobalStats() error = %v", err)
	}
	if stats.NParticipants != 3 {
		t.Errorf("NParticipants = %d, want 3", stats.NParticipants)
	}
	if stats.TransferVolume != 1100 {
		t.Errorf("TransferVolume = %d, want 1100", stats.TransferVolume)
	}
	if stats.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	// Update is idempotent and reflects new rows.
	if err := store.AddParticipant(ctx, &domain.Participant{Username: "dave", Giving: 100, Claimed: true}); err != nil {
		t.Fatalf("AddParticipant() error = %v", err)
	}
	if err := store.UpdateGlobalStats(ctx); err != nil {
		t.Fatalf("UpdateGlobalStats() error = %v", err)
	}
	stats, _ = store.GlobalStats(ctx)
	if stats.NParticipants != 4 || stats.TransferVolume != 1200 {
		t.Errorf("GlobalStats() = %+v, want 4 / 1200", stats)
	}
}

func TestSQLiteStore_Homepage(t *testing.T) {
	store, err := New("file:memdb2?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	seed(t, store)
	if err := store.UpdateHomepageQueries(ctx); err != nil {
		t.Fatalf("UpdateHomepageQueries() error = %v", err)
	}

	hp, err := store.Homepage(ctx, 10)
	if err != nil {
		t.Fatalf("Homepage() error = %v", err)
	}

	wantGivers := []domain.HomepageEntry{{Username: "alice", Amount: 500}, {Username: "bob", Amount: 300}, {Username: "carol", Amount: 300}}
	if len(hp.TopGivers) != len(wantGivers) {
		t.Fatalf("TopGivers = %+v", hp.TopGivers)
	}
	for i, w := range wantGivers {
		if hp.TopGivers[i] != w {
			t.Errorf("TopGivers[%d] = %+v, want %+v", i, hp.TopGivers[i], w)
		}
	}

	// unclaimed participants are excluded
	wantReceivers := []domain.HomepageEntry{{Username: "bob", Amount: 700}, {Username: "carol", Amount: 100}}
	if len(hp.TopReceivers) != len(wantReceivers) {
		t.Fatalf("TopReceivers = %+v", hp.TopReceivers)
	}
	for i, w := range wantReceivers {
		if hp.TopReceivers[i] != w {
			t.Errorf("TopReceivers[%d] = %+v, want %+v", i, hp.TopReceivers[i], w)
		}
	}
	if hp.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	limited, err := store.Homepage(ctx, 1)
	if err != nil {
		t.Fatalf("Homepage() error = %v", err)
	}
	if len(limited.TopGivers) != 1 || len(limited.TopReceivers) != 1 {
		t.Errorf("Homepage(1) = %+v", limited)
	}
}

func TestSQLiteStore_HomepageEmpty(t *testing.T) {
	store, err := New("file:memdb3?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	hp, err := store.Homepage(context.Background(), 0)
	if err != nil {
		t.Fatalf("Homepage() error = %v", err)
	}
	if hp.TopGivers == nil || hp.TopReceivers == nil {
		t.Error("empty lists should be non-nil")
	}
}

func TestSQLiteStore_SelfCheck(t *testing.T) {
	store, err := New("file:memdb4?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	seed(t, store)
	if err := store.UpdateGlobalStats(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateHomepageQueries(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.SelfCheck(ctx); err != nil {
		t.Errorf("SelfCheck() error = %v", err)
	}

	if _, err := store.db.Exec(`DELETE FROM participants WHERE username = 'alice'`); err != nil {
		t.Fatal(err)
	}
	if err := store.SelfCheck(ctx); err == nil {
		t.Error("SelfCheck() expected error for orphaned homepage row")
	}
}

func TestSQLiteStore_AddParticipantValidation(t *testing.T) {
	store, err := New("file:memdb5?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	if err := store.AddParticipant(context.Background(), &domain.Participant{}); err == nil {
		t.Error("AddParticipant() expected error for empty username")
	}
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	seed(t, store)
	if err := store.UpdateGlobalStats(ctx); err != nil {
		t.Fatal(err)
	}
	store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()
	stats, err := reopened.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("GlobalStats() error = %v", err)
	}
	if stats.NParticipants != 3 {
		t.Errorf("NParticipants after reopen = %d, want 3", stats.NParticipants)
	}
}
