package recipient

import (
	"context"
	"os"
	"testing"

	"github.com/amishk599/gigradar/internal/model"
)

// Runs against a real database when GIGRADAR_TEST_POSTGRES_DSN is set.
func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("GIGRADAR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GIGRADAR_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() {
		s.pool.Exec(ctx, `DELETE FROM users WHERE chat_id LIKE 'test-%'`)
		s.Close()
	})
	return s
}

func TestPostgresStore_UpsertAndForSource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, model.Recipient{
		ChatID:   "test-1",
		Keywords: []string{"python", "django"},
		Sources:  map[model.Source]bool{model.SourceFL: true},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.ForSource(ctx, model.SourceFL)
	if err != nil {
		t.Fatalf("ForSource: %v", err)
	}
	var found *model.Recipient
	for i := range got {
		if got[i].ChatID == "test-1" {
			found = &got[i]
		}
	}
	if found == nil {
		t.Fatal("test-1 not returned for fl")
	}
	if len(found.Keywords) != 2 || found.Keywords[0] != "python" {
		t.Errorf("keywords = %v", found.Keywords)
	}

	kwork, _ := s.ForSource(ctx, model.SourceKwork)
	for _, r := range kwork {
		if r.ChatID == "test-1" {
			t.Error("test-1 opted out of kwork but was returned")
		}
	}

	// Opting in later replaces the flags.
	s.Upsert(ctx, model.Recipient{ChatID: "test-1", Sources: map[model.Source]bool{model.SourceKwork: true}})
	kwork, _ = s.ForSource(ctx, model.SourceKwork)
	seen := false
	for _, r := range kwork {
		if r.ChatID == "test-1" {
			seen = true
			if len(r.Keywords) != 0 {
				t.Errorf("keywords = %v, want cleared", r.Keywords)
			}
		}
	}
	if !seen {
		t.Error("test-1 missing from kwork after upsert")
	}
}

func TestPostgresStore_UnknownSource(t *testing.T) {
	s := &PostgresStore{}
	if _, err := s.ForSource(context.Background(), model.Source("upwork")); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestOpenPostgres_BadDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "postgres://%zz", 1); err == nil {
		t.Error("expected parse error")
	}
}
