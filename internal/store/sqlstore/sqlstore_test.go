package sqlstore

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/anidao/anidao/internal/store"
	"github.com/anidao/anidao/internal/store/storetest"
	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "anidao.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.Migrate(); err != nil {
		t.Fatalf("Second migration failed: %v", err)
	}
}

func TestLikeEscaper(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"naruto", "naruto"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := likeEscaper.Replace(tt.in); got != tt.want {
			t.Errorf("likeEscaper(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
