package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mewerton/universal-system/internal/core/domain"
)

func TestSaveCreatesNamespaceFolder(t *testing.T) {
	base := t.TempDir()
	s, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Save(context.Background(), "rh/manual.pdf", strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	want := filepath.Join(base, "rh", "manual.pdf")
	if got := s.Path("rh/manual.pdf"); got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
	if _, err := os.Stat(want + ".part"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}

	rc, err := s.Open(context.Background(), "rh/manual.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"../fora.pdf", "rh/../../fora.pdf", ""} {
		err := s.Save(context.Background(), key, strings.NewReader("x"))
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Save(%q) expected ErrInvalidInput, got %v", key, err)
		}
	}
}
