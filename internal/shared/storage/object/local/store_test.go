package local

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
)

func TestPutOpenDelete(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	n, err := s.Put(ctx, "reports/u/a.json", "application/json", strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 11 {
		t.Fatalf("expected 11 bytes written, got %d", n)
	}

	rc, err := s.Open(ctx, "reports/u/a.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected content %q", data)
	}

	if err := s.Delete(ctx, "reports/u/a.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Open(ctx, "reports/u/a.json"); !os.IsNotExist(err) {
		t.Fatalf("expected not exist after delete, got %v", err)
	}
	if err := s.Delete(ctx, "reports/u/a.json"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Put(context.Background(), "../outside", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := s.Open(context.Background(), "/etc/passwd"); err == nil {
		t.Fatalf("expected absolute path to be rejected")
	}
}
