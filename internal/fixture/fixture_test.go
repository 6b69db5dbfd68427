package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
)

func TestLoadNullAuthorDefaultsToEmpty(t *testing.T) {
	dir := t.TempDir()
	body := "id: abc\ntitle: Deleted account post\nselftext: hi\nauthor: null\ncreated_utc: 1700000000\npermalink: /r/x/abc\n"
	if err := os.WriteFile(filepath.Join(dir, "abc.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(filepath.Join(dir, "abc.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item := s.RawItem()
	if item.Author != "" {
		t.Fatalf("expected empty author, got %q", item.Author)
	}
	if !item.IsSelf {
		t.Fatal("fixtures without is_self are text posts")
	}
	if item.IDPrefix != domain.RedditIDPrefix || item.Domain != domain.RedditDomain {
		t.Fatalf("unexpected source tags: %+v", item)
	}
}

func TestWriteThenLoadDir(t *testing.T) {
	dir := t.TempDir()
	item := domain.RawItem{NativeID: "k1", Title: "link post", IsSelf: false, Author: "bob", Channel: "Bitcoin"}
	path, err := Write(dir, FromRawItem(item))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "k1.yaml" {
		t.Fatalf("unexpected fixture path %s", path)
	}

	subs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 fixture, got %d", len(subs))
	}
	got := subs[0].RawItem()
	if got.IsSelf || got.Author != "bob" || got.Channel != "Bitcoin" {
		t.Fatalf("unexpected raw item %+v", got)
	}
}

func TestLoadRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("title: no id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for fixture without id")
	}
	if _, err := Write(dir, Submission{}); err == nil {
		t.Fatal("expected error writing fixture without id")
	}
}
