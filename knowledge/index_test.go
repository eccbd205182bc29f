package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/trekka/core"
)

// Interface compliance (compile-time assertions)
var _ core.Retriever = (*InMemoryIndex)(nil)

func TestInMemoryIndex_Retrieve(t *testing.T) {
	idx := NewInMemoryIndex()
	idx.Add("Bhaktapur Durbar Square is famous for pottery and woodcarving.", nil)
	idx.Add("Pokhara sits beside Phewa Lake with views of the Annapurna range.", nil)
	idx.Add("Bhaktapur is known for juju dhau, the king of curd.", map[string]any{"source": "food.md"})

	got, err := idx.Retrieve(context.Background(), "local information about Bhaktapur curd", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].ID != "psg_2" {
		t.Fatalf("expected best match psg_2 first, got %s", got[0].ID)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("expected descending scores, got %v then %v", got[0].Score, got[1].Score)
	}
	if got[0].Metadata["source"] != "food.md" {
		t.Fatalf("metadata not carried: %#v", got[0].Metadata)
	}
}

func TestInMemoryIndex_NoMatch(t *testing.T) {
	idx := NewInMemoryIndex()
	idx.Add("Pokhara lakeside", nil)

	got, err := idx.Retrieve(context.Background(), "Biratnagar", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no passages, got %#v", got)
	}

	got, _ = idx.Retrieve(context.Background(), "local information", 4)
	if len(got) != 0 {
		t.Fatalf("stopword-only query should match nothing, got %#v", got)
	}
}

func TestInMemoryIndex_MetadataIsolation(t *testing.T) {
	idx := NewInMemoryIndex()
	idx.Add("Lumbini birthplace", map[string]any{"k": "v"})
	got, _ := idx.Retrieve(context.Background(), "Lumbini", 1)
	got[0].Metadata["k"] = "changed"
	again, _ := idx.Retrieve(context.Background(), "Lumbini", 1)
	if again[0].Metadata["k"] != "v" {
		t.Fatalf("expected copy isolation, got %#v", again[0].Metadata["k"])
	}
}

func TestInMemoryIndex_LoadDir(t *testing.T) {
	dir := t.TempDir()
	content := "Patan is home to the Golden Temple.\n\nPatan Museum holds bronze statues.\n"
	if err := os.WriteFile(filepath.Join(dir, "patan.md"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	idx := NewInMemoryIndex()
	n, err := idx.LoadDir(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n != 2 || idx.Len() != 2 {
		t.Fatalf("expected 2 passages, got n=%d len=%d", n, idx.Len())
	}

	got, _ := idx.Retrieve(context.Background(), "bronze statues", 1)
	if len(got) != 1 || got[0].Metadata["source"] != "patan.md" {
		t.Fatalf("unexpected retrieval: %#v", got)
	}
}

func TestInMemoryIndex_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewInMemoryIndex().Retrieve(ctx, "x", 1); err == nil {
		t.Fatal("expected context error")
	}
}
