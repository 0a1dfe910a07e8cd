package document

import (
	"bytes"
	"testing"

	"github.com/kailas-cloud/neardup/internal/minhash"
	"github.com/kailas-cloud/neardup/internal/tokenize"
)

func testDeps() (*tokenize.Tokenizer, *minhash.Generator) {
	return tokenize.New(tokenize.BigramSegmenter{}), minhash.NewGenerator(64)
}

func TestFromText_Fields(t *testing.T) {
	tok, gen := testDeps()

	doc := FromText(tok, gen, 42, "readme.md", "hello brave new world")

	if doc.ID() != 42 {
		t.Errorf("id: got %d, want 42", doc.ID())
	}
	if doc.Name() != "readme.md" {
		t.Errorf("name: got %q, want readme.md", doc.Name())
	}
	if doc.MinHash().NumPerm() != 64 {
		t.Errorf("num_perm: got %d, want 64", doc.MinHash().NumPerm())
	}
	if doc.TokenSet() != "hello brave new world" {
		t.Errorf("token set: got %q", doc.TokenSet())
	}
}

func TestFromText_TokenSetDeduplicated(t *testing.T) {
	tok, gen := testDeps()

	doc := FromText(tok, gen, 1, "dup.md", "red fish blue fish red fish")

	// First-appearance order, duplicates removed.
	if doc.TokenSet() != "red fish blue" {
		t.Errorf("token set: got %q, want %q", doc.TokenSet(), "red fish blue")
	}
}

func TestFromText_SignatureMatchesGenerator(t *testing.T) {
	tok, gen := testDeps()

	content := "same content twice over"
	doc := FromText(tok, gen, 1, "a", content)
	want := gen.Sign(tok.Tokenize(content))

	if !bytes.Equal(doc.MinHash().Bytes(), want.Bytes()) {
		t.Error("document signature differs from direct signing")
	}
}

func TestFromText_EmptyContent(t *testing.T) {
	tok, gen := testDeps()

	doc := FromText(tok, gen, 9, "empty.md", "")

	if doc.TokenSet() != "" {
		t.Errorf("token set: got %q, want empty", doc.TokenSet())
	}
	if doc.MinHash().NumPerm() != 64 {
		t.Errorf("num_perm: got %d, want 64", doc.MinHash().NumPerm())
	}
}

func TestReconstruct_Roundtrip(t *testing.T) {
	tok, gen := testDeps()

	built := FromText(tok, gen, 7, "orig.md", "some document body here")
	restored := Reconstruct(built.ID(), built.Name(), built.MinHash(), built.TokenSet())

	if restored.ID() != built.ID() || restored.Name() != built.Name() {
		t.Error("identity fields lost in reconstruction")
	}
	if !bytes.Equal(restored.MinHash().Bytes(), built.MinHash().Bytes()) {
		t.Error("signature lost in reconstruction")
	}
	if restored.TokenSet() != built.TokenSet() {
		t.Error("token set lost in reconstruction")
	}
}
