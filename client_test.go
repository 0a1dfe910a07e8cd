package neardup

import (
	"testing"

	"github.com/kailas-cloud/neardup/internal/tokenize"
)

func TestNew_NoAddrs(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("expected error without database address")
	}
}

func TestOptions_Applied(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithRedis("localhost:6379", "secret"),
		WithKeyPrefix("test:"),
		WithCollection("corpus"),
		WithNumPerm(64),
		WithBands(8),
		WithSearchDefaults(5, 20),
		WithRunSegmenter(),
	} {
		o(cfg)
	}

	if len(cfg.addrs) != 1 || cfg.addrs[0] != "localhost:6379" {
		t.Errorf("addrs: got %v", cfg.addrs)
	}
	if cfg.password != "secret" {
		t.Errorf("password: got %q", cfg.password)
	}
	if cfg.keyPrefix != "test:" {
		t.Errorf("keyPrefix: got %q", cfg.keyPrefix)
	}
	if cfg.collection != "corpus" {
		t.Errorf("collection: got %q", cfg.collection)
	}
	if cfg.numPerm != 64 || cfg.bands != 8 {
		t.Errorf("minhash params: got numPerm=%d bands=%d", cfg.numPerm, cfg.bands)
	}
	if cfg.topK != 5 || cfg.refineK != 20 {
		t.Errorf("search defaults: got topK=%d refineK=%d", cfg.topK, cfg.refineK)
	}
	if _, ok := cfg.segmenter.(tokenize.RunSegmenter); !ok {
		t.Errorf("segmenter: got %T, want RunSegmenter", cfg.segmenter)
	}
}

func TestOptions_WithAddrs(t *testing.T) {
	cfg := &clientConfig{}
	WithAddrs("node1:6379", "node2:6379")(cfg)

	if len(cfg.addrs) != 2 {
		t.Fatalf("addrs: got %d, want 2", len(cfg.addrs))
	}
}
