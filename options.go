package neardup

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/neardup/internal/convert"
	"github.com/kailas-cloud/neardup/internal/tokenize"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs      []string
	password   string
	keyPrefix  string
	collection string
	numPerm    int
	bands      int
	topK       int
	refineK    int
	segmenter  tokenize.Segmenter
	converter  convert.Converter
	logger     *zap.Logger
}

// WithRedis sets the Redis address and password.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithAddrs sets multiple database addresses (cluster).
func WithAddrs(addrs ...string) Option {
	return func(c *clientConfig) {
		c.addrs = addrs
	}
}

// WithKeyPrefix overrides the storage key prefix (default "neardup:").
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = prefix
	}
}

// WithCollection sets the collection name (default "documents").
func WithCollection(name string) Option {
	return func(c *clientConfig) {
		c.collection = name
	}
}

// WithNumPerm sets the signature length (default 128). All clients of one
// collection must agree on it.
func WithNumPerm(numPerm int) Option {
	return func(c *clientConfig) {
		c.numPerm = numPerm
	}
}

// WithBands sets the LSH banding parameter (default 16). NumPerm must be
// divisible by it.
func WithBands(bands int) Option {
	return func(c *clientConfig) {
		c.bands = bands
	}
}

// WithSearchDefaults overrides the default top_k / refine_k search budgets.
func WithSearchDefaults(topK, refineK int) Option {
	return func(c *clientConfig) {
		c.topK = topK
		c.refineK = refineK
	}
}

// WithRunSegmenter switches token extraction to the regex-run strategy
// instead of the default script-aware CJK bigram strategy.
func WithRunSegmenter() Option {
	return func(c *clientConfig) {
		c.segmenter = tokenize.RunSegmenter{}
	}
}

// WithConverter enables ingestion from binary sources via an external
// document converter (see NewConverter).
func WithConverter(conv convert.Converter) Option {
	return func(c *clientConfig) {
		c.converter = conv
	}
}

// WithLogger sets a structured logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
