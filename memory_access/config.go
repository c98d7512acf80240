package memory_access

import (
	"procmem/textcodec"
)

// Config holds per-session defaults. It is fixed when the Accessor is built.
type Config struct {
	// NullTerminator makes WriteText append one zero code unit.
	NullTerminator bool

	// Encoding is used by WriteText and by ReadText.
	Encoding textcodec.Codec

	// StringChunkSize is the read size used while looking for a terminator.
	StringChunkSize int

	// MaxStringLength bounds an unterminated string read, in bytes.
	MaxStringLength int
}

// DefaultConfig returns the defaults used by New.
func DefaultConfig() Config {
	return Config{
		NullTerminator:  true,
		Encoding:        textcodec.UTF8,
		StringChunkSize: 256,
		MaxStringLength: 1 << 20,
	}
}

// Option is a function that configures an Accessor
type Option func(*Config)

func WithNullTerminator(enabled bool) Option {
	return func(c *Config) {
		c.NullTerminator = enabled
	}
}

func WithEncoding(codec textcodec.Codec) Option {
	return func(c *Config) {
		c.Encoding = codec
	}
}

func WithStringChunkSize(size int) Option {
	return func(c *Config) {
		c.StringChunkSize = size
	}
}

func WithMaxStringLength(size int) Option {
	return func(c *Config) {
		c.MaxStringLength = size
	}
}
