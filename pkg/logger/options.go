package logger

import (
	"io"
	"log/slog"
)

// Option tweaks the logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug, which is what --debug and the hook
// log file use. Otherwise records below Info are dropped.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithPretty renders records with charmbracelet/log. Hooks use it on stderr.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.pretty = pretty
	}
}

// WithJSON writes one JSON object per record, as in the hook log file.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter replaces the destination. The default is os.Stderr because
// stdout belongs to the assistant during a hook.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters tees output to every w.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource adds the calling file and line.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
