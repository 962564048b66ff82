package mipload

import "log/slog"

// Option configures a Loader.
type Option func(*Loader)

// WithConcurrency limits how many levels decode at once. Zero or less
// removes the limit. The default is 4.
func WithConcurrency(n int) Option {
	return func(l *Loader) { l.limit = n }
}

// WithGenerateMips allocates the full mip chain and fills levels that have
// no file by downsampling the level above.
func WithGenerateMips() Option {
	return func(l *Loader) { l.generate = true }
}

// WithSize sets the level 0 size used by NewTexture instead of reading it
// from the first file.
func WithSize(width, height uint32) Option {
	return func(l *Loader) { l.width, l.height = width, height }
}

// WithCache shares decoded images between loaders reading the same file
// system.
func WithCache(c *ImageCache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithLogger replaces the logger, which defaults to gg3d.Logger().
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}
