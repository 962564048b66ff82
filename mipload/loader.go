// Package mipload loads the mip levels of a texture from image files in
// the background.
//
// Levels are decoded on worker goroutines and handed to the frame loop
// through a channel. Nothing touches the GPU until Apply, which the frame
// driver calls between frames; until then every level shows
// gg3d.Placeholder.
//
//	l := mipload.New(os.DirFS("textures"), []string{"checker512.png", "checker256.png"})
//	tex, err := l.NewTexture(ctx, "checker")
//	l.Start(context.Background())
//	// once per frame:
//	if _, err := l.Apply(tex); err != nil { ... }
package mipload

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gg3d"
	"github.com/gogpu/gg3d/cache"
)

// ErrNoLevels is returned when a loader has no paths.
var ErrNoLevels = errors.New("mipload: no levels")

// ErrNotStarted is returned by Wait before Start.
var ErrNotStarted = errors.New("mipload: not started")

// Level is the decode result of one mip level.
type Level struct {
	Index int
	Path  string
	Image image.Image
	Err   error
}

// ImageCache caches decoded images by path.
type ImageCache = cache.LRU[string, image.Image]

// NewImageCache returns a cache that holds up to budget bytes of decoded
// pixels.
func NewImageCache(budget int64) *ImageCache {
	return cache.New[string, image.Image](budget, imageBytes)
}

func imageBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// Loader decodes an ordered list of image paths, level 0 first.
//
// Start and Wait may be called from any goroutine. Apply, Done and
// NewTexture belong to the frame loop.
type Loader struct {
	fsys     fs.FS
	paths    []string
	limit    int
	generate bool
	width    uint32
	height   uint32
	cache    *ImageCache
	log      *slog.Logger

	once    sync.Once
	started atomic.Bool
	results chan Level
	done    chan struct{}
	err     error

	// Owned by Apply.
	received  int
	images    []image.Image
	generated bool
}

// New creates a loader for paths in fsys. Decoding begins with Start.
func New(fsys fs.FS, paths []string, opts ...Option) *Loader {
	l := &Loader{
		fsys:    fsys,
		paths:   append([]string(nil), paths...),
		limit:   4,
		log:     gg3d.Logger(),
		results: make(chan Level, len(paths)),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Paths returns the level paths.
func (l *Loader) Paths() []string { return append([]string(nil), l.paths...) }

// NewTexture allocates a texture sized for level 0, every level filled
// with the placeholder color, using the default sampler. Without WithSize
// the size is read from the header of the level 0 file. Generated chains
// run down to 1x1; otherwise the texture has one level per path.
func (l *Loader) NewTexture(ctx *gg3d.Context, label string) (*gg3d.Texture, error) {
	if len(l.paths) == 0 {
		return nil, ErrNoLevels
	}
	w, h := l.width, l.height
	if w == 0 || h == 0 {
		cfg, err := l.decodeConfig(l.paths[0])
		if err != nil {
			return nil, fmt.Errorf("mipload: size of %s: %w", l.paths[0], err)
		}
		w, h = uint32(cfg.Width), uint32(cfg.Height)
	}
	levels := uint32(len(l.paths))
	if l.generate {
		levels = 0
	}
	return gg3d.NewTexture(ctx, label, w, h, levels, gg3d.DefaultSamplerConfig())
}

func (l *Loader) decodeConfig(path string) (image.Config, error) {
	f, err := l.fsys.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

// Start begins decoding. Later calls do nothing. Cancelling ctx stops
// levels that have not started decoding.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		l.started.Store(true)
		g, gctx := errgroup.WithContext(ctx)
		if l.limit > 0 {
			g.SetLimit(l.limit)
		}
		go func() {
			defer close(l.done)
			for i, path := range l.paths {
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					img, err := l.decode(path)
					if err != nil {
						err = fmt.Errorf("mipload: level %d (%s): %w", i, path, err)
						l.log.Warn("mipload: decode failed", "level", i, "path", path, "err", err)
					}
					l.results <- Level{Index: i, Path: path, Image: img, Err: err}
					return nil
				})
			}
			l.err = g.Wait()
		}()
	})
}

func (l *Loader) decode(path string) (image.Image, error) {
	if l.cache != nil {
		if img, ok := l.cache.Get(path); ok {
			return img, nil
		}
	}
	f, err := l.fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	l.log.Debug("mipload: decoded", "path", path, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	if l.cache != nil {
		l.cache.Set(path, img)
	}
	return img, nil
}

// Wait blocks until every level has been decoded or skipped. It returns
// the context error if decoding was cancelled.
func (l *Loader) Wait(ctx context.Context) error {
	if !l.started.Load() {
		return ErrNotStarted
	}
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply uploads every level decoded since the last call and returns how
// many levels it wrote. Levels that failed to decode keep the placeholder.
// With WithGenerateMips, once all files are in, levels without an image
// are downsampled from the level above.
func (l *Loader) Apply(tex *gg3d.Texture) (int, error) {
	if tex == nil {
		return 0, errors.New("mipload: nil texture")
	}
	if l.images == nil {
		l.images = make([]image.Image, tex.MipLevels())
	}

	applied := 0
	var errs []error
	for {
		select {
		case lv := <-l.results:
			l.received++
			if lv.Err != nil {
				continue
			}
			if lv.Index >= len(l.images) {
				l.log.Warn("mipload: level beyond texture", "level", lv.Index, "levels", len(l.images))
				continue
			}
			if err := tex.WriteLevel(uint32(lv.Index), lv.Image); err != nil {
				errs = append(errs, err)
				continue
			}
			l.images[lv.Index] = lv.Image
			applied++
		default:
			if l.generate && !l.generated && l.received == len(l.paths) {
				n, err := l.generateMissing(tex)
				applied += n
				if err != nil {
					errs = append(errs, err)
				}
				l.generated = true
			}
			return applied, errors.Join(errs...)
		}
	}
}

func (l *Loader) generateMissing(tex *gg3d.Texture) (int, error) {
	n := 0
	for level := 1; level < len(l.images); level++ {
		if l.images[level] != nil || l.images[level-1] == nil {
			continue
		}
		w, h := tex.LevelSize(uint32(level))
		img := Downsample(l.images[level-1], int(w), int(h))
		if err := tex.WriteLevel(uint32(level), img); err != nil {
			return n, err
		}
		l.images[level] = img
		n++
	}
	l.log.Debug("mipload: generated levels", "count", n)
	return n, nil
}

// Done reports whether every level has been applied. A cancelled load is
// never done.
func (l *Loader) Done() bool {
	return l.received == len(l.paths) && (!l.generate || l.generated)
}

// Downsample scales src to w x h with bilinear filtering.
func Downsample(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
