package save

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.design/x/clipboard"
	xdraw "golang.org/x/image/draw"

	"github.com/hdrsnip/hdrsnip/internal/gpu"
	"github.com/hdrsnip/hdrsnip/internal/logx"
)

// request carries one capture to the saver thread; the zero-image
// shutdown variant breaks the receive loop.
type request struct {
	img        *gpu.HDRImage
	whitepoint float32
	selection  gpu.Selection
	shutdown   bool
}

// Worker owns the capture-saver thread: tonemap, readback, crop, PNG
// encode, disk write, clipboard write. Failures are reported but do
// not crash the process.
type Worker struct {
	log        *zap.Logger
	tonemapper *gpu.Tonemapper
	baseDir    string

	requests chan request
	done     chan struct{}

	clipboardOnce sync.Once
	clipboardOK   bool
}

// NewWorker starts the saver thread. baseDir is the directory the
// screenshots folder is created under.
func NewWorker(tonemapper *gpu.Tonemapper, baseDir string) *Worker {
	w := &Worker{
		log:        logx.Named("save"),
		tonemapper: tonemapper,
		baseDir:    baseDir,
		requests:   make(chan request, 16),
		done:       make(chan struct{}),
	}
	go w.run()
	return w
}

// Save enqueues a capture. The worker now owns the HDR image and
// destroys it when done.
func (w *Worker) Save(img *gpu.HDRImage, whitepoint float32, sel gpu.Selection) {
	w.requests <- request{img: img, whitepoint: whitepoint, selection: sel}
}

// Shutdown stops the receive loop after draining queued requests and
// waits for the thread to exit.
func (w *Worker) Shutdown() {
	w.requests <- request{shutdown: true}
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for req := range w.requests {
		if req.shutdown {
			return
		}
		if err := w.process(req); err != nil {
			w.log.Error("saving capture failed", zap.Error(err))
		}
	}
}

func (w *Worker) process(req request) error {
	start := time.Now()

	sdr, err := w.tonemapper.Tonemap(req.img, req.whitepoint)
	req.img.Destroy()
	if err != nil {
		return err
	}

	pixels, err := sdr.CopyToCPU()
	width, height := sdr.Extent.Width, sdr.Extent.Height
	sdr.Destroy()
	if err != nil {
		return err
	}

	cropped := crop(pixels, width, height, req.selection)

	encoded, err := encodePNG(cropped)
	if err != nil {
		return err
	}

	path, err := w.writeFile(encoded)
	if err != nil {
		return err
	}

	w.writeClipboard(encoded)

	w.log.Info("capture saved",
		zap.String("path", path),
		zap.Int("bytes", len(encoded)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// crop copies the selection rect out of the tightly packed RGBA
// readback. The selection is clamped to the image bounds; an empty
// intersection yields the full image.
func crop(pixels []byte, width, height uint32, sel gpu.Selection) *image.RGBA {
	full := &image.RGBA{
		Pix:    pixels,
		Stride: int(width) * 4,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}

	x, y, w, h := sel.Rect()
	rect := image.Rect(int(x), int(y), int(x+w), int(y+h)).Intersect(full.Rect)
	if rect.Empty() {
		return full
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Draw(out, out.Rect, full, rect.Min, xdraw.Src)
	return out
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFile creates the screenshots directory when absent and writes
// the encoded PNG under a timestamped name.
func (w *Worker) writeFile(encoded []byte) (string, error) {
	dir := filepath.Join(w.baseDir, ScreenshotsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := screenshotFilename(time.Now())
	path, ok := sanitizePath(dir, name)
	if !ok {
		return "", os.ErrInvalid
	}

	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// writeClipboard publishes the PNG to the clipboard. Initialisation
// can fail on headless systems; that downgrades the clipboard step to
// a warning, the file on disk is the canonical output.
func (w *Worker) writeClipboard(encoded []byte) {
	w.clipboardOnce.Do(func() {
		if err := clipboard.Init(); err != nil {
			w.log.Warn("clipboard unavailable", zap.Error(err))
			return
		}
		w.clipboardOK = true
	})
	if !w.clipboardOK {
		return
	}
	clipboard.Write(clipboard.FmtImage, encoded)
}
