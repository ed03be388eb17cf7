package capture

import (
	"errors"

	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/gpu"
	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/logx"
)

// Events is the taker's channel back to the controller; the adapter
// wiring these onto the event loop is winevent.TakerEvents, which
// keeps this package free of the controller's types.
type Events interface {
	FoundMonitor(MonitorInfo)
	GotCapture(handle uintptr, width, height uint32)
	ImportedCapture(img *gpu.HDRImage)
	SelectedWhitepoint(hdr bool, value float32)
	Error(err error)
}

// Taker owns the capture-taker thread: it resolves
// the active monitor, drives the OS capture session, imports the
// shared handle, and measures the capture's dynamic range, reporting
// each step as an event.
type Taker struct {
	log       *zap.Logger
	ctx       *gpu.Context
	provider  Provider
	cache     *Cache
	scanner   *gpu.HDRScanner
	histogram *gpu.HistogramGenerator
	events    Events

	requests chan bool // true = capture, false = shutdown
	done     chan struct{}
}

// NewTaker starts the capture-taker thread.
func NewTaker(ctx *gpu.Context, provider Provider, scanner *gpu.HDRScanner, histogram *gpu.HistogramGenerator, events Events) *Taker {
	t := &Taker{
		log:       logx.Named("capture.taker"),
		ctx:       ctx,
		provider:  provider,
		cache:     NewCache(),
		scanner:   scanner,
		histogram: histogram,
		events:    events,
		requests:  make(chan bool, 4),
		done:      make(chan struct{}),
	}
	go t.run()
	return t
}

// TakeCapture asks the thread for one capture; results arrive as
// events.
func (t *Taker) TakeCapture() {
	t.requests <- true
}

// Shutdown stops the thread and closes cached sessions.
func (t *Taker) Shutdown() {
	t.requests <- false
	<-t.done
}

func (t *Taker) run() {
	defer close(t.done)
	defer t.cache.Close()
	for take := range t.requests {
		if !take {
			return
		}
		if err := t.capture(); err != nil {
			t.log.Error("capture failed", zap.Error(err))
			t.events.Error(err)
		}
	}
}

func (t *Taker) capture() error {
	mon, err := t.provider.ResolveActiveMonitor()
	if err != nil {
		var mismatch *gpuerr.MonitorsMismatch
		if errors.As(err, &mismatch) {
			// Sessions negotiated against the old topology are stale.
			t.cache.Invalidate()
		}
		return err
	}
	t.events.FoundMonitor(mon)

	session, err := t.cache.Session(t.provider, mon)
	if err != nil {
		return err
	}

	handle, width, height, release, err := session.Capture()
	if err != nil {
		return err
	}
	t.events.GotCapture(handle, width, height)

	img, err := gpu.ImportExternal(t.ctx, width, height, gpu.WindowsNTHandle, handle)
	// The handle is released by the capture source after a successful
	// import; on failure it is released here as well.
	release()
	if err != nil {
		return err
	}
	t.events.ImportedCapture(img)

	isHDR, maximum, err := t.scanner.ContainsHDR(img, mon.SDRWhite)
	if err != nil {
		return err
	}
	if !isHDR {
		t.events.SelectedWhitepoint(false, mon.SDRWhite)
		return nil
	}

	bins, err := t.histogram.Generate(img, maximum)
	if err != nil {
		return err
	}
	samples := uint64(3) * uint64(width) * uint64(height)
	whitepoint := gpu.SelectWhitepoint(bins, maximum, samples)
	t.events.SelectedWhitepoint(true, whitepoint)
	return nil
}
