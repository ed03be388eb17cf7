package winevent

import (
	"errors"
	"testing"

	"github.com/hdrsnip/hdrsnip/internal/capture"
	"github.com/hdrsnip/hdrsnip/internal/controller"
	"github.com/hdrsnip/hdrsnip/internal/gpu"
)

func drain(t *testing.T, pump *Pump) controller.Event {
	t.Helper()
	select {
	case ev := <-pump.Events():
		return ev
	default:
		t.Fatal("no event pending")
		return nil
	}
}

func TestPump_PostDelivers(t *testing.T) {
	pump := NewPump()
	pump.Post(controller.TakeCaptureHotkey{})

	if _, ok := drain(t, pump).(controller.TakeCaptureHotkey); !ok {
		t.Error("posted event type was not preserved")
	}
}

func TestPump_TakerEventsMapping(t *testing.T) {
	pump := NewPump()
	events := TakerEvents{Pump: pump}

	mon := capture.MonitorInfo{SDRWhite: 1.25, Handle: 7}
	events.FoundMonitor(mon)
	if ev := drain(t, pump).(controller.FoundMonitor); ev.Monitor.Handle != 7 {
		t.Errorf("monitor handle = %d, want 7", ev.Monitor.Handle)
	}

	events.GotCapture(99, 1920, 1080)
	if ev := drain(t, pump).(controller.GotCapture); ev.Handle != 99 || ev.Width != 1920 {
		t.Errorf("capture event = %+v", ev)
	}

	img := &gpu.HDRImage{}
	events.ImportedCapture(img)
	if ev := drain(t, pump).(controller.ImportedCapture); ev.Image != img {
		t.Error("imported image pointer was not preserved")
	}

	events.SelectedWhitepoint(false, 1.25)
	if ev := drain(t, pump).(controller.SelectedWhitepoint); ev.Kind != controller.WhitepointSDR || ev.Value != 1.25 {
		t.Errorf("sdr whitepoint event = %+v", ev)
	}
	events.SelectedWhitepoint(true, 4.5)
	if ev := drain(t, pump).(controller.SelectedWhitepoint); ev.Kind != controller.WhitepointHDR || ev.Value != 4.5 {
		t.Errorf("hdr whitepoint event = %+v", ev)
	}

	events.Error(errors.New("boom"))
	if ev := drain(t, pump).(controller.ErrorDuringLoad); ev.Err == nil {
		t.Error("error event lost its cause")
	}
}
