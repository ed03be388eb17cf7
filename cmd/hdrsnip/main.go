// Command hdrsnip captures a region of an HDR display and saves it as
// a properly exposed SDR PNG, on disk and on the clipboard.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/hdrsnip/hdrsnip/internal/capture"
	"github.com/hdrsnip/hdrsnip/internal/config"
	"github.com/hdrsnip/hdrsnip/internal/controller"
	"github.com/hdrsnip/hdrsnip/internal/gpu"
	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
	"github.com/hdrsnip/hdrsnip/internal/logx"
	"github.com/hdrsnip/hdrsnip/internal/save"
	"github.com/hdrsnip/hdrsnip/internal/winevent"
)

const (
	exitOK              = 0
	exitFatal           = 1
	exitAlreadyRunning  = 2
	exitConfigDeclined  = 3
	surfaceRetryBudget  = 50
	surfaceRetryDelay   = 100 * time.Millisecond
	renderFailureBudget = 30
)

var (
	flagDebug   bool
	flagLogFile string

	exitCode = exitOK
)

var rootCmd = &cobra.Command{
	Use:           "hdrsnip",
	Short:         "HDR-aware screenshot capture",
	Long:          "hdrsnip captures a rectangular region of an HDR display and writes it to disk and the clipboard as a properly exposed SDR PNG.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		exitCode = runApp()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable validation layers and verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "append logs to this file as well as stdout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
	os.Exit(exitCode)
}

func banner() {
	fmt.Println("\033[38;2;90;200;250m _       _                  _      \033[0m")
	fmt.Println("\033[38;2;120;190;250m| |_  __| |_ _ ___ _ _  (_)_ __  \033[0m")
	fmt.Println("\033[38;2;150;180;250m| ' \\/ _` | '_(_-< ' \\ | | '_ \\ \033[0m")
	fmt.Println("\033[38;2;180;170;250m|_||_\\__,_|_| /__/_||_||_| .__/ \033[0m")
	fmt.Println("\033[38;2;210;160;250m                         |_|    \033[0m")
	fmt.Println("HDR-aware screenshot capture")
}

// saverAdapter bridges the controller's save contract onto the saver
// worker.
type saverAdapter struct {
	worker *save.Worker
}

func (s saverAdapter) Save(req controller.SaveRequest) {
	s.worker.Save(req.Image, req.Whitepoint, req.Selection)
}

func configPrompt() config.Prompt {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return config.StdinPrompt
	}
	// Launched from a shortcut or autostart entry: nobody can answer
	// a stdin prompt, so an invalid config resets to defaults.
	return func(message string) (bool, error) {
		logx.Get().Warn("config invalid and no terminal attached, resetting to defaults")
		return true, nil
	}
}

func runApp() int {
	if err := logx.Init(logx.Options{Debug: flagDebug, LogFilePath: flagLogFile}); err != nil {
		fmt.Fprintln(os.Stderr, "initialising logging:", err)
		return exitFatal
	}
	defer logx.Sync()
	log := logx.Named("main")

	if !flagDebug {
		banner()
	}

	guard, err := capture.AcquireInstance()
	if err != nil {
		if errors.Is(err, capture.ErrAlreadyRunning) {
			log.Error("another instance is already running")
			return exitAlreadyRunning
		}
		log.Error("acquiring single-instance guard", zap.Error(err))
		return exitFatal
	}
	defer guard.Release()

	cfg, err := config.Load(configPrompt())
	if err != nil {
		log.Error("loading config", zap.Error(err))
		return exitConfigDeclined
	}

	ctx, err := gpu.New(flagDebug, 0)
	if err != nil {
		log.Error("gpu initialisation failed", zap.Error(err))
		winevent.ShowErrorBox("hdrsnip", "Your GPU does not meet requirements: "+err.Error())
		return exitFatal
	}
	defer ctx.Destroy()

	scanner, err := gpu.NewHDRScanner(ctx)
	if err != nil {
		log.Error("creating scanner", zap.Error(err))
		return exitFatal
	}
	defer scanner.Destroy()

	histogram, err := gpu.NewHistogramGenerator(ctx)
	if err != nil {
		log.Error("creating histogram generator", zap.Error(err))
		return exitFatal
	}
	defer histogram.Destroy()

	tonemapper, err := gpu.NewTonemapper(ctx)
	if err != nil {
		log.Error("creating tonemapper", zap.Error(err))
		return exitFatal
	}
	defer tonemapper.Destroy()

	provider, err := capture.NewPlatformProvider()
	if err != nil {
		log.Error("creating capture provider", zap.Error(err))
		return exitFatal
	}

	pump := winevent.NewPump()
	window := winevent.NewWindow(pump)

	state := &gpu.RendererState{}
	waitIdle := func() { ctx.DeviceWaitIdle()() }

	saverWorker := save.NewWorker(tonemapper, ".")
	defer saverWorker.Shutdown()

	taker := capture.NewTaker(ctx, provider, scanner, histogram, winevent.TakerEvents{Pump: pump})
	defer taker.Shutdown()

	ctrl := controller.New(window, taker, saverAdapter{worker: saverWorker}, state, waitIdle)

	hotkey, err := capture.RegisterHotkey(cfg.Hotkey, func() {
		pump.Post(controller.TakeCaptureHotkey{})
	})
	if err != nil {
		log.Error("registering hotkey", zap.Error(err), zap.String("hotkey", cfg.Hotkey))
		return exitFatal
	}
	defer hotkey.Shutdown()

	resizeCh := make(chan [2]uint32, 4)

	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		for ev := range pump.Events() {
			if rz, ok := ev.(controller.Resized); ok {
				select {
				case resizeCh <- [2]uint32{rz.Width, rz.Height}:
				default:
				}
			}
			ctrl.HandleEvent(ev)
			if ctrl.State() == controller.StateExited {
				return
			}
		}
	}()

	renderStop := make(chan struct{})
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderThread(ctx, window, state, renderStop, resizeCh, log)
	}()

	// Blocks on the OS event loop until the window closes; closing
	// posts Shutdown, which the controller loop exits on.
	if err := window.Run(); err != nil {
		log.Error("event loop failed", zap.Error(err))
	}
	pump.Post(controller.Shutdown{})
	<-controllerDone
	close(renderStop)
	<-renderDone

	log.Info("shut down cleanly")
	return exitOK
}

// renderThread owns the swapchain: it creates the
// surface once the window exists, then renders until stopped.
func renderThread(ctx *gpu.Context, window *winevent.Window, state *gpu.RendererState, stop <-chan struct{}, resize <-chan [2]uint32, log *zap.Logger) {
	var surface vk.Surface
	var err error
	for i := 0; i < surfaceRetryBudget; i++ {
		select {
		case <-stop:
			return
		default:
		}
		surface, err = window.CreateSurface(ctx)
		if err == nil {
			break
		}
		time.Sleep(surfaceRetryDelay)
	}
	if err != nil {
		log.Warn("no renderer surface, preview disabled", zap.Error(err))
		return
	}

	renderer, err := gpu.NewRenderer(ctx, surface, vk.Extent2D{Width: 1, Height: 1}, state)
	if err != nil {
		log.Error("creating renderer", zap.Error(err))
		vk.DestroySurface(ctx.Instance(), surface, nil)
		return
	}
	defer func() {
		renderer.Destroy()
		vk.DestroySurface(ctx.Instance(), surface, nil)
	}()

	ticker := time.NewTicker(8 * time.Millisecond)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case ext := <-resize:
			renderer.Resize(ext[0], ext[1])
			continue
		case <-window.Redraw():
		case <-ticker.C:
		}

		if err := renderer.RenderFrame(); err != nil {
			var lost *gpuerr.DeviceLost
			if errors.As(err, &lost) {
				log.Error("gpu device lost", zap.Error(err))
				winevent.ShowErrorBox("hdrsnip", "The GPU device was lost: "+err.Error())
				os.Exit(exitFatal)
			}
			failures++
			log.Warn("frame failed", zap.Error(err), zap.Int("consecutiveFailures", failures))
			if failures >= renderFailureBudget {
				log.Error("render loop failing persistently, exiting")
				winevent.ShowErrorBox("hdrsnip", "Rendering failed repeatedly: "+err.Error())
				os.Exit(exitFatal)
			}
			continue
		}
		failures = 0
	}
}
