package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/luminode/beatcore/internal/capture"
	"github.com/luminode/beatcore/internal/cli"
	"github.com/luminode/beatcore/internal/config"
	"github.com/luminode/beatcore/internal/engine"
	"github.com/luminode/beatcore/internal/envelope"
	"github.com/luminode/beatcore/internal/report"
	"github.com/luminode/beatcore/internal/telemetry"
	"github.com/luminode/beatcore/internal/ui"
	"github.com/luminode/beatcore/internal/wavein"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "0.1.0")
var version = "dev"

// CLI defines the command-line interface
type CLI struct {
	Version   bool   `short:"v" help:"Show version information"`
	Debug     bool   `short:"d" help:"Enable debug logging"`
	Config    string `short:"c" help:"YAML parameter file" type:"existingfile" optional:""`
	Telemetry string `help:"Write telemetry JSON lines to PATH ('-' for stdout)" optional:""`

	Listen  ListenCmd  `cmd:"" help:"Capture the default input device and track beats live"`
	Analyze AnalyzeCmd `cmd:"" help:"Replay a WAV file through the pipeline and summarise it"`
}

// ListenCmd captures live audio.
type ListenCmd struct {
	Headless bool `help:"Run without the TUI; telemetry or logs only"`
}

// AnalyzeCmd replays a file offline.
type AnalyzeCmd struct {
	File string `arg:"" name:"file" help:"WAV file to analyse" type:"existingfile"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("beatcore"),
		kong.Description("Real-time audio analysis and beat tracking"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if cliArgs.Debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	params, err := config.Load(cliArgs.Config, func(name string, was, now float64) {
		logger.Warnf("config: %s out of range (%g), clamped to %g", name, was, now)
	})
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	tel, telClose, err := openTelemetry(cliArgs.Telemetry)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	defer telClose()

	switch ctx.Command() {
	case "listen":
		err = runListen(params, logger, tel, cliArgs.Listen.Headless)
	case "analyze <file>":
		err = runAnalyze(params, logger, tel, cliArgs.Analyze.File)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// openTelemetry resolves the --telemetry flag into an emitter.
func openTelemetry(path string) (*telemetry.Emitter, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return telemetry.New(os.Stdout), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open telemetry output: %w", err)
	}
	return telemetry.New(f), func() { f.Close() }, nil
}

// runListen drives the engine from the default input device at the nominal
// frame rate until interrupted.
func runListen(params *config.Params, logger *log.Logger, tel *telemetry.Emitter, headless bool) error {
	eng := engine.New(params, engine.Options{
		Sink:      envelope.NopSink{},
		Logger:    logger,
		Telemetry: tel,
	})

	stream, err := capture.Open(eng.OnBlock)
	if err != nil {
		return err
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return err
	}

	framePeriod := time.Duration(float64(time.Second) / params.FrameRate)

	if headless {
		return runHeadless(eng, framePeriod)
	}

	model := ui.NewModel()
	p := tea.NewProgram(model, tea.WithAltScreen())

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(framePeriod)
		defer ticker.Stop()
		start := time.Now()
		last := start
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				dt := now.Sub(last).Seconds()
				last = now
				ctrl := eng.Step(dt)
				select {
				case model.Ctrl <- ui.ControlMsg{Ctrl: ctrl, ElapsedSec: now.Sub(start).Seconds()}:
				default: // monitor is behind; drop this frame's snapshot
				}
			}
		}
	}()

	_, err = p.Run()
	close(done)
	return err
}

// runHeadless runs the frame loop without a UI until SIGINT/SIGTERM.
func runHeadless(eng *engine.Engine, framePeriod time.Duration) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(framePeriod)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-sigCh:
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			eng.Step(dt)
		}
	}
}

// runAnalyze replays a WAV file through the pipeline at simulated frame
// cadence and prints a summary.
func runAnalyze(params *config.Params, logger *log.Logger, tel *telemetry.Emitter, path string) error {
	clip, err := wavein.Load(path)
	if err != nil {
		return err
	}
	if clip.SourceRate != clip.SampleRate {
		logger.Infof("resampled %s from %d Hz to %d Hz", path, clip.SourceRate, clip.SampleRate)
	}

	clock := &engine.ManualClock{}
	eng := engine.New(params, engine.Options{
		Sink:      envelope.NopSink{},
		Logger:    logger,
		Telemetry: tel,
		Clock:     clock,
	})

	summary := report.NewSummary(path)
	summary.DurationSecs = clip.DurationSeconds()

	dt := 1 / params.FrameRate
	perFrame := float64(config.SampleRate) * dt

	cursor := 0.0
	delivered := 0
	var ctrl engine.Control
	for delivered < len(clip.Samples) {
		cursor += perFrame
		end := int(cursor)
		if end > len(clip.Samples) {
			end = len(clip.Samples)
		}
		for delivered < end {
			n := end - delivered
			if n > config.MaxBlockSamples {
				n = config.MaxBlockSamples
			}
			eng.OnBlock(clip.Samples[delivered : delivered+n])
			delivered += n
		}

		clock.Advance(dt)
		ctrl = eng.Step(dt)
		summary.Frame(float64(clock.NowMs())/1000, float64(ctrl.Level), ctrl.Active)
	}

	summary.OnsetCount = eng.Onsets()
	summary.FinalBPM = float64(ctrl.BPM)
	summary.FinalConfidence = float64(ctrl.Confidence)
	summary.HWGain = int(ctrl.HWGain)

	cli.PrintSection("Analysis: " + path)
	cli.PrintBox(summary.Render())
	return nil
}
