// Command rtassist is a terminal front end for the maritime operations voice
// assistant. Typed lines are sent as user text; assistant transcripts and
// tool output are printed, and assistant audio can be recorded to a raw
// pcm16 file.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codewandler/rtassist"
	"github.com/codewandler/rtassist/bus"
	"github.com/codewandler/rtassist/config"
	"github.com/codewandler/rtassist/maritime"
	"github.com/codewandler/rtassist/metrics"
	"github.com/codewandler/rtassist/tool"
	"github.com/codewandler/rtassist/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	greeting      = "Hi, how can I help you?"
	notConnected  = "Please activate voice mode before sending messages!"
	storeWarning  = "Warning: Database connection is not available. Some features may be limited."
	playerBuffer  = 30 * time.Second
	drainInterval = 100 * time.Millisecond
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rtassist:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = ""
		debug      = false
		audioOut   = ""
		audioIn    = ""
	)

	flag.StringVar(&configPath, "config", configPath, "path to the yaml config file")
	flag.BoolVar(&debug, "debug", debug, "enable debug logs")
	flag.StringVar(&audioOut, "audio-out", audioOut, "record assistant audio as raw pcm16 to this file")
	flag.StringVar(&audioIn, "audio-in", audioIn, "stream this raw pcm16 file as microphone input after connecting")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := cfg.Level()
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("rtassist", reg)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	console := ui.NewConsole(os.Stdout)
	var sink ui.Sink = console
	if audioOut != "" {
		f, err := os.Create(audioOut)
		if err != nil {
			return fmt.Errorf("open audio output: %w", err)
		}
		defer f.Close()

		player := ui.NewPlayer(cfg.Realtime.SampleRate, playerBuffer)
		go drain(ctx, player, f, logger)
		sink = ui.Tee(console, player)
	}

	registry := tool.NewRegistry(logger)
	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store unavailable", slog.Any("err", err))
		_ = console.Message(ctx, ui.Message{Role: ui.RoleSystem, Content: storeWarning})
	} else {
		defer store.Close()
		toolkit := maritime.NewToolkit(store, console, maritime.WithToolkitLogger(logger))
		if err := toolkit.Register(registry); err != nil {
			return err
		}
	}

	session := rtassist.New(bus.New(logger), registry, sink,
		rtassist.WithOptions(cfg.SessionOptions()...),
		rtassist.WithLogger(logger),
		rtassist.WithMetrics(collector),
	)

	_ = console.Message(ctx, ui.Message{Role: ui.RoleAssistant, Author: ui.AuthorAssistant, Content: greeting})

	if err := session.Connect(ctx); err != nil {
		logger.Error("connect failed", slog.Any("err", err))
	}

	if audioIn != "" && session.IsConnected() {
		go streamFile(ctx, session, audioIn, logger)
	}

	readInput(ctx, session, console, os.Stdin)

	shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := session.Disconnect(shutdown); err != nil {
		logger.Warn("disconnect", slog.Any("err", err))
	}
	session.Wait()
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*maritime.Store, error) {
	store, err := maritime.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("store connection verified", slog.String("dsn", cfg.DSN))

	if cfg.Seed {
		if err := store.Seed(ctx, time.Now()); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// readInput forwards typed lines until EOF or ctx is done.
func readInput(ctx context.Context, session *rtassist.Session, console ui.Sink, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !session.IsConnected() {
				_ = console.Message(ctx, ui.Message{Role: ui.RoleSystem, Content: notConnected})
				continue
			}
			if err := session.SendUserText(ctx, line); err != nil {
				_ = console.Message(ctx, ui.Message{Role: ui.RoleSystem, Content: notConnected})
			}
		}
	}
}

// drain moves played audio from the player to w.
func drain(ctx context.Context, player *ui.Player, w io.Writer, logger *slog.Logger) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			n, err := player.Read(buf)
			if err != nil || n == 0 {
				break
			}
			if _, err := w.Write(buf[:n]); err != nil {
				logger.Error("write audio", slog.Any("err", err))
				return
			}
		}
	}
}

func streamFile(ctx context.Context, session *rtassist.Session, path string, logger *slog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("open audio input", slog.Any("err", err))
		return
	}
	defer f.Close()

	if err := session.StreamInputAudio(ctx, f); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stream audio input", slog.Any("err", err))
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	logger.Info("serving metrics", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", slog.Any("err", err))
	}
}
