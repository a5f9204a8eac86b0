package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ritzau/flow-editor/pkg/config"
	"github.com/ritzau/flow-editor/pkg/cycles"
	"github.com/ritzau/flow-editor/pkg/graph"
	"github.com/ritzau/flow-editor/pkg/logging"
	"github.com/ritzau/flow-editor/pkg/machine"
	"github.com/ritzau/flow-editor/pkg/output"
	"github.com/ritzau/flow-editor/pkg/store"
	"github.com/ritzau/flow-editor/pkg/watcher"
	"github.com/ritzau/flow-editor/pkg/web"
	"github.com/spf13/pflag"
)

// Watcher tuning: editors often write a file in several steps
const (
	watchQuietPeriod = 300 * time.Millisecond
	watchMaxWait     = 2 * time.Second
)

func main() {
	flags := pflag.NewFlagSet("flow-editor", pflag.ExitOnError)
	config.RegisterFlags(flags)
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(logging.Options{Level: level, JSON: cfg.JSONLogs})

	if cfg.Report {
		if err := printReport(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("flow editor stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	st, fileStore, err := openStore(cfg)
	if err != nil {
		return err
	}

	pub := web.NewPublisher()
	m := machine.New(st,
		machine.WithSaveDelay(cfg.SaveDelay),
		machine.WithObserver(web.NewSnapshotPublisher(pub).Observe),
	)

	// The HTTP server stops first so no event arrives after the final flush
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	machineCtx, stopMachine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopMachine()
	m.Start(machineCtx)

	if cfg.Watch && fileStore != nil {
		if err := startWatcher(serverCtx, fileStore, m); err != nil {
			logging.Warn("external edits will not be picked up", "error", err)
		}
	}

	server := web.NewServer(m, pub)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(serverCtx, cfg.Port)
	}()

	if cfg.OpenBrowser {
		go func() {
			// Give the listener a moment
			time.Sleep(500 * time.Millisecond)
			openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("shutting down")
		stopServer()
		runErr = <-serverErr
	case runErr = <-serverErr:
	case <-m.Done():
		stopServer()
		<-serverErr
	}

	stopMachine()
	<-m.Done()

	if err := m.Err(); err != nil {
		return fmt.Errorf("graph machine failed: %w", err)
	}
	return runErr
}

func openStore(cfg *config.Config) (store.Store, *store.FileStore, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		logging.Info("using in-memory storage, changes are lost on exit")
		return store.NewMemoryStore(), nil, nil
	case config.StorageFile:
		fs, err := store.NewFileStore(cfg.Dir, cfg.Key)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("using file storage", "path", fs.Path())
		return fs, fs, nil
	default:
		return nil, nil, errors.New("unknown storage " + cfg.Storage)
	}
}

// printReport analyzes the stored document without starting the editor
func printReport(cfg *config.Config) error {
	st, fileStore, err := openStore(cfg)
	if err != nil {
		return err
	}

	source := "memory"
	if fileStore != nil {
		source = fileStore.Path()
	}

	doc, err := st.Load(context.Background())
	if err != nil {
		return err
	}

	stats := graph.Analyze(doc)
	output.PrintGraphReport(os.Stdout, source, stats, cycles.FindNodeCycles(graph.Build(doc)))
	return nil
}

func startWatcher(ctx context.Context, fs *store.FileStore, m *machine.Machine) error {
	fw, err := watcher.NewFileWatcher(fs.Path())
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), watchQuietPeriod, watchMaxWait)
	debouncer.Start(ctx)

	reloader := watcher.NewReloader(fw.Path(), fs, m)
	go reloader.Run(ctx, debouncer.Output())
	return nil
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
