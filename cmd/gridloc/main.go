package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/gridloc/internal/api"
	"github.com/banshee-data/gridloc/internal/config"
	"github.com/banshee-data/gridloc/internal/db"
	"github.com/banshee-data/gridloc/internal/feed"
	"github.com/banshee-data/gridloc/internal/localizer"
	"github.com/banshee-data/gridloc/internal/monitoring"
	"github.com/banshee-data/gridloc/internal/version"
	"github.com/banshee-data/gridloc/internal/viz"
	"github.com/banshee-data/gridloc/internal/worldmap"
)

var (
	configFile  = flag.String("config", "", "Path to a tuning config JSON file (built-in defaults when empty)")
	mapPath     = flag.String("map", "", "World map file (overrides map_path)")
	script      = flag.String("script", "", "Command script to replay, '-' for stdin")
	serialDev   = flag.String("serial", "", "Serial device to read commands from (overrides serial.device)")
	interval    = flag.Duration("interval", 0, "Pause between replayed commands (overrides replay_interval)")
	dbPath      = flag.String("db", "", "SQLite run history path (overrides db_path)")
	plotDir     = flag.String("plot-dir", "", "Directory for the final PNG heatmap (overrides plot_dir)")
	htmlOut     = flag.String("html", "", "Write the final beliefs as an HTML heatmap to this file")
	listen      = flag.String("listen", "", "Debug server listen address, e.g. localhost:8080 (overrides listen)")
	debugLog    = flag.Bool("debug", false, "Log every dispatched command")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// commandFeed is the part of feed.Feed the driver relies on, whatever the
// underlying port type.
type commandFeed interface {
	Subscribe() (string, <-chan feed.Command)
	Unsubscribe(id string)
	Monitor(ctx context.Context) error
	Malformed() int
	Close() error
}

// overrides holds the flags that were set explicitly on the command line.
type overrides struct {
	MapPath  string
	Serial   string
	Interval *time.Duration
	DBPath   string
	PlotDir  string
	Listen   string
}

func collectOverrides(fs *flag.FlagSet) overrides {
	var o overrides
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "map":
			o.MapPath = v
		case "serial":
			o.Serial = v
		case "interval":
			if d, err := time.ParseDuration(v); err == nil {
				o.Interval = &d
			}
		case "db":
			o.DBPath = v
		case "plot-dir":
			o.PlotDir = v
		case "listen":
			o.Listen = v
		}
	})
	return o
}

// applyOverrides copies explicitly set flags over the loaded config.
func applyOverrides(cfg *config.TuningConfig, o overrides) {
	if o.MapPath != "" {
		cfg.MapPath = &o.MapPath
	}
	if o.Serial != "" {
		if cfg.Serial == nil {
			cfg.Serial = &config.SerialConfig{}
		}
		cfg.Serial.Device = o.Serial
	}
	if o.Interval != nil {
		s := o.Interval.String()
		cfg.ReplayInterval = &s
	}
	if o.DBPath != "" {
		cfg.DBPath = &o.DBPath
	}
	if o.PlotDir != "" {
		cfg.PlotDir = &o.PlotDir
	}
	if o.Listen != "" {
		cfg.Listen = &o.Listen
	}
}

func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// openFeed picks the command source: a serial device when one is
// configured, otherwise the script (stdin for "" or "-").
func openFeed(cfg *config.TuningConfig, scriptPath string) (commandFeed, string, error) {
	if sc := cfg.GetSerial(); sc != nil {
		f, err := feed.OpenSerial(sc.Device, feed.PortOptions{
			BaudRate: sc.BaudRate,
			DataBits: sc.DataBits,
			StopBits: sc.StopBits,
			Parity:   sc.Parity,
		})
		if err != nil {
			return nil, "", err
		}
		return f, sc.Device, nil
	}
	if scriptPath == "" || scriptPath == "-" {
		return feed.FromReader(os.Stdin, cfg.GetReplayInterval()), "stdin", nil
	}
	f, err := feed.OpenFile(scriptPath, cfg.GetReplayInterval())
	if err != nil {
		return nil, "", err
	}
	return f, scriptPath, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetDebug(*debugLog)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyOverrides(cfg, collectOverrides(flag.CommandLine))
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if flag.NArg() > 0 {
		if flag.Arg(0) != "migrate" {
			log.Fatalf("unknown subcommand %q", flag.Arg(0))
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath(), os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	world, err := worldmap.Load(cfg.GetMapPath())
	if err != nil {
		log.Fatalf("failed to load map: %v", err)
	}
	if err := describeMap(os.Stdout, cfg.GetMapPath(), world); err != nil {
		log.Fatalf("failed to print map: %v", err)
	}

	session, err := localizer.NewSession(world, localizer.SessionConfig{
		Sensor:   localizer.SensorModel{Hit: cfg.GetPHit(), Miss: cfg.GetPMiss()},
		Blurring: cfg.GetBlurring(),
	})
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	r := &runner{session: session, mapName: filepath.Base(cfg.GetMapPath())}
	if p := cfg.GetDBPath(); p != "" {
		store, err := db.NewDB(p)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		if err := r.startRecording(store); err != nil {
			log.Fatalf("failed to start run: %v", err)
		}
		log.Printf("recording run %s to %s", r.runID, p)
	}

	commands, source, err := openFeed(cfg, *script)
	if err != nil {
		log.Fatalf("failed to open command feed: %v", err)
	}
	defer commands.Close()
	log.Printf("reading commands from %s", source)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// subscribe before the monitor starts so the first line is not lost
	id, c := commands.Subscribe()

	addr := cfg.GetListen()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := commands.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor command feed: %v", err)
		}
		if n := commands.Malformed(); n > 0 {
			log.Printf("skipped %d malformed lines", n)
		}
		// closing the feed ends the subscriber loop below
		commands.Close()
		if addr == "" {
			stop()
		} else if ctx.Err() == nil {
			log.Printf("feed finished; serving on %s until interrupted", addr)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer commands.Unsubscribe(id)
		for cmd := range c {
			if err := r.apply(cmd); err != nil {
				log.Printf("step rejected: %v", err)
			}
		}
		log.Printf("subscribe routine terminated")
	}()

	if addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, addr, r, cfg)
		}()
	}

	wg.Wait()

	if err := r.finish(os.Stdout, cfg.GetPlotDir(), *htmlOut); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func serve(ctx context.Context, addr string, r *runner, cfg *config.TuningConfig) {
	srv := api.NewServer(r.session, r.mapName, r.runID)
	mux := srv.ServeMux()
	srv.AttachDebugRoutes(mux)
	if r.store != nil {
		r.store.AttachAdminRoutes(mux)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()
	log.Printf("debug server listening on %s", addr)

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}

// describeMap prints the map size, the cell count per color and the map itself.
func describeMap(w io.Writer, path string, world *worldmap.Map) error {
	rows, cols := world.Dims()
	fmt.Fprintf(w, "map %s (%dx%d):", path, rows, cols)
	for _, c := range world.Palette() {
		fmt.Fprintf(w, " %s=%d", c, world.Count(c))
	}
	fmt.Fprintln(w)
	return viz.WriteMap(w, world)
}

// writeFile creates path and hands it to write.
func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
