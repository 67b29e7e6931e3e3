package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"townfeed/internal/aggregate"
	"townfeed/internal/config"
	"townfeed/internal/export"
	appLog "townfeed/internal/log"
	"townfeed/internal/web"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	// API credentials may live in a .env file; absence is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "townfeed",
		Usage:   "Aggregate local event listings into one deduplicated feed.",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "/etc/townfeed/config.yaml",
				Usage:   "path to the YAML config file",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			serveCommand(),
			exportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("townfeed failed", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a single aggregation pass and print the result.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "emit the full snapshot as JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			agg, err := aggregate.New(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			snap := agg.Run(ctx)

			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			for _, ev := range snap.Events {
				fmt.Printf("%s  %-18s  %s\n", ev.Start.Format("2006-01-02 15:04"), ev.Category, ev.Title)
			}
			fmt.Printf("\n%d events from %d sources\n", len(snap.Events), len(snap.Health))
			for _, h := range snap.Health {
				line := fmt.Sprintf("  %-24s %-8s events=%d", h.Source, h.Status, h.EventCount)
				if h.Error != "" {
					line += " error=" + h.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the aggregated feed over HTTP with scheduled refreshes.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if v := c.String("listen"); v != "" {
				cfg.Listen = v
			}
			agg, err := aggregate.New(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			server := web.NewServer(cfg, agg)

			// Prime the cache so the first request is served warm.
			appLog.Info("priming snapshot", "sources", len(cfg.Sources))
			server.Refresh(ctx)

			sched := cron.New()
			if _, err := sched.AddFunc(cfg.RefreshCron, func() {
				server.Refresh(ctx)
			}); err != nil {
				return fmt.Errorf("bad refresh schedule %q: %w", cfg.RefreshCron, err)
			}
			sched.Start()
			defer sched.Stop()

			httpSrv := &http.Server{
				Addr:    cfg.Listen,
				Handler: server.Handler(),
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			appLog.Info("townfeed serving", "listen", "http://"+cfg.Listen, "refresh", cfg.RefreshCron)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			appLog.Info("townfeed exiting")
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Run a single pass and write the feed as iCalendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			agg, err := aggregate.New(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			snap := agg.Run(ctx)
			payload := export.Calendar(snap.Events, "Local Events")

			if out := c.String("out"); out != "" {
				return os.WriteFile(out, payload, 0o644)
			}
			_, err = os.Stdout.Write(payload)
			return err
		},
	}
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
