package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/sandeepkandula/flatsync/config"
	"github.com/sandeepkandula/flatsync/logger"
	"github.com/sandeepkandula/flatsync/sync"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.command().RunContext(ctx, os.Args); err != nil {
		a.fail(err)
		stop()
		os.Exit(1)
	}
}

// app carries the configuration and logger resolved in Before to the
// command actions.
type app struct {
	cfg    *config.Config
	log    *zerolog.Logger // nil until Before succeeds
	stderr io.Writer
}

func newApp() *cli.App {
	return (&app{}).command()
}

func (a *app) command() *cli.App {
	return &cli.App{
		Name:  "flatsync",
		Usage: "Download date-partitioned flat files missing from a local mirror",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"FLATSYNC_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, error"},
			&cli.StringFlag{Name: "log-format", Usage: "json or console"},
			&cli.StringFlag{Name: "backend", Usage: "storage client: aws or minio"},
			&cli.StringFlag{Name: "endpoint", Usage: "storage endpoint URL"},
			&cli.StringFlag{Name: "bucket", Usage: "bucket name"},
			&cli.StringFlag{Name: "profile", Usage: "shared credentials profile"},
			&cli.StringFlag{Name: "region", Usage: "storage region"},
		},
		Before: a.before,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Download missing files for every month from --start through --end-year",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "local-dir", Usage: "local root directory"},
					&cli.StringFlag{Name: "prefix", Usage: "remote key prefix above <year>/<MM>/"},
					&cli.StringFlag{Name: "start", Usage: "first month, YYYY-MM"},
					&cli.IntFlag{Name: "end-year", Usage: "last year, inclusive"},
					&cli.BoolFlag{Name: "dry-run", Usage: "list missing files without downloading"},
				},
				Action: a.run,
			},
			{
				Name:  "fetch",
				Usage: "Download files missing from one directory for one prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "existing local directory", Required: true},
					&cli.StringFlag{Name: "prefix", Usage: "remote key prefix", Required: true},
					&cli.BoolFlag{Name: "dry-run", Usage: "list missing files without downloading"},
				},
				Action: a.fetch,
			},
		},
	}
}

func (a *app) before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	setString(c, "log-level", &cfg.Log.Level)
	setString(c, "log-format", &cfg.Log.Format)
	setString(c, "endpoint", &cfg.Storage.Endpoint)
	setString(c, "bucket", &cfg.Storage.Bucket)
	setString(c, "profile", &cfg.Storage.Profile)
	setString(c, "region", &cfg.Storage.Region)
	if c.IsSet("backend") {
		cfg.Storage.Backend = config.Backend(c.String("backend"))
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: a.output()})
	a.log = &log
	c.Context = logger.WithContext(c.Context, log)
	return nil
}

// fail logs err through the configured logger, or a console logger when
// the failure happened before one was built.
func (a *app) fail(err error) {
	log := a.log
	if log == nil {
		cfg := logger.DefaultConfig()
		cfg.Output = a.output()
		l := logger.New(cfg)
		log = &l
	}
	log.Error().Err(err).Msg("flatsync failed")
}

func (a *app) output() io.Writer {
	if a.stderr != nil {
		return a.stderr
	}
	return os.Stderr
}

func (a *app) run(c *cli.Context) error {
	cfg := a.cfg
	setString(c, "local-dir", &cfg.Sync.LocalDir)
	setString(c, "prefix", &cfg.Sync.Prefix)
	if c.IsSet("start") {
		start, err := sync.ParsePeriod(c.String("start"))
		if err != nil {
			return err
		}
		cfg.Sync.Start = start
	}
	if c.IsSet("end-year") {
		cfg.Sync.EndYear = c.Int("end-year")
	}
	setBool(c, "dry-run", &cfg.Sync.DryRun)
	if err := cfg.ValidateRange(); err != nil {
		return err
	}

	src, err := newSource(c.Context, cfg.Storage)
	if err != nil {
		return err
	}

	zerolog.Ctx(c.Context).Info().
		Str("local_dir", cfg.Sync.LocalDir).
		Str("prefix", cfg.Sync.Prefix).
		Str("start", cfg.Sync.Start.String()).
		Int("end_year", cfg.Sync.EndYear).
		Bool("dry_run", cfg.Sync.DryRun).
		Msg("sync range")

	_, err = sync.SyncRange(c.Context, sync.RangeOptions{
		BaseDir:    cfg.Sync.LocalDir,
		BasePrefix: cfg.Sync.Prefix,
		Start:      cfg.Sync.Start,
		EndYear:    cfg.Sync.EndYear,
		Src:        src,
		DryRun:     cfg.Sync.DryRun,
	})
	return err
}

func (a *app) fetch(c *cli.Context) error {
	dryRun := a.cfg.Sync.DryRun
	setBool(c, "dry-run", &dryRun)

	src, err := newSource(c.Context, a.cfg.Storage)
	if err != nil {
		return err
	}

	res, err := sync.DownloadMissing(c.Context, sync.Options{
		Dir:    c.String("dir"),
		Prefix: c.String("prefix"),
		Src:    src,
		DryRun: dryRun,
	})
	if err != nil {
		return err
	}
	if len(res.Missing) == 0 {
		zerolog.Ctx(c.Context).Info().Msg("nothing to download")
	}
	return nil
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setBool(c *cli.Context, name string, dst *bool) {
	if c.IsSet(name) {
		*dst = c.Bool(name)
	}
}
