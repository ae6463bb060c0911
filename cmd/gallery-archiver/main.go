package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
	"github.com/alanbriolat/gallery-archiver/config"
	"github.com/alanbriolat/gallery-archiver/database"
	_ "github.com/alanbriolat/gallery-archiver/extractors"
	"github.com/alanbriolat/gallery-archiver/internal/cache"
	"github.com/alanbriolat/gallery-archiver/job"
	"github.com/alanbriolat/gallery-archiver/output"
)

const appName = "gallery-archiver"

var errFailures = errors.New("some downloads failed")

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.Level.SetLevel(zap.InfoLevel)
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = gallery_archiver.WithLogger(ctx, logger.Sugar())

	app := &cli.App{
		Name:      appName,
		Usage:     "download image galleries and media from URLs",
		ArgsUsage: "URL...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dest", Aliases: []string{"d"}, Usage: "save downloads under `DIR`, overriding configured destinations"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "read configuration from `FILE`"},
			&cli.StringFlag{Name: "database", Usage: "persisted pattern database `FILE`"},
			&cli.StringFlag{Name: "cache", Usage: "persist the extractor cache in `FILE`"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Value: 1, Usage: "run `N` jobs at once"},
			&cli.IntFlag{Name: "depth", Value: -1, Usage: "follow queued URLs at most `N` levels deep (0 for unlimited)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output `MODE`: auto, plain, terminal, color, log or null"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log debug messages"},
			&cli.BoolFlag{Name: "list-extractors", Usage: "list the available extractors and exit"},
			&cli.BoolFlag{Name: "get-urls", Aliases: []string{"g"}, Usage: "print URLs instead of downloading"},
			&cli.BoolFlag{Name: "list-keywords", Aliases: []string{"K"}, Usage: "print the metadata keywords available to formats"},
			&cli.BoolFlag{Name: "hash", Usage: "print digests of extractor output instead of downloading"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			level := zap.InfoLevel
			if c.Bool("verbose") {
				level = zap.DebugLevel
			} else if err := level.Set(cfg.GetString("log.level")); err != nil {
				return fmt.Errorf("invalid log.level: %w", err)
			}
			logConfig.Level.SetLevel(level)
			c.App.Metadata["config"] = cfg
			return nil
		},
		Action: func(c *cli.Context) error {
			cfg := c.App.Metadata["config"].(*config.Config)
			registry, err := loadRegistry(c, cfg)
			if err != nil {
				return err
			}
			if c.Bool("list-extractors") {
				listExtractors(registry)
				return nil
			}
			if c.NArg() == 0 {
				return cli.ShowAppHelp(c)
			}
			return run(ctx, c, cfg, registry)
		},
		Commands: []*cli.Command{
			{
				Name:  "patterns",
				Usage: "manage persisted URL patterns",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "bind a URL pattern to an extractor",
						ArgsUsage: "EXTRACTOR REGEX",
						Action:    addPattern,
					},
					{
						Name:      "list",
						Usage:     "list persisted patterns, optionally only those of one category",
						ArgsUsage: "[CATEGORY]",
						Action:    listPatterns,
					},
					{
						Name:   "categories",
						Usage:  "list the extractor categories that have persisted patterns",
						Action: listCategories,
					},
					{
						Name:      "delete",
						Usage:     "remove a persisted pattern",
						ArgsUsage: "ID",
						Action:    deletePattern,
					},
				},
			},
		},
		Metadata:        map[string]any{},
		HideHelpCommand: true,
	}

	result := make(chan error, 1)
	go func() {
		result <- app.RunContext(ctx, os.Args)
	}()

	interrupted, err := await(ctx, result, stop)
	switch {
	case interrupted:
		logger.Error(ctx.Err().Error())
		if err != nil && !errors.Is(err, errFailures) && !errors.Is(err, context.Canceled) {
			logger.Error(err.Error())
		}
		logger.Sync()
		os.Exit(1)
	case errors.Is(err, errFailures):
		logger.Sync()
		os.Exit(1)
	case err != nil:
		logger.Fatal(err.Error())
	}
}

// await returns the app's result. If ctx is cancelled first, stop is called and the app is still waited for, so
// running downloads can notice the cancellation and remove their partial files.
func await(ctx context.Context, result <-chan error, stop func()) (interrupted bool, err error) {
	select {
	case err = <-result:
		return false, err
	case <-ctx.Done():
		stop()
		return true, <-result
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// patternStore locates the persisted pattern database. explicit is false when the path is only the default location,
// which is optional: nothing is created there unless patterns are added.
func patternStore(flag string, cfg *config.Config) (path string, explicit bool, err error) {
	if flag != "" {
		return flag, true, nil
	}
	if path := cfg.GetString("general.database"); path != "" {
		return path, true, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", false, err
	}
	return filepath.Join(configDir, appName, "patterns.sqlite3"), false, nil
}

// openDatabase opens the pattern database for the patterns subcommands, creating it if needed.
func openDatabase(c *cli.Context) (*database.Database, error) {
	cfg := c.App.Metadata["config"].(*config.Config)
	path, _, err := patternStore(c.String("database"), cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	return database.Open(path)
}

// loadPersisted adds the stored patterns to registry. A default location that doesn't exist or can't be determined
// is skipped; a configured database that can't be read is an error.
func loadPersisted(registry *gallery_archiver.Registry, path string, explicit bool) error {
	log := zap.S().Named("database")
	if !explicit {
		if path == "" {
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			log.Debugw("no pattern database", "path", path)
			return nil
		}
	}
	db, err := database.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	rows, err := db.Rows()
	if err != nil {
		return err
	}
	if err := registry.LoadRows(rows); err != nil {
		log.Warnw("ignored persisted patterns", "path", path, "error", err)
	}
	return nil
}

// loadRegistry layers persisted then configured patterns ahead of the built-in ones. Bad patterns are logged and
// skipped rather than stopping the run.
func loadRegistry(c *cli.Context, cfg *config.Config) (*gallery_archiver.Registry, error) {
	registry := gallery_archiver.DefaultRegistry
	path, explicit, err := patternStore(c.String("database"), cfg)
	if err != nil {
		zap.S().Debugw("no default pattern database location", "error", err)
	}
	if err := loadPersisted(registry, path, explicit); err != nil {
		return nil, err
	}
	if err := registry.LoadConfig(cfg); err != nil {
		zap.S().Warnw("ignored configured patterns", "error", err)
	}
	return registry, nil
}

func openCache(c *cli.Context, cfg *config.Config) (cache.Cache, error) {
	path := c.String("cache")
	if path == "" {
		path = cfg.GetString("general.cache")
	}
	if path == "" {
		return cache.NewMemory(), nil
	}
	return cache.Open(path)
}

func mode(c *cli.Context) job.Mode {
	switch {
	case c.Bool("get-urls"):
		return job.ModeURLs
	case c.Bool("list-keywords"):
		return job.ModeKeywords
	case c.Bool("hash"):
		return job.ModeHash
	default:
		return job.ModeDownload
	}
}

func run(ctx context.Context, c *cli.Context, cfg *config.Config, registry *gallery_archiver.Registry) error {
	logger := gallery_archiver.Logger(ctx)

	store, err := openCache(c, cfg)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	outputMode := c.String("output")
	if outputMode == "" {
		outputMode = cfg.GetString("output.mode")
	}
	printer, err := output.Select(outputMode, os.Stdout, cfg.GetBool("output.progress"))
	if err != nil {
		return err
	}

	env := gallery_archiver.NewEnv(cfg, store, &http.Client{Timeout: cfg.GetDuration("downloader.http.timeout")})
	manager, err := job.NewManager(job.Config{
		Config:      cfg,
		Registry:    registry,
		Env:         env,
		Destination: c.String("dest"),
		Workers:     c.Int("workers"),
		MaxDepth:    c.Int("depth"),
		Mode:        mode(c),
		Reporter:    printer,
		Progress:    printer.Progress,
		Out:         os.Stdout,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	results, err := manager.AddAll(ctx, c.Args().Slice())
	failed := err != nil
	for _, result := range results {
		if result == nil {
			continue
		}
		result.Walk(func(r *job.Result) {
			logger.Debugw("job finished", "job_id", r.ID, "result", r.String())
			if r.URLHash != "" {
				fmt.Printf("%s  %s  %s\n", r.URLHash, r.MetadataHash, r.URL)
			}
		})
		downloaded, skipped, failures := result.Totals()
		logger.Infow("finished", "url", result.URL, "downloaded", downloaded, "skipped", skipped, "failed", failures)
		if !result.OK() || failures > 0 {
			failed = true
		}
	}
	if failed {
		return errFailures
	}
	return nil
}

func listExtractors(registry *gallery_archiver.Registry) {
	for _, p := range registry.Patterns() {
		fmt.Printf("%-24s %-9s %s\n", p.Descriptor.Name(), p.Source, p.Text)
	}
}

func addPattern(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}
	name, regex := c.Args().Get(0), c.Args().Get(1)
	if _, err := gallery_archiver.DefaultRegistry.Get(name); err != nil {
		return err
	}
	if _, err := regexp.Compile(regex); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	p, err := db.InsertPattern(name, regex)
	if err != nil {
		return err
	}
	fmt.Printf("added pattern %d: %s -> %s\n", p.ID, p.Regex, p.Category)
	return nil
}

func listPatterns(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	var only *database.Category
	if name := c.Args().First(); name != "" {
		if only, err = db.GetCategoryByName(name); err != nil {
			return err
		} else if only == nil {
			return fmt.Errorf("no patterns for category %q", name)
		}
	}
	patterns, err := db.GetAllPatterns()
	if err != nil {
		return err
	}
	for _, p := range patterns {
		if only != nil && p.CategoryID != only.ID {
			continue
		}
		fmt.Printf("%4d  %-24s %s\n", p.ID, p.Category, p.Regex)
	}
	return nil
}

func listCategories(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	categories, err := db.GetAllCategories()
	if err != nil {
		return err
	}
	for _, category := range categories {
		fmt.Println(category.Name)
	}
	return nil
}

func deletePattern(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pattern id: %w", err)
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.DeletePattern(id)
}
