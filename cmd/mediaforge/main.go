package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mediaforge/archive"
	"mediaforge/cache"
	"mediaforge/cleanup"
	"mediaforge/config"
	"mediaforge/converter"
	"mediaforge/events"
	"mediaforge/models"
	"mediaforge/options"
	"mediaforge/pipeline"
	"mediaforge/repository"
	"mediaforge/security"
	"mediaforge/service"
	"mediaforge/store"
)

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	service *service.ConversionService
	closers []func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger}
	defer a.close()

	root := &cobra.Command{
		Use:           "mediaforge",
		Short:         "Batch media conversion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		a.convertCommand(),
		a.videoCommand(),
		a.archiveCommand(),
		a.sweepCommand(),
		a.daemonCommand(),
	)

	return root.ExecuteContext(ctx)
}

// setup wires the store, pipeline, and optional integrations. It runs per
// command rather than at process start so that sweep does not require a
// working converter stack.
func (a *app) setup(ctx context.Context) error {
	st, err := store.New(a.cfg.UploadDir, a.logger)
	if err != nil {
		return err
	}
	a.store = st

	magick := converter.NewMagick(a.cfg.MagickBinary, a.logger)
	router := pipeline.NewRouter(
		pipeline.RouterConfig{PreferSpecialty: a.cfg.PreferMagick},
		magick,
		a.logger,
	)
	pipe := pipeline.New(
		router,
		converter.NewRaster(a.logger),
		converter.NewVector(a.logger),
		magick,
		converter.NewVideo(a.cfg.FfmpegPath, a.cfg.FfprobePath, a.logger),
		a.cfg.MaxBatchFiles,
		a.logger,
	)

	var recorder repository.Recorder
	if a.cfg.DatabaseURL != "" {
		pool, err := repository.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		recorder = repository.NewPostgresRepo(pool)
	}

	var resultsCache *cache.ResultsCache
	if a.cfg.RedisAddr != "" {
		resultsCache, err = cache.Connect(a.cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { resultsCache.Close() })
	}

	var producer events.Producer
	if len(a.cfg.KafkaBrokers) > 0 {
		producer, err = events.NewProducer(a.cfg.KafkaBrokers)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		a.closers = append(a.closers, func() { producer.Close() })
	}

	a.service = service.New(pipe, recorder, resultsCache, producer, a.cfg.KafkaTopic, a.logger)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert a batch of images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}

			raw := rawOptions(cmd)
			res := options.Validate(raw, models.CategoryImage)
			if !res.Valid {
				return fmt.Errorf("invalid options: %s", strings.Join(res.Errors, "; "))
			}

			files, err := a.stageAll(args, models.CategoryImage)
			if err != nil {
				return err
			}

			outcome, err := a.service.ConvertBatch(ctx, files, res.Sanitized)
			if err != nil {
				return err
			}

			if zip, _ := cmd.Flags().GetBool("zip"); zip {
				return a.archiveOutcome(outcome)
			}
			return printJSON(outcome)
		},
	}

	fl := cmd.Flags()
	fl.Int("quality", 80, "output quality, 1-100")
	fl.Int("resize", 100, "resize percentage, 1-200")
	fl.String("resize-mode", "percent", "resize mode: percent or absolute")
	fl.Int("width", 0, "target width in pixels (absolute mode)")
	fl.Int("height", 0, "target height in pixels (absolute mode)")
	fl.String("crop", "none", "crop mode: none or cover")
	fl.StringSlice("formats", []string{"webp"}, "output formats")
	fl.Bool("magick", true, "allow ImageMagick for specialty formats")
	fl.Int("precision", 2, "SVG numeric precision, 0-5")
	fl.Bool("keep-viewbox", true, "keep the SVG viewBox attribute")
	fl.Bool("cleanup-ids", true, "strip unreferenced SVG ids")
	fl.Bool("zip", false, "bundle successful outputs into a zip archive")
	return cmd
}

func (a *app) videoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video <file>",
		Short: "Convert a single video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}

			raw := rawOptions(cmd)
			res := options.Validate(raw, models.CategoryVideo)
			if !res.Valid {
				return fmt.Errorf("invalid options: %s", strings.Join(res.Errors, "; "))
			}

			files, err := a.stageAll(args, models.CategoryVideo)
			if err != nil {
				return err
			}

			outcome, err := a.service.ConvertVideo(ctx, files[0], res.Sanitized)
			if err != nil {
				return err
			}
			return printJSON(outcome)
		},
	}

	fl := cmd.Flags()
	fl.Int("quality", 80, "output quality, 1-100")
	fl.Int("resize", 100, "resize percentage, 1-200")
	fl.String("resize-mode", "percent", "resize mode: percent or absolute")
	fl.Int("width", 0, "target width in pixels (absolute mode)")
	fl.Int("height", 0, "target height in pixels (absolute mode)")
	fl.String("crop", "none", "crop mode: none or cover")
	fl.String("format", "mp4", "output container format")
	fl.String("bitrate", "", "target video bitrate, e.g. 2500K")
	fl.String("preset", "web", "encoding preset: web, quality, or fast")
	fl.Bool("audio", true, "keep the audio track")
	return cmd
}

func (a *app) archiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <artifact>...",
		Short: "Bundle artifacts from the store into a zip archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.New(a.cfg.UploadDir, a.logger)
			if err != nil {
				return err
			}

			path, err := archive.NewBuilder(st, a.logger).Build(args)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

func (a *app) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired artifacts once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reaper := cleanup.NewReaper(a.cfg.UploadDir, a.cfg.ArtifactTTL, a.cfg.SweepInterval, a.logger)
			res := reaper.SweepExpired()
			fmt.Printf("cleaned %d, errors %d\n", res.Cleaned, res.Errors)
			return nil
		},
	}
}

func (a *app) daemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the retention reaper until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := store.New(a.cfg.UploadDir, a.logger); err != nil {
				return err
			}

			reaper := cleanup.NewReaper(a.cfg.UploadDir, a.cfg.ArtifactTTL, a.cfg.SweepInterval, a.logger)
			if err := reaper.Start(); err != nil {
				return err
			}
			defer reaper.Stop()

			<-cmd.Context().Done()
			a.logger.Info("Shutting down")
			return nil
		},
	}
}

// stageAll gates each input on extension and size, then copies it into the
// artifact store. A failed gate aborts the whole invocation before any
// conversion work starts.
func (a *app) stageAll(paths []string, category models.Category) ([]models.UploadedFile, error) {
	if len(paths) > a.cfg.MaxBatchFiles {
		return nil, fmt.Errorf("too many files: %d exceeds limit of %d", len(paths), a.cfg.MaxBatchFiles)
	}

	files := make([]models.UploadedFile, 0, len(paths))
	for _, p := range paths {
		name := security.SanitizeFilename(p)
		if err := security.ValidateExtension(name, category); err != nil {
			return nil, err
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.Size() > a.cfg.MaxFileSize {
			return nil, fmt.Errorf("%s: file size %d exceeds limit of %d", p, info.Size(), a.cfg.MaxFileSize)
		}

		src, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		staged, err := a.store.Stage(name, src)
		src.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, staged)
	}
	return files, nil
}

// archiveOutcome bundles every successful output of the batch into a zip
// and prints the outcome with the archive path appended.
func (a *app) archiveOutcome(outcome *service.BatchOutcome) error {
	var names []string
	for _, res := range outcome.Results {
		for _, pf := range res.ProcessedFiles {
			names = append(names, pf.Filename)
		}
	}

	path, err := archive.NewBuilder(a.store, a.logger).Build(names)
	if err != nil {
		if errors.Is(err, archive.ErrNoFiles) {
			return printJSON(outcome)
		}
		return err
	}

	return printJSON(struct {
		*service.BatchOutcome
		Archive string `json:"archive"`
	}{outcome, path})
}

// rawOptions converts only the flags the caller actually set into the
// validation payload, so command defaults never mask option defaults.
func rawOptions(cmd *cobra.Command) map[string]any {
	raw := map[string]any{}
	set := func(flag, key string, get func() any) {
		if cmd.Flags().Changed(flag) {
			raw[key] = get()
		}
	}

	fl := cmd.Flags()
	set("quality", "quality", func() any { v, _ := fl.GetInt("quality"); return v })
	set("resize", "resize", func() any { v, _ := fl.GetInt("resize"); return v })
	set("resize-mode", "resizeMode", func() any { v, _ := fl.GetString("resize-mode"); return v })
	set("width", "width", func() any { v, _ := fl.GetInt("width"); return v })
	set("height", "height", func() any { v, _ := fl.GetInt("height"); return v })
	set("crop", "crop", func() any { v, _ := fl.GetString("crop"); return v })
	set("formats", "formats", func() any { v, _ := fl.GetStringSlice("formats"); return v })
	set("magick", "useImageMagick", func() any { v, _ := fl.GetBool("magick"); return v })
	set("precision", "precision", func() any { v, _ := fl.GetInt("precision"); return v })
	set("keep-viewbox", "keepViewBox", func() any { v, _ := fl.GetBool("keep-viewbox"); return v })
	set("cleanup-ids", "cleanupIDs", func() any { v, _ := fl.GetBool("cleanup-ids"); return v })
	set("format", "format", func() any { v, _ := fl.GetString("format"); return v })
	set("bitrate", "bitrate", func() any { v, _ := fl.GetString("bitrate"); return v })
	set("preset", "preset", func() any { v, _ := fl.GetString("preset"); return v })
	set("audio", "audio", func() any { v, _ := fl.GetBool("audio"); return v })
	return raw
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
