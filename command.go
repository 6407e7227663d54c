package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"png2webp/exifcomment"
	"png2webp/filetime"
	"png2webp/logger"

	"github.com/chai2010/webp"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

type Config struct {
	OutputRoot   string
	Date         string
	WorkDir      string
	SourceExt    string
	DestExt      string
	Quality      int
	Lossless     bool
	DeleteSource bool
	Workers      int
	Verbose      bool
	JSONLog      bool
	NoColor      bool
	// FoldExtCase matches the source extension case-insensitively, as the
	// file system does on Windows and macOS.
	FoldExtCase bool
}

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func DefaultConfig() *Config {
	return &Config{
		SourceExt:   ".png",
		DestExt:     ".webp",
		Quality:     100,
		Workers:     1,
		FoldExtCase: runtime.GOOS == "windows" || runtime.GOOS == "darwin",
	}
}

func (cfg *Config) validate() error {
	if cfg.OutputRoot == "" {
		return errors.New("--output is required")
	}
	if cfg.Quality < 0 || cfg.Quality > 100 {
		return errors.New("quality must be in range 0-100")
	}
	if cfg.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if _, err := time.Parse(dateLayout, cfg.Date); err != nil {
		return fmt.Errorf("date must be in YYYY-MM-DD format: %w", err)
	}
	return nil
}

// resolve fills in defaults that depend on the clock and derives the
// working directory, which is both the input and the output directory.
func (cfg *Config) resolve(now time.Time) error {
	if cfg.Date == "" {
		cfg.Date = now.Format(dateLayout)
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	cfg.WorkDir = filepath.Join(cfg.OutputRoot, cfg.Date)
	return nil
}

func (cfg *Config) GetEncodingOptions() *webp.Options {
	return &webp.Options{
		Lossless: cfg.Lossless,
		Quality:  float32(cfg.Quality),
	}
}

func (cfg *Config) encodingMode() string {
	if cfg.Lossless {
		return "lossless"
	}
	return fmt.Sprintf("lossy q%d", cfg.Quality)
}

func (cfg *Config) newConsole() *logger.Console {
	opts := logger.DefaultOptions()
	opts.EnableJSON = cfg.JSONLog
	opts.EnableColors = !cfg.NoColor && os.Getenv("NO_COLOR") == ""
	if cfg.Verbose {
		opts.Level = slog.LevelDebug
	}
	return logger.NewConsole(opts)
}

func newRootCmd() *cobra.Command {
	cfg := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "png2webp",
		Short: "Convert a day's PNG generations to WEBP, keeping prompt metadata",
		Long: `png2webp converts every PNG in OUTPUT/YYYY-MM-DD to WEBP in the same
directory. PNG text chunks (the "parameters" block of AUTOMATIC1111, or the
key/value chunks of NovelAI) are copied into the EXIF UserComment of the new
file, and the source file's access and modification times are restored on it
(creation time too on Windows).

Examples:
  png2webp --output ./outputs
  png2webp -o ./outputs --date 2024-05-01 --delete-source
  png2webp -o ./outputs --lossless --workers 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.OutputRoot, "output", "o", "", "Root directory holding the dated image folders (required)")
	flags.StringVar(&cfg.Date, "date", "", "Day folder to convert, YYYY-MM-DD (default today)")
	flags.IntVarP(&cfg.Quality, "quality", "q", cfg.Quality, "WEBP quality (0-100)")
	flags.BoolVar(&cfg.Lossless, "lossless", false, "Use lossless WEBP encoding instead of lossy at --quality")
	flags.BoolVar(&cfg.DeleteSource, "delete-source", false, "Delete each PNG after it was converted")
	flags.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of files converted concurrently")
	cmd.MarkFlagRequired("output")

	pflags := cmd.PersistentFlags()
	pflags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging")
	pflags.BoolVar(&cfg.JSONLog, "json-log", false, "Write log records as JSON lines")
	pflags.BoolVar(&cfg.NoColor, "no-color", false, "Disable coloured output")

	cmd.AddCommand(newVersionCmd(cfg), newInspectCmd(cfg))
	return cmd
}

func runConvert(cfg *Config) error {
	if err := cfg.resolve(time.Now()); err != nil {
		return err
	}

	console := cfg.newConsole()
	processor := NewProcessor(cfg, console, filetime.NewWriter())

	stats, err := processor.ProcessDirectory(cfg.WorkDir)
	if err != nil {
		return err
	}

	if stats.FailedFiles > 0 {
		console.Warn("Completed with %d failed file(s)", stats.FailedFiles)
		return nil
	}
	console.Success("All processing completed successfully")
	return nil
}

func newVersionCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			versionInfo := fmt.Sprintf(
				"Version: %s\nBuild date: %s\nGit commit: %s",
				Version, BuildDate, GitCommit,
			)
			cfg.newConsole().Box("png2webp version information", versionInfo)
		},
	}
}

func newInspectCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the EXIF user comment embedded in WEBP files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console := cfg.newConsole()
			failed := 0
			for _, path := range args {
				comment, err := exifcomment.Read(path)
				switch {
				case errors.Is(err, exifcomment.ErrNoComment):
					console.Warn("%s: no user comment", path)
				case err != nil:
					console.Error("%s: %v", path, err)
					failed++
				default:
					console.Info("%s", path)
					fmt.Fprintln(cmd.OutOrStdout(), comment)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be read", failed, len(args))
			}
			return nil
		},
	}
}
