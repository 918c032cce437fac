// Command insightctl extracts, saves and manages insights from the command line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"quest-insights/internal/config"
	"quest-insights/internal/pkg/logger"
	"quest-insights/internal/repository"
	"quest-insights/internal/service/extractor"
	"quest-insights/internal/service/insights"
)

// CLI structure
var CLI struct {
	Database string        `help:"Database URL or SQLite path" env:"DATABASE_URL" default:"insights.db"`
	LogLevel string        `help:"Log level (debug, info, warn, error)" env:"LOG_LEVEL" default:"warn"`
	Timeout  time.Duration `help:"Remote fetch timeout" env:"FETCH_TIMEOUT" default:"10s"`

	Extract struct {
		URL string `arg:"" help:"URL to extract metadata from"`
	} `cmd:"extract" help:"Print the metadata extracted for a URL without saving it."`

	Save struct {
		Owner string   `arg:"" help:"Owner ID"`
		URL   string   `arg:"" help:"URL to save"`
		Tag   []string `help:"Tag to attach (repeatable)" short:"t"`
	} `cmd:"save" help:"Save a URL for an owner."`

	List struct {
		Owner string `arg:"" help:"Owner ID"`
	} `cmd:"list" help:"List an owner's insights, newest first."`

	Delete struct {
		Owner string `arg:"" help:"Owner ID"`
		ID    string `arg:"" help:"Insight ID"`
	} `cmd:"delete" help:"Delete one of an owner's insights."`

	Import struct {
		Owner  string   `arg:"" help:"Owner ID"`
		File   string   `arg:"" help:"File with one URL per line, or - for stdin"`
		Tag    []string `help:"Tag to attach to every imported URL" short:"t"`
		Limit  int      `help:"Maximum number of URLs to import (0 = no limit)" default:"0"`
		DryRun bool     `help:"Print what would be saved without saving"`
	} `cmd:"import" help:"Bulk save URLs for an owner."`

	Migrate struct {
		Status bool `help:"Only show the current migration version"`
	} `cmd:"migrate" help:"Apply database migrations."`

	Reset struct {
		Yes bool `help:"Skip the confirmation prompt"`
	} `cmd:"reset" help:"Drop all tables (WARNING: destroys all data)."`
}

func main() {
	// Environment (and .env) provide defaults for the flags
	cfg := config.LoadOptional()

	kctx := kong.Parse(&CLI,
		kong.Name("insightctl"),
		kong.Description("Manage saved insights."),
	)

	log := logger.New(CLI.LogLevel)
	ctx := context.Background()

	if err := run(ctx, kctx.Command(), cfg, log, os.Stdin, os.Stdout); err != nil {
		log.Error("Command failed", "command", kctx.Command(), "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, cfg *config.Config, log *slog.Logger, in io.Reader, out io.Writer) error {
	metadataExtractor := newExtractor(cfg, log)

	if command == "extract <url>" {
		return writeJSON(out, metadataExtractor.Extract(ctx, CLI.Extract.URL))
	}

	store, err := repository.Open(ctx, CLI.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	switch command {
	case "migrate":
		if !CLI.Migrate.Status {
			if err := store.Migrate(); err != nil {
				return err
			}
		}
		version, err := store.MigrationVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Migration version: %d\n", version)
		return nil

	case "reset":
		if !CLI.Reset.Yes {
			if err := confirmReset(in, out); err != nil {
				return err
			}
		}
		if err := store.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Database reset. Run migrate to recreate tables.")
		return nil
	}

	// Remaining commands need the schema
	if err := store.Migrate(); err != nil {
		return err
	}
	svc := insights.NewService(store.Insights, metadataExtractor, log)

	switch command {
	case "save <owner> <url>":
		result, err := svc.SaveInsight(ctx, CLI.Save.Owner, CLI.Save.URL, CLI.Save.Tag)
		if err != nil {
			return err
		}
		if result.AlreadyExists {
			fmt.Fprintln(out, "URL already saved")
		}
		return writeJSON(out, result.Insight)

	case "list <owner>":
		list, err := svc.GetInsights(ctx, CLI.List.Owner)
		if err != nil {
			return err
		}
		return writeJSON(out, list)

	case "delete <owner> <id>":
		id, err := uuid.Parse(CLI.Delete.ID)
		if err != nil {
			return fmt.Errorf("invalid insight ID %q: %w", CLI.Delete.ID, err)
		}
		if err := svc.DeleteInsight(ctx, id, CLI.Delete.Owner); err != nil {
			return err
		}
		fmt.Fprintln(out, "Deleted", id)
		return nil

	case "import <owner> <file>":
		return runImport(ctx, svc, log, in, out)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func newExtractor(cfg *config.Config, log *slog.Logger) *extractor.Extractor {
	cache, err := extractor.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		log.Warn("Metadata cache disabled", "error", err)
		return extractor.NewDefault(extractorOptions(cfg), nil, log)
	}
	return extractor.NewDefault(extractorOptions(cfg), cache, log)
}

func extractorOptions(cfg *config.Config) extractor.Options {
	return extractor.Options{
		UserAgent:    cfg.UserAgent,
		FetchTimeout: CLI.Timeout,
		RatePerHost:  cfg.FetchRatePerHost,
	}
}

// importStats summarizes a bulk import
type importStats struct {
	Saved    int `json:"saved"`
	Existing int `json:"already_saved"`
	Failed   int `json:"failed"`
}

func runImport(ctx context.Context, svc *insights.Service, log *slog.Logger, in io.Reader, out io.Writer) error {
	source := in
	if CLI.Import.File != "-" {
		f, err := os.Open(CLI.Import.File)
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		source = f
	}

	urls, err := readURLs(source, CLI.Import.Limit)
	if err != nil {
		return err
	}

	var stats importStats
	for _, rawURL := range urls {
		if CLI.Import.DryRun {
			fmt.Fprintf(out, "[DRY RUN] Would save %s\n", rawURL)
			continue
		}

		result, err := svc.SaveInsight(ctx, CLI.Import.Owner, rawURL, CLI.Import.Tag)
		if err != nil {
			log.Warn("Failed to import URL", "url", rawURL, "error", err)
			stats.Failed++
			continue
		}
		if result.AlreadyExists {
			stats.Existing++
		} else {
			stats.Saved++
		}
	}

	if CLI.Import.DryRun {
		fmt.Fprintf(out, "%d URLs would be imported\n", len(urls))
		return nil
	}
	return writeJSON(out, stats)
}

// readURLs returns the non-empty, non-comment lines of r, up to limit (0 = all)
func readURLs(r io.Reader, limit int) ([]string, error) {
	var urls []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
		if limit > 0 && len(urls) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URLs: %w", err)
	}
	return urls, nil
}

func confirmReset(in io.Reader, out io.Writer) error {
	fmt.Fprint(out, "WARNING: This will delete ALL data in the database. Type 'yes' to confirm: ")

	var response string
	fmt.Fscanln(in, &response)

	if response != "yes" {
		return fmt.Errorf("reset not confirmed")
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
