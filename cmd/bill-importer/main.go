package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zhanglc/feishu-bill-importer/internal/config"
	"github.com/zhanglc/feishu-bill-importer/internal/feishu"
	"github.com/zhanglc/feishu-bill-importer/internal/importer"
	"github.com/zhanglc/feishu-bill-importer/internal/logger"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport()
	case "ls":
		runList()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Feishu Bill Importer")
	fmt.Println("\nUsage:")
	fmt.Println("  bill-importer <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Import an Alipay bill export (CSV or zip) into Feishu")
	fmt.Println("  ls        List recorded import batches")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'bill-importer <command> -h' for more information on a command.")
}

func newLogger(verbose bool) zerolog.Logger {
	if verbose {
		return logger.NewWithLevel(zerolog.DebugLevel)
	}
	return logger.New()
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Extract and map only; perform no Feishu inserts")
	verbose := fs.Bool("v", false, "Show debug logs")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bill-importer import [options] <file>")
		os.Exit(1)
	}
	filePath := fs.Arg(0)

	log := newLogger(*verbose)
	cfg := config.Load()
	log.Debug().Stringer("config", cfg).Msg("Loaded configuration")

	ctx := logger.WithContext(context.Background(), log)

	client := feishu.NewClient(cfg.AppID, cfg.AppSecret, feishu.WithBaseURL(cfg.BaseURL))
	imp := importer.New(cfg, client)

	report, err := imp.Run(ctx, filePath, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	if report.DryRun {
		fmt.Printf("[dry run] batch %s: %d rows from %d file(s), nothing inserted\n",
			report.BatchNumber, report.Extracted, report.Files)
		return
	}
	fmt.Printf("Imported %d rows from %d file(s) as batch %s\n",
		report.Extracted, report.Files, report.BatchNumber)
}

func runList() {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Show debug logs")
	fs.Parse(os.Args[2:])

	log := newLogger(*verbose)
	cfg := config.Load()

	ctx := logger.WithContext(context.Background(), log)

	client := feishu.NewClient(cfg.AppID, cfg.AppSecret, feishu.WithBaseURL(cfg.BaseURL))
	imp := importer.New(cfg, client)

	records, err := imp.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Listing batches failed")
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Encoding records failed")
	}

	fmt.Printf("Found %d record(s):\n%s\n", len(records), out)
}
