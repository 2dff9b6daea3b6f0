package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/enrich"
	"github.com/fwojciec/harvest/export"
	"github.com/fwojciec/harvest/fs"
	"github.com/fwojciec/harvest/gemini"
	"github.com/fwojciec/harvest/goquery"
	"github.com/fwojciec/harvest/htmltomarkdown"
	harvesthttp "github.com/fwojciec/harvest/http"
	"github.com/fwojciec/harvest/openai"
	"github.com/fwojciec/harvest/scrape"
	hslog "github.com/fwojciec/harvest/slog"
	"github.com/fwojciec/harvest/sqlite"
	"google.golang.org/genai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// Getenv reads provider configuration. Defaults to os.Getenv.
	Getenv func(string) string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
		Getenv: os.Getenv,
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("harvest"),
		kong.Description("Extract structured records from web pages, enrich them with AI and export them"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'harvest --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	deps.Logger = newLogger(stderr, cli.Verbose)

	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set HARVEST_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	deps.Templates = hslog.NewLoggingTemplateService(sqlite.NewTemplateService(m.DB), deps.Logger)
	deps.Runs = sqlite.NewRunService(m.DB)
	deps.Exporter = export.NewExporter()
	deps.Extractor = goquery.NewExtractor(htmltomarkdown.NewConverter())

	switch cmd {
	case "scrape":
		fetcher := m.newFetcher(deps.Logger, cli.Scrape.Timeout)
		defer fetcher.Close()

		deps.Sitemaps = hslog.NewLoggingTargetSource(harvesthttp.NewSitemapService(fetcher), deps.Logger)
		deps.Scraper = m.newScraper(deps, fetcher, cli.Scrape.Concurrency, cli.Scrape.RateLimit, cli.Scrape.Retry, cli.Scrape.ErrorPages)

	case "discover":
		fetcher := m.newFetcher(deps.Logger, harvesthttp.DefaultFetchTimeout)
		defer fetcher.Close()

		deps.Sitemaps = hslog.NewLoggingTargetSource(harvesthttp.NewSitemapService(fetcher), deps.Logger)

	case "enrich":
		enricher, err := m.newEnricher(ctx, deps.Logger)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Set GEMINI_API_KEY (https://aistudio.google.com/apikey) or OPENAI_API_KEY")
			return err
		}
		if enricher == nil {
			fmt.Fprintln(stderr, "Hint: Set GEMINI_API_KEY (https://aistudio.google.com/apikey) or OPENAI_API_KEY")
			return fmt.Errorf("no AI provider configured")
		}
		deps.Enricher = enricher

	case "export":
		deps.Artifacts = fs.NewArtifactWriter(cli.Export.Dir)

	case "serve":
		fetcher := m.newFetcher(deps.Logger, harvesthttp.DefaultFetchTimeout)
		defer fetcher.Close()

		deps.Scraper = m.newScraper(deps, fetcher, cli.Serve.Concurrency, cli.Serve.RateLimit, false, false)
		enricher, err := m.newEnricher(ctx, deps.Logger)
		if err != nil {
			return err
		}
		if enricher != nil {
			deps.Enricher = enricher
		}
	}

	return kongCtx.Run(deps)
}

func (m *Main) newFetcher(logger *slog.Logger, timeout time.Duration) harvest.Fetcher {
	return hslog.NewLoggingFetcher(harvesthttp.NewFetcher(harvesthttp.WithTimeout(timeout)), logger)
}

func (m *Main) newScraper(deps *Dependencies, fetcher harvest.Fetcher, concurrency int, rps float64, retry, errorPages bool) *scrape.Scraper {
	s := &scrape.Scraper{
		Fetcher:           fetcher,
		Extractor:         deps.Extractor,
		Templates:         deps.Templates,
		Runs:              deps.Runs,
		Concurrency:       concurrency,
		ExtractErrorPages: errorPages,
	}
	if rps > 0 {
		s.RateLimiter = scrape.NewDomainLimiter(rps)
	}
	if retry {
		s.RetryDelays = scrape.DefaultRetryDelays()
	}
	return s
}

// newEnricher returns an enricher backed by Gemini when GEMINI_API_KEY is
// set, otherwise by an OpenAI-compatible API when OPENAI_API_KEY or
// OPENAI_BASE_URL is set. It returns nil when neither is configured.
func (m *Main) newEnricher(ctx context.Context, logger *slog.Logger) (*enrich.Enricher, error) {
	if apiKey := m.Getenv("GEMINI_API_KEY"); apiKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
		}

		e := &enrich.Enricher{
			Completer: hslog.NewLoggingCompleter(gemini.NewCompleter(client, ""), logger),
		}
		if tc, err := gemini.NewTokenCounter(""); err == nil {
			e.TokenCounter = tc
		}
		return e, nil
	}

	apiKey, baseURL := m.Getenv("OPENAI_API_KEY"), m.Getenv("OPENAI_BASE_URL")
	if apiKey != "" || baseURL != "" {
		c := openai.NewCompleter(apiKey, openai.WithBaseURL(baseURL), openai.WithModel(m.Getenv("OPENAI_MODEL")))
		return &enrich.Enricher{Completer: hslog.NewLoggingCompleter(c, logger)}, nil
	}

	return nil, nil
}

// newLogger returns a text logger on stderr when verbose, otherwise a
// logger that discards everything below warnings.
func newLogger(stderr io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func defaultDBPath() string {
	if path := os.Getenv("HARVEST_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "harvest.db"
	}
	dir := filepath.Join(home, ".harvest")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "harvest.db")
}
