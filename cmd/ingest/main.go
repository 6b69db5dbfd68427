package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/app"
	"github.com/mico/crypto-sentiment-analysis/internal/config"
	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/logger"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"
	"github.com/mico/crypto-sentiment-analysis/internal/storage/driver"
	"github.com/mico/crypto-sentiment-analysis/pkg/tracing"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc     = godotenv.Load
	loadConfigFunc  = config.Load
	credentialsFunc = func() (config.Credentials, error) { return config.RequireCredentials(os.Getenv) }
	initTracerFunc  = tracing.InitTracer
	openTableFunc   = driver.Open
	newPipelineFunc = app.NewPipeline
	exitFunc        = os.Exit
	setupSignalFunc = signal.NotifyContext
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	posStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	neuStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	negStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func main() {
	exitFunc(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultPath, "path to the YAML config document")
	dryRun := fs.Bool("dry-run", false, "fetch and process without touching the configured database")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_ = loadEnvFunc()

	cfg, err := loadConfigFunc(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	creds, err := credentialsFunc()
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if *dryRun {
		cfg.Storage.Driver = driver.Memory
	}

	lg := logger.New(stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := setupSignalFunc(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, tracer, err := initTracerFunc(ctx, "ingest")
	if err != nil {
		log.Printf("tracing disabled: %v", err)
		tracer = trace.NewNoopTracerProvider().Tracer(tracing.ServiceName)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Printf("error shutting down tracer provider: %v", err)
			}
		}()
	}

	table, err := openTableFunc(ctx, cfg, tracer)
	if err != nil {
		lg.Error("open storage", "err", err)
		return 1
	}
	defer table.Close()

	p, err := newPipelineFunc(ctx, cfg, creds, table, tracer, lg)
	if err != nil {
		lg.Error("wire pipeline", "err", err)
		return 1
	}
	p.Service.WithProgress(func(sp domain.SourceProgress) {
		lg.Info("source done", "source", sp.Source, "channel", sp.Channel, "pass", sp.Pass, "fetched", sp.Fetched, "failed", sp.Failed)
	})

	result, err := p.Service.RunOnce(ctx)
	fmt.Fprintln(stdout, renderSummary(result, *dryRun))
	if err != nil {
		if errors.Is(err, storage.ErrPersistenceConflict) {
			lg.Error("run aborted on persistence conflict; nothing from this batch was stored", "err", err)
		} else {
			lg.Error("run failed", "err", err)
		}
		return 1
	}
	return 0
}

func renderSummary(r domain.RunResult, dryRun bool) string {
	title := "Ingestion complete"
	if dryRun {
		title += " (dry run)"
	}
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}

	lines := []string{
		titleStyle.Render(title),
		row("run", r.RunID),
		row("result", r.Summary()),
		row("took", r.Duration().Round(time.Millisecond).String()),
		row("positive", posStyle.Render(fmt.Sprint(r.Positive))),
		row("neutral", neuStyle.Render(fmt.Sprint(r.Neutral))),
		row("negative", negStyle.Render(fmt.Sprint(r.Negative))),
	}
	if n := len(r.Errors); n > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d source errors:", n)))
		for _, e := range r.Errors {
			lines = append(lines, warnStyle.Render("  "+e))
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
