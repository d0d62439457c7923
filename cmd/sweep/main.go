package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/demandas/internal/app"
	"github.com/gestaozabele/demandas/internal/config"
	"github.com/gestaozabele/demandas/internal/metrics"
	"github.com/gestaozabele/demandas/internal/sweep"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("varredura falhou")
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = usage

	var (
		dryRun  = fs.Bool("dry-run", cfg.Sweep.DryRun, "apenas lista os órfãos")
		prefix  = fs.String("prefix", cfg.Sweep.Prefix, "prefixo das chaves no storage")
		minAge  = fs.Duration("min-age", cfg.Sweep.MinAge, "idade mínima para remover um arquivo")
		timeout = fs.Duration("timeout", 10*time.Minute, "tempo máximo da execução")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *minAge < 0 {
		return errors.New("--min-age não pode ser negativo")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	backend, err := app.OpenBackend(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	uploader, err := app.NewUploader(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	bucket, ok := app.SweepBucket(uploader)
	if !ok {
		return fmt.Errorf("STORAGE_PROVIDER %q não permite listar arquivos", cfg.Storage.Provider)
	}

	service := sweep.NewService(backend.Store, bucket, sweep.Config{
		Prefix: *prefix,
		MinAge: *minAge,
		DryRun: *dryRun,
	}, metrics.New(), log.Logger)

	report, err := service.RunOnce(ctx)
	if err != nil {
		return err
	}

	for _, key := range report.Orphans {
		fmt.Println(key)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d arquivos não puderam ser removidos", report.Failed)
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "sweep remove fotos que nenhuma demanda referencia")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  sweep [--dry-run] [--prefix demandas/] [--min-age 24h] [--timeout 10m]")
}
