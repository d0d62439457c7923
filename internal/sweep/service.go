// Package sweep remove do storage as fotos que nenhuma demanda referencia.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaozabele/demandas/internal/storage"
)

// RefSource devolve as chaves de imagem gravadas nas demandas.
type RefSource interface {
	ImageRefs(ctx context.Context) ([]string, error)
}

// Bucket lista e remove arquivos.
type Bucket interface {
	storage.Lister
	Delete(ctx context.Context, key string) error
}

// Counter recebe quantos arquivos foram removidos em cada execução.
type Counter interface {
	AddOrphansRemoved(n int)
}

type Config struct {
	Prefix string
	// MinAge protege uploads recentes cujo vínculo ainda não foi gravado.
	MinAge   time.Duration
	Interval time.Duration
	DryRun   bool
}

// Report resume uma execução.
type Report struct {
	Scanned int
	Orphans []string
	Removed int
	Failed  int
}

// Service executa a varredura sob demanda ou em loop periódico.
type Service struct {
	refs    RefSource
	bucket  Bucket
	cfg     Config
	counter Counter
	logger  zerolog.Logger
	now     func() time.Time

	once   sync.Once
	cancel context.CancelFunc
}

func NewService(refs RefSource, bucket Bucket, cfg Config, counter Counter, logger zerolog.Logger) *Service {
	return &Service{
		refs:    refs,
		bucket:  bucket,
		cfg:     cfg,
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
}

// Start inicia o loop periódico quando Interval > 0. Seguro para chamar várias vezes.
func (s *Service) Start(parent context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		go s.runLoop(ctx)
	})
}

// Stop encerra o loop periódico.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("varredura: loop iniciado")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("varredura: loop encerrado")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("varredura: execução periódica falhou")
			}
		}
	}
}

// RunOnce compara o storage com as referências gravadas e remove os órfãos.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	// referências primeiro: um upload vinculado entre as duas leituras fica protegido por MinAge
	refs, err := s.refs.ImageRefs(ctx)
	if err != nil {
		return report, fmt.Errorf("listar referências: %w", err)
	}
	referenced := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		referenced[ref] = struct{}{}
	}

	objects, err := s.bucket.List(ctx, s.cfg.Prefix)
	if err != nil {
		return report, fmt.Errorf("listar arquivos: %w", err)
	}

	cutoff := s.now().Add(-s.cfg.MinAge)
	for _, obj := range objects {
		report.Scanned++
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		report.Orphans = append(report.Orphans, obj.Key)
		if s.cfg.DryRun {
			continue
		}
		if err := s.bucket.Delete(ctx, obj.Key); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("chave", obj.Key).Msg("varredura: falha ao remover órfão")
			continue
		}
		report.Removed++
	}

	if s.counter != nil {
		s.counter.AddOrphansRemoved(report.Removed)
	}

	s.logger.Info().
		Int("analisados", report.Scanned).
		Int("orfaos", len(report.Orphans)).
		Int("removidos", report.Removed).
		Int("falhas", report.Failed).
		Bool("simulacao", s.cfg.DryRun).
		Msg("varredura: concluída")
	return report, nil
}
