// Package app monta persistência e storage a partir da configuração.
// É compartilhado pela API e pela varredura de órfãos.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/demandas/internal/config"
	"github.com/gestaozabele/demandas/internal/db"
	"github.com/gestaozabele/demandas/internal/demand"
	"github.com/gestaozabele/demandas/internal/storage"
	"github.com/gestaozabele/demandas/internal/store/memory"
	"github.com/gestaozabele/demandas/internal/store/mongostore"
	"github.com/gestaozabele/demandas/internal/store/pgstore"
	"github.com/gestaozabele/demandas/internal/sweep"
)

// Store é o que a API e a varredura esperam da persistência.
type Store interface {
	demand.Store
	ImageRefs(ctx context.Context) ([]string, error)
}

// Backend agrupa o store escolhido e suas consultas auxiliares.
type Backend struct {
	Store       Store
	Users       demand.UserLookup
	Departments demand.DepartmentLookup
	Ping        func(ctx context.Context) error
	close       func()
}

// Close libera conexões abertas pelo backend.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenBackend conecta ao driver configurado e prepara índices ou schema.
func OpenBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, database, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		st := mongostore.New(database)
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo índices: %w", err)
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("store mongo pronto")
		return &Backend{
			Store:       st,
			Users:       st.Users(),
			Departments: st.Departments(),
			Ping:        st.Ping,
			close:       func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		st := pgstore.New(pool)
		logger.Info().Msg("store postgres pronto")
		return &Backend{
			Store:       st,
			Users:       st.Users(),
			Departments: st.Departments(),
			Ping:        st.Ping,
			close:       pool.Close,
		}, nil

	case config.StoreMemory:
		st := memory.New()
		SeedDepartments(st)
		logger.Warn().Msg("store em memória: dados não sobrevivem ao processo")
		return &Backend{
			Store:       st,
			Users:       st.Users(),
			Departments: st.Departments(),
			Ping:        func(context.Context) error { return nil },
		}, nil
	}

	return nil, errors.New("STORE_DRIVER inválido")
}

var memoryDepartments = []demand.Department{
	{Name: "Secretaria de Limpeza Urbana", Type: demand.TypeCollection},
	{Name: "Secretaria de Iluminação Pública", Type: demand.TypeLighting},
	{Name: "Secretaria de Saneamento", Type: demand.TypeSanitation},
	{Name: "Secretaria de Meio Ambiente", Type: demand.TypeTrees},
	{Name: "Secretaria de Proteção Animal", Type: demand.TypeAnimals},
	{Name: "Secretaria de Obras e Pavimentação", Type: demand.TypePaving},
}

// SeedDepartments registra uma secretaria por tipo no store em memória.
func SeedDepartments(st *memory.Store) {
	for _, dep := range memoryDepartments {
		dep.ID = uuid.NewString()
		st.PutDepartment(dep)
	}
}

// NewUploader escolhe o destino das fotos conforme STORAGE_PROVIDER.
func NewUploader(ctx context.Context, cfg config.StorageConfig) (storage.Uploader, error) {
	switch cfg.Provider {
	case "", "noop":
		return storage.NoopUploader{}, nil
	case "local":
		up, err := storage.NewLocalUploader(cfg.LocalDir, cfg.PublicURL)
		if err != nil {
			return nil, err
		}
		return up, nil
	case "s3", "r2":
		up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicDomain: cfg.PublicDomain,
			PathStyle:    cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return up, nil
	}
	return nil, fmt.Errorf("storage: provider %q desconhecido", cfg.Provider)
}

type bucket struct {
	storage.Uploader
	storage.Lister
}

// SweepBucket adapta o uploader para a varredura quando ele sabe listar objetos.
func SweepBucket(up storage.Uploader) (sweep.Bucket, bool) {
	lister, ok := up.(storage.Lister)
	if !ok {
		return nil, false
	}
	return bucket{Uploader: up, Lister: lister}, true
}
