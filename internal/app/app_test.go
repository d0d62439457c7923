package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/demandas/internal/config"
	"github.com/gestaozabele/demandas/internal/demand"
	"github.com/gestaozabele/demandas/internal/storage"
)

func TestOpenBackendMemory(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenBackend(ctx, &config.Config{StoreDriver: config.StoreMemory}, zerolog.Nop())
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Ping(ctx))

	dep, err := backend.Departments.FindByType(ctx, demand.TypeLighting)
	require.NoError(t, err)
	assert.Equal(t, "Secretaria de Iluminação Pública", dep.Name)
	assert.NotEmpty(t, dep.ID)

	refs, err := backend.Store.ImageRefs(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestOpenBackendUnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), &config.Config{StoreDriver: "sqlite"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewUploader(t *testing.T) {
	ctx := context.Background()

	up, err := NewUploader(ctx, config.StorageConfig{Provider: "noop"})
	require.NoError(t, err)
	assert.IsType(t, storage.NoopUploader{}, up)

	up, err = NewUploader(ctx, config.StorageConfig{Provider: "local", LocalDir: t.TempDir(), PublicURL: "/arquivos"})
	require.NoError(t, err)
	_, isLister := up.(storage.Lister)
	assert.True(t, isLister)

	_, err = NewUploader(ctx, config.StorageConfig{Provider: "s3"})
	assert.Error(t, err)

	_, err = NewUploader(ctx, config.StorageConfig{Provider: "ftp"})
	assert.Error(t, err)
}

func TestSweepBucket(t *testing.T) {
	up, err := storage.NewLocalUploader(t.TempDir(), "")
	require.NoError(t, err)

	b, ok := SweepBucket(up)
	require.True(t, ok)

	objs, err := b.List(context.Background(), "demandas/")
	require.NoError(t, err)
	assert.Empty(t, objs)
}
