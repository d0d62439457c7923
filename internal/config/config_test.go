package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", secret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.EqualValues(t, 20, cfg.CreateDailyLimit)
	assert.Equal(t, 10*time.Minute, cfg.DepartmentCacheTTL)
	assert.Equal(t, "noop", cfg.Storage.Provider)
	assert.Equal(t, "demandas/", cfg.Sweep.Prefix)
	assert.Nil(t, cfg.FallbackFields)
}

func TestLoadMongoRequiresURI(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("JWT_SECRET", secret)

	_, err := Load()
	assert.EqualError(t, err, "MONGODB_URI obrigatório")

	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "demandas", cfg.MongoDatabase)
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", secret)

	_, err := Load()
	assert.EqualError(t, err, "DB_DSN obrigatório")
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "curto")

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET deve ter pelo menos 32 caracteres")
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("ALLOW_ORIGINS", " http://a.local , ,http://b.local")
	t.Setenv("FALLBACK_FIELDS", "_id,tipo, status,descricao")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.AllowOrigins)
	assert.Equal(t, []string{"_id", "tipo", "status", "descricao"}, cfg.FallbackFields)
}

func TestLoadStorageValidation(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("STORAGE_PROVIDER", "r2")
	t.Setenv("S3_BUCKET", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_PROVIDER", "ftp")
	_, err = Load()
	assert.EqualError(t, err, "STORAGE_PROVIDER inválido")
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", secret)

	t.Setenv("CREATE_DAILY_LIMIT", "muitos")
	_, err := Load()
	assert.EqualError(t, err, "CREATE_DAILY_LIMIT inválido")

	t.Setenv("CREATE_DAILY_LIMIT", "")
	t.Setenv("DEPARTMENT_CACHE_TTL", "dez")
	_, err = Load()
	assert.EqualError(t, err, "DEPARTMENT_CACHE_TTL inválido")

	t.Setenv("DEPARTMENT_CACHE_TTL", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load()
	assert.EqualError(t, err, "STORE_DRIVER inválido")
}
