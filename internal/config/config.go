package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Drivers de persistência aceitos em STORE_DRIVER.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port               int
	StoreDriver        string
	MongoURI           string
	MongoDatabase      string
	DBDSN              string
	RedisURL           string
	JWTSecret          string
	JWTAccessTTL       time.Duration
	AllowOrigins       []string
	RateLimitPublic    RateLimitConfig
	RateLimitAuth      RateLimitConfig
	CreateDailyLimit   int64
	DepartmentCacheTTL time.Duration
	FallbackFields     []string
	LogLevel           string
	Storage            StorageConfig
	Sweep              SweepConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// StorageConfig define onde as fotos das demandas são gravadas.
type StorageConfig struct {
	Provider     string
	LocalDir     string
	PublicURL    string
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3PathStyle  bool
	PublicDomain string
}

// SweepConfig controla a varredura de arquivos órfãos.
type SweepConfig struct {
	Prefix   string
	MinAge   time.Duration
	Interval time.Duration
	DryRun   bool
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", StoreMongo)))
	switch cfg.StoreDriver {
	case StoreMongo:
		cfg.MongoURI = strings.TrimSpace(getEnv("MONGODB_URI", ""))
		if cfg.MongoURI == "" {
			return nil, errors.New("MONGODB_URI obrigatório")
		}
		cfg.MongoDatabase = strings.TrimSpace(getEnv("MONGODB_DATABASE", "demandas"))
	case StorePostgres:
		cfg.DBDSN = getEnv("DB_DSN", "")
		if cfg.DBDSN == "" {
			return nil, errors.New("DB_DSN obrigatório")
		}
	case StoreMemory:
	default:
		return nil, errors.New("STORE_DRIVER inválido")
	}

	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", ""))

	publicRPS, err := parseFloatEnv("RATE_LIMIT_PUBLIC_RPS", 10)
	if err != nil {
		return nil, err
	}
	publicBurst, err := parseIntEnv("RATE_LIMIT_PUBLIC_BURST", 20)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: publicRPS, Burst: int(publicBurst)}

	authRPS, err := parseFloatEnv("RATE_LIMIT_AUTH_RPS", 10)
	if err != nil {
		return nil, err
	}
	authBurst, err := parseIntEnv("RATE_LIMIT_AUTH_BURST", 40)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: authRPS, Burst: int(authBurst)}

	cfg.CreateDailyLimit, err = parseIntEnv("CREATE_DAILY_LIMIT", 20)
	if err != nil {
		return nil, err
	}

	cfg.DepartmentCacheTTL, err = parseDurationEnv("DEPARTMENT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.FallbackFields = splitList(getEnv("FALLBACK_FIELDS", ""))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info")))

	cfg.Storage = StorageConfig{
		Provider:     strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "noop"))),
		LocalDir:     strings.TrimSpace(getEnv("STORAGE_LOCAL_DIR", "./uploads")),
		PublicURL:    strings.TrimSpace(getEnv("STORAGE_PUBLIC_URL", "")),
		S3Endpoint:   strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:     strings.TrimSpace(getEnv("S3_REGION", "auto")),
		S3Bucket:     strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3AccessKey:  strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey:  strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		S3PathStyle:  parseBoolEnv("S3_PATH_STYLE", false),
		PublicDomain: strings.TrimSpace(getEnv("S3_PUBLIC_DOMAIN", "")),
	}
	switch cfg.Storage.Provider {
	case "", "noop", "local":
	case "s3", "r2":
		if cfg.Storage.S3Bucket == "" || cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
			return nil, errors.New("S3_BUCKET, S3_ACCESS_KEY e S3_SECRET_KEY obrigatórios")
		}
	default:
		return nil, errors.New("STORAGE_PROVIDER inválido")
	}

	sweepAge, err := parseDurationEnv("SWEEP_MIN_AGE", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDurationEnv("SWEEP_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	cfg.Sweep = SweepConfig{
		Prefix:   strings.TrimSpace(getEnv("SWEEP_PREFIX", "demandas/")),
		MinAge:   sweepAge,
		Interval: sweepInterval,
		DryRun:   parseBoolEnv("SWEEP_DRY_RUN", false),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseIntEnv(key string, def int64) (int64, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return 0, errors.New(key + " inválido")
	}
	return f, nil
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}
