// Package config loads cmd/modelrunner's configuration from environment
// variables and .env files, generalizing the tile-service's hand-rolled
// LoadConfig/loadEnvFile into the model runner's own sections while
// switching to godotenv for the file-parsing part.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
	"github.com/mumuon/modelrunner/internal/modelrunner/database"
	"github.com/mumuon/modelrunner/internal/modelrunner/sink"
	"github.com/mumuon/modelrunner/internal/modelrunner/tiling"
)

// Config is the model runner's full process configuration.
type Config struct {
	Database database.Config
	S3       sink.S3Config
	Detector DetectorConfig
	Queue    QueueConfig
	Service  ServiceConfig
}

// DetectorConfig selects and addresses the feature detector endpoint an
// ImageRequest's model_invoke_mode resolves to.
type DetectorConfig struct {
	Endpoint      string
	Mode          common.ModelInvokeMode
	ExecutionRole string
}

// QueueConfig points the serve command's FileQueue at its intake
// directory.
type QueueConfig struct {
	Dir string
}

// ServiceConfig holds process-level tuning: how many images/regions run
// concurrently, how often the queue is polled, the default region size,
// and where StatusMonitor events are published.
type ServiceConfig struct {
	MaxConcurrentRegions int
	PollInterval         time.Duration
	RegionSize           tiling.Extent
	StatusTopic          string
	StatusWebhookURL     string
}

// Load reads envPath+".local" (preferred) and envPath, either of which may
// be absent, then layers environment variables over a set of model runner
// defaults.
// Unlike the tile-service's LoadConfig, a missing database password is
// not fatal here: JobTable/RegionTable persistence is optional, mirroring
// RegionTable/JobTable's own nil-means-skip-persistence contract.
func Load(envPath string) (*Config, error) {
	// Ignore the errors: it's valid to rely solely on already-set
	// environment variables when neither file exists. Each file is loaded
	// on its own so a missing .local file doesn't skip the base file;
	// godotenv never overrides a variable already set, so .local wins.
	_ = godotenv.Load(envPath + ".local")
	_ = godotenv.Load(envPath)

	cfg := &Config{
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "modelrunner"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		S3: sink.S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", "https://s3.us-west-1.wasabisys.com"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("S3_REGION", "us-west-1"),
			Bucket:          getEnv("S3_BUCKET", "modelrunner-results"),
			BucketPath:      getEnv("S3_BUCKET_PATH", "results"),
		},
		Detector: DetectorConfig{
			Endpoint:      getEnv("DETECTOR_ENDPOINT", ""),
			Mode:          common.ModelInvokeMode(getEnv("DETECTOR_MODE", string(common.InvokeModeHTTPEndpoint))),
			ExecutionRole: getEnv("DETECTOR_EXECUTION_ROLE", ""),
		},
		Queue: QueueConfig{
			Dir: getEnv("QUEUE_DIR", "./queue"),
		},
		Service: ServiceConfig{
			MaxConcurrentRegions: getEnvInt("MAX_CONCURRENT_REGIONS", 4),
			PollInterval:         time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 10)) * time.Second,
			RegionSize:           tiling.Extent{Col: getEnvInt("REGION_SIZE_COL", 0), Row: getEnvInt("REGION_SIZE_ROW", 0)},
			StatusTopic:          getEnv("STATUS_TOPIC", "image-status"),
			StatusWebhookURL:     getEnv("STATUS_WEBHOOK_URL", ""),
		},
	}

	if cfg.Detector.Endpoint == "" {
		return nil, fmt.Errorf("DETECTOR_ENDPOINT environment variable is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
