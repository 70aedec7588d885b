package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/mem"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Cache     Cache     `envPrefix:"CACHE_"`
		Loader    Loader    `envPrefix:"LOADER_"`

		SurveysFile string   `env:"SURVEYS_FILE" envDefault:"surveys.yaml"`
		Surveys     []Survey `env:"-"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT,required"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL,required"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-hips"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}

	Cache struct {
		// BudgetBytes wins over BudgetFraction when set.
		BudgetBytes    uint64  `env:"BUDGET_BYTES" envDefault:"0"`
		BudgetFraction float64 `env:"BUDGET_FRACTION" envDefault:"0.1"`
		MaxInflight    int     `env:"MAX_INFLIGHT" envDefault:"8"`
		MaxVisible     int     `env:"MAX_VISIBLE" envDefault:"16384"`
		DiskBackend    string  `env:"DISK_BACKEND" envDefault:"none"`
		DiskPath       string  `env:"DISK_PATH" envDefault:"hips-cache"`
		DiskCompress   bool    `env:"DISK_COMPRESS" envDefault:"false"`
		WriteQueue     int     `env:"WRITE_QUEUE" envDefault:"64"`
	}

	Loader struct {
		Workers   int           `env:"WORKERS" envDefault:"0"`
		QueueSize int           `env:"QUEUE_SIZE" envDefault:"1024"`
		Timeout   time.Duration `env:"TIMEOUT" envDefault:"30s"`
		UserAgent string        `env:"USER_AGENT" envDefault:"GuideHelper-HiPS/1.0 (https://github.com/jaennil/guide_helper)"`
	}

	Survey struct {
		ID          string `yaml:"id"`
		Kind        string `yaml:"kind"`
		Depth       int    `yaml:"depth"`
		BaseURL     string `yaml:"base_url"`
		Format      string `yaml:"format"`
		MaxOrder    uint8  `yaml:"max_order"`
		AllskyOrder *int   `yaml:"allsky_order"`
		Frame       string `yaml:"frame"`
		Coverage    string `yaml:"coverage"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if cfg.SurveysFile != "" {
		surveys, err := LoadSurveys(cfg.SurveysFile)
		if err != nil {
			return nil, err
		}
		cfg.Surveys = surveys
	}

	return &cfg, nil
}

// LoadSurveys reads the survey list from a YAML file. A missing file yields
// no surveys.
func LoadSurveys(path string) ([]Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("NOTICE: surveys file %s not found\n", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read surveys file: %w", err)
	}

	var doc struct {
		Surveys []Survey `yaml:"surveys"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse surveys file: %w", err)
	}

	for i, s := range doc.Surveys {
		if s.ID == "" {
			return nil, fmt.Errorf("survey #%d has no id", i)
		}
		if s.Kind == "" {
			doc.Surveys[i].Kind = "image"
		}
		if s.Format == "" {
			doc.Surveys[i].Format = "png"
		}
	}

	return doc.Surveys, nil
}

// Budget resolves the per-survey memory budget. Without an explicit byte
// count, a fraction of the total system memory is shared between surveys.
func (c Cache) Budget(surveys int) uint64 {
	if c.BudgetBytes > 0 {
		return c.BudgetBytes
	}
	if surveys < 1 {
		surveys = 1
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("WARN: failed to read system memory, using 256MB budget: %v\n", err)
		return 256 << 20 / uint64(surveys)
	}

	return uint64(float64(vm.Total)*c.BudgetFraction) / uint64(surveys)
}
