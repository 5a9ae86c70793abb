package common

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Budget     BudgetConfig
	Models     ModelsConfig
	OpenAI     OpenAIConfig
	Vertex     VertexConfig
	Cache      CacheConfig
	OCR        OCRConfig
	Workers    WorkersConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Candidates CandidatesConfig
	Threshold  int
}

// BudgetConfig holds the per-call token ceiling and image cost model.
type BudgetConfig struct {
	TokenLimit    int
	PriorityPages int
	MaxEdge       int
	Tile          int
	BaseCost      int
	PerTileCost   int
}

// ModelsConfig holds per-pass model ids. An empty id disables the pass.
type ModelsConfig struct {
	TextShort        string
	TextLong         string
	Image            string
	Tags             string
	WordThreshold    int
	TextTemperature  float32
	ImageTemperature float32
	TagsTemperature  float32
	MaxOutputTokens  int
	Language         string
}

// OpenAIConfig holds OpenAI transport settings
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// VertexConfig holds Vertex AI settings
type VertexConfig struct {
	ProjectID string
	Location  string
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	Enabled  bool
	TTL      time.Duration
	Dir      string
	RedisURL string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Mode        string // auto | force | off
	Languages   string
	Tesseract   string
	Pdftoppm    string
	Pdftotext   string
	TessdataDir string
	DPI         int
}

// WorkersConfig holds per-kind pool sizes
type WorkersConfig struct {
	OCR            int
	Text           int
	Image          int
	StatusInterval time.Duration
	JobTimeout     time.Duration // 0 leaves jobs unbounded
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds daemon-related configuration
type ServerConfig struct {
	GRPCAddr   string
	WatchRoots []string
	Debounce   time.Duration
}

// CandidatesConfig holds the candidate extraction thresholds
type CandidatesConfig struct {
	ScanCoverage        float64
	SmallImageCoverage  float64
	GroupSmallImages    int
	MinEdgeMM           float64
	SparseTextWords     int
	MinFigurePrimitives int
	MaxFigureWords      int
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment.
// A missing file is not an error; existing variables are never overwritten.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return NewAppError("CONFIG_ERROR", "failed to load "+path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Budget: BudgetConfig{
			TokenLimit:    getEnvAsInt("PDFTAGGER_TOKEN_LIMIT", 8000),
			PriorityPages: getEnvAsInt("PDFTAGGER_PRIORITY_PAGES", 3),
			MaxEdge:       getEnvAsInt("PDFTAGGER_IMAGE_MAX_EDGE", 2048),
			Tile:          getEnvAsInt("PDFTAGGER_IMAGE_TILE", 512),
			BaseCost:      getEnvAsInt("PDFTAGGER_IMAGE_BASE_COST", 85),
			PerTileCost:   getEnvAsInt("PDFTAGGER_IMAGE_TILE_COST", 170),
		},
		Models: ModelsConfig{
			TextShort:        getEnv("PDFTAGGER_MODEL_TEXT_SHORT", ""),
			TextLong:         getEnv("PDFTAGGER_MODEL_TEXT_LONG", ""),
			Image:            getEnv("PDFTAGGER_MODEL_IMAGE", ""),
			Tags:             getEnv("PDFTAGGER_MODEL_TAGS", ""),
			WordThreshold:    getEnvAsInt("PDFTAGGER_TEXT_WORD_THRESHOLD", 100),
			TextTemperature:  getEnvAsFloat32("PDFTAGGER_TEXT_TEMPERATURE", 0.3),
			ImageTemperature: getEnvAsFloat32("PDFTAGGER_IMAGE_TEMPERATURE", 0.8),
			TagsTemperature:  getEnvAsFloat32("PDFTAGGER_TAGS_TEMPERATURE", 0.3),
			MaxOutputTokens:  getEnvAsInt("PDFTAGGER_MAX_OUTPUT_TOKENS", 1024),
			Language:         getEnv("PDFTAGGER_LANGUAGE", "English"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 90*time.Second),
		},
		Vertex: VertexConfig{
			ProjectID: getEnv("VERTEX_PROJECT_ID", getEnv("GOOGLE_CLOUD_PROJECT", "")),
			Location:  getEnv("VERTEX_LOCATION", "us-central1"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvAsBool("PDFTAGGER_CACHE", true),
			TTL:      getEnvAsDuration("PDFTAGGER_CACHE_TTL", 24*time.Hour),
			Dir:      getEnv("PDFTAGGER_CACHE_DIR", home+"/.pdftagger/cache"),
			RedisURL: getEnv("PDFTAGGER_REDIS_URL", ""),
		},
		OCR: OCRConfig{
			Mode:        getEnv("PDFTAGGER_OCR", "auto"),
			Languages:   getEnv("PDFTAGGER_OCR_LANGUAGES", "eng"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Pdftotext:   getEnv("PDFTOTEXT_BIN", "pdftotext"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			DPI:         getEnvAsInt("PDFTAGGER_OCR_DPI", 300),
		},
		Workers: WorkersConfig{
			OCR:            getEnvAsInt("PDFTAGGER_OCR_WORKERS", runtime.NumCPU()),
			Text:           getEnvAsInt("PDFTAGGER_TEXT_WORKERS", 2),
			Image:          getEnvAsInt("PDFTAGGER_IMAGE_WORKERS", 2),
			StatusInterval: getEnvAsDuration("PDFTAGGER_STATUS_INTERVAL", 2*time.Second),
			JobTimeout:     getEnvAsDuration("PDFTAGGER_JOB_TIMEOUT", 0),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			GRPCAddr:   getEnv("GRPC_ADDR", ":8080"),
			WatchRoots: getEnvAsList("PDFTAGGER_WATCH_ROOTS"),
			Debounce:   getEnvAsDuration("PDFTAGGER_WATCH_DEBOUNCE", 3*time.Second),
		},
		Candidates: CandidatesConfig{
			ScanCoverage:        getEnvAsFloat64("PDFTAGGER_SCAN_COVERAGE", 0.80),
			SmallImageCoverage:  getEnvAsFloat64("PDFTAGGER_SMALL_IMAGE_COVERAGE", 0.10),
			GroupSmallImages:    getEnvAsInt("PDFTAGGER_GROUP_SMALL_IMAGES", 4),
			MinEdgeMM:           getEnvAsFloat64("PDFTAGGER_MIN_EDGE_MM", 15),
			SparseTextWords:     getEnvAsInt("PDFTAGGER_SPARSE_TEXT_WORDS", 5),
			MinFigurePrimitives: getEnvAsInt("PDFTAGGER_MIN_FIGURE_PRIMITIVES", 12),
			MaxFigureWords:      getEnvAsInt("PDFTAGGER_MAX_FIGURE_WORDS", 40),
		},
		Threshold: getEnvAsInt("PDFTAGGER_THRESHOLD", 7),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the loaded configuration and reports every bad field
// in one CONFIG_ERROR.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("budget.token_limit", c.Budget.TokenLimit, Positive).
		Field("budget.image_tile", c.Budget.Tile, Positive).
		Field("budget.image_max_edge", c.Budget.MaxEdge, Positive).
		Field("threshold", c.Threshold, IntRange(0, 10)).
		Field("ocr.mode", c.OCR.Mode, OneOf("auto", "force", "off")).
		Field("workers.ocr", c.Workers.OCR, Positive).
		Field("workers.text", c.Workers.Text, Positive).
		Field("workers.image", c.Workers.Image, Positive)
	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		v.Field("cache.dir", c.Cache.Dir, Required)
	}
	if err := v.Error(); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}
