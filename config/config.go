package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	MarketDataYahoo    = "yahoo"
	MarketDataLongport = "longport"

	// MaxNewsResults is the hard cap of the news search backend.
	MaxNewsResults = 10
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	ResultsDir string `json:"results_dir"`
	HistoryDB  string `json:"history_db"`

	LLMProvider  string `json:"llm_provider"`
	Model        string `json:"model"`
	ManagerModel string `json:"manager_model"`
	BackendURL   string `json:"backend_url"`

	MarketDataProvider string `json:"market_data_provider"`
	NewsRegion         string `json:"news_region"`
	NewsMaxResults     int    `json:"news_max_results"`

	ListenAddr string `json:"listen_addr"`
	Verbose    bool   `json:"verbose"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	ScheduleCron     string   `json:"schedule_cron"`
	ScheduleTickers  []string `json:"schedule_tickers"`
	ScheduleLookback int      `json:"schedule_lookback_days"`

	// Secrets only come from the environment.
	OpenAIAPIKey        string `json:"-"`
	DeepSeekAPIKey      string `json:"-"`
	LongportAppKey      string `json:"-"`
	LongportAppSecret   string `json:"-"`
	LongportAccessToken string `json:"-"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults rooted at dir, without
// consulting the environment.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		ProjectDir: dir,
		ResultsDir: filepath.Join(dir, "results"),
		HistoryDB:  filepath.Join(dir, "data", "history.db"),

		LLMProvider:  ProviderOpenAI,
		Model:        "gpt-3.5-turbo",
		ManagerModel: "gpt-3.5-turbo",

		MarketDataProvider: MarketDataYahoo,
		NewsRegion:         "us-en",
		NewsMaxResults:     MaxNewsResults,

		ListenAddr: ":8501",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		ScheduleCron:     "0 7 * * 1-5",
		ScheduleLookback: 30,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}

	if val := os.Getenv("HISTORY_DB"); val != "" {
		c.HistoryDB = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.Model = val
	}
	if val := os.Getenv("MANAGER_LLM_MODEL"); val != "" {
		c.ManagerModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}

	if val := os.Getenv("MARKET_DATA_PROVIDER"); val != "" {
		c.MarketDataProvider = val
	}
	if val := os.Getenv("NEWS_REGION"); val != "" {
		c.NewsRegion = val
	}
	if val := os.Getenv("NEWS_MAX_RESULTS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.NewsMaxResults = v
		}
	}

	if val := os.Getenv("LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := os.Getenv("STOCKANALYZER_VERBOSE"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Verbose = enabled
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("SCHEDULE_CRON"); val != "" {
		c.ScheduleCron = val
	}
	if val := os.Getenv("SCHEDULE_TICKERS"); val != "" {
		c.ScheduleTickers = splitList(val)
	}

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderDeepSeek:
	default:
		errs = append(errs, fmt.Errorf("unknown llm_provider %q", c.LLMProvider))
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	switch c.MarketDataProvider {
	case MarketDataYahoo, MarketDataLongport:
	default:
		errs = append(errs, fmt.Errorf("unknown market_data_provider %q", c.MarketDataProvider))
	}
	if c.NewsMaxResults < 1 || c.NewsMaxResults > MaxNewsResults {
		errs = append(errs, fmt.Errorf("news_max_results must be between 1 and %d", MaxNewsResults))
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	return errors.Join(errs...)
}

// RequireSecrets reports whether the secrets needed by the selected
// providers are present.
func (c *Config) RequireSecrets() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is not set")
		}
	case ProviderDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return errors.New("DEEPSEEK_API_KEY is not set")
		}
	}
	if c.MarketDataProvider == MarketDataLongport {
		if c.LongportAppKey == "" || c.LongportAppSecret == "" || c.LongportAccessToken == "" {
			return errors.New("longport API credentials not configured")
		}
	}
	return nil
}

// WithSecretsFrom copies the environment-only fields of src into c.
func (c *Config) WithSecretsFrom(src *Config) *Config {
	c.OpenAIAPIKey = src.OpenAIAPIKey
	c.DeepSeekAPIKey = src.DeepSeekAPIKey
	c.LongportAppKey = src.LongportAppKey
	c.LongportAppSecret = src.LongportAppSecret
	c.LongportAccessToken = src.LongportAccessToken
	return c
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
