package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// Config for the OpenAI-compatible client. The default base URL targets
// NVIDIA's hosted endpoint, which speaks the same chat/completions protocol.
type Config struct {
	APIKey      string        // if empty, falls back to env LLM_API_KEY
	BaseURL     string        // default https://integrate.api.nvidia.com/v1
	Model       string        // e.g., "meta/llama-3.2-11b-vision-instruct"
	Temperature float32       // 0..2
	MaxTokens   int           // default 1000
	Timeout     time.Duration // http client timeout
	HTTPClient  *http.Client
}

type Client struct {
	cfg    Config
	api    *goopenai.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("LLM_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://integrate.api.nvidia.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "meta/llama-3.2-11b-vision-instruct"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = cfg.HTTPClient

	return &Client{
		cfg:    cfg,
		api:    goopenai.NewClientWithConfig(apiCfg),
		logger: logger,
	}
}
