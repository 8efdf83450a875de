package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL           string  `yaml:"base_url"`
		ChatModel         string  `yaml:"chat_model"`
		EmbedModel        string  `yaml:"embed_model"`
		MaxTokens         int     `yaml:"max_tokens"`
		Temperature       float64 `yaml:"temperature"`
		GenerationTimeout int     `yaml:"generation_timeout_seconds"`
	} `yaml:"llm"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Ingest struct {
		ChunkSize      int     `yaml:"chunk_size"`
		ChunkOverlap   int     `yaml:"chunk_overlap"`
		MaxFileSize    int64   `yaml:"max_file_size"`
		UploadDir      string  `yaml:"upload_dir"`
		EmbedRateLimit float64 `yaml:"embed_rate_limit"`
	} `yaml:"ingest"`

	Retrieval struct {
		TopK            int `yaml:"top_k"`
		MaxContextChars int `yaml:"max_context_chars"`
	} `yaml:"retrieval"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/payrag/config.yaml"),
			"/etc/payrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	// Defaults first, then the file overlays only the keys it names, so an
	// explicit zero (e.g. chunk_overlap: 0) survives instead of reading as
	// "unset".
	var config Config
	applyDefaults(&config)
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Environment variables win over the file
	mergeWithEnv(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "llama3.2:3b"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.GenerationTimeout == 0 {
		config.LLM.GenerationTimeout = 30
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Ingest.ChunkSize == 0 {
		config.Ingest.ChunkSize = 500
	}
	if config.Ingest.ChunkOverlap == 0 {
		config.Ingest.ChunkOverlap = 50
	}
	if config.Ingest.MaxFileSize == 0 {
		config.Ingest.MaxFileSize = 10 << 20 // 10 MB
	}
	if config.Ingest.UploadDir == "" {
		config.Ingest.UploadDir = "uploads"
	}
	if config.Ingest.EmbedRateLimit == 0 {
		config.Ingest.EmbedRateLimit = 10.0
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 3
	}
	if config.Retrieval.MaxContextChars == 0 {
		config.Retrieval.MaxContextChars = 4000
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		config.Ingest.UploadDir = dir
	}
}
