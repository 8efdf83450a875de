package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/payrag/internal/types"
	"github.com/xhad/payrag/pkg/classifier"
	cfgPkg "github.com/xhad/payrag/pkg/config"
	"github.com/xhad/payrag/pkg/extractor"
	"github.com/xhad/payrag/pkg/llm"
	"github.com/xhad/payrag/pkg/pipeline"
	"github.com/xhad/payrag/pkg/roles"
	"github.com/xhad/payrag/pkg/store"
	"github.com/xhad/payrag/server"
)

type cliFlags struct {
	ConfigPath string
	Serve      bool
	IndexDir   string
	Memory     bool
	Addr       string
	OllamaURL  string
	DBUrl      string
	Role       string
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() cliFlags {
	var flags cliFlags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.BoolVar(&flags.Serve, "serve", false, "Run the HTTP API server")
	flag.StringVar(&flags.IndexDir, "index", "", "Directory of documents to ingest before starting")
	flag.BoolVar(&flags.Memory, "memory", false, "Use the in-memory knowledge base instead of Postgres")
	flag.StringVar(&flags.Addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&flags.OllamaURL, "ollama-url", "", "Ollama server URL (overrides config)")
	flag.StringVar(&flags.DBUrl, "db-url", "", "PostgreSQL connection string (overrides config)")
	flag.StringVar(&flags.Role, "role", "", "Stakeholder role for chat (default: inferred per query)")
	flag.Parse()

	return flags
}

func loadConfig(flags cliFlags) (*cfgPkg.Config, error) {
	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	config, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Command line flags override config file and environment
	if flags.Addr != "" {
		config.Server.Addr = flags.Addr
	}
	if flags.OllamaURL != "" {
		config.LLM.BaseURL = flags.OllamaURL
	}
	if flags.DBUrl != "" {
		config.Database.URL = flags.DBUrl
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	return config, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags cliFlags) error {
	config, err := loadConfig(flags)
	if err != nil {
		return err
	}

	if err := roles.Validate(); err != nil {
		return fmt.Errorf("role profiles: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var kb types.KnowledgeBase
	if flags.Memory {
		kb = store.NewMemoryStore()
	} else {
		kb, err = store.NewWithConfig(store.VectorStoreConfig{
			ConnString: config.Database.URL,
			TableName:  config.Database.TableName,
			VectorDim:  config.Database.VectorDim,
			BatchSize:  config.Database.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize vector store: %v", err)
		}
	}
	defer kb.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.LLM.EmbedModel,
		BaseURL: config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       config.LLM.ChatModel,
		MaxTokens:   config.LLM.MaxTokens,
		BaseURL:     config.LLM.BaseURL,
		Temperature: config.LLM.Temperature,
		Timeout:     time.Duration(config.LLM.GenerationTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	ingestor, err := pipeline.NewIngestor(
		extractor.New(logger),
		classifier.New(logger),
		embedder,
		kb,
		types.IngestConfig{
			ChunkSize:      config.Ingest.ChunkSize,
			ChunkOverlap:   config.Ingest.ChunkOverlap,
			MaxFileSize:    config.Ingest.MaxFileSize,
			EmbedRateLimit: config.Ingest.EmbedRateLimit,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize ingestor: %v", err)
	}

	querier := pipeline.NewQuerier(embedder, kb, chatEngine, types.RetrievalConfig{
		TopK:              config.Retrieval.TopK,
		MaxContextChars:   config.Retrieval.MaxContextChars,
		GenerationTimeout: time.Duration(config.LLM.GenerationTimeout) * time.Second,
	}, logger)

	if flags.IndexDir != "" {
		if err := indexDirectory(ingestor, flags.IndexDir); err != nil {
			return err
		}
	}

	if flags.Serve {
		srv, err := server.New(server.Config{
			Addr:      config.Server.Addr,
			UploadDir: config.Ingest.UploadDir,
			MaxUpload: config.Ingest.MaxFileSize,
		}, ingestor, querier, kb, logger)
		if err != nil {
			return err
		}
		return srv.ListenAndServe()
	}

	return chatLoop(querier, flags.Role)
}

// indexDirectory bulk-ingests every supported file in dir, skipping the
// rest. One bad file does not stop the run.
func indexDirectory(ingestor *pipeline.Ingestor, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read index directory: %v", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !extractor.Supported(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}

	if len(files) == 0 {
		color.Yellow("No supported documents found in %s", dir)
		return nil
	}

	color.Blue("\nIndexing %d documents from %s\n", len(files), dir)
	bar := getProgressBar(len(files), "📄 Ingesting documents...")

	indexed, failed := 0, 0
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			color.Red("\n%s: %v", name, err)
			failed++
			bar.Add(1)
			continue
		}

		result, err := ingestor.Ingest(context.Background(), data, name)
		if err != nil {
			color.Red("\n%s: %v", name, err)
			failed++
			bar.Add(1)
			continue
		}

		indexed++
		bar.Describe(color.BlueString(
			"📄 Ingesting documents... (%s → %s, %d chunks)",
			name, result.DocType, result.ChunksIndexed))
		bar.Add(1)
	}
	bar.Finish()

	color.Green("\n✓ Indexed %d documents (%d failed)\n", indexed, failed)
	return nil
}

// chatLoop is the interactive terminal client. `role:<name>` switches the
// active stakeholder role mid-session; an empty role infers per query.
func chatLoop(querier *pipeline.Querier, initialRole string) error {
	role, err := roles.Parse(initialRole)
	if err != nil {
		return err
	}

	color.Cyan("\nChat with your payment documentation (type 'exit' to quit)")
	color.Cyan("Switch roles with 'role:product_lead', 'role:tech_lead', 'role:compliance_lead', 'role:bank_alliance_lead' or 'role:auto'")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			break
		}
		if query == "" {
			continue
		}

		if after, ok := strings.CutPrefix(strings.ToLower(query), "role:"); ok {
			next, err := roles.Parse(after)
			if err != nil {
				color.Red("%v", err)
				continue
			}
			role = next
			color.Yellow("Role set to %s", role)
			continue
		}

		spinner := getSpinner("🔍 Searching documentation...")
		result, err := querier.Query(context.Background(), query, role, 0)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("Assistant (%s): %s\n", result.RoleUsed, result.Answer)

		if len(result.Sources) > 0 {
			fmt.Println()
			for _, src := range result.Sources {
				color.White("  source: %s #%d (%.2f)", src.Filename, src.ChunkIndex, src.Score)
			}
			color.White("  confidence: %.2f", result.Confidence)
		}
	}

	return nil
}
