package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"formsmith/internal/config"
	"formsmith/internal/consensus"
	"formsmith/internal/llm"
	"formsmith/internal/logging"
	"formsmith/internal/pipeline"
	"formsmith/internal/registry"
	"formsmith/internal/roster"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// generate flags
	quality       string
	questionCount int
	noEnsemble    bool
	noValidation  bool
	noRefinement  bool
	referenceFile string
	userContext   string
	timeout       time.Duration
	outputPath    string
	formOnly      bool

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "formsmith",
	Short: "formsmith - natural language to typed form specifications",
	Long: `formsmith turns natural-language requests ("make a 10-question survey",
"quiz me on photosynthesis") into fully specified forms.

A classifier routes each request to an appropriately capable model; optional
ensemble, validation, and refinement passes raise quality at the cost of
extra model calls. Output is a typed form specification in JSON.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("debug logging unavailable", zap.Error(err))
		}

		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// generateCmd runs the full pipeline for one request
var generateCmd = &cobra.Command{
	Use:   "generate [request]",
	Short: "Generate a form specification from a natural language request",
	Long: `Runs the full pipeline for one request:
  1. Classify complexity and extract a requested question count
  2. Select a model from the roster
  3. Primary analysis (always), ensemble + validation (concurrent, optional)
  4. Refinement when the validator finds problems
  5. Synthesize the final typed form

Examples:
  formsmith generate "Make a 10-question survey about remote work"
  formsmith generate "Quiz me on photosynthesis" --quality high
  formsmith generate "Feedback form for this article" --reference-file article.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

// registryCmd prints the field type catalog
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "List the allowed field types and their guidance",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.New()
		fmt.Print(reg.PromptGuidance())
		return nil
	},
}

func runGenerate(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	switch quality {
	case "", string(roster.QualityQuick), string(roster.QualityHigh):
	default:
		return fmt.Errorf("invalid --quality %q (valid: quick, high)", quality)
	}

	creds := llm.CredentialsFromEnv()
	router, err := llm.NewRouterWithOptions(creds, llm.RouterOptions{
		Timeout:          cfg.GetLLMTimeout(),
		MaxRetries:       cfg.LLM.MaxRetries,
		RetryBackoff:     cfg.GetRetryBackoff(),
		AnthropicBaseURL: cfg.LLM.AnthropicBaseURL,
		OpenAIBaseURL:    cfg.LLM.OpenAIBaseURL,
		GeminiBaseURL:    cfg.LLM.GeminiBaseURL,
	})
	if err != nil {
		return err
	}

	var matcher consensus.Matcher
	if cfg.Consensus.EmbeddingMatcher {
		if creds.Gemini == "" {
			logger.Warn("embedding matcher enabled but GEMINI_API_KEY is unset, using normalized label matching")
		} else {
			m, err := consensus.NewEmbeddingMatcher(cmd.Context(), creds.Gemini, "", cfg.Consensus.SimilarityThreshold)
			if err != nil {
				logger.Warn("embedding matcher unavailable, using normalized label matching", zap.Error(err))
			} else {
				matcher = m
			}
		}
	}

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Quality = roster.Quality(quality)
	opts.UserContext = userContext
	if noEnsemble {
		opts.EnableEnsemble = false
	}
	if noValidation {
		opts.EnableValidation = false
	}
	if noRefinement {
		opts.EnableRefinement = false
	}
	if cmd.Flags().Changed("count") {
		if questionCount < 1 {
			return fmt.Errorf("--count must be at least 1, got %d", questionCount)
		}
		opts.QuestionCount = &questionCount
	}
	if referenceFile != "" {
		data, err := os.ReadFile(referenceFile)
		if err != nil {
			return fmt.Errorf("failed to read reference file: %w", err)
		}
		opts.ReferenceData = string(data)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(router, registry.New(), cfg, matcher)
	result, err := p.Generate(ctx, request, opts)
	if err != nil {
		return err
	}

	logger.Info("form generated",
		zap.String("id", result.ID),
		zap.Int("fields", len(result.Form.Fields)),
		zap.Duration("elapsed", result.Elapsed))

	var payload interface{} = result
	if formOnly {
		payload = result.Form
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, append(out, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Wrote %s (%d fields)\n", outputPath, len(result.Form.Fields))
		return nil
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .formsmith/config.json)")

	generateCmd.Flags().StringVarP(&quality, "quality", "q", "", "Quality mode: quick or high (default: balanced by complexity)")
	generateCmd.Flags().IntVarP(&questionCount, "count", "n", 0, "Exact number of questions (overrides the request text)")
	generateCmd.Flags().BoolVar(&noEnsemble, "no-ensemble", false, "Skip the second-opinion ensemble pass")
	generateCmd.Flags().BoolVar(&noValidation, "no-validation", false, "Skip the validation pass")
	generateCmd.Flags().BoolVar(&noRefinement, "no-refinement", false, "Skip the refinement pass")
	generateCmd.Flags().StringVar(&referenceFile, "reference-file", "", "File with source material (text or HTML)")
	generateCmd.Flags().StringVar(&userContext, "user-context", "", "Description of the requester")
	generateCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Pipeline timeout")
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to a file instead of stdout")
	generateCmd.Flags().BoolVar(&formOnly, "form-only", false, "Print only the form, not the full run record")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(registryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
