package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pgx-risk-server/internal/config"
	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/service"
	"github.com/pgx-risk-server/pkg/external"
	"github.com/pgx-risk-server/pkg/vcf"
)

var analyzeFlags struct {
	vcfPath   string
	drug      string
	patientID string
	useAI     bool
	pretty    bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a VCF file for one drug-gene interaction",
	Long: `Analyze screens a patient VCF against the CPIC guideline tables and
prints the full risk report as JSON on stdout.

Usage:
  pgxcli analyze --vcf patient.vcf --drug codeine
  pgxcli analyze --vcf patient.vcf.gz --drug warfarin --patient-id PGX042 --pretty

An unsupported drug still produces a report, carrying the Error risk
label and the reason in the explanation fields; only I/O and
configuration faults exit nonzero.

With --use-ai the explanation sections come from the configured
language model (PGX_LLM_API_KEY and friends); without it, or when the
provider is unreachable, deterministic templates are used.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.vcfPath, "vcf", "", "Path to the VCF file, plain or gzip (required)")
	f.StringVar(&analyzeFlags.drug, "drug", "", "Drug name to screen (required)")
	f.StringVar(&analyzeFlags.patientID, "patient-id", "", "Patient identifier for the report")
	f.BoolVar(&analyzeFlags.useAI, "use-ai", false, "Generate explanations with the configured language model")
	f.BoolVar(&analyzeFlags.pretty, "pretty", false, "Indent the JSON report")
	_ = analyzeCmd.MarkFlagRequired("vcf")
	_ = analyzeCmd.MarkFlagRequired("drug")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.LoadLiteConfig()
	logger := buildLogger(cfg)

	data, err := os.ReadFile(analyzeFlags.vcfPath)
	if err != nil {
		return fmt.Errorf("read VCF: %w", err)
	}

	content, err := vcf.DecodeUpload(analyzeFlags.vcfPath, data)
	if err != nil {
		return fmt.Errorf("decode VCF: %w", err)
	}
	if !vcf.LooksLikeVCF(content) {
		return fmt.Errorf("%s does not look like a VCF file", analyzeFlags.vcfPath)
	}

	kb := cpic.NewKnowledgeBase()
	if err := kb.Validate(); err != nil {
		return fmt.Errorf("guideline tables: %w", err)
	}

	// A one-shot process gains nothing from the explanation cache.
	explainer := service.NewExplainer(logger, kb, buildGenerator(logger, cfg), nil,
		service.ExplainerConfig{
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
	analyzer := service.NewAnalyzerService(logger, kb, explainer)

	report, err := analyzer.Analyze(cmd.Context(), service.AnalyzeParams{
		PatientID:  analyzeFlags.patientID,
		Drug:       analyzeFlags.drug,
		RawContent: content,
		UseLLM:     analyzeFlags.useAI,
	})
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	out, err := marshalReport(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func marshalReport(report interface{}) ([]byte, error) {
	if analyzeFlags.pretty {
		return json.MarshalIndent(report, "", "  ")
	}
	return json.Marshal(report)
}

// buildLogger writes to stderr so a piped report stays clean JSON.
func buildLogger(cfg *config.LiteConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	return logger
}

// buildGenerator wires the language-model provider for --use-ai runs.
// Returning nil keeps explanations on the deterministic template path.
func buildGenerator(logger *logrus.Logger, cfg *config.LiteConfig) external.TextGenerator {
	if !analyzeFlags.useAI {
		return nil
	}
	if cfg.LLMAPIKey == "" {
		logger.Warn("--use-ai requested but PGX_LLM_API_KEY is not set, using template explanations")
		return nil
	}

	client := external.NewOpenAIClient(external.OpenAIConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	return external.NewResilientTextGenerator(client, external.CircuitBreakerConfig{}, logger)
}
