// Package main provides coachctl, the maintenance CLI for interview coach
// sessions: threshold tuning, question previews and report retries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"interviewcoach/internal/artifact"
	"interviewcoach/internal/bootstrap"
	"interviewcoach/internal/config"
	"interviewcoach/internal/logging"
	"interviewcoach/internal/ports"
)

var (
	questionsRole       string
	questionsMode       string
	questionsDifficulty string
	questionsCount      int
	questionsCompany    string
	questionsResume     string

	reportWrite bool
	reportYAML  bool

	replayEvery int
	replayQuiet bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coachctl",
		Short:         "Interview coach maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newQuestionsCmd())
	rootCmd.AddCommand(newReportCmd())

	return rootCmd
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <observations.jsonl>",
		Short: "Score recorded landmark observations with the configured thresholds",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().IntVar(&replayEvery, "every", 0, "print scores every N frames in addition to feedback changes")
	cmd.Flags().BoolVar(&replayQuiet, "quiet", false, "print only the summary")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open observations: %w", err)
	}
	defer f.Close()

	every := replayEvery
	if replayQuiet {
		every = -1
	}
	summary, err := replay(f, cmd.OutOrStdout(), cfg.Scoring, every)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func newQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Generate interview questions and print them as YAML",
		Args:  cobra.NoArgs,
		RunE:  runQuestionsCmd,
	}
	cmd.Flags().StringVar(&questionsRole, "role", "Software Engineer", "target role")
	cmd.Flags().StringVar(&questionsMode, "mode", "Technical", "Technical, Behavioral, HR, Soft Skills or Mixed")
	cmd.Flags().StringVar(&questionsDifficulty, "difficulty", "Medium", "Easy, Medium or Hard")
	cmd.Flags().IntVar(&questionsCount, "count", 0, "number of questions (default from config)")
	cmd.Flags().StringVar(&questionsCompany, "company", "", "company to tailor questions to")
	cmd.Flags().StringVar(&questionsResume, "resume", "", "path to a plain-text resume")
	return cmd
}

func runQuestionsCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Session.QuestionTimeout)
	defer cancel()

	source, _, from, err := bootstrap.Generators(ctx, cfg, logger)
	if err != nil {
		return err
	}

	req := ports.QuestionRequest{
		Role:       strings.TrimSpace(questionsRole),
		Mode:       questionsMode,
		Difficulty: questionsDifficulty,
		Count:      questionsCount,
		Company:    strings.TrimSpace(questionsCompany),
	}
	if req.Count <= 0 {
		req.Count = cfg.Questions.Count
	}
	if questionsResume != "" {
		resume, err := os.ReadFile(questionsResume)
		if err != nil {
			return fmt.Errorf("failed to read resume: %w", err)
		}
		req.ResumeContext = string(resume)
	}

	questions, err := source.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("question generation failed: %w", err)
	}

	logErrf("%d questions from %s\n", len(questions), from)
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"questions": questions}); err != nil {
		return err
	}
	return enc.Close()
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <artifact.json>",
		Short: "Re-run report generation from a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportCmd,
	}
	cmd.Flags().BoolVar(&reportWrite, "write", false, "write the report next to the artifact")
	cmd.Flags().BoolVar(&reportYAML, "yaml", false, "print YAML instead of JSON")
	return cmd
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	saved, err := artifact.Load(args[0])
	if err != nil {
		return err
	}
	if len(saved.Answers) == 0 {
		return fmt.Errorf("session %s has no answers", saved.SessionID)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Session.ReportTimeout)
	defer cancel()

	_, reports, _, err := bootstrap.Generators(ctx, cfg, logger)
	if err != nil {
		return err
	}
	report, err := reports.Generate(ctx, ports.ReportRequest{
		Answers: saved.Answers,
		Final:   saved.Final,
		Role:    saved.Role,
	})
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}

	if reportWrite {
		path := reportPath(args[0])
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logErrf("report written to %s\n", path)
	}

	out := cmd.OutOrStdout()
	if reportYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func loadRuntime() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, logger, nil
}

// reportPath maps session.json to session.report.json.
func reportPath(artifactPath string) string {
	ext := filepath.Ext(artifactPath)
	return strings.TrimSuffix(artifactPath, ext) + ".report" + ext
}

func logErrf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
}

