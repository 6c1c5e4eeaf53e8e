package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/ai/gemini"
	"github.com/spigell/shortlister/internal/ai/openai"
	"github.com/spigell/shortlister/internal/document"
	"github.com/spigell/shortlister/internal/intake"
	"github.com/spigell/shortlister/internal/logger"
	"github.com/spigell/shortlister/internal/ranking"
	"github.com/spigell/shortlister/internal/report"
	"github.com/spigell/shortlister/internal/screening"
	"github.com/spigell/shortlister/internal/secrets"
)

const (
	PromptShowRanking = "Show ranking"
	PromptDetails     = "Candidate details"
	PromptExport      = "Export report"
	PromptReset       = "Reset and start a new batch"
	PromptExit        = "Exit"
	PromptBack        = "back"
)

var errExit = errors.New("exit requested")

var menu = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowRanking, PromptDetails, PromptExport, PromptReset, PromptExit},
}

var screenCmd = &cobra.Command{
	Use:   "screen [resume files or directories...]",
	Short: "Analyze resumes against a job description and rank the candidates",
	Run: func(cmd *cobra.Command, args []string) {
		screen(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().String("job", "", "job description text")
	screenCmd.Flags().String("job-file", "", "file with the job description, - reads stdin")
	screenCmd.Flags().String("provider", "", "analysis provider: gemini or openai")
	screenCmd.Flags().Int("concurrency", screening.DefaultConcurrency, "resumes analyzed at the same time, 0 means all at once")
	screenCmd.Flags().Duration("item-timeout", 0, "timeout for a single resume, 0 disables it")
	screenCmd.Flags().Int("max-files", intake.DefaultMaxFiles, "maximum resumes per batch, 0 disables the cap")
	screenCmd.Flags().StringP("output", "o", "", "report file. Default is a temporary file")
	screenCmd.Flags().String("format", string(report.FormatJSON), "report format: json or csv")
	screenCmd.Flags().BoolP("yes", "y", false, "do not ask anything, print the ranking and export the report when --output is set")

	viper.BindPFlag("ai.provider", screenCmd.Flags().Lookup("provider"))
	viper.BindPFlag("screening.concurrency", screenCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("screening.item-timeout", screenCmd.Flags().Lookup("item-timeout"))
	viper.BindPFlag("intake.max-files", screenCmd.Flags().Lookup("max-files"))
	viper.BindPFlag("report.output", screenCmd.Flags().Lookup("output"))
	viper.BindPFlag("report.format", screenCmd.Flags().Lookup("format"))
}

// screen is the main command for the cli.
func screen(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the shortlister", zap.String("version", version))

	// api keys are not serialized
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	format, err := report.ParseFormat(config.Report.Format)
	if err != nil {
		logger.Fatal("checking report format", zap.Error(err))
	}

	jobDescription, err := resolveJobDescription(cmd.Flag("job").Value.String(), cmd.Flag("job-file").Value.String(), os.Stdin)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err),
			zap.String("hint", "pass --job with the text or --job-file with a path"),
		)
	}

	analyzer, err := newAnalyzer(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the analyzer", zap.Error(err))
	}

	runner := screening.NewRunner(analyzer, screening.Options{
		Concurrency: config.Screening.Concurrency,
		ItemTimeout: config.Screening.ItemTimeout,
	}, logger)

	session := screening.NewSession(runner, logger)
	session.Subscribe(logProgress(logger))

	docs, err := collect(ctx, args, config.Intake.MaxFiles, logger)
	if err != nil {
		logger.Fatal("collecting resumes", zap.Error(err))
	}

	if len(docs) == 0 {
		logger.Info("exiting", zap.String("reason", "no supported resumes to analyze"))
		return
	}

	rep, err := runBatch(ctx, session, docs, jobDescription, logger)
	if err != nil {
		logger.Fatal("screening failed", zap.Error(err), zap.String("state", string(session.State())))
	}

	printRanking(os.Stdout, rep)

	if cmd.Flag("yes").Value.String() == "true" {
		if config.Report.Output == "" {
			return
		}
		if err := export(rep, config.Report.Output, format, logger); err != nil {
			logger.Fatal("exporting the report", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := menu.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		next, err := handleAction(ctx, action, session, rep, config, format, logger)
		if err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
		rep = next
	}
}

func handleAction(ctx context.Context, action string, session *screening.Session, rep *report.Report, config *Config, format report.Format, logger *zap.Logger) (*report.Report, error) {
	switch action {
	case PromptShowRanking:
		printRanking(os.Stdout, rep)
		return rep, nil
	case PromptDetails:
		return rep, showDetails(rep)
	case PromptExport:
		return rep, export(rep, config.Report.Output, format, logger)
	case PromptReset:
		session.Reset()
		logger.Info("session reset", zap.String("state", string(session.State())))
		return startOver(ctx, session, config, logger)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return rep, errExit
	default:
		return rep, fmt.Errorf("invalid action: %s", action)
	}
}

func collect(ctx context.Context, paths []string, maxFiles int, logger *zap.Logger) ([]*document.Document, error) {
	docs, err := intake.Collect(paths)
	if err != nil {
		return nil, err
	}

	logger.Info("collected files", zap.Int("count", len(docs)))

	return intake.Run(ctx, logger, intake.DefaultFilters(maxFiles, logger), docs)
}

func runBatch(ctx context.Context, session *screening.Session, docs []*document.Document, jobDescription string, logger *zap.Logger) (*report.Report, error) {
	snap, err := session.Run(ctx, docs, jobDescription)
	if err != nil {
		return nil, err
	}

	rep := report.New(snap.Job.Description, snap.Results)
	logSummary(logger, rep.Summary)

	return rep, nil
}

// startOver asks for a new job description and new resumes. An empty answer exits.
func startOver(ctx context.Context, session *screening.Session, config *Config, logger *zap.Logger) (*report.Report, error) {
	jobPrompt := promptui.Prompt{Label: "Job description file (empty to exit)"}
	jobFile, err := jobPrompt.Run()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(jobFile) == "" {
		return nil, errExit
	}

	jobDescription, err := resolveJobDescription("", jobFile, nil)
	if err != nil {
		return nil, err
	}

	pathsPrompt := promptui.Prompt{
		Label: "Resume files or directories, separated by spaces",
		Validate: func(input string) error {
			if len(strings.Fields(input)) == 0 {
				return errors.New("at least one path is required")
			}
			return nil
		},
	}
	paths, err := pathsPrompt.Run()
	if err != nil {
		return nil, err
	}

	docs, err := collect(ctx, strings.Fields(paths), config.Intake.MaxFiles, logger)
	if err != nil {
		return nil, err
	}

	rep, err := runBatch(ctx, session, docs, jobDescription, logger)
	if err != nil {
		return nil, err
	}

	printRanking(os.Stdout, rep)
	return rep, nil
}

func resolveJobDescription(inline, file string, stdin io.Reader) (string, error) {
	file = strings.TrimSpace(file)
	if inline != "" && file != "" {
		return "", errors.New("--job and --job-file are mutually exclusive")
	}

	if file == "" {
		if strings.TrimSpace(inline) == "" {
			return "", screening.ErrEmptyJobDescription
		}
		return inline, nil
	}

	var (
		data []byte
		err  error
	)
	if file == "-" && stdin != nil {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading job description: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", screening.ErrEmptyJobDescription
	}

	return string(data), nil
}

func newAnalyzer(ctx context.Context, cfg AIConfig, logger *zap.Logger) (*ai.Analyzer, error) {
	var generator ai.Generator

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", gemini.ProviderName:
		apiKey, err := loadAPIKey(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		g, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		generator = g
	case openai.ProviderName:
		apiKey, err := loadAPIKey(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}

		generator = openai.NewGenerator(openai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	return ai.NewAnalyzer(generator, cfg.MaxLogLength, logger), nil
}

// loadAPIKey fails only for an unreadable key file. A key that is simply not
// configured is left to the provider preflight so that the batch reports it.
func loadAPIKey(src secrets.Source, logger *zap.Logger) (string, error) {
	key, err := secrets.Load(src)
	if err == nil {
		return key, nil
	}

	if strings.TrimSpace(src.File) != "" {
		return "", err
	}

	logger.Warn("api key is missing", zap.String("secret", src.Name), zap.Error(err))
	return "", nil
}

func logProgress(logger *zap.Logger) screening.ProgressFunc {
	return func(stats screening.Stats) {
		logger.Info("progress",
			zap.Int("completed", stats.Completed),
			zap.Int("total", stats.Total),
			zap.Int("success", stats.Success),
			zap.Int("failed", stats.Failed),
		)
	}
}

func logSummary(logger *zap.Logger, summary ranking.Summary) {
	fields := []zap.Field{
		zap.Int("candidates", summary.Count),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("average_score", summary.AverageScore),
		zap.Int("average_experience_years", summary.AverageExperience),
	}
	for _, band := range ranking.Bands {
		fields = append(fields, zap.Int("band_"+string(band), summary.Distribution[band]))
	}
	if summary.Top != nil {
		fields = append(fields, zap.String("top_candidate", summary.Top.Name), zap.Int("top_score", summary.Top.MatchScore))
	}

	logger.Info("batch summary", fields...)
}

func printRanking(w io.Writer, rep *report.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tBAND\tNAME\tYEARS\tFILE\tSTATUS")
	for i, c := range rep.Candidates {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%g\t%s\t%s\n",
			i+1, c.MatchScore, ranking.BandOf(c.MatchScore), c.Name, c.ExperienceYears, c.FileName, c.Status,
		)
	}
	tw.Flush()
}

func printDetails(w io.Writer, c screening.CandidateAnalysis) {
	fmt.Fprintf(w, "\n%s (%s)\n", c.Name, c.FileName)
	if c.Email != "" {
		fmt.Fprintf(w, "  Email:       %s\n", c.Email)
	}
	fmt.Fprintf(w, "  Match score: %d (%s)\n", c.MatchScore, ranking.BandOf(c.MatchScore))
	fmt.Fprintf(w, "  Experience:  %g years\n", c.ExperienceYears)
	if c.EducationLevel != "" {
		fmt.Fprintf(w, "  Education:   %s\n", c.EducationLevel)
	}
	fmt.Fprintf(w, "  Summary:     %s\n", c.Summary)
	fmt.Fprintf(w, "  Strengths:   %s\n", strings.Join(c.KeyStrengths, ", "))
	fmt.Fprintf(w, "  Missing:     %s\n", strings.Join(c.MissingSkills, ", "))
	if !c.Succeeded() {
		fmt.Fprintf(w, "  Error:       %s\n", c.ErrorMessage)
	}
	fmt.Fprintln(w)
}

func showDetails(rep *report.Report) error {
	for {
		items := make([]string, 0, len(rep.Candidates)+1)
		for i, c := range rep.Candidates {
			items = append(items, fmt.Sprintf("%d. %s / %d / %s", i+1, c.Name, c.MatchScore, c.FileName))
		}

		candidatePrompt := promptui.Select{
			Label: "Choose a candidate and press ENTER",
			Items: append(items, PromptBack),
		}

		idx, selected, err := candidatePrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		printDetails(os.Stdout, rep.Candidates[idx])
	}
}

func export(rep *report.Report, output string, format report.Format, logger *zap.Logger) error {
	if output == "" {
		filename, err := rep.DumpToTmpFile(format)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	}

	if err := rep.WriteFile(output, format); err != nil {
		return err
	}

	logger.Info("report written", zap.String("filename", output), zap.String("format", string(format)))
	return nil
}
