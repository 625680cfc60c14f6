package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/config"
	"github.com/lyricgen/lyricgen/internal/dataset"
	"github.com/lyricgen/lyricgen/internal/delivery"
	"github.com/lyricgen/lyricgen/internal/fanout"
	"github.com/lyricgen/lyricgen/internal/logging"
	"github.com/lyricgen/lyricgen/internal/model"
	"github.com/lyricgen/lyricgen/internal/providers"
	"github.com/lyricgen/lyricgen/internal/report"
	"github.com/lyricgen/lyricgen/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type generateOptions struct {
	prompt     string
	system     string
	model      string
	count      string
	includeAll bool
	noTUI      bool
	noDeliver  bool
	reportPath string
}

var genOpts generateOptions

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a batch, curate the results, export and deliver",
	Long: `Sends the prompt to the completion API --count times in parallel, each request
with a random temperature. Results appear as they arrive; the first failed request
stops the batch and keeps what was collected. You then edit and select responses,
and the selection is exported as JSONL and handed to the configured delivery sink.

Exit codes: 1 error, 2 batch stopped on a failed request, 3 config, 4 delivery.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&genOpts.prompt, "prompt", "p", "", "User prompt sent with every request")
	generateCmd.Flags().StringVarP(&genOpts.system, "system", "s", "", "System context (default: generation.system_context)")
	generateCmd.Flags().StringVarP(&genOpts.model, "model", "m", "", "Model override")
	generateCmd.Flags().StringVarP(&genOpts.count, "count", "n", "", "Number of parallel requests (default: generation.count)")
	generateCmd.Flags().BoolVar(&genOpts.includeAll, "include-all", false, "Without a terminal, include every response unedited")
	generateCmd.Flags().BoolVar(&genOpts.noTUI, "no-tui", false, "Disable interactive forms and the progress view")
	generateCmd.Flags().BoolVar(&genOpts.noDeliver, "no-deliver", false, "Export the dataset to stdout instead of delivering it")
	generateCmd.Flags().StringVar(&genOpts.reportPath, "report", "", "Write a markdown batch report to this path")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return ExitError{Code: exitConfig, Err: err}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return ExitError{Code: exitConfig, Err: err}
	}
	defer func() { _ = logger.Sync() }()

	interactive := !genOpts.noTUI && isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	if interactive {
		// Keep info logs from tearing through the progress view.
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}

	provider, err := providers.Resolve(cmd.Context(), cfg)
	if err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}

	g := &generator{
		cfg:         cfg,
		opts:        genOpts,
		provider:    provider,
		logger:      logger,
		out:         cmd.OutOrStdout(),
		interactive: interactive,
	}
	return g.run(cmd.Context())
}

type generator struct {
	cfg         *config.ProjectConfig
	opts        generateOptions
	provider    providers.Provider
	sampler     fanout.Sampler
	logger      *zap.Logger
	out         io.Writer
	interactive bool
}

func (g *generator) run(ctx context.Context) error {
	req, count, err := g.inputs()
	if err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}

	state := batch.NewState()
	coordinator := fanout.NewCoordinator(g.provider, fanout.Options{
		Concurrency: g.cfg.Generation.Concurrency,
		MaxCount:    g.cfg.Generation.MaxCount,
		Sampler:     g.sampler,
		Logger:      g.logger,
	})
	run := func(ctx context.Context, observe fanout.Observer) (fanout.Report, error) {
		return coordinator.Run(ctx, state, req, count, observe)
	}

	fmt.Fprintf(g.out, "%s %d requests to %s\n", titleStyle.Render("Generating"), count, g.provider.Name())
	var outcome fanout.Report
	var runErr error
	if g.interactive {
		outcome, runErr = tui.RunProgress(ctx, count, run, bubbletea.WithOutput(os.Stderr))
	} else {
		outcome, runErr = run(ctx, g.printResult(count))
	}

	var unitErr *fanout.UnitError
	partial := errors.As(runErr, &unitErr)
	if runErr != nil && !partial {
		return ExitError{Code: exitGeneral, Err: runErr}
	}
	g.printSummary(outcome, unitErr)

	if outcome.Succeeded == 0 {
		return ExitError{Code: exitPartial, Err: runErr}
	}

	if err := g.curate(state); err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}

	exportErr := g.export(ctx, state)
	if g.opts.reportPath != "" {
		summary := report.BuildSummary(state.Snapshot())
		report.SortByIndex(&summary)
		if err := report.WriteMarkdown(summary, g.opts.reportPath); err != nil {
			g.logger.Warn("write report", zap.String("path", g.opts.reportPath), zap.Error(err))
		}
	}
	if exportErr != nil {
		return exportErr
	}

	if partial {
		return ExitError{Code: exitPartial, Err: runErr}
	}
	return nil
}

// inputs resolves the prompt and unit count from flags, config and, with a
// terminal, an input form.
func (g *generator) inputs() (model.GenerationRequest, int, error) {
	req := model.GenerationRequest{
		SystemContext: g.cfg.Generation.SystemContext,
		UserPrompt:    g.opts.prompt,
		Model:         g.cfg.Generation.Model,
	}
	if g.opts.system != "" {
		req.SystemContext = g.opts.system
	}
	if g.opts.model != "" {
		req.Model = g.opts.model
	}
	countInput := g.opts.count
	if countInput == "" {
		countInput = fmt.Sprint(g.cfg.Generation.Count)
	}

	if g.interactive {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewText().
					Title("Prompt").
					Description("Sent as the user message of every request").
					Value(&req.UserPrompt).
					Validate(requireText),

				huh.NewInput().
					Title("How many responses?").
					Value(&countInput).
					Validate(func(s string) error {
						_, err := g.parseCount(s)
						return err
					}),
			),
		).WithTheme(huh.ThemeCharm())
		if err := form.Run(); err != nil {
			return model.GenerationRequest{}, 0, err
		}
	}

	if strings.TrimSpace(req.UserPrompt) == "" {
		return model.GenerationRequest{}, 0, fmt.Errorf("a prompt is required (use --prompt)")
	}
	count, err := g.parseCount(countInput)
	if err != nil {
		return model.GenerationRequest{}, 0, err
	}
	return req, count, nil
}

func (g *generator) parseCount(input string) (int, error) {
	count, err := fanout.ParseCount(input)
	if err != nil {
		return 0, err
	}
	if err := fanout.CheckCount(count, g.cfg.Generation.MaxCount); err != nil {
		return 0, err
	}
	return count, nil
}

func requireText(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func (g *generator) printResult(count int) fanout.Observer {
	collected := 0
	return func(res model.CompletionResult) {
		if !res.Succeeded() {
			fmt.Fprintf(g.out, "  %s unit %d: %s\n", errorStyle.Render("✗"), res.Index+1, res.FailureReason)
			return
		}
		collected++
		fmt.Fprintf(g.out, "  %s [%d/%d] t=%.1f\n", successStyle.Render("✓"), collected, count, res.Temperature)
	}
}

func (g *generator) printSummary(outcome fanout.Report, unitErr *fanout.UnitError) {
	fmt.Fprintln(g.out)
	if unitErr != nil {
		fmt.Fprintf(g.out, "%s %v\n", errorStyle.Render("Batch stopped:"), unitErr)
		fmt.Fprintf(g.out, "%s kept %d of %d responses collected before the failure\n",
			warnStyle.Render("Partial:"), outcome.Succeeded, outcome.Requested)
		return
	}
	fmt.Fprintf(g.out, "%s %d/%d responses in %s\n",
		successStyle.Render("✓ Collected"), outcome.Succeeded, outcome.Requested, outcome.Elapsed.Round(time.Millisecond))
}

// curate applies the operator's edits and selections in order.
func (g *generator) curate(state *batch.State) error {
	store := state.Curation()
	if !g.interactive {
		if !g.opts.includeAll {
			return nil
		}
		for _, entry := range store.Entries() {
			store.Upsert(entry.Original, entry.Edited, true)
		}
		return nil
	}

	temperatures := make(map[string]float64)
	for _, res := range state.Results() {
		temperatures[res.Text] = res.Temperature
	}

	entries := store.Entries()
	for i, entry := range entries {
		edited := entry.Edited
		include := entry.Included
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewText().
					Title(fmt.Sprintf("Response %d of %d", i+1, len(entries))).
					Description(fmt.Sprintf("temperature %.1f", temperatures[entry.Original])).
					Value(&edited).
					Lines(10),

				huh.NewConfirm().
					Title("Include in dataset?").
					Affirmative("Include").
					Negative("Skip").
					Value(&include),
			),
		).WithTheme(huh.ThemeCharm())
		if err := form.Run(); err != nil {
			return err
		}
		store.Upsert(entry.Original, edited, include)
	}
	return nil
}

func (g *generator) export(ctx context.Context, state *batch.State) error {
	data, err := dataset.FromState(state)
	if errors.Is(err, dataset.ErrEmpty) {
		fmt.Fprintln(g.out, dimStyle.Render("Nothing selected; no dataset exported."))
		return nil
	}
	if err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}

	if g.opts.noDeliver {
		fmt.Fprintln(g.out, string(data))
		return nil
	}

	sink, err := delivery.Resolve(g.cfg.Delivery)
	if err != nil {
		return ExitError{Code: exitConfig, Err: err}
	}
	artifact := delivery.Artifact{
		Filename:    delivery.ArtifactFilename(g.cfg.Delivery),
		ContentType: dataset.ContentType,
		Data:        data,
	}
	receipt, err := sink.Deliver(ctx, artifact)
	if err != nil {
		g.logger.Warn("delivery failed", zap.String("sink", sink.Name()), zap.Error(err))
		return ExitError{Code: exitDelivery, Err: fmt.Errorf("deliver dataset: %w", err)}
	}
	fmt.Fprintf(g.out, "%s %d records via %s\n",
		successStyle.Render("✓ Delivered"), len(state.Curation().Included()), receipt.Sink)
	if receipt.Sink == "file" {
		fmt.Fprintln(g.out, dimStyle.Render("  "+receipt.Location))
	}
	return nil
}
