package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/lyricgen/lyricgen/internal/config"
	"github.com/lyricgen/lyricgen/internal/fanout"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	initForce       bool
	initUseDefaults bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize new project with interactive setup",
	Long:  `Initialize a new lyricgen project with interactive configuration or use defaults.`,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initUseDefaults, "yes", "y", false, "Use default values without interactive prompts")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := configPath
	if path == "" {
		path = config.DefaultConfigFile
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("lyricgen init"))
	fmt.Fprintln(out)

	if _, err := os.Stat(path); err == nil && !initForce {
		return ExitError{Code: exitGeneral, Err: fmt.Errorf("%s already exists; use --force to overwrite", path)}
	}

	cwd, _ := os.Getwd()
	cfg := config.DefaultConfig(filepath.Base(cwd))
	if !initUseDefaults {
		if err := runInteractiveSetup(&cfg); err != nil {
			return ExitError{Code: exitGeneral, Err: err}
		}
	}

	if err := writeProjectConfig(path, cfg); err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}

	printNextSteps(out, path, cfg)
	return nil
}

func writeProjectConfig(path string, cfg config.ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func printNextSteps(out io.Writer, path string, cfg config.ProjectConfig) {
	fmt.Fprintln(out, successStyle.Render("✓ Wrote "+path))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	switch cfg.Providers.Default {
	case "openai":
		fmt.Fprintf(out, "  1. Export %s (or put it in .env)\n", cfg.Providers.OpenAI.APIKeyEnv)
	case "gemini":
		fmt.Fprintf(out, "  1. Export %s (or put it in .env)\n", cfg.Providers.Gemini.APIKeyEnv)
	default:
		fmt.Fprintln(out, "  1. The mock provider needs no credentials")
	}
	fmt.Fprintln(out, "  2. Generate:", dimStyle.Render("lyricgen generate"))
	if cfg.Delivery.Mode == "webhook" {
		fmt.Fprintf(out, "  3. Set %s to your webhook URL before delivering\n", cfg.Delivery.Webhook.URLEnv)
	}
	fmt.Fprintln(out)
}

func runInteractiveSetup(cfg *config.ProjectConfig) error {
	projectName := cfg.Project.Name
	provider := cfg.Providers.Default
	modelName := ""
	systemContext := cfg.Generation.SystemContext
	count := strconv.Itoa(cfg.Generation.Count)
	concurrency := strconv.Itoa(cfg.Generation.Concurrency)
	deliveryMode := cfg.Delivery.Mode

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project Name").
				Value(&projectName).
				Placeholder(cfg.Project.Name),

			huh.NewSelect[string]().
				Title("Completion Provider").
				Options(
					huh.NewOption("Mock (offline)", "mock"),
					huh.NewOption("OpenAI-compatible", "openai"),
					huh.NewOption("Google Gemini", "gemini"),
				).
				Value(&provider),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Description("e.g., gpt-4o-mini, gemini-2.0-flash; blank uses the provider default").
				Value(&modelName),

			huh.NewText().
				Title("System Context").
				Description("Sent as the system message of every request").
				Value(&systemContext),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Responses per batch").
				Value(&count).
				Validate(func(s string) error {
					n, err := fanout.ParseCount(s)
					if err != nil {
						return err
					}
					return fanout.CheckCount(n, cfg.Generation.MaxCount)
				}),

			huh.NewInput().
				Title("Max concurrent requests").
				Description("0 sends the whole batch at once").
				Value(&concurrency).
				Validate(validateConcurrency),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Delivery").
				Description("Where exported datasets go").
				Options(
					huh.NewOption("Local file", "file"),
					huh.NewOption("Webhook upload", "webhook"),
				).
				Value(&deliveryMode),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return err
	}

	if projectName != "" {
		cfg.Project.Name = projectName
	}
	cfg.Providers.Default = provider
	cfg.Generation.Model = modelName
	cfg.Generation.SystemContext = systemContext
	cfg.Generation.Count, _ = fanout.ParseCount(count)
	cfg.Generation.Concurrency, _ = strconv.Atoi(concurrency)
	cfg.Delivery.Mode = deliveryMode
	return nil
}

func validateConcurrency(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be 0 or a positive integer")
	}
	return nil
}
