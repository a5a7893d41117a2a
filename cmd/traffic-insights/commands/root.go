// Package commands provides the traffic-insights command line application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/traffic-insights/traffic-insights/internal/cli"
	"github.com/traffic-insights/traffic-insights/internal/constants"
	"github.com/traffic-insights/traffic-insights/internal/github"
	"github.com/traffic-insights/traffic-insights/internal/publisher"
	"github.com/traffic-insights/traffic-insights/internal/registry"
	"github.com/traffic-insights/traffic-insights/internal/tracker"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	RepositoriesParameter string
	TokensSecret          string
	Namespace             string
	LogGroup              string
	GithubURL             string
	DryRun                bool
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Track GitHub repository traffic and republish it as telemetry",
		Long: "traffic-insights pulls per-repository clone and view statistics from the GitHub API " +
			"and republishes them as CloudWatch metrics, preserving the raw payloads in CloudWatch Logs.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	cmd.PersistentFlags().StringVar(&app.config.RepositoriesParameter, "repositories-parameter", constants.DefaultRepositoriesParameter, "name of the SSM parameter holding the repository list")
	cmd.PersistentFlags().StringVar(&app.config.TokensSecret, "tokens-secret", constants.DefaultTokensSecret, "identifier of the secret holding the access tokens")
	cmd.PersistentFlags().StringVar(&app.config.Namespace, "namespace", constants.DefaultMetricNamespace, "CloudWatch namespace to publish metrics under")
	cmd.PersistentFlags().StringVar(&app.config.LogGroup, "log-group", constants.DefaultLogGroup, "CloudWatch Logs group to write raw payloads to")
	cmd.PersistentFlags().StringVar(&app.config.GithubURL, "github-url", constants.DefaultAPIBaseURL, "base URL of the GitHub API")
	cmd.PersistentFlags().BoolVarP(&app.config.DryRun, "dry-run", "d", false, "go through the motions of a run, but do not write to the sinks")
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() error {
	ctx := context.Background()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %v", err)
	}

	reg, err := registry.New(ssm.NewFromConfig(cfg), secretsmanager.NewFromConfig(cfg),
		registry.WithParameterName(a.config.RepositoriesParameter),
		registry.WithSecretID(a.config.TokensSecret))
	if err != nil {
		return fmt.Errorf("failed to create repository registry: %v", err)
	}

	pub, err := publisher.New(cloudwatch.NewFromConfig(cfg), cloudwatchlogs.NewFromConfig(cfg),
		publisher.WithNamespace(a.config.Namespace),
		publisher.WithLogGroup(a.config.LogGroup),
		publisher.WithDryRun(a.config.DryRun))
	if err != nil {
		return fmt.Errorf("failed to create telemetry publisher: %v", err)
	}

	tr, err := tracker.New(reg, github.New(github.WithBaseURL(a.config.GithubURL)), pub)
	if err != nil {
		return fmt.Errorf("failed to create tracker: %v", err)
	}

	summary, err := tr.Run(ctx)
	if err != nil {
		if tracker.IsPreconditionError(err) {
			return fmt.Errorf("run aborted before processing: %w", err)
		}
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(out))

	if summary.FailedRepositories > 0 {
		slog.Warn("Some repositories failed to process", "failed", summary.FailedRepos)
	}

	return nil
}
