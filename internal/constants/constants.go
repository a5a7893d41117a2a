// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"log/slog"
	"time"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "traffic-insights"

	// Version is the version of the application.
	Version = "Dev"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultAPIBaseURL is the base URL of the GitHub REST API.
	DefaultAPIBaseURL = "https://api.github.com"

	// APIVersion is the value sent in the X-GitHub-Api-Version header.
	APIVersion = "2022-11-28"

	// TimestampFormat is the layout of traffic point timestamps as returned by the API.
	TimestampFormat = "2006-01-02T15:04:05Z"

	// DefaultMetricNamespace is the CloudWatch namespace traffic metrics are published under.
	DefaultMetricNamespace = "GitHubTrafficTracker"

	// DefaultLogGroup is the CloudWatch Logs group raw traffic payloads are written to.
	DefaultLogGroup = "github-traffic-tracker"

	// DefaultRepositoriesParameter is the SSM parameter holding the semicolon-delimited repository list.
	DefaultRepositoriesParameter = "GitHubTrafficRepos"

	// DefaultTokensSecret is the Secrets Manager secret holding the access token blob.
	DefaultTokensSecret = "GitHubTrafficAccessTokens"

	// MaxRecentPoints is the maximum number of traffic points published per series.
	MaxRecentPoints = 3

	// FreshnessWindow is how far back a traffic point may date and still be published.
	FreshnessWindow = 14 * 24 * time.Hour
)
