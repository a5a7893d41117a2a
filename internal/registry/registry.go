// Package registry is the implementation of the repository registry component.
// The registry resolves which repositories to track and the access token to
// use for each, from SSM Parameter Store and Secrets Manager.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/traffic-insights/traffic-insights/internal/constants"
	"github.com/ubuntu/decorate"
)

// ParameterGetter is an interface for reading a parameter from the config store.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SecretGetter is an interface for reading a secret value from the secret store.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Registry is an abstraction of the repository registry component.
type Registry struct {
	params  ParameterGetter
	secrets SecretGetter

	parameterName string
	secretID      string
}

type options struct {
	parameterName string
	secretID      string
}

// Options represents an optional function to override Registry default values.
type Options func(*options)

// WithParameterName overrides the name of the repository list parameter.
func WithParameterName(name string) Options {
	return func(o *options) {
		o.parameterName = name
	}
}

// WithSecretID overrides the identifier of the access tokens secret.
func WithSecretID(id string) Options {
	return func(o *options) {
		o.secretID = id
	}
}

// New returns a new Registry backed by the given store clients.
func New(params ParameterGetter, secrets SecretGetter, args ...Options) (Registry, error) {
	if params == nil {
		return Registry{}, fmt.Errorf("parameter store client cannot be nil")
	}
	if secrets == nil {
		return Registry{}, fmt.Errorf("secret store client cannot be nil")
	}

	opts := options{
		parameterName: constants.DefaultRepositoriesParameter,
		secretID:      constants.DefaultTokensSecret,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return Registry{
		params:  params,
		secrets: secrets,

		parameterName: opts.parameterName,
		secretID:      opts.secretID,
	}, nil
}

// Repositories resolves the list of repositories to track.
//
// The backing parameter is a single semicolon-delimited string; entries are
// trimmed and empty ones dropped. Format validation is left to the caller.
func (r Registry) Repositories(ctx context.Context) (repos []string, err error) {
	defer decorate.OnError(&err, "failed to get repositories from parameter store")

	out, err := r.params.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(r.parameterName)})
	if err != nil {
		return nil, err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s has no value", r.parameterName)
	}

	for _, repo := range strings.Split(*out.Parameter.Value, ";") {
		repo = strings.TrimSpace(repo)
		if repo == "" {
			continue
		}
		repos = append(repos, repo)
	}
	slog.Debug("Resolved repository list", "count", len(repos))

	return repos, nil
}

// Tokens holds the access token configuration for all tracked repositories.
type Tokens struct {
	DefaultToken string            `json:"defaulttoken"`
	Repositories []RepositoryToken `json:"repositories"`
}

// RepositoryToken associates its own access token with one repository.
type RepositoryToken struct {
	Repository  string `json:"repository"`
	AccessToken string `json:"accesstoken"`
}

// ForRepository returns the access token configured for the repository,
// falling back to the default token when there is no exact match.
func (t Tokens) ForRepository(repository string) string {
	for _, rt := range t.Repositories {
		if rt.Repository == repository {
			return rt.AccessToken
		}
	}
	return t.DefaultToken
}

// Tokens resolves the access token configuration from the secret store.
func (r Registry) Tokens(ctx context.Context) (t Tokens, err error) {
	defer decorate.OnError(&err, "failed to get access tokens from secret store")

	out, err := r.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(r.secretID)})
	if err != nil {
		return Tokens{}, err
	}
	if out.SecretString == nil {
		return Tokens{}, fmt.Errorf("secret %s has no string value", r.secretID)
	}

	if err := json.Unmarshal([]byte(*out.SecretString), &t); err != nil {
		return Tokens{}, fmt.Errorf("failed to unmarshal token secret, might be invalid JSON: %v", err)
	}

	return t, nil
}

// ValidateRepository reports whether a repository identifier is of the
// owner/name form, with exactly one separator and both parts non-empty.
func ValidateRepository(repository string) bool {
	owner, name, ok := strings.Cut(repository, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}
