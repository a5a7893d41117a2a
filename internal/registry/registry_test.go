package registry_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traffic-insights/traffic-insights/internal/registry"
)

type fakeParams struct {
	value  *string
	err    error
	gotArg string
}

func (f *fakeParams) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.gotArg = aws.ToString(params.Name)
	if f.err != nil {
		return nil, f.err
	}
	if f.value == nil {
		return &ssm.GetParameterOutput{}, nil
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: f.value}}, nil
}

type fakeSecrets struct {
	value  *string
	err    error
	gotArg string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.gotArg = aws.ToString(params.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		nilParams  bool
		nilSecrets bool

		wantErr bool
	}{
		"Valid": {},

		"Nil parameter store client": {nilParams: true, wantErr: true},
		"Nil secret store client":    {nilSecrets: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var params registry.ParameterGetter = &fakeParams{}
			var secrets registry.SecretGetter = &fakeSecrets{}
			if tc.nilParams {
				params = nil
			}
			if tc.nilSecrets {
				secrets = nil
			}

			_, err := registry.New(params, secrets)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRepositories(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value    *string
		storeErr error

		want    []string
		wantErr bool
	}{
		"Single repository":     {value: aws.String("owner/repo"), want: []string{"owner/repo"}},
		"Multiple repositories": {value: aws.String("a/b;c/d;e/f"), want: []string{"a/b", "c/d", "e/f"}},
		"Entries are trimmed":   {value: aws.String(" a/b ; c/d "), want: []string{"a/b", "c/d"}},
		"Empty entries dropped": {value: aws.String("a/b;;c/d;"), want: []string{"a/b", "c/d"}},
		"Empty value":           {value: aws.String("")},

		"Store error":   {storeErr: fmt.Errorf("access denied"), wantErr: true},
		"Missing value": {wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			params := &fakeParams{value: tc.value, err: tc.storeErr}
			r, err := registry.New(params, &fakeSecrets{}, registry.WithParameterName("TrackedRepos"))
			require.NoError(t, err, "Setup: failed to create registry")

			got, err := r.Repositories(context.Background())
			if tc.wantErr {
				require.Error(t, err, "Repositories should fail")
				return
			}
			require.NoError(t, err, "Repositories should not fail")
			require.Equal(t, tc.want, got)
			assert.Equal(t, "TrackedRepos", params.gotArg, "Registry should read the configured parameter")
		})
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value    *string
		storeErr error

		wantDefault string
		wantErr     bool
	}{
		"Default token only": {
			value:       aws.String(`{"defaulttoken": "tok-default"}`),
			wantDefault: "tok-default",
		},
		"Default and per repository tokens": {
			value:       aws.String(`{"defaulttoken": "tok-default", "repositories": [{"repository": "a/b", "accesstoken": "tok-ab"}]}`),
			wantDefault: "tok-default",
		},
		"Missing default token": {
			value: aws.String(`{"repositories": []}`),
		},

		"Store error":   {storeErr: fmt.Errorf("access denied"), wantErr: true},
		"Missing value": {wantErr: true},
		"Invalid JSON":  {value: aws.String(`{"defaulttoken": `), wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			secrets := &fakeSecrets{value: tc.value, err: tc.storeErr}
			r, err := registry.New(&fakeParams{}, secrets, registry.WithSecretID("TrackedTokens"))
			require.NoError(t, err, "Setup: failed to create registry")

			got, err := r.Tokens(context.Background())
			if tc.wantErr {
				require.Error(t, err, "Tokens should fail")
				return
			}
			require.NoError(t, err, "Tokens should not fail")
			require.Equal(t, tc.wantDefault, got.DefaultToken)
			assert.Equal(t, "TrackedTokens", secrets.gotArg, "Registry should read the configured secret")
		})
	}
}

func TestTokensForRepository(t *testing.T) {
	t.Parallel()

	tokens := registry.Tokens{
		DefaultToken: "tok-default",
		Repositories: []registry.RepositoryToken{
			{Repository: "a/b", AccessToken: "tok-ab"},
			{Repository: "c/d", AccessToken: "tok-cd"},
		},
	}

	tests := map[string]struct {
		repository string
		want       string
	}{
		"Exact match":            {repository: "a/b", want: "tok-ab"},
		"Second exact match":     {repository: "c/d", want: "tok-cd"},
		"Fallback to default":    {repository: "e/f", want: "tok-default"},
		"No partial owner match": {repository: "a/x", want: "tok-default"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, tokens.ForRepository(tc.repository))
		})
	}
}

func TestValidateRepository(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		repository string
		want       bool
	}{
		"Owner and name":      {repository: "owner/repo", want: true},
		"No separator":        {repository: "ownerrepo", want: false},
		"Empty owner":         {repository: "/repo", want: false},
		"Empty name":          {repository: "owner/", want: false},
		"Too many separators": {repository: "a/b/c", want: false},
		"Empty string":        {repository: "", want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, registry.ValidateRepository(tc.repository))
		})
	}
}
