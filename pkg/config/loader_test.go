package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/stagehand/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `
common:
  POSTGRES_PORT: 5432
  POSTGRES_USER: backstage
  AWS_REGION: us-east-1
  AWS_ACCOUNT: "123456789012"
  TAG_STACK_NAME: backstage
  CONTAINER_PORT: 7007
  CONTAINER_NAME: backstage
  DOMAIN_NAME: example.com
  DOCKERFILE: Dockerfile
  GITHUB_APP_REPO: portal
  GITHUB_INFRA_REPO: portal-infra
  GITHUB_ORG: acme
  CODESTAR_CONN_ARN: arn:aws:codestar-connections:us-east-1:123456789012:connection/abc
  GITHUB_APP_SECRET_ARN: arn:aws:secretsmanager:us-east-1:123456789012:secret:app
stages:
  test:
    HOST_NAME: test
    STAGE_APPROVAL: false
  prod:
    HOST_NAME: app
    STAGE_APPROVAL: true
    APPROVAL_EMAILS: [ops@example.com]
    GITHUB_AUTH_SECRET_NAME: prod-github
    NODE_ENV: production
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidDocument(t *testing.T) {
	path := writeConfig(t, validDocument)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, []string{"test", "prod"}, cfg.StageNames())
	assert.Equal(t, 5432, cfg.Common.PostgresPort())
	assert.Equal(t, 7007, cfg.Common.ContainerPort())
	assert.Equal(t, DefaultProduct, cfg.Common.Product())

	prod, ok := cfg.Stage("prod")
	require.True(t, ok)
	assert.Equal(t, "app", prod.Host())
	assert.True(t, prod.RequiresApproval())
	assert.Equal(t, []string{"ops@example.com"}, prod.NotifyEmails())
	require.NotNil(t, prod.NodeEnv)
	assert.Equal(t, "production", *prod.NodeEnv)
	assert.Nil(t, prod.LogLevel)

	test, _ := cfg.Stage("test")
	assert.False(t, test.RequiresApproval())
	assert.NotNil(t, test.Approval, "explicit false must be tracked as present")
	assert.Nil(t, test.NotifyEmails())
}

func TestCommonKeepsDocumentOrder(t *testing.T) {
	cfg, err := Parse([]byte(validDocument))
	require.NoError(t, err)

	pairs := cfg.Common.Pairs()
	require.Len(t, pairs, 14)
	assert.Equal(t, Pair{Key: "POSTGRES_PORT", Value: "5432"}, pairs[0])
	assert.Equal(t, Pair{Key: "AWS_ACCOUNT", Value: "123456789012"}, pairs[3])
	assert.Equal(t, "GITHUB_APP_SECRET_ARN", pairs[13].Key)
}

func TestScalarsAreCoercedToStrings(t *testing.T) {
	doc := `
common:
  NUMBER: 42
  FLAG: true
  EMPTY:
  QUOTED: "007"
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "42", cfg.Common.Get("NUMBER"))
	assert.Equal(t, "true", cfg.Common.Get("FLAG"))
	assert.Equal(t, "007", cfg.Common.Get("QUOTED"))

	v, present := cfg.Common.Lookup("EMPTY")
	assert.True(t, present)
	assert.Empty(t, v)
	assert.False(t, cfg.Common.Has("EMPTY"))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty document", doc: ""},
		{name: "not yaml", doc: "common: [unterminated"},
		{name: "root is a list", doc: "- a\n- b\n"},
		{name: "missing common", doc: "stages:\n  test:\n    HOST_NAME: test\n"},
		{name: "non-scalar common value", doc: "common:\n  KEY:\n    nested: value\n"},
		{name: "unknown stage field", doc: "common:\n  A: b\nstages:\n  test:\n    HOST_NAME: test\n    REPLICAS: 3\n"},
		{name: "approval not a bool", doc: "common:\n  A: b\nstages:\n  test:\n    STAGE_APPROVAL: sometimes\n"},
		{name: "emails not a list", doc: "common:\n  A: b\nstages:\n  test:\n    APPROVAL_EMAILS: ops@example.com\n"},
		{name: "duplicate stage", doc: "common:\n  A: b\nstages:\n  test:\n    HOST_NAME: a\n  test:\n    HOST_NAME: b\n"},
		{name: "unknown top-level key", doc: "common:\n  A: b\nextra: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "want ErrParse, got %v", err)
		})
	}
}

func TestNumericKeys(t *testing.T) {
	doc := validDocument + "  2024:\n    HOST_NAME: archive\n"
	doc = strings.Replace(doc, "common:\n", "common:\n  8080: http-alt\n", 1)

	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http-alt", cfg.Common.Get("8080"))
	require.Len(t, cfg.Stages, 3)
	stage, ok := cfg.Stage("2024")
	require.True(t, ok)
	assert.Equal(t, "archive", stage.Host())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Path, "absent.yaml")
}

func TestEmptyStagesIsValid(t *testing.T) {
	doc := validDocument[:strings.Index(validDocument, "stages:")] + "stages:\n"
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.Stages)
}

func TestValidateReportsAllMissingFields(t *testing.T) {
	cfg, err := Parse([]byte("common:\n  POSTGRES_PORT: 5432\nstages:\n  test: {}\n"))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))

	msg := err.Error()
	for _, key := range RequiredCommonKeys {
		if key == KeyPostgresPort {
			assert.NotContains(t, msg, "common."+key)
			continue
		}
		assert.Contains(t, msg, "common."+key)
	}
	assert.Contains(t, msg, "stages.test.HOST_NAME")
}

func TestValidateInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Configuration)
		field  string
	}{
		{
			name:   "port out of range",
			mutate: func(cfg *Configuration) { cfg.Common.set(KeyPostgresPort, "70000") },
			field:  "common.POSTGRES_PORT",
		},
		{
			name:   "port not numeric",
			mutate: func(cfg *Configuration) { cfg.Common.set(KeyContainerPort, "http") },
			field:  "common.CONTAINER_PORT",
		},
		{
			name:   "reserved postgres host",
			mutate: func(cfg *Configuration) { cfg.Common.set(KeyPostgresHost, "db.internal") },
			field:  "common.POSTGRES_HOST",
		},
		{
			name:   "bad domain",
			mutate: func(cfg *Configuration) { cfg.Common.set(KeyDomainName, "-example..com") },
			field:  "common.DOMAIN_NAME",
		},
		{
			name: "bad stage name",
			mutate: func(cfg *Configuration) {
				host := "qa"
				cfg.Stages = append(cfg.Stages, &Stage{Name: "qa_env", HostName: &host})
			},
			field: "stages",
		},
		{
			name: "bad host name",
			mutate: func(cfg *Configuration) {
				host := "not a host"
				cfg.Stages[0].HostName = &host
			},
			field: "stages.test.HOST_NAME",
		},
		{
			name: "bad approval email",
			mutate: func(cfg *Configuration) {
				emails := []string{"nobody"}
				cfg.Stages[1].ApprovalEmails = &emails
			},
			field: "stages.prod.APPROVAL_EMAILS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(validDocument))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidField))

			var ife *InvalidFieldError
			require.ErrorAs(t, err, &ife)
			assert.Equal(t, tt.field, ife.Field)
		})
	}
}

func TestResolveVariants(t *testing.T) {
	tests := []struct {
		name       string
		extra      map[string]string
		wantCert   types.CertificateSource
		wantImage  types.ImageSource
		wantSecret types.SecretSource
	}{
		{
			name:       "all switches off",
			wantCert:   types.DNSValidatedCertificate{},
			wantImage:  types.NewRepository{Name: "backstage"},
			wantSecret: types.GitHubAuth{Name: "prod-github"},
		},
		{
			name: "existing certificate and repository",
			extra: map[string]string{
				KeyACMARN:      "arn:aws:acm:us-east-1:123456789012:certificate/x",
				KeyECRRepoName: "portal-images",
			},
			wantCert:   types.ExistingCertificate{ARN: "arn:aws:acm:us-east-1:123456789012:certificate/x"},
			wantImage:  types.ExistingRepository{Name: "portal-images"},
			wantSecret: types.GitHubAuth{Name: "prod-github"},
		},
		{
			name:       "aws auth added",
			extra:      map[string]string{KeyAWSAuthSecretName: "aws-auth"},
			wantCert:   types.DNSValidatedCertificate{},
			wantImage:  types.NewRepository{Name: "backstage"},
			wantSecret: types.BothAuth{GitHub: "prod-github", AWS: "aws-auth"},
		},
		{
			name:       "empty switch is off",
			extra:      map[string]string{KeyACMARN: ""},
			wantCert:   types.DNSValidatedCertificate{},
			wantImage:  types.NewRepository{Name: "backstage"},
			wantSecret: types.GitHubAuth{Name: "prod-github"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(validDocument))
			require.NoError(t, err)
			for k, v := range tt.extra {
				cfg.Common.set(k, v)
			}
			require.NoError(t, cfg.Validate())

			assert.Equal(t, tt.wantCert, cfg.Certificate)
			assert.Equal(t, tt.wantImage, cfg.Image)

			prod, _ := cfg.Stage("prod")
			assert.Equal(t, tt.wantSecret, prod.Secrets)
		})
	}
}

func TestNewSecretSource(t *testing.T) {
	assert.Equal(t, types.NoSecrets{}, types.NewSecretSource("", ""))
	assert.Equal(t, types.GitHubAuth{Name: "gh"}, types.NewSecretSource("gh", ""))
	assert.Equal(t, types.AWSAuth{Name: "aws"}, types.NewSecretSource("", "aws"))
	assert.Equal(t, types.BothAuth{GitHub: "gh", AWS: "aws"}, types.NewSecretSource("gh", "aws"))
}

func TestLoadBuildSpec(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("version: 0.2\nphases:\n  build:\n    commands: [make]\n"), 0o600))
	spec, err := LoadBuildSpec(good)
	require.NoError(t, err)
	assert.Contains(t, spec, "phases")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("phases: {}\n"), 0o600))
	_, err = LoadBuildSpec(bad)
	assert.Error(t, err)

	_, err = LoadBuildSpec(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
