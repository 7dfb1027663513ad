package preflight

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/provider"
)

type mockSecrets struct {
	existing map[string]bool
	asked    []string
}

func (m *mockSecrets) DescribeSecret(_ context.Context, in *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	name := aws.ToString(in.SecretId)
	m.asked = append(m.asked, name)
	if !m.existing[name] {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "Secrets Manager can't find the specified secret."}
	}
	return &secretsmanager.DescribeSecretOutput{Name: in.SecretId}, nil
}

type mockRoute53 struct {
	zones []r53types.HostedZone
}

func (m *mockRoute53) ListHostedZonesByName(context.Context, *route53.ListHostedZonesByNameInput, ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error) {
	return &route53.ListHostedZonesByNameOutput{HostedZones: m.zones}, nil
}

type mockACM struct {
	detail *acmtypes.CertificateDetail
}

func (m *mockACM) DescribeCertificate(context.Context, *acm.DescribeCertificateInput, ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error) {
	return &acm.DescribeCertificateOutput{Certificate: m.detail}, nil
}

type mockECR struct {
	err error
}

func (m *mockECR) DescribeRepositories(_ context.Context, in *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	return &ecr.DescribeRepositoriesOutput{}, m.err
}

const document = `
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
  GITHUB_APP_SECRET_ARN: app-secret
  ACM_ARN: arn:aws:acm:us-east-1:123456789012:certificate/abc
  ECR_REPO_NAME: images
  AWS_AUTH_SECRET_NAME: aws-auth
stages:
  test:
    HOST_NAME: test
    GITHUB_AUTH_SECRET_NAME: github-auth
  prod:
    HOST_NAME: app
    GITHUB_AUTH_SECRET_NAME: github-auth
`

func load(t *testing.T) *config.Configuration {
	t.Helper()
	cfg, err := config.Parse([]byte(document))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func healthy() (Clients, *mockSecrets) {
	secrets := &mockSecrets{existing: map[string]bool{"github-auth": true, "aws-auth": true, "app-secret": true}}
	return Clients{
		SecretsManager: secrets,
		Route53: &mockRoute53{zones: []r53types.HostedZone{
			{Name: aws.String("example.com."), Id: aws.String("/hostedzone/Z1")},
		}},
		ACM: &mockACM{detail: &acmtypes.CertificateDetail{
			DomainName:              aws.String("example.com"),
			SubjectAlternativeNames: []string{"*.example.com"},
			Status:                  acmtypes.CertificateStatusIssued,
		}},
		ECR: &mockECR{},
	}, secrets
}

func TestRunAllPass(t *testing.T) {
	clients, secrets := healthy()
	report := NewChecker(clients).Run(context.Background(), load(t))

	assert.Empty(t, report.Failed())
	assert.NoError(t, report.Err())
	assert.Len(t, report.Checks, 6)
	assert.Equal(t, []string{"github-auth", "aws-auth", "app-secret"}, secrets.asked, "shared secrets are checked once")
}

func TestRunReportsEveryFailure(t *testing.T) {
	clients, secrets := healthy()
	delete(secrets.existing, "aws-auth")
	clients.Route53 = &mockRoute53{zones: []r53types.HostedZone{
		{Name: aws.String("example.com."), Config: &r53types.HostedZoneConfig{PrivateZone: true}},
	}}
	clients.ACM = &mockACM{detail: &acmtypes.CertificateDetail{
		DomainName: aws.String("test.example.com"),
		Status:     acmtypes.CertificateStatusIssued,
	}}
	clients.ECR = &mockECR{err: &smithy.GenericAPIError{Code: "RepositoryNotFoundException", Message: "not found"}}

	report := NewChecker(clients).Run(context.Background(), load(t))

	failed := report.Failed()
	require.Len(t, failed, 4)
	assert.Equal(t, "aws-auth", failed[0].Target)
	assert.Contains(t, failed[0].Detail, "ResourceNotFoundException")
	assert.Equal(t, "hosted-zone", failed[1].Name)
	assert.Contains(t, failed[1].Detail, "private")
	assert.Equal(t, "certificate does not cover app.example.com", failed[2].Detail)
	assert.Equal(t, "RepositoryNotFoundException: not found", failed[3].Detail)

	err := report.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProvider)
}

func TestHostedZoneMustMatchExactly(t *testing.T) {
	clients, _ := healthy()
	clients.Route53 = &mockRoute53{zones: []r53types.HostedZone{{Name: aws.String("example.com.au.")}}}

	report := NewChecker(clients).Run(context.Background(), load(t))
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "no hosted zone named example.com", report.Failed()[0].Detail)
}

func TestHostedZonePublicAlongsidePrivate(t *testing.T) {
	clients, _ := healthy()
	clients.Route53 = &mockRoute53{zones: []r53types.HostedZone{
		{Name: aws.String("example.com."), Id: aws.String("/hostedzone/ZPRIVATE"), Config: &r53types.HostedZoneConfig{PrivateZone: true}},
		{Name: aws.String("example.com."), Id: aws.String("/hostedzone/ZPUBLIC"), Config: &r53types.HostedZoneConfig{PrivateZone: false}},
	}}

	report := NewChecker(clients).Run(context.Background(), load(t))
	assert.Empty(t, report.Failed())
}

func TestCertificateNotIssued(t *testing.T) {
	clients, _ := healthy()
	clients.ACM = &mockACM{detail: &acmtypes.CertificateDetail{Status: acmtypes.CertificateStatusPendingValidation}}

	report := NewChecker(clients).Run(context.Background(), load(t))
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "certificate status is PENDING_VALIDATION", report.Failed()[0].Detail)
}

func TestCovers(t *testing.T) {
	tests := []struct {
		names []string
		host  string
		want  bool
	}{
		{[]string{"app.example.com"}, "app.example.com", true},
		{[]string{"APP.example.com"}, "app.example.com", true},
		{[]string{"*.example.com"}, "app.example.com", true},
		{[]string{"*.example.com"}, "a.b.example.com", false},
		{[]string{"*.example.com"}, "example.com", false},
		{[]string{"example.com"}, "app.example.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, covers(tt.names, tt.host), "%v %s", tt.names, tt.host)
	}
}
