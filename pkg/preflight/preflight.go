package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/planner"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// zoneLookupLimit bounds the zones read per hosted zone check. Zones come
// back sorted by name, so every zone sharing the domain's name is in the
// first page.
const zoneLookupLimit = 20

// SecretsManagerAPI looks up secrets by name
type SecretsManagerAPI interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// Route53API finds hosted zones
type Route53API interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
}

// ACMAPI reads certificate details
type ACMAPI interface {
	DescribeCertificate(ctx context.Context, params *acm.DescribeCertificateInput, optFns ...func(*acm.Options)) (*acm.DescribeCertificateOutput, error)
}

// ECRAPI looks up image repositories
type ECRAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
}

// Clients bundles the AWS APIs the checker calls
type Clients struct {
	SecretsManager SecretsManagerAPI
	Route53        Route53API
	ACM            ACMAPI
	ECR            ECRAPI
}

// NewClients creates SDK clients from a loaded AWS config
func NewClients(cfg aws.Config) Clients {
	return Clients{
		SecretsManager: secretsmanager.NewFromConfig(cfg),
		Route53:        route53.NewFromConfig(cfg),
		ACM:            acm.NewFromConfig(cfg),
		ECR:            ecr.NewFromConfig(cfg),
	}
}

// Check is the outcome of one lookup
type Check struct {
	Name   string `json:"name" yaml:"name"`
	Target string `json:"target" yaml:"target"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Report collects every check of a run
type Report struct {
	Checks []Check `json:"checks" yaml:"checks"`
}

// Failed returns the checks that did not pass
func (r *Report) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.OK {
			failed = append(failed, c)
		}
	}
	return failed
}

// Err joins every failed check into a provider error, or returns nil
func (r *Report) Err() error {
	var errs []error
	for _, c := range r.Failed() {
		errs = append(errs, &provider.ProviderError{Op: c.Name, Resource: c.Target, Err: errors.New(c.Detail)})
	}
	return errors.Join(errs...)
}

func (r *Report) add(name, target string, err error) {
	c := Check{Name: name, Target: target, OK: err == nil}
	if err != nil {
		c.Detail = describe(err)
	}
	r.Checks = append(r.Checks, c)
}

// Checker verifies that the resources a configuration looks up by name
// exist before anything is synthesized
type Checker struct {
	clients Clients
	logger  zerolog.Logger
}

// NewChecker creates a checker over the given clients
func NewChecker(clients Clients) *Checker {
	return &Checker{
		clients: clients,
		logger:  log.WithComponent("preflight"),
	}
}

// Run checks every looked-up secret, the hosted zone, the existing
// certificate and the existing image repository. All checks run; the
// report says which failed.
func (c *Checker) Run(ctx context.Context, cfg *config.Configuration) *Report {
	report := &Report{}

	for _, name := range secretNames(cfg) {
		_, err := c.clients.SecretsManager.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(name)})
		report.add("secret", name, err)
	}

	domain := cfg.Common.Get(config.KeyDomainName)
	report.add("hosted-zone", domain, c.checkHostedZone(ctx, domain))

	if cert, ok := cfg.Certificate.(types.ExistingCertificate); ok {
		var fqdns []string
		for _, s := range cfg.Stages {
			if s.Host() != "" {
				fqdns = append(fqdns, planner.FQDN(s.Host(), domain))
			}
		}
		report.add("certificate", cert.ARN, c.checkCertificate(ctx, cert.ARN, fqdns))
	}

	if repo, ok := cfg.Image.(types.ExistingRepository); ok {
		_, err := c.clients.ECR.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{RepositoryNames: []string{repo.Name}})
		report.add("image-repository", repo.Name, err)
	}

	for _, check := range report.Checks {
		ev := c.logger.Debug()
		if !check.OK {
			ev = c.logger.Warn().Str("detail", check.Detail)
		}
		ev.Str("check", check.Name).Str("target", check.Target).Bool("ok", check.OK).Msg("Preflight check")
	}
	return report
}

func (c *Checker) checkHostedZone(ctx context.Context, domain string) error {
	out, err := c.clients.Route53.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(domain),
		MaxItems: aws.Int32(zoneLookupLimit),
	})
	if err != nil {
		return err
	}
	// A public and a private zone may share a name; the lookup at synth
	// time only sees the public one.
	want := strings.TrimSuffix(domain, ".") + "."
	private := false
	for _, zone := range out.HostedZones {
		if aws.ToString(zone.Name) != want {
			continue
		}
		if zone.Config != nil && zone.Config.PrivateZone {
			private = true
			continue
		}
		return nil
	}
	if private {
		return fmt.Errorf("zone %s is private", domain)
	}
	return fmt.Errorf("no hosted zone named %s", domain)
}

func (c *Checker) checkCertificate(ctx context.Context, arn string, fqdns []string) error {
	out, err := c.clients.ACM.DescribeCertificate(ctx, &acm.DescribeCertificateInput{CertificateArn: aws.String(arn)})
	if err != nil {
		return err
	}
	detail := out.Certificate
	if detail == nil {
		return fmt.Errorf("certificate has no details")
	}
	if detail.Status != acmtypes.CertificateStatusIssued {
		return fmt.Errorf("certificate status is %s", detail.Status)
	}

	names := append([]string{aws.ToString(detail.DomainName)}, detail.SubjectAlternativeNames...)
	var uncovered []string
	for _, fqdn := range fqdns {
		if !covers(names, fqdn) {
			uncovered = append(uncovered, fqdn)
		}
	}
	if len(uncovered) > 0 {
		return fmt.Errorf("certificate does not cover %s", strings.Join(uncovered, ", "))
	}
	return nil
}

// covers reports whether any certificate name matches host. A wildcard
// matches exactly one leading label.
func covers(names []string, host string) bool {
	host = strings.ToLower(host)
	for _, name := range names {
		name = strings.ToLower(name)
		if name == host {
			return true
		}
		if suffix, ok := strings.CutPrefix(name, "*."); ok {
			if label, rest, found := strings.Cut(host, "."); found && label != "" && rest == suffix {
				return true
			}
		}
	}
	return false
}

// secretNames lists the externally managed secrets in first-use order
func secretNames(cfg *config.Configuration) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, s := range cfg.Stages {
		switch src := s.Secrets.(type) {
		case types.GitHubAuth:
			add(src.Name)
		case types.AWSAuth:
			add(src.Name)
		case types.BothAuth:
			add(src.GitHub)
			add(src.AWS)
		}
	}
	add(cfg.Common.Get(config.KeyGitHubAppSecretARN))
	return names
}

// describe turns SDK errors into their service error code
func describe(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
