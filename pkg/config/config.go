package config

import (
	"strconv"

	"github.com/cuemby/stagehand/pkg/types"
)

// Common configuration keys
const (
	KeyPostgresPort          = "POSTGRES_PORT"
	KeyPostgresDB            = "POSTGRES_DB"
	KeyPostgresUser          = "POSTGRES_USER"
	KeyPostgresHost          = "POSTGRES_HOST"
	KeyAWSRegion             = "AWS_REGION"
	KeyAWSAccount            = "AWS_ACCOUNT"
	KeyTagStackName          = "TAG_STACK_NAME"
	KeyTagStackProduct       = "TAG_STACK_PRODUCT"
	KeyContainerPort         = "CONTAINER_PORT"
	KeyContainerName         = "CONTAINER_NAME"
	KeyDomainName            = "DOMAIN_NAME"
	KeyACMARN                = "ACM_ARN"
	KeyECRRepoName           = "ECR_REPO_NAME"
	KeyDockerfile            = "DOCKERFILE"
	KeyGitHubAppRepo         = "GITHUB_APP_REPO"
	KeyGitHubInfraRepo       = "GITHUB_INFRA_REPO"
	KeyGitHubOrg             = "GITHUB_ORG"
	KeyCodeStarConnARN       = "CODESTAR_CONN_ARN"
	KeyCodeStarNotifyARN     = "CODESTAR_NOTIFY_ARN"
	KeyGitHubTokenSecretName = "GITHUB_TOKEN_SECRET_NAME"
	KeyGitHubAppSecretARN    = "GITHUB_APP_SECRET_ARN"
	KeyAWSAuthSecretName     = "AWS_AUTH_SECRET_NAME"
)

// Stage record keys
const (
	StageKeyHostName       = "HOST_NAME"
	StageKeyGitHubAuth     = "GITHUB_AUTH_SECRET_NAME"
	StageKeyNodeEnv        = "NODE_ENV"
	StageKeyLogLevel       = "LOG_LEVEL"
	StageKeyApproval       = "STAGE_APPROVAL"
	StageKeyApprovalEmails = "APPROVAL_EMAILS"
)

// DefaultProduct is the Product tag used when TAG_STACK_PRODUCT is unset
const DefaultProduct = "dev-portal"

// RequiredCommonKeys must be present and non-empty in every document
var RequiredCommonKeys = []string{
	KeyPostgresPort,
	KeyPostgresUser,
	KeyAWSRegion,
	KeyAWSAccount,
	KeyTagStackName,
	KeyContainerPort,
	KeyContainerName,
	KeyDomainName,
	KeyDockerfile,
	KeyGitHubAppRepo,
	KeyGitHubInfraRepo,
	KeyGitHubOrg,
	KeyCodeStarConnARN,
	KeyGitHubAppSecretARN,
}

// Pair is one common key/value entry
type Pair struct {
	Key   string
	Value string
}

// Common is the ordered set of environment-wide settings. Every pair is
// passed verbatim to each stage's service environment in document order.
type Common struct {
	pairs []Pair
	index map[string]int
}

// NewCommon builds a Common from ordered pairs. A repeated key keeps its
// first position and takes the last value.
func NewCommon(pairs ...Pair) *Common {
	c := &Common{index: make(map[string]int, len(pairs))}
	for _, p := range pairs {
		c.set(p.Key, p.Value)
	}
	return c
}

func (c *Common) set(key, value string) {
	if i, ok := c.index[key]; ok {
		c.pairs[i].Value = value
		return
	}
	c.index[key] = len(c.pairs)
	c.pairs = append(c.pairs, Pair{Key: key, Value: value})
}

// Lookup returns the raw value for key and whether the key is present
func (c *Common) Lookup(key string) (string, bool) {
	i, ok := c.index[key]
	if !ok {
		return "", false
	}
	return c.pairs[i].Value, true
}

// Get returns the value for key, or "" when absent
func (c *Common) Get(key string) string {
	v, _ := c.Lookup(key)
	return v
}

// Has reports whether key is present with a non-empty value. Optional
// switch keys are "off" unless Has returns true.
func (c *Common) Has(key string) bool {
	return c.Get(key) != ""
}

// Pairs returns a copy of all pairs in document order
func (c *Common) Pairs() []Pair {
	out := make([]Pair, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// Len returns the number of pairs
func (c *Common) Len() int { return len(c.pairs) }

// PostgresPort returns POSTGRES_PORT. Only valid after Validate.
func (c *Common) PostgresPort() int {
	port, _ := strconv.Atoi(c.Get(KeyPostgresPort))
	return port
}

// ContainerPort returns CONTAINER_PORT. Only valid after Validate.
func (c *Common) ContainerPort() int {
	port, _ := strconv.Atoi(c.Get(KeyContainerPort))
	return port
}

// Product returns TAG_STACK_PRODUCT or DefaultProduct
func (c *Common) Product() string {
	if c.Has(KeyTagStackProduct) {
		return c.Get(KeyTagStackProduct)
	}
	return DefaultProduct
}

// Stage is one named deployment environment. Optional fields are pointers
// so presence is tracked separately from value.
type Stage struct {
	Name                 string
	HostName             *string
	GitHubAuthSecretName *string
	NodeEnv              *string
	LogLevel             *string
	Approval             *bool
	ApprovalEmails       *[]string

	// Secrets is resolved by Validate
	Secrets types.SecretSource
}

// RequiresApproval reports whether STAGE_APPROVAL is present and true
func (s *Stage) RequiresApproval() bool {
	return s.Approval != nil && *s.Approval
}

// NotifyEmails returns APPROVAL_EMAILS, or nil when absent
func (s *Stage) NotifyEmails() []string {
	if s.ApprovalEmails == nil {
		return nil
	}
	out := make([]string, len(*s.ApprovalEmails))
	copy(out, *s.ApprovalEmails)
	return out
}

// Host returns HOST_NAME, or "" when absent
func (s *Stage) Host() string {
	return deref(s.HostName)
}

// Configuration is the validated configuration document. It is treated as
// immutable once Load returns.
type Configuration struct {
	Path   string
	Common *Common
	Stages []*Stage

	// Resolved by Validate
	Certificate types.CertificateSource
	Image       types.ImageSource
}

// Stage returns the stage with the given name
func (c *Configuration) Stage(name string) (*Stage, bool) {
	for _, s := range c.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// StageNames returns stage names in declaration order
func (c *Configuration) StageNames() []string {
	names := make([]string, 0, len(c.Stages))
	for _, s := range c.Stages {
		names = append(names, s.Name)
	}
	return names
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
