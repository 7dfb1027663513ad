package types

// SecretSource describes which externally managed auth secrets a stage's
// service receives. It is resolved once during configuration validation.
type SecretSource interface {
	isSecretSource()
}

// NoSecrets means neither GitHub nor AWS auth secrets are configured
type NoSecrets struct{}

// GitHubAuth maps client id, client secret and token from one secret
type GitHubAuth struct {
	Name string
}

// AWSAuth maps an access key id and secret from one secret
type AWSAuth struct {
	Name string
}

// BothAuth combines GitHubAuth and AWSAuth
type BothAuth struct {
	GitHub string
	AWS    string
}

func (NoSecrets) isSecretSource()  {}
func (GitHubAuth) isSecretSource() {}
func (AWSAuth) isSecretSource()    {}
func (BothAuth) isSecretSource()   {}

// NewSecretSource builds the variant for the given optional secret names.
// Empty names count as absent.
func NewSecretSource(github, aws string) SecretSource {
	switch {
	case github != "" && aws != "":
		return BothAuth{GitHub: github, AWS: aws}
	case github != "":
		return GitHubAuth{Name: github}
	case aws != "":
		return AWSAuth{Name: aws}
	default:
		return NoSecrets{}
	}
}

// CertificateSource selects between adopting and issuing a TLS certificate
type CertificateSource interface {
	isCertificateSource()
}

// ExistingCertificate references a certificate by ARN
type ExistingCertificate struct {
	ARN string
}

// DNSValidatedCertificate issues a certificate for the stage FQDN,
// validated by a DNS challenge in the domain's hosted zone
type DNSValidatedCertificate struct{}

func (ExistingCertificate) isCertificateSource()     {}
func (DNSValidatedCertificate) isCertificateSource() {}

// ImageSource selects between adopting and creating an image repository
type ImageSource interface {
	isImageSource()
}

// ExistingRepository looks a repository up by name
type ExistingRepository struct {
	Name string
}

// NewRepository creates a repository with image scanning on push
type NewRepository struct {
	Name string
}

func (ExistingRepository) isImageSource() {}
func (NewRepository) isImageSource()      {}

// PasswordPolicy controls generated database passwords
type PasswordPolicy struct {
	ExcludePunctuation bool
	IncludeSpace       bool
}

// DefaultPasswordPolicy excludes punctuation and whitespace
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{ExcludePunctuation: true, IncludeSpace: false}
}
