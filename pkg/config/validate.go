package config

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"

	"github.com/cuemby/stagehand/pkg/types"
)

var (
	stageNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)
	hostnamePattern  = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)*$`)
)

// Validate checks every semantic rule and reports all failures at once,
// joined. On success it resolves the tagged variants on the configuration
// and its stages.
func (c *Configuration) Validate() error {
	var errs []error

	for _, key := range RequiredCommonKeys {
		if !c.Common.Has(key) {
			errs = append(errs, &MissingFieldError{Field: "common." + key})
		}
	}
	for _, key := range []string{KeyPostgresPort, KeyContainerPort} {
		if c.Common.Has(key) {
			if err := checkPort("common."+key, c.Common.Get(key)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if c.Common.Has(KeyDomainName) && !hostnamePattern.MatchString(c.Common.Get(KeyDomainName)) {
		errs = append(errs, &InvalidFieldError{
			Field:  "common." + KeyDomainName,
			Value:  c.Common.Get(KeyDomainName),
			Reason: "not a valid domain name",
		})
	}
	if _, reserved := c.Common.Lookup(KeyPostgresHost); reserved {
		errs = append(errs, &InvalidFieldError{
			Field:  "common." + KeyPostgresHost,
			Value:  c.Common.Get(KeyPostgresHost),
			Reason: "reserved, set from the provisioned database endpoint",
		})
	}

	for _, s := range c.Stages {
		errs = append(errs, s.validate()...)
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.resolve()
	return nil
}

func (s *Stage) validate() []error {
	var errs []error
	field := func(key string) string { return fmt.Sprintf("stages.%s.%s", s.Name, key) }

	if !stageNamePattern.MatchString(s.Name) {
		errs = append(errs, &InvalidFieldError{
			Field:  "stages",
			Value:  s.Name,
			Reason: "stage names must be alphanumeric with dashes",
		})
	}

	switch host := s.Host(); {
	case host == "":
		errs = append(errs, &MissingFieldError{Field: field(StageKeyHostName)})
	case !hostnamePattern.MatchString(host):
		errs = append(errs, &InvalidFieldError{
			Field:  field(StageKeyHostName),
			Value:  host,
			Reason: "not a valid host name",
		})
	}

	for _, email := range s.NotifyEmails() {
		if _, err := mail.ParseAddress(email); err != nil {
			errs = append(errs, &InvalidFieldError{
				Field:  field(StageKeyApprovalEmails),
				Value:  email,
				Reason: err.Error(),
			})
		}
	}
	return errs
}

func checkPort(field, value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return &InvalidFieldError{Field: field, Value: value, Reason: "must be a TCP port between 1 and 65535"}
	}
	return nil
}

func (c *Configuration) resolve() {
	if c.Common.Has(KeyACMARN) {
		c.Certificate = types.ExistingCertificate{ARN: c.Common.Get(KeyACMARN)}
	} else {
		c.Certificate = types.DNSValidatedCertificate{}
	}

	if c.Common.Has(KeyECRRepoName) {
		c.Image = types.ExistingRepository{Name: c.Common.Get(KeyECRRepoName)}
	} else {
		c.Image = types.NewRepository{Name: c.Common.Get(KeyContainerName)}
	}

	aws := c.Common.Get(KeyAWSAuthSecretName)
	for _, s := range c.Stages {
		s.Secrets = types.NewSecretSource(deref(s.GitHubAuthSecretName), aws)
	}
}
