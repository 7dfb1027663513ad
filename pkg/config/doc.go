/*
Package config loads and validates the stagehand configuration document.

The document has two top-level keys:

	common:              # ordered scalar pairs, passed to every service
	  POSTGRES_PORT: 5432
	  DOMAIN_NAME: example.com
	  ...
	stages:              # ordered mapping, one entry per environment
	  test:
	    HOST_NAME: test
	    STAGE_APPROVAL: false
	  prod:
	    HOST_NAME: app
	    STAGE_APPROVAL: true
	    APPROVAL_EMAILS: [ops@example.com]

# Loading

Load runs three passes:

 1. Structural: the document is checked against an embedded JSON schema.
    Unknown stage fields and non-scalar common values fail here.
 2. Ordered decode: common pairs and stages are read from the YAML node tree
    so document order is preserved.
 3. Semantic: Validate reports every missing key and invalid value at once
    via errors.Join, then resolves the optional switches into tagged
    variants (types.CertificateSource, types.ImageSource and each stage's
    types.SecretSource).

Errors are typed: ParseError, MissingFieldError and InvalidFieldError. Use
errors.Is with ErrParse, ErrMissingField or ErrInvalidField to classify them.

Empty or absent optional keys count as "off". POSTGRES_HOST is reserved: it
is derived from the provisioned database and may not be set in common.
*/
package config
