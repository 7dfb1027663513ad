/*
Package preflight checks a configuration against a live AWS account.

Synthesis never talks to AWS: a secret name with a typo or a hosted zone
in the wrong account only shows up when CloudFormation fails halfway
through a deploy. Preflight looks up everything the topology references by
name and reports all problems at once:

	secret            every GITHUB_AUTH_SECRET_NAME, AWS_AUTH_SECRET_NAME
	                  and GITHUB_APP_SECRET_ARN (DescribeSecret)
	hosted-zone       a public zone named exactly DOMAIN_NAME
	certificate       ACM_ARN is issued and covers every stage FQDN
	image-repository  ECR_REPO_NAME exists

Failures carry the service error code when AWS returned one. Report.Err
joins them as provider errors.
*/
package preflight
