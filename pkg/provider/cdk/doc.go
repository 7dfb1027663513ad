/*
Package cdk implements provider.Provider with aws-cdk-go constructs.

One CDK app holds two stacks: the application stack (network, database,
services, application pipeline) and the pipeline stack (the
self-deploying infrastructure pipeline). Synth writes a cloud assembly
that "cdk deploy" or the infrastructure pipeline's change-set actions
consume.

Handles wrap the construct they name. Attributes such as the database
endpoint are CDK tokens; they pass through string-typed fields like the
container environment and resolve to CloudFormation references at
synthesis.

The jsii runtime reports construct errors by panicking. Every call into it
recovers the panic into a provider.ProviderError, so a bad declaration
fails the plan like any other provider error. Callers must call
jsii.Close before the process exits.

Hosted zones are looked up from CDK context. When the context is not
cached in cdk.context.json, synthesis records the lookup as missing and
uses placeholder values; the CDK CLI performs the lookup on its next run.
*/
package cdk
