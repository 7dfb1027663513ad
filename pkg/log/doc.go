/*
Package log provides structured logging for Stagehand using zerolog.

A single global Logger is configured once by the CLI from --log-level and
--log-json. Packages derive child loggers that carry identifying fields, so
every line can be traced back to the plan and stage that produced it:

	log.Logger
	   │
	   ├── WithComponent("topology") ──► WithPlanID(id) ──► WithStage("prod")
	   ├── WithComponent("planner")
	   ├── WithComponent("provider")
	   ├── WithComponent("preflight")
	   └── WithComponent("bucket")

# Output

Logs are written to stderr. Rendered plans, summaries and command results go
to stdout, so `stagehand plan -o json | jq` works with logging enabled.

Console format (default):

	2026-01-10T12:00:00Z INF Topology complete component=topology plan_id=9b2f... stages=2

JSON format (--log-json):

	{"level":"info","component":"topology","plan_id":"9b2f...","stages":2,"time":"2026-01-10T12:00:00Z","message":"Topology complete"}

# Usage

	log.Init(log.Config{Level: log.InfoLevel})

	logger := log.WithComponent("planner")
	sl := log.WithStage(logger, "prod")
	sl.Debug().Str("fqdn", fqdn).Msg("Stage planned")

Child loggers capture the global Logger at creation time. Create them after
Init, typically in constructors.
*/
package log
