/*
Package events provides an in-memory event broker for planning progress.

The topology driver publishes an event as each phase of a plan finishes.
The CLI subscribes to stream progress to the terminal, and tests subscribe
to assert ordering without scraping logs.

# Architecture

	┌──────────────────── EVENT BROKER ─────────────────────┐
	│                                                        │
	│  Driver ──Publish──▶ eventCh (buffer: 100)             │
	│                          │                             │
	│                    broadcast loop                      │
	│                          │                             │
	│        ┌─────────────────┼─────────────────┐           │
	│        ▼                 ▼                 ▼           │
	│   subscriber        subscriber        subscriber       │
	│   (buffer: 50)      (buffer: 50)      (buffer: 50)     │
	└────────────────────────────────────────────────────────┘

# Event Types

	plan.started             driver accepted a configuration
	common.planned           shared resources declared
	stage.planned            one stage's resources declared
	stage.failed             a stage could not be planned
	deploy-stage.added       deploy stage appended to the app pipeline
	infra-pipeline.composed  infrastructure pipeline declared
	topology.complete        every stage planned
	topology.failed          planning aborted

Events carry the plan ID so subscribers watching several runs can tell
them apart. Publish assigns a UUID and timestamp when the caller leaves
them empty.

# Delivery

Delivery is best effort. A subscriber whose buffer is full misses the
event rather than stalling the planner. Stop drains anything still queued
before returning, so a subscriber that keeps reading sees the terminal
event of a finished run.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for e := range sub {
			fmt.Println(e.Type, e.Message)
		}
	}()
*/
package events
