// Package planner declares the shared and per-stage cloud resources of a
// deployment topology through a provider.
package planner

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/stagehand/pkg/config"
	"github.com/cuemby/stagehand/pkg/log"
	"github.com/cuemby/stagehand/pkg/provider"
	"github.com/cuemby/stagehand/pkg/types"
)

// Options tune resource sizing and password generation
type Options struct {
	Password     types.PasswordPolicy
	MaxAZs       int
	CPU          int
	MemoryMiB    int
	DesiredCount int
	DBEngine     string
	DBVersion    string
	DBInstance   string
}

// DefaultOptions returns the canonical sizing
func DefaultOptions() Options {
	return Options{
		Password:     types.DefaultPasswordPolicy(),
		MaxAZs:       2,
		CPU:          256,
		MemoryMiB:    1024,
		DesiredCount: 1,
		DBEngine:     "aurora-postgresql",
		DBVersion:    "15.5",
		DBInstance:   "t3.medium",
	}
}

// Planner declares common and per-stage resources through a provider
type Planner struct {
	provider provider.Provider
	cfg      *config.Configuration
	opts     Options
	logger   zerolog.Logger
}

// New creates a planner for a validated configuration
func New(p provider.Provider, cfg *config.Configuration, opts Options) *Planner {
	return &Planner{
		provider: p,
		cfg:      cfg,
		opts:     opts,
		logger:   log.WithComponent("planner"),
	}
}

// FQDN joins a stage host name and the common domain
func FQDN(host, domain string) string {
	return host + "." + domain
}
