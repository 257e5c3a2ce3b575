// Package config loads and validates the repository-level `.gitgov/config.json`
// document (§6 "On-disk layout") and the pull scheduler's cascading defaults
// (§4.7), generalized from the teacher's server/configuration.go
// load-then-validate pattern (OnConfigurationChange).
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// StateConfig names the branch the worktree sync engine reconciles against
// (§6 `config.json` -> state.branch).
type StateConfig struct {
	Branch   string          `json:"branch"`
	Defaults *StateDefaults  `json:"defaults,omitempty"`
}

// StateDefaults seeds the pull scheduler when no session/project override is
// present (§4.7 "project defaults" tier).
type StateDefaults struct {
	PullScheduler *SchedulerConfig `json:"pullScheduler,omitempty"`
}

// SchedulerConfig is one tier of the pull scheduler's configuration cascade
// (§4.7). Pointer fields distinguish "unset, fall through" from an explicit
// zero value.
type SchedulerConfig struct {
	Enabled                *bool `json:"enabled,omitempty"`
	PullIntervalSeconds    *int  `json:"pullIntervalSeconds,omitempty"`
	ContinueOnNetworkError *bool `json:"continueOnNetworkError,omitempty"`
	StopOnConflict         *bool `json:"stopOnConflict,omitempty"`
}

// RepoConfig is the decoded form of `.gitgov/config.json`.
type RepoConfig struct {
	ProtocolVersion string      `json:"protocolVersion"`
	ProjectID       string      `json:"projectId"`
	ProjectName     string      `json:"projectName"`
	RootCycle       string      `json:"rootCycle"`
	State           StateConfig `json:"state"`
}

// IsValid checks the required fields of a RepoConfig (§6).
func (c *RepoConfig) IsValid() error {
	if c.ProtocolVersion == "" {
		return errors.New("protocolVersion is required")
	}
	if c.ProjectID == "" {
		return errors.New("projectId is required")
	}
	if c.State.Branch == "" {
		return errors.New("state.branch is required")
	}
	return nil
}

// Load reads and validates the repo config at path. A missing file is not
// treated specially here; callers that want a fallback default should check
// os.IsNotExist themselves before calling Load.
func Load(path string) (*RepoConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	var cfg RepoConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config file")
	}
	return &cfg, nil
}

// BuiltinDefaults is the lowest tier of the pull scheduler cascade (§4.7).
func BuiltinDefaults() SchedulerConfig {
	return SchedulerConfig{
		Enabled:                boolPtr(false),
		PullIntervalSeconds:    intPtr(30),
		ContinueOnNetworkError: boolPtr(true),
		StopOnConflict:         boolPtr(false),
	}
}

// ResolveScheduler cascades session preferences over project defaults over
// BuiltinDefaults, tier by tier, field by field (§4.7 "highest first").
// Any nil tier is skipped; a config load failure upstream should be
// converted to a nil tier by the caller (§4.7 "load failures fall back to
// defaults silently").
func ResolveScheduler(session, project *SchedulerConfig) SchedulerConfig {
	resolved := BuiltinDefaults()
	for _, tier := range []*SchedulerConfig{project, session} {
		if tier == nil {
			continue
		}
		if tier.Enabled != nil {
			resolved.Enabled = tier.Enabled
		}
		if tier.PullIntervalSeconds != nil {
			resolved.PullIntervalSeconds = tier.PullIntervalSeconds
		}
		if tier.ContinueOnNetworkError != nil {
			resolved.ContinueOnNetworkError = tier.ContinueOnNetworkError
		}
		if tier.StopOnConflict != nil {
			resolved.StopOnConflict = tier.StopOnConflict
		}
	}
	return resolved
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
