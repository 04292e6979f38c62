package collector

import (
	"fmt"

	trackersdk "testtracker/sdk/go"
)

// State is a step of configuration validation.
type State int

const (
	ValidateProject State = iota
	ValidateMilestone
	ValidateRun
	ValidateSuite
	ValidateSection
	ValidateTestCase
	Complete
)

func (s State) String() string {
	switch s {
	case ValidateProject:
		return "VALIDATE_PROJECT"
	case ValidateMilestone:
		return "VALIDATE_MILESTONE"
	case ValidateRun:
		return "VALIDATE_RUN"
	case ValidateSuite:
		return "VALIDATE_SUITE"
	case ValidateSection:
		return "VALIDATE_SECTION"
	case ValidateTestCase:
		return "VALIDATE_TESTCASE"
	case Complete:
		return "COMPLETE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ConfigError reports the first inconsistency found for a test.
type ConfigError struct {
	Class string
	State State
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s: %s is required", trackersdk.ErrConfigInconsistent, e.Class, e.State, e.Field)
}

func (e *ConfigError) Unwrap() error { return trackersdk.ErrConfigInconsistent }

// Settings is the merged configuration of one test as the validator sees it.
type Settings struct {
	Target
	CaseID int64
	Case   string

	Publish         bool
	CreateMilestone bool
	CreateRun       bool
	CreateSuite     bool
	CreateSection   bool
	CreateTestCase  bool
}

// Validate walks the states in order and stops at the first one that fails.
// It performs no I/O.
func Validate(class string, s Settings) error {
	return validateUntil(class, s, Complete)
}

func validateUntil(class string, s Settings, last State) error {
	for state := ValidateProject; state < last; state++ {
		if field := s.check(state); field != "" {
			return &ConfigError{Class: class, State: state, Field: field}
		}
	}
	return nil
}

func (s Settings) check(state State) string {
	switch state {
	case ValidateProject:
		if s.ProjectID == 0 && s.Project == "" {
			return "project"
		}
	case ValidateMilestone:
		if s.CreateMilestone && s.Milestone == "" {
			return "milestone name"
		}
	case ValidateRun:
		if s.CreateRun && s.Run == "" {
			return "run name"
		}
		if s.Publish && s.RunID == 0 && s.Run == "" {
			return "run"
		}
	case ValidateSuite:
		if s.CreateSuite && s.Suite == "" {
			return "suite name"
		}
	case ValidateSection:
		if s.CreateSection && s.Section == "" {
			return "section name"
		}
	case ValidateTestCase:
		if s.CreateTestCase && s.Case == "" {
			return "test case name"
		}
		if s.CaseID == 0 && s.Case == "" {
			return "test case"
		}
	}
	return ""
}

func (c RunConfig) settings() Settings {
	return Settings{
		Target:          c.Target,
		Publish:         c.Publish,
		CreateMilestone: c.CreateMilestone,
		CreateRun:       c.CreateRun,
		CreateSuite:     c.CreateSuite,
		CreateSection:   c.CreateSection,
	}
}

// merge overlays a test's configuration on the run's.
func merge(run RunConfig, tc *TestConfig) Settings {
	s := run.settings()
	s.Target = run.Target.Over(tc.Target)
	s.CaseID, s.Case = tc.CaseID, tc.Case
	s.CreateSection = s.CreateSection || tc.CreateSection
	s.CreateTestCase = tc.CreateTestCase
	return s
}
