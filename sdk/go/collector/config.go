package collector

import "testtracker/sdk/go/builder"

// Target names the tracker entities a run or a test reports into. Zero
// values are unset; an ID wins over a name at the same level.
type Target struct {
	ProjectID   int64  `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Project     string `json:"project,omitempty" yaml:"project,omitempty"`
	MilestoneID int64  `json:"milestone_id,omitempty" yaml:"milestone_id,omitempty"`
	Milestone   string `json:"milestone,omitempty" yaml:"milestone,omitempty"`
	RunID       int64  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Run         string `json:"run,omitempty" yaml:"run,omitempty"`
	SuiteID     int64  `json:"suite_id,omitempty" yaml:"suite_id,omitempty"`
	Suite       string `json:"suite,omitempty" yaml:"suite,omitempty"`
	SectionID   int64  `json:"section_id,omitempty" yaml:"section_id,omitempty"`
	Section     string `json:"section,omitempty" yaml:"section,omitempty"`
}

// Over returns t with every level set in o replacing the same level of t.
func (t Target) Over(o Target) Target {
	if o.ProjectID != 0 || o.Project != "" {
		t.ProjectID, t.Project = o.ProjectID, o.Project
	}
	if o.MilestoneID != 0 || o.Milestone != "" {
		t.MilestoneID, t.Milestone = o.MilestoneID, o.Milestone
	}
	if o.RunID != 0 || o.Run != "" {
		t.RunID, t.Run = o.RunID, o.Run
	}
	if o.SuiteID != 0 || o.Suite != "" {
		t.SuiteID, t.Suite = o.SuiteID, o.Suite
	}
	if o.SectionID != 0 || o.Section != "" {
		t.SectionID, t.Section = o.SectionID, o.Section
	}
	return t
}

func (t Target) project() builder.Ref   { return builder.Ref{ID: t.ProjectID, Name: t.Project} }
func (t Target) milestone() builder.Ref { return builder.Ref{ID: t.MilestoneID, Name: t.Milestone} }
func (t Target) run() builder.Ref       { return builder.Ref{ID: t.RunID, Name: t.Run} }
func (t Target) suite() builder.Ref     { return builder.Ref{ID: t.SuiteID, Name: t.Suite} }
func (t Target) section() builder.Ref   { return builder.Ref{ID: t.SectionID, Name: t.Section} }

// RunConfig is the run-level configuration handed to OnRunStart.
type RunConfig struct {
	Target `yaml:",inline"`

	// Publish sends results to the service at run finish. When false the
	// batch is written to the artifact file instead.
	Publish bool `yaml:"publish"`

	CreateMilestone bool `yaml:"create_milestone"`
	CreateSuite     bool `yaml:"create_suite"`
	CreateRun       bool `yaml:"create_run"`
	CreateSection   bool `yaml:"create_section"`

	// Version is the default version string for every result.
	Version string `yaml:"version"`
}

// TestConfig is the per-test configuration. Target levels override the run's.
type TestConfig struct {
	Target

	// Class and Name identify the test in logs, errors and comment templates.
	Class string
	Name  string

	CaseID       int64
	Case         string
	AssignedToID int64
	AssignedTo   string
	Category     string

	Comment string
	Version string
	Elapsed string
	Defects string

	// Enabled and Publish default to true when nil.
	Enabled *bool
	Publish *bool

	CreateSection  bool
	CreateTestCase bool
}

func (tc *TestConfig) key() string {
	if tc.Class == "" {
		return tc.Name
	}
	return tc.Class + "." + tc.Name
}

func (tc *TestConfig) class() string {
	if tc.Class == "" {
		return tc.Name
	}
	return tc.Class
}

func (tc *TestConfig) enabled() bool {
	return (tc.Enabled == nil || *tc.Enabled) && (tc.Publish == nil || *tc.Publish)
}
