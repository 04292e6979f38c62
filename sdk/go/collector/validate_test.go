package collector

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackersdk "testtracker/sdk/go"
)

func TestValidate(t *testing.T) {
	base := Settings{Target: Target{Project: "P"}, Case: "TC1"}

	tests := []struct {
		name   string
		mutate func(s *Settings)
		state  State
		field  string
	}{
		{"complete", func(*Settings) {}, Complete, ""},
		{"project id is enough", func(s *Settings) { s.Project, s.ProjectID = "", 4 }, Complete, ""},
		{"no project", func(s *Settings) { s.Project = "" }, ValidateProject, "project"},
		{"milestone to create needs a name", func(s *Settings) { s.CreateMilestone = true }, ValidateMilestone, "milestone name"},
		{"run to create needs a name", func(s *Settings) { s.CreateRun = true }, ValidateRun, "run name"},
		{"publishing needs a run", func(s *Settings) { s.Publish = true }, ValidateRun, "run"},
		{"publishing with run id", func(s *Settings) { s.Publish, s.RunID = true, 9 }, Complete, ""},
		{"suite to create needs a name", func(s *Settings) { s.CreateSuite = true }, ValidateSuite, "suite name"},
		{"section to create needs a name", func(s *Settings) { s.CreateSection = true }, ValidateSection, "section name"},
		{"case to create needs a name", func(s *Settings) { s.Case, s.CaseID, s.CreateTestCase = "", 3, true }, ValidateTestCase, "test case name"},
		{"case must be identified", func(s *Settings) { s.Case = "" }, ValidateTestCase, "test case"},
		{"first failing state wins", func(s *Settings) { s.Project, s.CreateSuite = "", true }, ValidateProject, "project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			err := Validate("SomeTest", s)
			if tt.state == Complete {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.state, cfgErr.State)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, "SomeTest", cfgErr.Class)
			assert.ErrorIs(t, err, trackersdk.ErrConfigInconsistent)
		})
	}
}

func TestMergeOverridesPerLevel(t *testing.T) {
	run := RunConfig{Target: Target{Project: "P", RunID: 50, Suite: "S", Section: "Sec"}, CreateSection: false}
	s := merge(run, &TestConfig{Target: Target{SectionID: 77}, Case: "TC1", CreateTestCase: true})

	assert.Equal(t, "P", s.Project)
	assert.Equal(t, int64(50), s.RunID)
	assert.Equal(t, "S", s.Suite)
	assert.Equal(t, int64(77), s.SectionID)
	assert.Empty(t, s.Section, "a test's section replaces the run's name and id together")
	assert.True(t, s.CreateTestCase)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "1s"},
		{400 * time.Millisecond, "1s"},
		{1500 * time.Millisecond, "2s"},
		{59 * time.Second, "59s"},
		{2 * time.Minute, "2m"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
		{3 * time.Hour, "3h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.in), tt.in.String())
	}
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "VALIDATE_SECTION", ValidateSection.String())
	assert.Equal(t, "COMPLETE", Complete.String())
}
