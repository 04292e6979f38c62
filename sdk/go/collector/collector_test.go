package collector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackersdk "testtracker/sdk/go"
)

func boolPtr(b bool) *bool { return &b }

func publishingRun() RunConfig {
	return RunConfig{Target: Target{Project: "P", Run: "R", Section: "Sec"}, Publish: true}
}

func runTest(t *testing.T, c *Collector, tc *TestConfig, passed bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.OnTestStart(ctx, tc))
	require.NoError(t, c.OnTestOutcome(ctx, tc, passed))
}

func TestPublishSendsOneBulkCallInOrder(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	reg := prometheus.NewRegistry()
	c := New(svc, Options{Metrics: trackersdk.NewMetrics(reg), ArtifactPath: filepath.Join(t.TempDir(), "out.json")})

	require.NoError(t, c.OnRunStart(ctx, publishingRun()))
	runTest(t, c, &TestConfig{Class: "Login", Name: "first", Case: "TC1"}, true)
	runTest(t, c, &TestConfig{Class: "Login", Name: "second", Case: "TC2"}, true)
	runTest(t, c, &TestConfig{Class: "Login", Name: "third", Case: "TC3"}, false)

	report, err := c.OnRunFinish(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 3, report.Published)
	assert.NotEmpty(t, report.BatchID)
	assert.Empty(t, report.ArtifactPath)

	require.Len(t, svc.addResults, 1)
	call := svc.addResults[0]
	assert.Equal(t, int64(50), call.runID)
	require.Len(t, call.entries, 3)
	var statuses []trackersdk.Status
	var cases []int64
	for _, e := range call.entries {
		statuses = append(statuses, e.StatusID)
		cases = append(cases, e.CaseID)
	}
	assert.Equal(t, []trackersdk.Status{1, 1, 5}, statuses)
	assert.Equal(t, []int64{31, 32, 33}, cases)

	families, err := reg.Gather()
	require.NoError(t, err)
	published := 0.0
	for _, mf := range families {
		if mf.GetName() != "testtracker_results_published_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == OutcomePublished {
					published += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 3.0, published)
	assert.Contains(t, report.Table(), "Login.third")
}

func TestPublishOffWritesArtifact(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	path := filepath.Join(t.TempDir(), "nested", "results.json")
	c := New(svc, Options{ArtifactPath: path})

	cfg := publishingRun()
	cfg.Publish = false
	cfg.Version = "1.2.3"
	require.NoError(t, c.OnRunStart(ctx, cfg))
	runTest(t, c, &TestConfig{Name: "a", Case: "TC1"}, true)
	runTest(t, c, &TestConfig{Name: "b", Case: "TC2", Defects: "BUG-1"}, false)

	report, err := c.OnRunFinish(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, report.ArtifactPath)
	assert.Zero(t, svc.calls, "no network calls when publishing is off")

	a, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, report.BatchID, a.BatchID)
	require.Len(t, a.Records, 2)
	assert.Equal(t, trackersdk.StatusPassed, a.Records[0].Status)
	assert.Equal(t, trackersdk.StatusFailed, a.Records[1].Status)
	assert.Equal(t, "TC2", a.Records[1].Case)
	assert.Equal(t, "BUG-1", a.Records[1].Defects)
	assert.Equal(t, "1.2.3", a.Records[0].Version)
	assert.Equal(t, "P", a.Records[0].Target.Project)
}

func TestFailedRecordIsIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := New(svc, Options{ArtifactPath: filepath.Join(t.TempDir(), "out.json")})

	require.NoError(t, c.OnRunStart(ctx, publishingRun()))
	runTest(t, c, &TestConfig{Name: "ok", Case: "TC1"}, true)
	runTest(t, c, &TestConfig{Name: "ghost", Case: "Ghost"}, true)
	runTest(t, c, &TestConfig{Name: "also-ok", Case: "TC3"}, false)

	report, err := c.OnRunFinish(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Published)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "ghost", report.Failures[0].Test)
	assert.ErrorIs(t, report.Failures[0].Err, trackersdk.ErrNotFound)
	assert.Error(t, report.Err())

	require.Len(t, svc.addResults, 1)
	assert.Len(t, svc.addResults[0].entries, 2)
}

func TestAbortOnErrorDropsBatch(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	path := filepath.Join(t.TempDir(), "out.json")
	c := New(svc, Options{ArtifactPath: path, AbortOnError: true})

	require.NoError(t, c.OnRunStart(ctx, publishingRun()))
	runTest(t, c, &TestConfig{Name: "ok", Case: "TC1"}, true)
	runTest(t, c, &TestConfig{Name: "ghost", Case: "Ghost"}, true)

	report, err := c.OnRunFinish(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, trackersdk.ErrNotFound)
	assert.Empty(t, svc.addResults)
	assert.Equal(t, path, report.ArtifactPath)

	a, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Len(t, a.Records, 2)
}

func TestPublishErrorKeepsBuffer(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.addErr = &trackersdk.APIError{Method: "POST", Endpoint: "add_results", StatusCode: 500, Status: "500 Internal Server Error"}
	path := filepath.Join(t.TempDir(), "out.json")
	c := New(svc, Options{ArtifactPath: path})

	require.NoError(t, c.OnRunStart(ctx, publishingRun()))
	runTest(t, c, &TestConfig{Name: "ok", Case: "TC1"}, true)

	report, err := c.OnRunFinish(ctx)
	var apiErr *trackersdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Zero(t, report.Published)
	assert.Equal(t, OutcomeFailed, report.Rows[0].Outcome)

	a, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Len(t, a.Records, 1)
}

func TestFailedRunLeavesOnlyUnpublishedRecordsInArtifact(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	svc.runs = append(svc.runs, trackersdk.Run{ID: 51, ProjectID: 1, SuiteID: 10, Name: "R2"})
	svc.runErrs = map[int64]error{51: errors.New("boom")}
	path := filepath.Join(t.TempDir(), "out.json")
	c := New(svc, Options{ArtifactPath: path})

	require.NoError(t, c.OnRunStart(ctx, publishingRun()))
	runTest(t, c, &TestConfig{Name: "a", Case: "TC1"}, true)
	runTest(t, c, &TestConfig{Target: Target{Run: "R2"}, Name: "b", Case: "TC2"}, false)
	runTest(t, c, &TestConfig{Name: "ghost", Case: "Ghost"}, true)

	report, err := c.OnRunFinish(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add results to run 51")
	assert.Equal(t, 1, report.Published)
	require.Len(t, svc.addResults, 2)
	assert.Equal(t, path, report.ArtifactPath)

	a, err := ReadArtifact(path)
	require.NoError(t, err)
	var tests []string
	for _, rec := range a.Records {
		tests = append(tests, rec.Test)
	}
	assert.ElementsMatch(t, []string{"b", "ghost"}, tests)

	// replaying sends run R2 only; "a" is not published twice
	svc.runErrs = nil
	replay, err := New(svc, Options{}).Publish(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, replay.Published)
	require.Len(t, svc.addResults, 3)
	assert.Equal(t, int64(51), svc.addResults[2].runID)
	require.Len(t, replay.Failures, 1)
	assert.Equal(t, "ghost", replay.Failures[0].Test)
}

func TestUnresolvedRecordsAreSaved(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	path := filepath.Join(t.TempDir(), "out.json")
	c := New(svc, Options{ArtifactPath: path})

	require.NoError(t, c.OnRunStart(ctx, publishingRun()))
	runTest(t, c, &TestConfig{Name: "ok", Case: "TC1"}, true)
	runTest(t, c, &TestConfig{Name: "nope", Case: "Nope"}, false)

	report, err := c.OnRunFinish(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Published)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, path, report.ArtifactPath)

	a, err := ReadArtifact(path)
	require.NoError(t, err)
	require.Len(t, a.Records, 1)
	assert.Equal(t, "nope", a.Records[0].Test)
	assert.Equal(t, "Nope", a.Records[0].Case)
	assert.Equal(t, report.BatchID, a.BatchID)
}

func TestFailedRunStartDropsPreviousRun(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := New(svc, Options{ArtifactPath: filepath.Join(t.TempDir(), "out.json")})

	require.NoError(t, c.OnRunStart(ctx, publishingRun()))
	runTest(t, c, &TestConfig{Name: "first", Case: "TC1"}, true)

	missing := publishingRun()
	missing.Run = "Missing"
	require.ErrorIs(t, c.OnRunStart(ctx, missing), trackersdk.ErrNotFound)
	assert.Empty(t, c.Buffered())

	_, err := c.OnRunFinish(ctx)
	assert.ErrorIs(t, err, ErrRunNotStarted)
	assert.Empty(t, svc.addResults)
}

func TestOnlyConfiguredTestsAreBuffered(t *testing.T) {
	ctx := context.Background()
	c := New(newFakeService(), Options{ArtifactPath: filepath.Join(t.TempDir(), "out.json")})
	cfg := publishingRun()
	cfg.Publish = false
	require.NoError(t, c.OnRunStart(ctx, cfg))

	skipped := &TestConfig{Name: "skipped", Case: "TC1"}
	require.NoError(t, c.OnTestStart(ctx, skipped))
	require.NoError(t, c.OnTestSkipped(ctx, skipped))
	require.NoError(t, c.OnTestOutcome(ctx, skipped, true), "an outcome after a skip is ignored")

	runTest(t, c, &TestConfig{Name: "disabled", Case: "TC1", Enabled: boolPtr(false)}, true)
	runTest(t, c, &TestConfig{Name: "private", Case: "TC1", Publish: boolPtr(false)}, true)
	runTest(t, c, nil, true)
	runTest(t, c, &TestConfig{Name: "kept", Case: "TC2"}, true)

	buffered := c.Buffered()
	require.Len(t, buffered, 1)
	assert.Equal(t, "kept", buffered[0].Test)

	report, err := c.OnRunFinish(ctx)
	require.NoError(t, err)
	outcomes := map[string]string{}
	for _, row := range report.Rows {
		outcomes[row.Test] = row.Outcome
	}
	assert.Equal(t, map[string]string{
		"skipped":  OutcomeSkipped,
		"disabled": OutcomeIgnored,
		"private":  OutcomeIgnored,
		"kept":     OutcomeSaved,
	}, outcomes)
}

func TestInconsistentTestConfigIsRejected(t *testing.T) {
	ctx := context.Background()
	c := New(newFakeService(), Options{})
	require.NoError(t, c.OnRunStart(ctx, RunConfig{Target: Target{Project: "P"}}))

	err := c.OnTestStart(ctx, &TestConfig{Class: "CheckoutTest", Name: "pay", CreateTestCase: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, trackersdk.ErrConfigInconsistent)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "CheckoutTest", cfgErr.Class)
	assert.Equal(t, ValidateTestCase, cfgErr.State)
	assert.Contains(t, err.Error(), "annotation not defined")

	require.NoError(t, c.OnTestOutcome(ctx, &TestConfig{Class: "CheckoutTest", Name: "pay"}, true))
	assert.Empty(t, c.Buffered())
}

func TestRunStart(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown run", func(t *testing.T) {
		c := New(newFakeService(), Options{})
		err := c.OnRunStart(ctx, RunConfig{Target: Target{Project: "P", Run: "nope"}, Publish: true})
		assert.ErrorIs(t, err, trackersdk.ErrNotFound)
	})

	t.Run("missing project", func(t *testing.T) {
		c := New(newFakeService(), Options{})
		err := c.OnRunStart(ctx, RunConfig{Target: Target{Run: "R"}, Publish: true})
		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ValidateProject, cfgErr.State)
	})

	t.Run("explicit run id skips lookup", func(t *testing.T) {
		svc := newFakeService()
		c := New(svc, Options{})
		require.NoError(t, c.OnRunStart(ctx, RunConfig{Target: Target{ProjectID: 1, RunID: 50}, Publish: true}))
		assert.Zero(t, svc.calls)
	})

	t.Run("creates milestone and run", func(t *testing.T) {
		svc := newFakeService()
		c := New(svc, Options{ArtifactPath: filepath.Join(t.TempDir(), "out.json")})
		cfg := RunConfig{
			Target:          Target{Project: "P", Run: "Nightly", Milestone: "M1", Section: "Sec"},
			Publish:         true,
			CreateMilestone: true,
			CreateRun:       true,
		}
		require.NoError(t, c.OnRunStart(ctx, cfg))
		assert.Equal(t, 1, svc.postsTo("add_milestone"))
		assert.Equal(t, 1, svc.postsTo("add_run"))
		require.Len(t, svc.runs, 2)
		created := svc.runs[1]
		assert.Equal(t, "Nightly", created.Name)
		require.NotNil(t, created.MilestoneID)
		assert.Equal(t, svc.milestones[0].ID, *created.MilestoneID)

		runTest(t, c, &TestConfig{Name: "a", Case: "TC1"}, true)
		_, err := c.OnRunFinish(ctx)
		require.NoError(t, err)
		require.Len(t, svc.addResults, 1)
		assert.Equal(t, created.ID, svc.addResults[0].runID)

		// a second run start finds what the first created
		require.NoError(t, c.OnRunStart(ctx, cfg))
		assert.Equal(t, 1, svc.postsTo("add_milestone"))
		assert.Equal(t, 1, svc.postsTo("add_run"))
	})
}

func TestCreateFlagsCreateSectionAndCasesOnce(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService()
	c := New(svc, Options{CacheLookups: true, ArtifactPath: filepath.Join(t.TempDir(), "out.json")})
	require.NoError(t, c.OnRunStart(ctx, RunConfig{Target: Target{Project: "P", Run: "R"}, Publish: true}))

	for _, title := range []string{"NC1", "NC2"} {
		runTest(t, c, &TestConfig{
			Target:         Target{Section: "New"},
			Name:           title,
			Case:           title,
			Category:       "Automated",
			CreateSection:  true,
			CreateTestCase: true,
		}, true)
	}

	report, err := c.OnRunFinish(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, 1, svc.postsTo("add_section"))
	assert.Equal(t, 2, svc.postsTo("add_case"))
	for _, created := range svc.cases[3:] {
		assert.Equal(t, int64(3), created.TypeID)
	}
}

func TestElapsedAndCommentTemplate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(newFakeService(), Options{Now: func() time.Time { return now }})
	cfg := publishingRun()
	cfg.Publish = false
	require.NoError(t, c.OnRunStart(ctx, cfg))

	measured := &TestConfig{Class: "Cart", Name: "add", Case: "TC1", Comment: "{name} {status} in {elapsed}"}
	require.NoError(t, c.OnTestStart(ctx, measured))
	now = now.Add(65 * time.Second)
	require.NoError(t, c.OnTestOutcome(ctx, measured, false))

	runTest(t, c, &TestConfig{Name: "fixed", Case: "TC2", Elapsed: "3m"}, true)

	records := c.Buffered()
	require.Len(t, records, 2)
	assert.Equal(t, "1m 5s", records[0].Elapsed)
	assert.Equal(t, "Cart.add failed in 1m 5s", records[0].Comment)
	assert.Equal(t, "3m", records[1].Elapsed)
}

func TestConcurrentOutcomes(t *testing.T) {
	ctx := context.Background()
	c := New(newFakeService(), Options{ArtifactPath: filepath.Join(t.TempDir(), "out.json")})
	cfg := publishingRun()
	cfg.Publish = false
	require.NoError(t, c.OnRunStart(ctx, cfg))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tc := &TestConfig{Class: "Par", Name: fmt.Sprintf("t%d", i), Case: "TC1"}
			_ = c.OnTestStart(ctx, tc)
			_ = c.OnTestOutcome(ctx, tc, i%2 == 0)
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.Buffered(), 50)
	report, err := c.OnRunFinish(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Rows, 50)
}

func TestFinishWithoutStart(t *testing.T) {
	_, err := New(newFakeService(), Options{}).OnRunFinish(context.Background())
	assert.ErrorIs(t, err, ErrRunNotStarted)
}

func TestPublishArtifact(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.json")
	offline := New(newFakeService(), Options{ArtifactPath: path})
	cfg := publishingRun()
	cfg.Publish = false
	require.NoError(t, offline.OnRunStart(ctx, cfg))
	runTest(t, offline, &TestConfig{Name: "a", Case: "TC1"}, true)
	runTest(t, offline, &TestConfig{Name: "b", Case: "TC2"}, false)
	_, err := offline.OnRunFinish(ctx)
	require.NoError(t, err)

	a, err := ReadArtifact(path)
	require.NoError(t, err)
	svc := newFakeService()
	report, err := New(svc, Options{}).Publish(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Published)
	require.Len(t, svc.addResults, 1)
	assert.Equal(t, int64(50), svc.addResults[0].runID)
}
