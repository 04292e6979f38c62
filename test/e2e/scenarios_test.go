package e2e

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"testtracker/internal/domain"
	"testtracker/internal/engine"
	"testtracker/internal/server/servertest"
	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/builder"
	"testtracker/sdk/go/collector"
	"testtracker/sdk/go/resolve"
)

var _ = Describe("Resolving entity names", func() {
	var fixture servertest.Fixture

	BeforeEach(func() {
		var err error
		fixture, err = srv.Seed(ctx, servertest.Seed{
			Project:   "P",
			SuiteMode: domain.SuiteModeMultiple,
			Suite:     "S",
			Section:   "Sec",
			Cases:     []string{"TC1"},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("finds a test case through its hierarchy", func() {
		ids, err := resolver.ResolvePath(ctx, resolve.Path{Project: "P", Suite: "S", Section: "Sec", Case: "TC1"}, resolve.Strict)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids.CaseID).To(Equal(fixture.CaseIDs[0]))
		Expect(ids.SectionID).To(Equal(fixture.SectionID))
	})

	It("reports a missing test case as not found", func() {
		_, err := resolver.ResolvePath(ctx, resolve.Path{Project: "P", Suite: "S", Section: "Sec", Case: "Nonexistent"}, resolve.Strict)
		Expect(err).To(MatchError(trackersdk.ErrNotFound))
	})

	It("returns no id for a missing name when not asked to fail", func() {
		id, err := resolver.ResolveSection(ctx, fixture.ProjectID, fixture.SuiteID, "Nope", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(resolve.NoID))
	})

	It("rejects an ambiguous suite name even when not asked to fail", func() {
		_, err := srv.Engine.AddSuite(ctx, engine.SuiteOptions{ProjectID: fixture.ProjectID, Name: "S"})
		Expect(err).NotTo(HaveOccurred())

		_, err = resolver.ResolveSuite(ctx, fixture.ProjectID, "S", false)
		Expect(err).To(MatchError(trackersdk.ErrNotUnique))
	})
})

var _ = Describe("Publishing a run", func() {
	var fixture servertest.Fixture

	BeforeEach(func() {
		var err error
		fixture, err = srv.Seed(ctx, servertest.Seed{
			Project: "P",
			Section: "Sec",
			Cases:   []string{"TC1", "TC2", "TC3"},
			Run:     "R",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	record := func(c *collector.Collector, name, title string, passed bool) {
		tc := &collector.TestConfig{Class: "Checkout", Name: name, Case: title}
		Expect(c.OnTestStart(ctx, tc)).To(Succeed())
		Expect(c.OnTestOutcome(ctx, tc, passed)).To(Succeed())
	}

	It("sends every outcome in one bulk call", func() {
		c := collector.New(client, collector.Options{ArtifactPath: filepath.Join(GinkgoT().TempDir(), "out.json")})
		Expect(c.OnRunStart(ctx, collector.RunConfig{
			Target:  collector.Target{Project: "P", Run: "R", Section: "Sec"},
			Publish: true,
		})).To(Succeed())
		record(c, "first", "TC1", true)
		record(c, "second", "TC2", true)
		record(c, "third", "TC3", false)

		report, err := c.OnRunFinish(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Err()).NotTo(HaveOccurred())
		Expect(report.Published).To(Equal(3))

		Expect(srv.Calls(ctx, "add_results")).To(Equal(1))
		var statuses []trackersdk.Status
		for _, caseID := range fixture.CaseIDs {
			results, err := client.ResultsForCase(ctx, fixture.RunID, caseID)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			statuses = append(statuses, results[0].StatusID)
		}
		Expect(statuses).To(Equal([]trackersdk.Status{trackersdk.StatusPassed, trackersdk.StatusPassed, trackersdk.StatusFailed}))
	})

	It("writes an artifact that can be published later", func() {
		path := filepath.Join(GinkgoT().TempDir(), "out.json")
		c := collector.New(client, collector.Options{ArtifactPath: path})
		Expect(c.OnRunStart(ctx, collector.RunConfig{Target: collector.Target{Project: "P", Run: "R", Section: "Sec"}})).To(Succeed())
		record(c, "first", "TC1", true)

		report, err := c.OnRunFinish(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.ArtifactPath).To(Equal(path))
		Expect(srv.Calls(ctx, "add_results")).To(Equal(0))

		artifact, err := collector.ReadArtifact(path)
		Expect(err).NotTo(HaveOccurred())
		report, err = collector.New(client, collector.Options{}).Publish(ctx, artifact)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Published).To(Equal(1))
		Expect(srv.Calls(ctx, "add_results")).To(Equal(1))
	})

	It("refuses results for a closed run", func() {
		run, err := builder.Run(builder.ByName("P"), "R").Materialize(ctx, resolver)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.ID).To(Equal(fixture.RunID))
		closed, err := run.Close(ctx, client)
		Expect(err).NotTo(HaveOccurred())
		Expect(closed.IsCompleted).To(BeTrue())

		_, err = client.AddResults(ctx, fixture.RunID, []trackersdk.ResultEntry{{CaseID: fixture.CaseIDs[0], StatusID: trackersdk.StatusPassed}})
		var apiErr *trackersdk.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Endpoint).To(Equal("add_results"))
		Expect(trackersdk.IsStatus(err, 400)).To(BeTrue())
	})
})

var _ = Describe("Rate limiting", func() {
	BeforeEach(func() {
		_, err := srv.Seed(ctx, servertest.Seed{Project: "P"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("retries on 429 and returns the eventual answer", func() {
		var sleeps []time.Duration
		c := srv.Client(trackersdk.Options{RetryCount: 3, OnRetry: func(_ int, wait time.Duration) { sleeps = append(sleeps, wait) }})
		srv.Throttle.Reject(2)

		projects, err := c.Projects(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(projects).To(HaveLen(1))
		Expect(projects[0].Name).To(Equal("P"))
		Expect(sleeps).To(HaveLen(2))
		Expect(srv.Calls(ctx, "get_projects")).To(Equal(3))
	})

	It("gives up after the configured attempts", func() {
		c := srv.Client(trackersdk.Options{RetryCount: 2})
		srv.Throttle.Reject(5)

		_, err := c.Projects(ctx)
		Expect(err).To(MatchError(trackersdk.ErrRateLimited))
		Expect(srv.Calls(ctx, "get_projects")).To(Equal(2))
	})
})
