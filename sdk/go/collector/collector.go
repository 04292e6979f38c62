// Package collector buffers test outcomes reported by a harness and publishes
// them to the tracker in one bulk call when the run finishes.
//
// The harness drives it through lifecycle calls:
//
//	OnRunStart → (OnTestStart → OnTestOutcome | OnTestSkipped)* → OnRunFinish
//
// Outcomes are buffered unresolved. Names are resolved to IDs only at run
// finish so a run costs one resolution pass and one add_results call rather
// than a round-trip per test.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/builder"
	"testtracker/sdk/go/resolve"
)

// ErrRunNotStarted is returned by OnRunFinish without a preceding OnRunStart.
var ErrRunNotStarted = errors.New("run not started")

// Service is the tracker surface the collector drives. *trackersdk.Client
// satisfies it.
type Service interface {
	resolve.Source
	builder.Writer
	AddResults(ctx context.Context, runID int64, entries []trackersdk.ResultEntry) ([]trackersdk.Result, error)
}

var _ Service = (*trackersdk.Client)(nil)

type Options struct {
	Logger  *slog.Logger
	Metrics *trackersdk.Metrics

	// ArtifactPath receives the batch when publishing is off, and the
	// unpublished records otherwise. Defaults to DefaultArtifactPath.
	ArtifactPath string

	// AbortOnError drops the whole batch when any record fails to resolve.
	// By default failing records are reported and the rest are published.
	AbortOnError bool

	// CacheLookups memoizes listings for the duration of one publish pass.
	CacheLookups bool

	Now func() time.Time
}

type Collector struct {
	svc    Service
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	active  bool
	run     RunConfig
	batchID string
	running map[string]time.Time
	records []Record
	rows    []Row
}

func New(svc Service, opts Options) *Collector {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.ArtifactPath == "" {
		opts.ArtifactPath = DefaultArtifactPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collector{svc: svc, opts: opts, logger: opts.Logger, running: map[string]time.Time{}}
}

// OnRunStart validates the run configuration and, when publishing, resolves
// the run ID once. Milestone, suite and run are created first when their
// create flags are set.
func (c *Collector) OnRunStart(ctx context.Context, cfg RunConfig) error {
	if err := validateUntil("run", cfg.settings(), ValidateTestCase); err != nil {
		return err
	}
	if cfg.Publish {
		prepared, err := c.prepareRun(ctx, cfg)
		if err != nil {
			c.mu.Lock()
			c.active = false
			c.records, c.rows = nil, nil
			c.mu.Unlock()
			return fmt.Errorf("prepare run: %w", err)
		}
		cfg = prepared
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.run = cfg
	c.batchID = uuid.NewString()
	c.running = map[string]time.Time{}
	c.records = nil
	c.rows = nil
	c.logger.Info("run started", "batch", c.batchID, "project", cfg.Project, "run", cfg.Run, "run_id", cfg.RunID, "publish", cfg.Publish)
	return nil
}

func (c *Collector) prepareRun(ctx context.Context, cfg RunConfig) (RunConfig, error) {
	r := resolve.New(c.svc, c.logger)
	t := cfg.Target
	var err error

	if t.ProjectID == resolve.NoID {
		if t.ProjectID, err = r.ResolveProject(ctx, t.Project, true); err != nil {
			return cfg, err
		}
	}
	project := builder.ByID(t.ProjectID)
	if cfg.CreateMilestone && t.MilestoneID == resolve.NoID {
		if t.MilestoneID, err = builder.EnsureMilestone(ctx, r, c.svc, builder.Milestone(project, t.Milestone)); err != nil {
			return cfg, err
		}
	}
	if cfg.CreateSuite && t.SuiteID == resolve.NoID {
		if t.SuiteID, err = builder.EnsureSuite(ctx, r, c.svc, builder.Suite(project, t.Suite)); err != nil {
			return cfg, err
		}
	}
	if t.RunID == resolve.NoID {
		if cfg.CreateRun {
			spec := builder.Run(project, t.Run).InSuite(t.suite()).WithMilestone(t.milestone())
			t.RunID, err = builder.EnsureRun(ctx, r, c.svc, spec)
		} else {
			t.RunID, err = r.ResolveRun(ctx, t.ProjectID, t.Run, true)
		}
		if err != nil {
			return cfg, err
		}
	}
	cfg.Target = t
	return cfg, nil
}

// OnTestStart validates a test's configuration and starts its clock. A nil,
// disabled or non-publishing test is not buffered.
func (c *Collector) OnTestStart(_ context.Context, tc *TestConfig) error {
	if tc == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tc.key()
	if !c.active {
		c.logger.Warn("test started outside a run", "test", key)
		return nil
	}
	if !tc.enabled() {
		c.rows = append(c.rows, Row{Test: key, Outcome: OutcomeIgnored})
		return nil
	}
	if err := Validate(tc.class(), merge(c.run, tc)); err != nil {
		c.rows = append(c.rows, Row{Test: key, Outcome: OutcomeIgnored, Error: err.Error()})
		return err
	}
	c.running[key] = c.opts.Now()
	return nil
}

// OnTestOutcome buffers a passed or failed result for a started test.
func (c *Collector) OnTestOutcome(_ context.Context, tc *TestConfig, passed bool) error {
	if tc == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tc.key()
	start, ok := c.running[key]
	if !ok {
		return nil
	}
	delete(c.running, key)

	status := trackersdk.StatusFailed
	if passed {
		status = trackersdk.StatusPassed
	}
	elapsed := tc.Elapsed
	if elapsed == "" {
		elapsed = FormatElapsed(c.opts.Now().Sub(start))
	}
	version := tc.Version
	if version == "" {
		version = c.run.Version
	}
	settings := merge(c.run, tc)
	c.records = append(c.records, Record{
		Test:           key,
		Status:         status,
		Target:         settings.Target,
		CaseID:         tc.CaseID,
		Case:           tc.Case,
		AssignedToID:   tc.AssignedToID,
		AssignedTo:     tc.AssignedTo,
		Category:       tc.Category,
		Comment:        expandComment(tc.Comment, key, status, elapsed),
		Version:        version,
		Elapsed:        elapsed,
		Defects:        tc.Defects,
		CreateSection:  settings.CreateSection,
		CreateTestCase: settings.CreateTestCase,
	})
	c.logger.Debug("result buffered", "test", key, "status", status)
	return nil
}

// OnTestSkipped logs the skip. Skipped tests produce no result.
func (c *Collector) OnTestSkipped(_ context.Context, tc *TestConfig) error {
	if tc == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tc.key()
	delete(c.running, key)
	c.rows = append(c.rows, Row{Test: key, Outcome: OutcomeSkipped})
	c.logger.Info("test skipped", "test", key)
	return nil
}

// Buffered returns a copy of the records buffered so far.
func (c *Collector) Buffered() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

// OnRunFinish publishes the buffer, or writes it to the artifact when
// publishing is off. Records left unpublished, by a failed resolution or a
// failed add_results call, are written to the artifact; published ones are
// not, so the artifact can be replayed.
func (c *Collector) OnRunFinish(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil, ErrRunNotStarted
	}
	c.active = false
	run := c.run
	batch := Artifact{BatchID: c.batchID, GeneratedAt: c.opts.Now().UTC(), Run: run, Records: append([]Record(nil), c.records...)}
	report := &Report{BatchID: c.batchID, Rows: append([]Row(nil), c.rows...)}
	c.mu.Unlock()

	if !run.Publish {
		if err := WriteArtifact(c.opts.ArtifactPath, batch); err != nil {
			return report, err
		}
		report.ArtifactPath = c.opts.ArtifactPath
		for _, rec := range batch.Records {
			report.Rows = append(report.Rows, Row{Test: rec.Test, CaseID: rec.CaseID, RunID: rec.Target.RunID, Status: rec.Status, Outcome: OutcomeSaved})
		}
		c.opts.Metrics.RecordPublished(OutcomeSaved, len(batch.Records))
		c.logger.Info("results saved", "batch", report.BatchID, "path", report.ArtifactPath, "count", len(batch.Records))
		return report, nil
	}

	unpublished, err := c.publish(ctx, batch.Records, report)
	if len(unpublished) > 0 {
		batch.Records = unpublished
		if saveErr := WriteArtifact(c.opts.ArtifactPath, batch); saveErr != nil {
			c.logger.Error("saving unpublished results", "path", c.opts.ArtifactPath, "error", saveErr)
		} else {
			report.ArtifactPath = c.opts.ArtifactPath
			c.logger.Warn("unpublished results saved", "path", report.ArtifactPath, "count", len(unpublished))
		}
	}
	c.logger.Info("run finished", "batch", report.BatchID, "published", report.Published, "failed", len(report.Failures))
	c.logger.Debug("results\n" + report.Table())
	return report, err
}

// Publish resolves and sends records from an earlier artifact.
func (c *Collector) Publish(ctx context.Context, a Artifact) (*Report, error) {
	report := &Report{BatchID: a.BatchID}
	_, err := c.publish(ctx, a.Records, report)
	return report, err
}

// publish resolves records and sends one add_results call per run, in the
// order runs first appear. It returns the records that were not accepted:
// resolution failures plus every record of the failed run and of the runs
// not sent after it.
func (c *Collector) publish(ctx context.Context, records []Record, report *Report) ([]Record, error) {
	var src resolve.Source = c.svc
	if c.opts.CacheLookups {
		src = resolve.NewCachingSource(c.svc)
	}
	p := &pass{c: c, r: resolve.New(src, c.logger), ensured: map[string]int64{}}

	var (
		order      []int64
		unresolved []Record
	)
	batches := map[int64][]trackersdk.ResultEntry{}
	pending := map[int64][]Record{}
	rowsByRun := map[int64][]int{}
	for _, rec := range records {
		entry, runID, err := p.resolveRecord(ctx, rec)
		if err != nil {
			if c.opts.AbortOnError {
				c.opts.Metrics.RecordPublished(OutcomeFailed, len(records))
				return records, fmt.Errorf("resolve %s: %w", rec.Test, err)
			}
			c.logger.Warn("result not resolved", "test", rec.Test, "error", err)
			report.Failures = append(report.Failures, Failure{Test: rec.Test, Err: err})
			report.Rows = append(report.Rows, Row{Test: rec.Test, Status: rec.Status, Outcome: OutcomeFailed, Error: err.Error()})
			unresolved = append(unresolved, rec)
			continue
		}
		if _, seen := batches[runID]; !seen {
			order = append(order, runID)
		}
		batches[runID] = append(batches[runID], entry)
		pending[runID] = append(pending[runID], rec)
		rowsByRun[runID] = append(rowsByRun[runID], len(report.Rows))
		report.Rows = append(report.Rows, Row{Test: rec.Test, CaseID: entry.CaseID, RunID: runID, Status: rec.Status})
	}
	c.opts.Metrics.RecordPublished(OutcomeFailed, len(report.Failures))

	for n, runID := range order {
		entries := batches[runID]
		if _, err := c.svc.AddResults(ctx, runID, entries); err != nil {
			unpublished := unresolved
			for _, rest := range order[n:] {
				for _, i := range rowsByRun[rest] {
					report.Rows[i].Outcome, report.Rows[i].Error = OutcomeFailed, err.Error()
				}
				c.opts.Metrics.RecordPublished(OutcomeFailed, len(batches[rest]))
				unpublished = append(unpublished, pending[rest]...)
			}
			return unpublished, fmt.Errorf("add results to run %d: %w", runID, err)
		}
		for _, i := range rowsByRun[runID] {
			report.Rows[i].Outcome = OutcomePublished
		}
		report.Published += len(entries)
		c.opts.Metrics.RecordPublished(OutcomePublished, len(entries))
		c.logger.Info("results published", "run_id", runID, "count", len(entries))
	}
	return unresolved, nil
}

// pass holds the state of one publish: the resolver and the sections and
// cases created so far, so a cached listing never hides them.
type pass struct {
	c       *Collector
	r       *resolve.Resolver
	ensured map[string]int64
}

func (p *pass) ensure(key string, create func() (int64, error)) (int64, error) {
	if id, ok := p.ensured[key]; ok {
		return id, nil
	}
	id, err := create()
	if err != nil {
		return 0, err
	}
	p.ensured[key] = id
	return id, nil
}

func (p *pass) resolveRecord(ctx context.Context, rec Record) (trackersdk.ResultEntry, int64, error) {
	t := rec.Target
	caseRef := builder.Ref{ID: rec.CaseID, Name: rec.Case}
	var err error

	if rec.CreateSection && t.SectionID == resolve.NoID {
		key := fmt.Sprintf("section|%s|%d|%s|%d|%s", t.Project, t.ProjectID, t.Suite, t.SuiteID, t.Section)
		t.SectionID, err = p.ensure(key, func() (int64, error) {
			return builder.EnsureSection(ctx, p.r, p.c.svc, builder.Section(t.project(), t.Section).InSuite(t.suite()))
		})
		if err != nil {
			return trackersdk.ResultEntry{}, 0, err
		}
	}
	if rec.CreateTestCase && caseRef.ID == resolve.NoID {
		spec := builder.Case(t.project(), t.section(), rec.Case).InSuite(t.suite())
		if rec.Category != "" {
			spec = spec.WithType(builder.ByName(rec.Category))
		}
		key := fmt.Sprintf("case|%s|%d|%s|%d|%s|%d|%s", t.Project, t.ProjectID, t.Suite, t.SuiteID, t.Section, t.SectionID, rec.Case)
		caseRef.ID, err = p.ensure(key, func() (int64, error) { return builder.EnsureCase(ctx, p.r, p.c.svc, spec) })
		if err != nil {
			return trackersdk.ResultEntry{}, 0, err
		}
	}

	spec := builder.Result(t.project(), t.run(), caseRef, rec.Status).
		InSuite(t.suite()).
		InSection(t.section()).
		AssignedTo(builder.Ref{ID: rec.AssignedToID, Name: rec.AssignedTo})
	if rec.Comment != "" {
		spec = spec.WithComment(rec.Comment)
	}
	if rec.Version != "" {
		spec = spec.WithVersion(rec.Version)
	}
	if rec.Elapsed != "" {
		spec = spec.WithElapsed(rec.Elapsed)
	}
	if rec.Defects != "" {
		spec = spec.WithDefects(rec.Defects)
	}
	resolved, err := spec.Materialize(ctx, p.r)
	if err != nil {
		return trackersdk.ResultEntry{}, 0, err
	}
	entry, err := resolved.Entry()
	return entry, resolved.RunID, err
}
