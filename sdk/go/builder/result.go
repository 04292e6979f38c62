package builder

import (
	"context"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

// ResultSpec is one outcome for a test case in a run. The case path and the
// run must both resolve before the result can be sent.
type ResultSpec struct {
	project    Ref
	suite      Ref
	section    Ref
	testCase   Ref
	run        Ref
	assignee   Ref
	status     trackersdk.Status
	comment    *string
	version    *string
	elapsed    *string
	defects    *string
	skipLookup bool
}

func Result(project Ref, run Ref, testCase Ref, status trackersdk.Status) ResultSpec {
	return ResultSpec{project: project, run: run, testCase: testCase, status: status}
}

func (s ResultSpec) Status() trackersdk.Status        { return s.status }
func (s ResultSpec) InSuite(suite Ref) ResultSpec     { s.suite = suite; return s }
func (s ResultSpec) InSection(section Ref) ResultSpec { s.section = section; return s }
func (s ResultSpec) AssignedTo(user Ref) ResultSpec   { s.assignee = user; return s }
func (s ResultSpec) WithComment(c string) ResultSpec  { s.comment = ptr(c); return s }
func (s ResultSpec) WithVersion(v string) ResultSpec  { s.version = ptr(v); return s }
func (s ResultSpec) WithElapsed(e string) ResultSpec  { s.elapsed = ptr(e); return s }
func (s ResultSpec) WithDefects(d string) ResultSpec  { s.defects = ptr(d); return s }
func (s ResultSpec) Update(lookup bool) ResultSpec    { s.skipLookup = !lookup; return s }

func (s ResultSpec) Payload() map[string]any {
	p := map[string]any{"status_id": s.status}
	putID(p, "case_id", s.testCase.ID)
	put(p, "comment", s.comment)
	put(p, "version", s.version)
	put(p, "elapsed", s.elapsed)
	put(p, "defects", s.defects)
	putID(p, "assignedto_id", s.assignee.ID)
	return p
}

// Materialize resolves every level strictly: a result for an unknown case is
// an error, not a no-op.
func (s ResultSpec) Materialize(ctx context.Context, l Lookup) (ResolvedResult, error) {
	out := ResolvedResult{
		Spec:         s,
		ProjectID:    s.project.ID,
		RunID:        s.run.ID,
		CaseID:       s.testCase.ID,
		AssignedToID: s.assignee.ID,
	}
	if s.skipLookup {
		return out, nil
	}
	ids, err := l.ResolvePath(ctx, resolve.Path{
		ProjectID: s.project.ID,
		Project:   s.project.Name,
		SuiteID:   s.suite.ID,
		Suite:     s.suite.Name,
		SectionID: s.section.ID,
		Section:   s.section.Name,
		CaseID:    s.testCase.ID,
		Case:      s.testCase.Name,
	}, resolve.Strict)
	if err != nil {
		return out, err
	}
	out.ProjectID, out.CaseID = ids.ProjectID, ids.CaseID
	if out.AssignedToID, err = s.assignee.resolve(func(name string) (int64, error) {
		return l.ResolveUser(ctx, name, true)
	}); err != nil {
		return out, err
	}
	if out.ProjectID == resolve.NoID {
		return out, nil
	}
	out.RunID, err = s.run.resolve(func(name string) (int64, error) {
		return l.ResolveRun(ctx, out.ProjectID, name, true)
	})
	return out, err
}

type ResolvedResult struct {
	Spec         ResultSpec
	ProjectID    int64
	RunID        int64
	CaseID       int64
	AssignedToID int64
}

// Exists reports whether both the run and the case resolved.
func (r ResolvedResult) Exists() bool {
	return r.RunID != resolve.NoID && r.CaseID != resolve.NoID
}

func (r ResolvedResult) Payload() map[string]any {
	p := r.Spec.Payload()
	putID(p, "case_id", r.CaseID)
	putID(p, "assignedto_id", r.AssignedToID)
	return p
}

// Entry is the element this result contributes to a bulk add_results call.
func (r ResolvedResult) Entry() (trackersdk.ResultEntry, error) {
	if err := requireID("run", r.RunID); err != nil {
		return trackersdk.ResultEntry{}, err
	}
	if err := requireID("case", r.CaseID); err != nil {
		return trackersdk.ResultEntry{}, err
	}
	e := trackersdk.ResultEntry{CaseID: r.CaseID, StatusID: r.Spec.status}
	if r.Spec.comment != nil {
		e.Comment = *r.Spec.comment
	}
	if r.Spec.version != nil {
		e.Version = *r.Spec.version
	}
	if r.Spec.elapsed != nil {
		e.Elapsed = *r.Spec.elapsed
	}
	if r.Spec.defects != nil {
		e.Defects = *r.Spec.defects
	}
	if r.AssignedToID != resolve.NoID {
		e.AssignedToID = ptr(r.AssignedToID)
	}
	return e, nil
}

// Add sends this single result with add_result_for_case.
func (r ResolvedResult) Add(ctx context.Context, w Writer) (trackersdk.Result, error) {
	e, err := r.Entry()
	if err != nil {
		return trackersdk.Result{}, err
	}
	return post[trackersdk.Result](ctx, w, trackersdk.AddResultForCasePath(r.RunID, r.CaseID), e)
}
