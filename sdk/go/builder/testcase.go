package builder

import (
	"context"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

// CaseSpec describes a test case. Its name is the case title.
type CaseSpec struct {
	project    Ref
	suite      Ref
	section    Ref
	caseType   Ref
	milestone  Ref
	id         int64
	title      string
	templateID *int64
	priorityID *int64
	estimate   *string
	refs       *string
	skipLookup bool
}

func Case(project Ref, section Ref, title string) CaseSpec {
	return CaseSpec{project: project, section: section, title: title}
}

func (s CaseSpec) Title() string                  { return s.title }
func (s CaseSpec) WithID(id int64) CaseSpec       { s.id = id; return s }
func (s CaseSpec) InSuite(suite Ref) CaseSpec     { s.suite = suite; return s }
func (s CaseSpec) WithType(t Ref) CaseSpec        { s.caseType = t; return s }
func (s CaseSpec) WithMilestone(m Ref) CaseSpec   { s.milestone = m; return s }
func (s CaseSpec) WithTemplate(id int64) CaseSpec { s.templateID = ptr(id); return s }
func (s CaseSpec) WithPriority(id int64) CaseSpec { s.priorityID = ptr(id); return s }
func (s CaseSpec) WithEstimate(e string) CaseSpec { s.estimate = ptr(e); return s }
func (s CaseSpec) WithRefs(refs string) CaseSpec  { s.refs = ptr(refs); return s }
func (s CaseSpec) Update(lookup bool) CaseSpec    { s.skipLookup = !lookup; return s }

func (s CaseSpec) Payload() map[string]any {
	p := map[string]any{"title": s.title}
	put(p, "template_id", s.templateID)
	putID(p, "type_id", s.caseType.ID)
	put(p, "priority_id", s.priorityID)
	put(p, "estimate", s.estimate)
	putID(p, "milestone_id", s.milestone.ID)
	put(p, "refs", s.refs)
	return p
}

// Materialize resolves the section path strictly; the case itself may be
// missing. Type and milestone names must exist when given.
func (s CaseSpec) Materialize(ctx context.Context, l Lookup) (ResolvedCase, error) {
	out := ResolvedCase{
		Spec:        s,
		ProjectID:   s.project.ID,
		SuiteID:     s.suite.ID,
		SectionID:   s.section.ID,
		TypeID:      s.caseType.ID,
		MilestoneID: s.milestone.ID,
		ID:          s.id,
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
		CaseID:    s.id,
		Case:      s.title,
	}, resolve.Flags{Project: true, Suite: true, Section: true})
	if err != nil {
		return out, err
	}
	out.ProjectID, out.SuiteID, out.SectionID, out.ID = ids.ProjectID, ids.SuiteID, ids.SectionID, ids.CaseID
	if out.TypeID, err = s.caseType.resolve(func(name string) (int64, error) {
		return l.ResolveCaseType(ctx, name, true)
	}); err != nil {
		return out, err
	}
	if out.ProjectID == resolve.NoID {
		return out, nil
	}
	out.MilestoneID, err = s.milestone.resolve(func(name string) (int64, error) {
		return l.ResolveMilestone(ctx, out.ProjectID, name, true)
	})
	return out, err
}

// ResultReader reads recorded results. *trackersdk.Client satisfies it.
type ResultReader interface {
	ResultsForCase(ctx context.Context, runID, caseID int64) ([]trackersdk.Result, error)
}

type ResolvedCase struct {
	Spec        CaseSpec
	ProjectID   int64
	SuiteID     int64
	SectionID   int64
	TypeID      int64
	MilestoneID int64
	ID          int64
}

func (r ResolvedCase) Exists() bool { return r.ID != resolve.NoID }

func (r ResolvedCase) Payload() map[string]any {
	p := r.Spec.Payload()
	putID(p, "type_id", r.TypeID)
	putID(p, "milestone_id", r.MilestoneID)
	return p
}

func (r ResolvedCase) Add(ctx context.Context, w Writer) (trackersdk.Case, error) {
	if err := requireID("section", r.SectionID); err != nil {
		return trackersdk.Case{}, err
	}
	return post[trackersdk.Case](ctx, w, trackersdk.AddCasePath(r.SectionID), r.Payload())
}

func (r ResolvedCase) Delete(ctx context.Context, w Writer) error {
	return remove(ctx, w, "case", r.ID, trackersdk.DeleteCasePath)
}

// Results lists the results recorded for this case in a run.
func (r ResolvedCase) Results(ctx context.Context, c ResultReader, runID int64) ([]trackersdk.Result, error) {
	if err := requireID("case", r.ID); err != nil {
		return nil, err
	}
	if err := requireID("run", runID); err != nil {
		return nil, err
	}
	return c.ResultsForCase(ctx, runID, r.ID)
}
