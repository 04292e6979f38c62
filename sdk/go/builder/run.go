package builder

import (
	"context"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

type RunSpec struct {
	project     Ref
	suite       Ref
	milestone   Ref
	assignee    Ref
	id          int64
	name        string
	description *string
	includeAll  *bool
	caseIDs     []int64
	refs        *string
	skipLookup  bool
}

func Run(project Ref, name string) RunSpec { return RunSpec{project: project, name: name} }

func (s RunSpec) Name() string                     { return s.name }
func (s RunSpec) WithID(id int64) RunSpec          { s.id = id; return s }
func (s RunSpec) InSuite(suite Ref) RunSpec        { s.suite = suite; return s }
func (s RunSpec) WithMilestone(m Ref) RunSpec      { s.milestone = m; return s }
func (s RunSpec) AssignedTo(user Ref) RunSpec      { s.assignee = user; return s }
func (s RunSpec) WithDescription(d string) RunSpec { s.description = ptr(d); return s }
func (s RunSpec) WithIncludeAll(all bool) RunSpec  { s.includeAll = ptr(all); return s }
func (s RunSpec) WithRefs(refs string) RunSpec     { s.refs = ptr(refs); return s }
func (s RunSpec) Update(lookup bool) RunSpec       { s.skipLookup = !lookup; return s }

// WithCases restricts the run to the given cases and turns include_all off.
func (s RunSpec) WithCases(ids ...int64) RunSpec {
	s.caseIDs = append([]int64(nil), ids...)
	s.includeAll = ptr(false)
	return s
}

func (s RunSpec) Payload() map[string]any {
	p := map[string]any{"name": s.name}
	put(p, "description", s.description)
	putID(p, "suite_id", s.suite.ID)
	putID(p, "milestone_id", s.milestone.ID)
	putID(p, "assignedto_id", s.assignee.ID)
	put(p, "include_all", s.includeAll)
	if s.caseIDs != nil {
		p["case_ids"] = s.caseIDs
	}
	put(p, "refs", s.refs)
	return p
}

func (s RunSpec) Materialize(ctx context.Context, l Lookup) (ResolvedRun, error) {
	out := ResolvedRun{
		Spec:         s,
		ProjectID:    s.project.ID,
		SuiteID:      s.suite.ID,
		MilestoneID:  s.milestone.ID,
		AssignedToID: s.assignee.ID,
		ID:           s.id,
	}
	if s.skipLookup {
		return out, nil
	}
	var err error
	if out.ProjectID, err = s.project.project(ctx, l); err != nil {
		return out, err
	}
	if out.AssignedToID, err = s.assignee.resolve(func(name string) (int64, error) {
		return l.ResolveUser(ctx, name, true)
	}); err != nil {
		return out, err
	}
	if out.ProjectID == resolve.NoID {
		return out, nil
	}
	if out.SuiteID, err = s.suite.resolve(func(name string) (int64, error) {
		return l.ResolveSuite(ctx, out.ProjectID, name, true)
	}); err != nil {
		return out, err
	}
	if out.MilestoneID, err = s.milestone.resolve(func(name string) (int64, error) {
		return l.ResolveMilestone(ctx, out.ProjectID, name, true)
	}); err != nil {
		return out, err
	}
	if out.ID == resolve.NoID {
		out.ID, err = l.ResolveRun(ctx, out.ProjectID, s.name, false)
	}
	return out, err
}

type ResolvedRun struct {
	Spec         RunSpec
	ProjectID    int64
	SuiteID      int64
	MilestoneID  int64
	AssignedToID int64
	ID           int64
}

func (r ResolvedRun) Exists() bool { return r.ID != resolve.NoID }

func (r ResolvedRun) Payload() map[string]any {
	p := r.Spec.Payload()
	putID(p, "suite_id", r.SuiteID)
	putID(p, "milestone_id", r.MilestoneID)
	putID(p, "assignedto_id", r.AssignedToID)
	return p
}

func (r ResolvedRun) Add(ctx context.Context, w Writer) (trackersdk.Run, error) {
	if err := requireID("project", r.ProjectID); err != nil {
		return trackersdk.Run{}, err
	}
	return post[trackersdk.Run](ctx, w, trackersdk.AddRunPath(r.ProjectID), r.Payload())
}

func (r ResolvedRun) Delete(ctx context.Context, w Writer) error {
	return remove(ctx, w, "run", r.ID, trackersdk.DeleteRunPath)
}

// Close marks the run completed. Closed runs reject further results.
func (r ResolvedRun) Close(ctx context.Context, w Writer) (trackersdk.Run, error) {
	if err := requireID("run", r.ID); err != nil {
		return trackersdk.Run{}, err
	}
	return post[trackersdk.Run](ctx, w, trackersdk.CloseRunPath(r.ID), nil)
}

type PlanSpec struct {
	project     Ref
	milestone   Ref
	id          int64
	name        string
	description *string
	skipLookup  bool
}

func Plan(project Ref, name string) PlanSpec { return PlanSpec{project: project, name: name} }

func (s PlanSpec) Name() string                      { return s.name }
func (s PlanSpec) WithID(id int64) PlanSpec          { s.id = id; return s }
func (s PlanSpec) WithMilestone(m Ref) PlanSpec      { s.milestone = m; return s }
func (s PlanSpec) WithDescription(d string) PlanSpec { s.description = ptr(d); return s }
func (s PlanSpec) Update(lookup bool) PlanSpec       { s.skipLookup = !lookup; return s }

func (s PlanSpec) Payload() map[string]any {
	p := map[string]any{"name": s.name}
	put(p, "description", s.description)
	putID(p, "milestone_id", s.milestone.ID)
	return p
}

func (s PlanSpec) Materialize(ctx context.Context, l Lookup) (ResolvedPlan, error) {
	out := ResolvedPlan{Spec: s, ProjectID: s.project.ID, MilestoneID: s.milestone.ID, ID: s.id}
	if s.skipLookup {
		return out, nil
	}
	var err error
	if out.ProjectID, err = s.project.project(ctx, l); err != nil || out.ProjectID == resolve.NoID {
		return out, err
	}
	if out.MilestoneID, err = s.milestone.resolve(func(name string) (int64, error) {
		return l.ResolveMilestone(ctx, out.ProjectID, name, true)
	}); err != nil {
		return out, err
	}
	if out.ID == resolve.NoID {
		out.ID, err = l.ResolvePlan(ctx, out.ProjectID, s.name, false)
	}
	return out, err
}

type ResolvedPlan struct {
	Spec        PlanSpec
	ProjectID   int64
	MilestoneID int64
	ID          int64
}

func (r ResolvedPlan) Exists() bool { return r.ID != resolve.NoID }

func (r ResolvedPlan) Payload() map[string]any {
	p := r.Spec.Payload()
	putID(p, "milestone_id", r.MilestoneID)
	return p
}

func (r ResolvedPlan) Add(ctx context.Context, w Writer) (trackersdk.Plan, error) {
	if err := requireID("project", r.ProjectID); err != nil {
		return trackersdk.Plan{}, err
	}
	return post[trackersdk.Plan](ctx, w, trackersdk.AddPlanPath(r.ProjectID), r.Payload())
}

func (r ResolvedPlan) Delete(ctx context.Context, w Writer) error {
	return remove(ctx, w, "plan", r.ID, trackersdk.DeletePlanPath)
}
