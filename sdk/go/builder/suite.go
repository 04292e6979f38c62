package builder

import (
	"context"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

type SuiteSpec struct {
	project     Ref
	id          int64
	name        string
	description *string
	skipLookup  bool
}

func Suite(project Ref, name string) SuiteSpec { return SuiteSpec{project: project, name: name} }

func (s SuiteSpec) Name() string                       { return s.name }
func (s SuiteSpec) WithID(id int64) SuiteSpec          { s.id = id; return s }
func (s SuiteSpec) WithDescription(d string) SuiteSpec { s.description = ptr(d); return s }
func (s SuiteSpec) Update(lookup bool) SuiteSpec       { s.skipLookup = !lookup; return s }

func (s SuiteSpec) Payload() map[string]any {
	p := map[string]any{"name": s.name}
	put(p, "description", s.description)
	return p
}

func (s SuiteSpec) Materialize(ctx context.Context, l Lookup) (ResolvedSuite, error) {
	out := ResolvedSuite{Spec: s, ProjectID: s.project.ID, ID: s.id}
	if s.skipLookup {
		return out, nil
	}
	var err error
	if out.ProjectID, err = s.project.project(ctx, l); err != nil {
		return out, err
	}
	if out.ID == resolve.NoID && out.ProjectID != resolve.NoID {
		out.ID, err = l.ResolveSuite(ctx, out.ProjectID, s.name, false)
	}
	return out, err
}

type ResolvedSuite struct {
	Spec      SuiteSpec
	ProjectID int64
	ID        int64
}

func (r ResolvedSuite) Exists() bool            { return r.ID != resolve.NoID }
func (r ResolvedSuite) Payload() map[string]any { return r.Spec.Payload() }

func (r ResolvedSuite) Add(ctx context.Context, w Writer) (trackersdk.Suite, error) {
	if err := requireID("project", r.ProjectID); err != nil {
		return trackersdk.Suite{}, err
	}
	return post[trackersdk.Suite](ctx, w, trackersdk.AddSuitePath(r.ProjectID), r.Payload())
}

func (r ResolvedSuite) Delete(ctx context.Context, w Writer) error {
	return remove(ctx, w, "suite", r.ID, trackersdk.DeleteSuitePath)
}

// SectionSpec describes a section inside a suite. Without a suite the
// project's single suite is used when it has one.
type SectionSpec struct {
	project     Ref
	suite       Ref
	parent      Ref
	id          int64
	name        string
	description *string
	skipLookup  bool
}

func Section(project Ref, name string) SectionSpec { return SectionSpec{project: project, name: name} }

func (s SectionSpec) Name() string                         { return s.name }
func (s SectionSpec) WithID(id int64) SectionSpec          { s.id = id; return s }
func (s SectionSpec) InSuite(suite Ref) SectionSpec        { s.suite = suite; return s }
func (s SectionSpec) WithParent(parent Ref) SectionSpec    { s.parent = parent; return s }
func (s SectionSpec) WithDescription(d string) SectionSpec { s.description = ptr(d); return s }
func (s SectionSpec) Update(lookup bool) SectionSpec       { s.skipLookup = !lookup; return s }

func (s SectionSpec) Payload() map[string]any {
	p := map[string]any{"name": s.name}
	put(p, "description", s.description)
	putID(p, "suite_id", s.suite.ID)
	putID(p, "parent_id", s.parent.ID)
	return p
}

func (s SectionSpec) Materialize(ctx context.Context, l Lookup) (ResolvedSection, error) {
	out := ResolvedSection{Spec: s, ProjectID: s.project.ID, SuiteID: s.suite.ID, ParentID: s.parent.ID, ID: s.id}
	if s.skipLookup {
		return out, nil
	}
	ids, err := l.ResolvePath(ctx, resolve.Path{
		ProjectID: s.project.ID,
		Project:   s.project.Name,
		SuiteID:   s.suite.ID,
		Suite:     s.suite.Name,
		SectionID: s.id,
		Section:   s.name,
	}, resolve.Flags{Project: true, Suite: true})
	if err != nil {
		return out, err
	}
	out.ProjectID, out.SuiteID, out.ID = ids.ProjectID, ids.SuiteID, ids.SectionID
	if out.ProjectID == resolve.NoID {
		return out, nil
	}
	out.ParentID, err = s.parent.resolve(func(name string) (int64, error) {
		return l.ResolveSection(ctx, out.ProjectID, out.SuiteID, name, true)
	})
	return out, err
}

type ResolvedSection struct {
	Spec      SectionSpec
	ProjectID int64
	SuiteID   int64
	ParentID  int64
	ID        int64
}

func (r ResolvedSection) Exists() bool { return r.ID != resolve.NoID }

func (r ResolvedSection) Payload() map[string]any {
	p := r.Spec.Payload()
	putID(p, "suite_id", r.SuiteID)
	putID(p, "parent_id", r.ParentID)
	return p
}

func (r ResolvedSection) Add(ctx context.Context, w Writer) (trackersdk.Section, error) {
	if err := requireID("project", r.ProjectID); err != nil {
		return trackersdk.Section{}, err
	}
	return post[trackersdk.Section](ctx, w, trackersdk.AddSectionPath(r.ProjectID), r.Payload())
}

func (r ResolvedSection) Delete(ctx context.Context, w Writer) error {
	return remove(ctx, w, "section", r.ID, trackersdk.DeleteSectionPath)
}

// Cases lists the test cases directly in the section.
func (r ResolvedSection) Cases(ctx context.Context, src resolve.Source) ([]trackersdk.Case, error) {
	if err := requireID("section", r.ID); err != nil {
		return nil, err
	}
	return src.Cases(ctx, r.ProjectID, r.SuiteID, r.ID)
}
