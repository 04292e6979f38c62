package builder

import (
	"context"
	"time"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

type MilestoneSpec struct {
	project     Ref
	parent      Ref
	id          int64
	name        string
	description *string
	dueOn       *int64
	startOn     *int64
	skipLookup  bool
}

func Milestone(project Ref, name string) MilestoneSpec {
	return MilestoneSpec{project: project, name: name}
}

func (s MilestoneSpec) Name() string                           { return s.name }
func (s MilestoneSpec) WithID(id int64) MilestoneSpec          { s.id = id; return s }
func (s MilestoneSpec) WithParent(parent Ref) MilestoneSpec    { s.parent = parent; return s }
func (s MilestoneSpec) Update(lookup bool) MilestoneSpec       { s.skipLookup = !lookup; return s }
func (s MilestoneSpec) WithDescription(d string) MilestoneSpec { s.description = ptr(d); return s }

// WithDueOn stores the date as epoch seconds, which is what the service expects.
func (s MilestoneSpec) WithDueOn(t time.Time) MilestoneSpec {
	s.dueOn = ptr(t.Unix())
	return s
}

func (s MilestoneSpec) WithStartOn(t time.Time) MilestoneSpec {
	s.startOn = ptr(t.Unix())
	return s
}

func (s MilestoneSpec) Payload() map[string]any {
	p := map[string]any{"name": s.name}
	put(p, "description", s.description)
	put(p, "due_on", s.dueOn)
	put(p, "start_on", s.startOn)
	putID(p, "parent_id", s.parent.ID)
	return p
}

func (s MilestoneSpec) Materialize(ctx context.Context, l Lookup) (ResolvedMilestone, error) {
	out := ResolvedMilestone{Spec: s, ProjectID: s.project.ID, ParentID: s.parent.ID, ID: s.id}
	if s.skipLookup {
		return out, nil
	}
	var err error
	if out.ProjectID, err = s.project.project(ctx, l); err != nil {
		return out, err
	}
	if out.ProjectID == resolve.NoID {
		return out, nil
	}
	if out.ParentID, err = s.parent.resolve(func(name string) (int64, error) {
		return l.ResolveMilestone(ctx, out.ProjectID, name, true)
	}); err != nil {
		return out, err
	}
	if out.ID == resolve.NoID {
		if out.ID, err = l.ResolveMilestone(ctx, out.ProjectID, s.name, false); err != nil {
			return out, err
		}
	}
	return out, nil
}

type ResolvedMilestone struct {
	Spec      MilestoneSpec
	ProjectID int64
	ParentID  int64
	ID        int64
}

func (r ResolvedMilestone) Exists() bool { return r.ID != resolve.NoID }

func (r ResolvedMilestone) Payload() map[string]any {
	p := r.Spec.Payload()
	putID(p, "parent_id", r.ParentID)
	return p
}

func (r ResolvedMilestone) Add(ctx context.Context, w Writer) (trackersdk.Milestone, error) {
	if err := requireID("project", r.ProjectID); err != nil {
		return trackersdk.Milestone{}, err
	}
	return post[trackersdk.Milestone](ctx, w, trackersdk.AddMilestonePath(r.ProjectID), r.Payload())
}

func (r ResolvedMilestone) Delete(ctx context.Context, w Writer) error {
	return remove(ctx, w, "milestone", r.ID, trackersdk.DeleteMilestonePath)
}
