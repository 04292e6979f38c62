package builder

import (
	"context"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

type ProjectSpec struct {
	id               int64
	name             string
	announcement     *string
	showAnnouncement *bool
	suiteMode        *trackersdk.SuiteMode
	skipLookup       bool
}

// Project starts a project spec identified by name.
func Project(name string) ProjectSpec { return ProjectSpec{name: name} }

func (s ProjectSpec) Name() string { return s.name }

func (s ProjectSpec) WithID(id int64) ProjectSpec { s.id = id; return s }

func (s ProjectSpec) WithAnnouncement(text string) ProjectSpec {
	s.announcement = ptr(text)
	return s
}

func (s ProjectSpec) WithShowAnnouncement(show bool) ProjectSpec {
	s.showAnnouncement = ptr(show)
	return s
}

func (s ProjectSpec) WithSuiteMode(mode trackersdk.SuiteMode) ProjectSpec {
	s.suiteMode = ptr(mode)
	return s
}

// Update controls whether Materialize looks the project up. With false only an
// explicit ID is carried over.
func (s ProjectSpec) Update(lookup bool) ProjectSpec { s.skipLookup = !lookup; return s }

// Payload is the add_project body. Unset optional fields are omitted.
func (s ProjectSpec) Payload() map[string]any {
	p := map[string]any{"name": s.name}
	put(p, "announcement", s.announcement)
	put(p, "show_announcement", s.showAnnouncement)
	put(p, "suite_mode", s.suiteMode)
	return p
}

func (s ProjectSpec) Materialize(ctx context.Context, l Lookup) (ResolvedProject, error) {
	out := ResolvedProject{Spec: s, ID: s.id}
	if s.skipLookup || out.ID != resolve.NoID {
		return out, nil
	}
	id, err := l.ResolveProject(ctx, s.name, false)
	if err != nil {
		return out, err
	}
	out.ID = id
	return out, nil
}

type ResolvedProject struct {
	Spec ProjectSpec
	ID   int64
}

func (r ResolvedProject) Exists() bool            { return r.ID != resolve.NoID }
func (r ResolvedProject) Payload() map[string]any { return r.Spec.Payload() }

func (r ResolvedProject) Add(ctx context.Context, w Writer) (trackersdk.Project, error) {
	return post[trackersdk.Project](ctx, w, trackersdk.AddProjectPath(), r.Payload())
}

func (r ResolvedProject) Delete(ctx context.Context, w Writer) error {
	return remove(ctx, w, "project", r.ID, trackersdk.DeleteProjectPath)
}
