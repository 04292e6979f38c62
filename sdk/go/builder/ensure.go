package builder

import (
	"context"
	"fmt"

	trackersdk "testtracker/sdk/go"
)

// ensure returns the existing ID or creates the entity.
func ensure[E any](exists bool, id int64, add func() (E, error), idOf func(E) int64) (int64, error) {
	if exists {
		return id, nil
	}
	created, err := add()
	if err != nil {
		return 0, err
	}
	return idOf(created), nil
}

func EnsureMilestone(ctx context.Context, l Lookup, w Writer, spec MilestoneSpec) (int64, error) {
	m, err := spec.Materialize(ctx, l)
	if err != nil {
		return 0, fmt.Errorf("milestone %q: %w", spec.name, err)
	}
	return ensure(m.Exists(), m.ID, func() (trackersdk.Milestone, error) { return m.Add(ctx, w) },
		func(v trackersdk.Milestone) int64 { return v.ID })
}

func EnsureSuite(ctx context.Context, l Lookup, w Writer, spec SuiteSpec) (int64, error) {
	s, err := spec.Materialize(ctx, l)
	if err != nil {
		return 0, fmt.Errorf("suite %q: %w", spec.name, err)
	}
	return ensure(s.Exists(), s.ID, func() (trackersdk.Suite, error) { return s.Add(ctx, w) },
		func(v trackersdk.Suite) int64 { return v.ID })
}

func EnsureSection(ctx context.Context, l Lookup, w Writer, spec SectionSpec) (int64, error) {
	s, err := spec.Materialize(ctx, l)
	if err != nil {
		return 0, fmt.Errorf("section %q: %w", spec.name, err)
	}
	return ensure(s.Exists(), s.ID, func() (trackersdk.Section, error) { return s.Add(ctx, w) },
		func(v trackersdk.Section) int64 { return v.ID })
}

func EnsureCase(ctx context.Context, l Lookup, w Writer, spec CaseSpec) (int64, error) {
	c, err := spec.Materialize(ctx, l)
	if err != nil {
		return 0, fmt.Errorf("case %q: %w", spec.title, err)
	}
	return ensure(c.Exists(), c.ID, func() (trackersdk.Case, error) { return c.Add(ctx, w) },
		func(v trackersdk.Case) int64 { return v.ID })
}

// EnsureRun finds an open or closed run by name and creates it when missing.
func EnsureRun(ctx context.Context, l Lookup, w Writer, spec RunSpec) (int64, error) {
	r, err := spec.Materialize(ctx, l)
	if err != nil {
		return 0, fmt.Errorf("run %q: %w", spec.name, err)
	}
	return ensure(r.Exists(), r.ID, func() (trackersdk.Run, error) { return r.Add(ctx, w) },
		func(v trackersdk.Run) int64 { return v.ID })
}
