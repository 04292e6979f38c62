// Package resolve maps human-readable entity names to service IDs.
//
// Every lookup lists the sibling entities in scope and filters them by exact
// name on the client. A name must match at most one entity: zero matches is
// an error only when the caller asks for it, more than one always is.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	trackersdk "testtracker/sdk/go"
)

// NoID is returned for a lookup that found nothing and was not required to.
const NoID int64 = 0

// Source lists entities. *trackersdk.Client satisfies it.
type Source interface {
	Projects(ctx context.Context) ([]trackersdk.Project, error)
	Project(ctx context.Context, id int64) (trackersdk.Project, error)
	Milestones(ctx context.Context, projectID int64) ([]trackersdk.Milestone, error)
	Suites(ctx context.Context, projectID int64) ([]trackersdk.Suite, error)
	Sections(ctx context.Context, projectID, suiteID int64) ([]trackersdk.Section, error)
	Cases(ctx context.Context, projectID, suiteID, sectionID int64) ([]trackersdk.Case, error)
	CaseTypes(ctx context.Context) ([]trackersdk.CaseType, error)
	Runs(ctx context.Context, projectID int64) ([]trackersdk.Run, error)
	Plans(ctx context.Context, projectID int64) ([]trackersdk.Plan, error)
	Users(ctx context.Context) ([]trackersdk.User, error)
	UserByEmail(ctx context.Context, email string) (trackersdk.User, error)
}

var _ Source = (*trackersdk.Client)(nil)

// LookupError describes a failed name resolution.
type LookupError struct {
	Kind    string
	Name    string
	Scope   string
	Matches int
	Err     error
}

func (e *LookupError) Error() string {
	where := ""
	if e.Scope != "" {
		where = " in " + e.Scope
	}
	if e.Matches > 1 {
		return fmt.Sprintf("%s %q%s: %v (%d matches)", e.Kind, e.Name, where, e.Err, e.Matches)
	}
	return fmt.Sprintf("%s %q%s: %v", e.Kind, e.Name, where, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// unique applies the uniqueness rule to the entities matching name.
func unique[T any](kind, scope, name string, matches []T, id func(T) int64, failOnNotFound bool) (int64, error) {
	switch {
	case len(matches) > 1:
		return NoID, &LookupError{Kind: kind, Name: name, Scope: scope, Matches: len(matches), Err: trackersdk.ErrNotUnique}
	case len(matches) == 1:
		return id(matches[0]), nil
	case failOnNotFound:
		return NoID, &LookupError{Kind: kind, Name: name, Scope: scope, Err: trackersdk.ErrNotFound}
	default:
		return NoID, nil
	}
}

func filter[T any](items []T, match func(T) bool) []T {
	var out []T
	for _, item := range items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out
}

// Resolver runs name lookups against a Source. It keeps no state between
// calls; wrap the Source with NewCachingSource to memoize listings.
type Resolver struct {
	src    Source
	logger *slog.Logger
}

func New(src Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{src: src, logger: logger}
}

// Source returns the underlying source.
func (r *Resolver) Source() Source { return r.src }

func (r *Resolver) resolved(kind, name, scope string, id int64) {
	r.logger.Debug("resolved", "kind", kind, "name", name, "scope", scope, "id", id)
}

func projectScope(projectID int64) string { return fmt.Sprintf("project %d", projectID) }
