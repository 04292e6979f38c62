// Package builder assembles entity payloads and resolves the names they
// reference into service IDs.
//
// A spec is an immutable value: every With method returns a modified copy.
// Materialize runs the lookups a spec needs through an injected Lookup and
// returns a resolved value that can be sent to the service. Nothing is
// cached; materializing twice queries twice.
package builder

import (
	"context"
	"errors"
	"fmt"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

// ErrUnresolved is returned when an operation needs an ID that did not resolve.
var ErrUnresolved = errors.New("not resolved")

// Lookup is the resolution surface builders depend on. *resolve.Resolver
// satisfies it.
type Lookup interface {
	ResolveProject(ctx context.Context, name string, failOnNotFound bool) (int64, error)
	ResolveMilestone(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error)
	ResolveSuite(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error)
	ResolveSection(ctx context.Context, projectID, suiteID int64, name string, failOnNotFound bool) (int64, error)
	ResolveRun(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error)
	ResolvePlan(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error)
	ResolveUser(ctx context.Context, nameOrEmail string, failOnNotFound bool) (int64, error)
	ResolveCaseType(ctx context.Context, name string, failOnNotFound bool) (int64, error)
	ResolvePath(ctx context.Context, p resolve.Path, f resolve.Flags) (resolve.IDs, error)
}

var _ Lookup = (*resolve.Resolver)(nil)

// Writer sends create and delete calls. *trackersdk.Client satisfies it.
type Writer interface {
	Post(ctx context.Context, endpoint string, body, out any) (int, error)
}

var _ Writer = (*trackersdk.Client)(nil)

// Ref points at an entity by ID or by name. A non-zero ID wins.
type Ref struct {
	ID   int64
	Name string
}

func ByID(id int64) Ref      { return Ref{ID: id} }
func ByName(name string) Ref { return Ref{Name: name} }
func (r Ref) IsZero() bool   { return r.ID == 0 && r.Name == "" }
func (r Ref) String() string {
	if r.ID != 0 {
		return fmt.Sprintf("#%d", r.ID)
	}
	return fmt.Sprintf("%q", r.Name)
}

// resolve returns the explicit ID or looks the name up. A zero Ref resolves
// to NoID without a call.
func (r Ref) resolve(lookup func(name string) (int64, error)) (int64, error) {
	if r.ID != 0 {
		return r.ID, nil
	}
	if r.Name == "" {
		return resolve.NoID, nil
	}
	return lookup(r.Name)
}

func (r Ref) project(ctx context.Context, l Lookup) (int64, error) {
	return r.resolve(func(name string) (int64, error) { return l.ResolveProject(ctx, name, true) })
}

// put copies an optional field into the payload when it was set.
func put[T any](p map[string]any, key string, v *T) {
	if v != nil {
		p[key] = *v
	}
}

func putID(p map[string]any, key string, id int64) {
	if id != 0 {
		p[key] = id
	}
}

func ptr[T any](v T) *T { return &v }

func requireID(kind string, id int64) error {
	if id == 0 {
		return fmt.Errorf("%s id: %w", kind, ErrUnresolved)
	}
	return nil
}

func post[T any](ctx context.Context, w Writer, endpoint string, body any) (T, error) {
	var out T
	_, err := w.Post(ctx, endpoint, body, &out)
	return out, err
}

func remove(ctx context.Context, w Writer, kind string, id int64, endpoint func(int64) string) error {
	if err := requireID(kind, id); err != nil {
		return err
	}
	_, err := w.Post(ctx, endpoint(id), nil, nil)
	return err
}
