package resolve

import (
	"context"
	"fmt"
	"sync"

	trackersdk "testtracker/sdk/go"
)

// CachingSource memoizes listings of an underlying Source. It is meant to
// live for one publish pass: entities created after a listing was cached are
// not seen. Errors are not cached.
type CachingSource struct {
	src Source

	mu      sync.Mutex
	entries map[string]any
}

var _ Source = (*CachingSource)(nil)

func NewCachingSource(src Source) *CachingSource {
	return &CachingSource{src: src, entries: map[string]any{}}
}

func cached[T any](c *CachingSource, key string, load func() (T, error)) (T, error) {
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return v.(T), nil
	}
	c.mu.Unlock()

	v, err := load()
	if err != nil {
		return v, err
	}
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return v, nil
}

func (c *CachingSource) Projects(ctx context.Context) ([]trackersdk.Project, error) {
	return cached(c, "projects", func() ([]trackersdk.Project, error) { return c.src.Projects(ctx) })
}

func (c *CachingSource) Project(ctx context.Context, id int64) (trackersdk.Project, error) {
	return cached(c, fmt.Sprintf("project/%d", id), func() (trackersdk.Project, error) { return c.src.Project(ctx, id) })
}

func (c *CachingSource) Milestones(ctx context.Context, projectID int64) ([]trackersdk.Milestone, error) {
	return cached(c, fmt.Sprintf("milestones/%d", projectID), func() ([]trackersdk.Milestone, error) {
		return c.src.Milestones(ctx, projectID)
	})
}

func (c *CachingSource) Suites(ctx context.Context, projectID int64) ([]trackersdk.Suite, error) {
	return cached(c, fmt.Sprintf("suites/%d", projectID), func() ([]trackersdk.Suite, error) {
		return c.src.Suites(ctx, projectID)
	})
}

func (c *CachingSource) Sections(ctx context.Context, projectID, suiteID int64) ([]trackersdk.Section, error) {
	return cached(c, fmt.Sprintf("sections/%d/%d", projectID, suiteID), func() ([]trackersdk.Section, error) {
		return c.src.Sections(ctx, projectID, suiteID)
	})
}

func (c *CachingSource) Cases(ctx context.Context, projectID, suiteID, sectionID int64) ([]trackersdk.Case, error) {
	return cached(c, fmt.Sprintf("cases/%d/%d/%d", projectID, suiteID, sectionID), func() ([]trackersdk.Case, error) {
		return c.src.Cases(ctx, projectID, suiteID, sectionID)
	})
}

func (c *CachingSource) CaseTypes(ctx context.Context) ([]trackersdk.CaseType, error) {
	return cached(c, "case_types", func() ([]trackersdk.CaseType, error) { return c.src.CaseTypes(ctx) })
}

func (c *CachingSource) Runs(ctx context.Context, projectID int64) ([]trackersdk.Run, error) {
	return cached(c, fmt.Sprintf("runs/%d", projectID), func() ([]trackersdk.Run, error) {
		return c.src.Runs(ctx, projectID)
	})
}

func (c *CachingSource) Plans(ctx context.Context, projectID int64) ([]trackersdk.Plan, error) {
	return cached(c, fmt.Sprintf("plans/%d", projectID), func() ([]trackersdk.Plan, error) {
		return c.src.Plans(ctx, projectID)
	})
}

func (c *CachingSource) Users(ctx context.Context) ([]trackersdk.User, error) {
	return cached(c, "users", func() ([]trackersdk.User, error) { return c.src.Users(ctx) })
}

func (c *CachingSource) UserByEmail(ctx context.Context, email string) (trackersdk.User, error) {
	return cached(c, "user/"+email, func() (trackersdk.User, error) { return c.src.UserByEmail(ctx, email) })
}
