package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	trackersdk "testtracker/sdk/go"
)

func (r *Resolver) ListProjects(ctx context.Context) ([]trackersdk.Project, error) {
	return r.src.Projects(ctx)
}

func (r *Resolver) FindProjectsByName(ctx context.Context, name string) ([]trackersdk.Project, error) {
	items, err := r.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return filter(items, func(p trackersdk.Project) bool { return p.Name == name }), nil
}

func (r *Resolver) ResolveProject(ctx context.Context, name string, failOnNotFound bool) (int64, error) {
	matches, err := r.FindProjectsByName(ctx, name)
	if err != nil {
		return NoID, fmt.Errorf("list projects: %w", err)
	}
	id, err := unique("project", "", name, matches, func(p trackersdk.Project) int64 { return p.ID }, failOnNotFound)
	if err == nil {
		r.resolved("project", name, "", id)
	}
	return id, err
}

func (r *Resolver) ListMilestones(ctx context.Context, projectID int64) ([]trackersdk.Milestone, error) {
	return r.src.Milestones(ctx, projectID)
}

func (r *Resolver) FindMilestonesByName(ctx context.Context, projectID int64, name string) ([]trackersdk.Milestone, error) {
	items, err := r.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return filter(items, func(m trackersdk.Milestone) bool { return m.Name == name }), nil
}

func (r *Resolver) ResolveMilestone(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error) {
	matches, err := r.FindMilestonesByName(ctx, projectID, name)
	if err != nil {
		return NoID, fmt.Errorf("list milestones: %w", err)
	}
	scope := projectScope(projectID)
	id, err := unique("milestone", scope, name, matches, func(m trackersdk.Milestone) int64 { return m.ID }, failOnNotFound)
	if err == nil {
		r.resolved("milestone", name, scope, id)
	}
	return id, err
}

func (r *Resolver) ListSuites(ctx context.Context, projectID int64) ([]trackersdk.Suite, error) {
	return r.src.Suites(ctx, projectID)
}

func (r *Resolver) FindSuitesByName(ctx context.Context, projectID int64, name string) ([]trackersdk.Suite, error) {
	items, err := r.ListSuites(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return filter(items, func(s trackersdk.Suite) bool { return s.Name == name }), nil
}

func (r *Resolver) ResolveSuite(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error) {
	matches, err := r.FindSuitesByName(ctx, projectID, name)
	if err != nil {
		return NoID, fmt.Errorf("list suites: %w", err)
	}
	scope := projectScope(projectID)
	id, err := unique("suite", scope, name, matches, func(s trackersdk.Suite) int64 { return s.ID }, failOnNotFound)
	if err == nil {
		r.resolved("suite", name, scope, id)
	}
	return id, err
}

// DefaultSuite returns the implicit suite of a project that does not use
// multiple suites, or NoID when the project expects suites to be named.
func (r *Resolver) DefaultSuite(ctx context.Context, projectID int64) (int64, error) {
	project, err := r.src.Project(ctx, projectID)
	if err != nil {
		return NoID, fmt.Errorf("get project %d: %w", projectID, err)
	}
	if project.SuiteMode == trackersdk.SuiteModeMultiple {
		return NoID, nil
	}
	suites, err := r.ListSuites(ctx, projectID)
	if err != nil {
		return NoID, fmt.Errorf("list suites: %w", err)
	}
	if len(suites) != 1 {
		return NoID, nil
	}
	return suites[0].ID, nil
}

func (r *Resolver) ListSections(ctx context.Context, projectID, suiteID int64) ([]trackersdk.Section, error) {
	return r.src.Sections(ctx, projectID, suiteID)
}

func (r *Resolver) FindSectionsByName(ctx context.Context, projectID, suiteID int64, name string) ([]trackersdk.Section, error) {
	items, err := r.ListSections(ctx, projectID, suiteID)
	if err != nil {
		return nil, err
	}
	return filter(items, func(s trackersdk.Section) bool { return s.Name == name }), nil
}

func (r *Resolver) ResolveSection(ctx context.Context, projectID, suiteID int64, name string, failOnNotFound bool) (int64, error) {
	matches, err := r.FindSectionsByName(ctx, projectID, suiteID, name)
	if err != nil {
		return NoID, fmt.Errorf("list sections: %w", err)
	}
	scope := fmt.Sprintf("project %d suite %d", projectID, suiteID)
	id, err := unique("section", scope, name, matches, func(s trackersdk.Section) int64 { return s.ID }, failOnNotFound)
	if err == nil {
		r.resolved("section", name, scope, id)
	}
	return id, err
}

func (r *Resolver) ListCases(ctx context.Context, projectID, suiteID, sectionID int64) ([]trackersdk.Case, error) {
	return r.src.Cases(ctx, projectID, suiteID, sectionID)
}

func (r *Resolver) FindCasesByTitle(ctx context.Context, projectID, suiteID, sectionID int64, title string) ([]trackersdk.Case, error) {
	items, err := r.ListCases(ctx, projectID, suiteID, sectionID)
	if err != nil {
		return nil, err
	}
	// the service filters by section_id server-side, but older versions ignore it
	return filter(items, func(c trackersdk.Case) bool {
		return c.Title == title && (sectionID == 0 || c.SectionID == sectionID)
	}), nil
}

func (r *Resolver) ResolveCase(ctx context.Context, projectID, suiteID, sectionID int64, title string, failOnNotFound bool) (int64, error) {
	matches, err := r.FindCasesByTitle(ctx, projectID, suiteID, sectionID, title)
	if err != nil {
		return NoID, fmt.Errorf("list cases: %w", err)
	}
	scope := fmt.Sprintf("project %d suite %d section %d", projectID, suiteID, sectionID)
	id, err := unique("case", scope, title, matches, func(c trackersdk.Case) int64 { return c.ID }, failOnNotFound)
	if err == nil {
		r.resolved("case", title, scope, id)
	}
	return id, err
}

func (r *Resolver) ListRuns(ctx context.Context, projectID int64) ([]trackersdk.Run, error) {
	return r.src.Runs(ctx, projectID)
}

func (r *Resolver) FindRunsByName(ctx context.Context, projectID int64, name string) ([]trackersdk.Run, error) {
	items, err := r.ListRuns(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return filter(items, func(run trackersdk.Run) bool { return run.Name == name }), nil
}

func (r *Resolver) ResolveRun(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error) {
	matches, err := r.FindRunsByName(ctx, projectID, name)
	if err != nil {
		return NoID, fmt.Errorf("list runs: %w", err)
	}
	scope := projectScope(projectID)
	id, err := unique("run", scope, name, matches, func(run trackersdk.Run) int64 { return run.ID }, failOnNotFound)
	if err == nil {
		r.resolved("run", name, scope, id)
	}
	return id, err
}

func (r *Resolver) ListPlans(ctx context.Context, projectID int64) ([]trackersdk.Plan, error) {
	return r.src.Plans(ctx, projectID)
}

func (r *Resolver) FindPlansByName(ctx context.Context, projectID int64, name string) ([]trackersdk.Plan, error) {
	items, err := r.ListPlans(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return filter(items, func(p trackersdk.Plan) bool { return p.Name == name }), nil
}

func (r *Resolver) ResolvePlan(ctx context.Context, projectID int64, name string, failOnNotFound bool) (int64, error) {
	matches, err := r.FindPlansByName(ctx, projectID, name)
	if err != nil {
		return NoID, fmt.Errorf("list plans: %w", err)
	}
	scope := projectScope(projectID)
	id, err := unique("plan", scope, name, matches, func(p trackersdk.Plan) int64 { return p.ID }, failOnNotFound)
	if err == nil {
		r.resolved("plan", name, scope, id)
	}
	return id, err
}

func (r *Resolver) ListUsers(ctx context.Context) ([]trackersdk.User, error) {
	return r.src.Users(ctx)
}

func (r *Resolver) FindUsersByName(ctx context.Context, name string) ([]trackersdk.User, error) {
	items, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return filter(items, func(u trackersdk.User) bool { return u.Name == name }), nil
}

// ResolveUser accepts either a display name or an email address. Emails go
// through get_user_by_email, which is unique by construction.
func (r *Resolver) ResolveUser(ctx context.Context, nameOrEmail string, failOnNotFound bool) (int64, error) {
	if strings.Contains(nameOrEmail, "@") {
		user, err := r.src.UserByEmail(ctx, nameOrEmail)
		switch {
		case err == nil:
			r.resolved("user", nameOrEmail, "", user.ID)
			return user.ID, nil
		case errors.Is(err, trackersdk.ErrNotFound), trackersdk.IsStatus(err, 400):
			return unique("user", "", nameOrEmail, []trackersdk.User(nil), func(u trackersdk.User) int64 { return u.ID }, failOnNotFound)
		default:
			return NoID, fmt.Errorf("get user by email: %w", err)
		}
	}
	matches, err := r.FindUsersByName(ctx, nameOrEmail)
	if err != nil {
		return NoID, fmt.Errorf("list users: %w", err)
	}
	id, err := unique("user", "", nameOrEmail, matches, func(u trackersdk.User) int64 { return u.ID }, failOnNotFound)
	if err == nil {
		r.resolved("user", nameOrEmail, "", id)
	}
	return id, err
}

func (r *Resolver) ResolveCaseType(ctx context.Context, name string, failOnNotFound bool) (int64, error) {
	items, err := r.src.CaseTypes(ctx)
	if err != nil {
		return NoID, fmt.Errorf("list case types: %w", err)
	}
	matches := filter(items, func(t trackersdk.CaseType) bool { return t.Name == name })
	return unique("case type", "", name, matches, func(t trackersdk.CaseType) int64 { return t.ID }, failOnNotFound)
}
