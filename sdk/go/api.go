package trackersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// page is the envelope newer service versions wrap bulk listings in.
type page struct {
	Links struct {
		Next *string `json:"next"`
	} `json:"_links"`
}

// list reads every page of a listing. Both a bare JSON array and the
// paginated envelope keyed by key are accepted.
func list[T any](ctx context.Context, c *Client, endpoint, key string) ([]T, error) {
	var all []T
	for endpoint != "" {
		var raw json.RawMessage
		if _, err := c.Get(ctx, endpoint, &raw); err != nil {
			return nil, err
		}
		items, next, err := decodePage[T](raw, key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EndpointName(endpoint), err)
		}
		all = append(all, items...)
		endpoint = next
	}
	return all, nil
}

func decodePage[T any](raw json.RawMessage, key string) ([]T, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		return items, "", nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	var items []T
	if body, ok := envelope[key]; ok {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	}
	var p page
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	next := ""
	if p.Links.Next != nil {
		next = nextEndpoint(*p.Links.Next)
	}
	return items, next, nil
}

// nextEndpoint strips the API prefix from a pagination link such as
// /api/v2/get_cases/1&offset=250.
func nextEndpoint(link string) string {
	if i := strings.Index(link, "/api/v2/"); i >= 0 {
		return link[i+len("/api/v2/"):]
	}
	return strings.TrimLeft(link, "/")
}

func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	return list[Project](ctx, c, GetProjectsPath(), "projects")
}

func (c *Client) Project(ctx context.Context, id int64) (Project, error) {
	var resp Project
	_, err := c.Get(ctx, GetProjectPath(id), &resp)
	return resp, err
}

func (c *Client) Milestones(ctx context.Context, projectID int64) ([]Milestone, error) {
	return list[Milestone](ctx, c, GetMilestonesPath(projectID), "milestones")
}

func (c *Client) Suites(ctx context.Context, projectID int64) ([]Suite, error) {
	return list[Suite](ctx, c, GetSuitesPath(projectID), "suites")
}

func (c *Client) Sections(ctx context.Context, projectID, suiteID int64) ([]Section, error) {
	return list[Section](ctx, c, GetSectionsPath(projectID, suiteID), "sections")
}

func (c *Client) Cases(ctx context.Context, projectID, suiteID, sectionID int64) ([]Case, error) {
	return list[Case](ctx, c, GetCasesPath(projectID, suiteID, sectionID), "cases")
}

func (c *Client) CaseTypes(ctx context.Context) ([]CaseType, error) {
	return list[CaseType](ctx, c, GetCaseTypesPath(), "case_types")
}

func (c *Client) Runs(ctx context.Context, projectID int64) ([]Run, error) {
	return list[Run](ctx, c, GetRunsPath(projectID), "runs")
}

func (c *Client) Plans(ctx context.Context, projectID int64) ([]Plan, error) {
	return list[Plan](ctx, c, GetPlansPath(projectID), "plans")
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	return list[User](ctx, c, GetUsersPath(), "users")
}

// UserByEmail returns ErrNotFound (via ErrNullResponse) when the service
// answers with null.
func (c *Client) UserByEmail(ctx context.Context, email string) (User, error) {
	var resp User
	_, err := c.Get(ctx, GetUserByEmailPath(email), &resp)
	return resp, err
}

func (c *Client) ResultsForCase(ctx context.Context, runID, caseID int64) ([]Result, error) {
	return list[Result](ctx, c, GetResultsForCasePath(runID, caseID), "results")
}

// AddResults publishes a batch of results against one run in a single call.
func (c *Client) AddResults(ctx context.Context, runID int64, entries []ResultEntry) ([]Result, error) {
	var resp []Result
	_, err := c.Post(ctx, AddResultsPath(runID), entries, &resp)
	return resp, err
}

func (c *Client) AddResultForCase(ctx context.Context, runID, caseID int64, entry ResultEntry) (Result, error) {
	var resp Result
	_, err := c.Post(ctx, AddResultForCasePath(runID, caseID), entry, &resp)
	return resp, err
}

func (c *Client) CloseRun(ctx context.Context, runID int64) (Run, error) {
	var resp Run
	_, err := c.Post(ctx, CloseRunPath(runID), nil, &resp)
	return resp, err
}
