package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	trackersdk "testtracker/sdk/go"
)

type addResultsCall struct {
	runID   int64
	entries []trackersdk.ResultEntry
}

// fakeService is an in-memory tracker. Every method counts as one call.
type fakeService struct {
	mu         sync.Mutex
	nextID     int64
	calls      int
	posts      []string
	addResults []addResultsCall
	addErr     error
	// runErrs fails add_results for single runs.
	runErrs map[int64]error

	projects   []trackersdk.Project
	milestones []trackersdk.Milestone
	suites     []trackersdk.Suite
	sections   []trackersdk.Section
	cases      []trackersdk.Case
	runs       []trackersdk.Run
	users      []trackersdk.User
	caseTypes  []trackersdk.CaseType
}

// newFakeService seeds project P (single suite "S") with section "Sec",
// cases TC1..TC3 and run "R".
func newFakeService() *fakeService {
	return &fakeService{
		nextID:    1000,
		projects:  []trackersdk.Project{{ID: 1, Name: "P", SuiteMode: trackersdk.SuiteModeSingle}},
		suites:    []trackersdk.Suite{{ID: 10, ProjectID: 1, Name: "S"}},
		sections:  []trackersdk.Section{{ID: 20, SuiteID: 10, Name: "Sec"}},
		cases:     []trackersdk.Case{{ID: 31, SuiteID: 10, SectionID: 20, Title: "TC1"}, {ID: 32, SuiteID: 10, SectionID: 20, Title: "TC2"}, {ID: 33, SuiteID: 10, SectionID: 20, Title: "TC3"}},
		runs:      []trackersdk.Run{{ID: 50, ProjectID: 1, SuiteID: 10, Name: "R"}},
		users:     []trackersdk.User{{ID: 7, Name: "Alice", Email: "alice@example.com"}},
		caseTypes: []trackersdk.CaseType{{ID: 3, Name: "Automated"}},
	}
}

func (f *fakeService) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeService) Projects(context.Context) ([]trackersdk.Project, error) {
	f.hit()
	return f.projects, nil
}

func (f *fakeService) Project(_ context.Context, id int64) (trackersdk.Project, error) {
	f.hit()
	for _, p := range f.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return trackersdk.Project{}, trackersdk.ErrNullResponse
}

func (f *fakeService) Milestones(_ context.Context, projectID int64) ([]trackersdk.Milestone, error) {
	f.hit()
	var out []trackersdk.Milestone
	for _, m := range f.milestones {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeService) Suites(_ context.Context, projectID int64) ([]trackersdk.Suite, error) {
	f.hit()
	var out []trackersdk.Suite
	for _, s := range f.suites {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeService) Sections(_ context.Context, _, suiteID int64) ([]trackersdk.Section, error) {
	f.hit()
	var out []trackersdk.Section
	for _, s := range f.sections {
		if suiteID == 0 || s.SuiteID == suiteID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeService) Cases(_ context.Context, _, suiteID, sectionID int64) ([]trackersdk.Case, error) {
	f.hit()
	var out []trackersdk.Case
	for _, c := range f.cases {
		if (suiteID == 0 || c.SuiteID == suiteID) && (sectionID == 0 || c.SectionID == sectionID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeService) CaseTypes(context.Context) ([]trackersdk.CaseType, error) {
	f.hit()
	return f.caseTypes, nil
}

func (f *fakeService) Runs(_ context.Context, projectID int64) ([]trackersdk.Run, error) {
	f.hit()
	var out []trackersdk.Run
	for _, r := range f.runs {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeService) Plans(context.Context, int64) ([]trackersdk.Plan, error) {
	f.hit()
	return nil, nil
}

func (f *fakeService) Users(context.Context) ([]trackersdk.User, error) {
	f.hit()
	return f.users, nil
}

func (f *fakeService) UserByEmail(_ context.Context, email string) (trackersdk.User, error) {
	f.hit()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return trackersdk.User{}, trackersdk.ErrNullResponse
}

func (f *fakeService) AddResults(_ context.Context, runID int64, entries []trackersdk.ResultEntry) ([]trackersdk.Result, error) {
	f.hit()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addResults = append(f.addResults, addResultsCall{runID: runID, entries: entries})
	if f.addErr != nil {
		return nil, f.addErr
	}
	if err := f.runErrs[runID]; err != nil {
		return nil, err
	}
	out := make([]trackersdk.Result, len(entries))
	for i, e := range entries {
		out[i] = trackersdk.Result{ID: int64(i + 1), RunID: runID, CaseID: e.CaseID, StatusID: e.StatusID}
	}
	return out, nil
}

// Post creates entities for the add_* endpoints builders use.
func (f *fakeService) Post(_ context.Context, endpoint string, body, out any) (int, error) {
	f.hit()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, endpoint)
	scope, _ := strconv.ParseInt(endpoint[strings.LastIndex(endpoint, "/")+1:], 10, 64)
	f.nextID++
	id := f.nextID

	var created any
	switch trackersdk.EndpointName(endpoint) {
	case "add_milestone":
		var m trackersdk.Milestone
		decodeInto(body, &m)
		m.ID, m.ProjectID = id, scope
		f.milestones = append(f.milestones, m)
		created = m
	case "add_suite":
		var s trackersdk.Suite
		decodeInto(body, &s)
		s.ID, s.ProjectID = id, scope
		f.suites = append(f.suites, s)
		created = s
	case "add_section":
		var s trackersdk.Section
		decodeInto(body, &s)
		s.ID = id
		if s.SuiteID == 0 {
			s.SuiteID = f.suites[0].ID
		}
		f.sections = append(f.sections, s)
		created = s
	case "add_case":
		var c trackersdk.Case
		decodeInto(body, &c)
		c.ID, c.SectionID = id, scope
		for _, s := range f.sections {
			if s.ID == scope {
				c.SuiteID = s.SuiteID
			}
		}
		f.cases = append(f.cases, c)
		created = c
	case "add_run":
		var r trackersdk.Run
		decodeInto(body, &r)
		r.ID, r.ProjectID = id, scope
		f.runs = append(f.runs, r)
		created = r
	default:
		return 400, fmt.Errorf("unexpected post %s", endpoint)
	}
	if out != nil {
		decodeInto(created, out)
	}
	return 200, nil
}

func (f *fakeService) postsTo(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.posts {
		if trackersdk.EndpointName(p) == name {
			n++
		}
	}
	return n
}

func decodeInto(in, out any) {
	data, _ := json.Marshal(in)
	_ = json.Unmarshal(data, out)
}
