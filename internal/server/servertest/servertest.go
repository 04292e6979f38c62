// Package servertest runs the fake tracker service on a throwaway sqlite
// workspace for tests.
package servertest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"testtracker/internal/db"
	"testtracker/internal/engine"
	"testtracker/internal/events"
	"testtracker/internal/migrate"
	"testtracker/internal/repo"
	"testtracker/internal/server"
	trackersdk "testtracker/sdk/go"
)

// Seeded administrator.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "secret"
)

type Options struct {
	// Workspace holds the database; a temporary directory when empty.
	Workspace string
	PageSize  int
	Logger    *slog.Logger
	Now       func() time.Time
}

type Server struct {
	// URL is the server root; BaseURL adds the API prefix.
	URL      string
	BaseURL  string
	Engine   engine.Engine
	Throttle *server.Throttle

	close func()
}

// Start serves a freshly migrated fake service.
func Start(opts Options) (*Server, error) {
	workspace := opts.Workspace
	cleanup := func() {}
	if workspace == "" {
		dir, err := os.MkdirTemp("", "testtracker-fake-")
		if err != nil {
			return nil, err
		}
		workspace = dir
		cleanup = func() { os.RemoveAll(dir) }
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		cleanup()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn)
	if opts.Now != nil {
		e.Now = opts.Now
		e.Events.Now = opts.Now
	}
	throttle := &server.Throttle{}
	handler, err := server.New(server.Config{Engine: e, PageSize: opts.PageSize, Throttle: throttle, Logger: opts.Logger})
	if err != nil {
		conn.Close()
		cleanup()
		return nil, fmt.Errorf("build handler: %w", err)
	}
	srv := httptest.NewServer(handler)
	return &Server{
		URL:      srv.URL,
		BaseURL:  srv.URL + server.DefaultBasePath,
		Engine:   e,
		Throttle: throttle,
		close: func() {
			srv.Close()
			conn.Close()
			cleanup()
		},
	}, nil
}

// New starts a server for t and stops it on cleanup.
func New(t testing.TB, opts ...Options) *Server {
	t.Helper()
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Workspace == "" {
		o.Workspace = t.TempDir()
	}
	s, err := Start(o)
	if err != nil {
		t.Fatalf("start fake service: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Close() { s.close() }

// Client returns an SDK client logged in as the seeded administrator with
// no wait between rate-limited attempts.
func (s *Server) Client(opts ...trackersdk.Options) *trackersdk.Client {
	var o trackersdk.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	o.BaseURL = s.BaseURL
	if o.Username == "" {
		o.Username, o.Password = AdminEmail, AdminPassword
	}
	if o.RetryCount == 0 {
		o.RetryCount = trackersdk.DefaultRetryCount
	}
	return trackersdk.New(o)
}

// Calls counts API calls served for an endpoint name such as "add_results",
// including rejected ones.
func (s *Server) Calls(ctx context.Context, endpoint string) (int, error) {
	return s.Engine.Repo.CountEvents(ctx, repo.EventFilters{Type: events.APICall, Endpoint: endpoint})
}

// Seed describes a project to create: one section holding Cases, plus a run
// over all of them when Run is set.
type Seed struct {
	Project   string
	SuiteMode int
	Suite     string
	Section   string
	Cases     []string
	Run       string
	Users     []SeedUser
}

type SeedUser struct {
	Name, Email, Password string
}

// Fixture holds the IDs a Seed produced; CaseIDs follow Seed.Cases order.
type Fixture struct {
	ProjectID int64
	SuiteID   int64
	SectionID int64
	CaseIDs   []int64
	RunID     int64
	UserIDs   []int64
}

func (s *Server) Seed(ctx context.Context, seed Seed) (Fixture, error) {
	var f Fixture
	e := s.Engine
	p, err := e.AddProject(ctx, engine.ProjectOptions{Name: seed.Project, SuiteMode: seed.SuiteMode, ActorID: 1})
	if err != nil {
		return f, fmt.Errorf("seed project: %w", err)
	}
	f.ProjectID = p.ID
	if seed.Suite != "" {
		st, err := e.AddSuite(ctx, engine.SuiteOptions{ProjectID: p.ID, Name: seed.Suite, ActorID: 1})
		if err != nil {
			return f, fmt.Errorf("seed suite: %w", err)
		}
		f.SuiteID = st.ID
	} else {
		st, err := e.Repo.MasterSuite(ctx, nil, p.ID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return f, err
		}
		f.SuiteID = st.ID
	}
	if seed.Section != "" {
		sec, err := e.AddSection(ctx, engine.SectionOptions{ProjectID: p.ID, SuiteID: f.SuiteID, Name: seed.Section, ActorID: 1})
		if err != nil {
			return f, fmt.Errorf("seed section: %w", err)
		}
		f.SectionID = sec.ID
		for _, title := range seed.Cases {
			c, err := e.AddCase(ctx, engine.CaseOptions{SectionID: sec.ID, Title: title, ActorID: 1})
			if err != nil {
				return f, fmt.Errorf("seed case %s: %w", title, err)
			}
			f.CaseIDs = append(f.CaseIDs, c.ID)
		}
	}
	if seed.Run != "" {
		run, err := e.AddRun(ctx, engine.RunOptions{ProjectID: p.ID, SuiteID: f.SuiteID, Name: seed.Run, ActorID: 1})
		if err != nil {
			return f, fmt.Errorf("seed run: %w", err)
		}
		f.RunID = run.ID
	}
	for _, u := range seed.Users {
		user, err := e.Auth.AddUser(ctx, u.Name, u.Email, u.Password)
		if err != nil {
			return f, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		f.UserIDs = append(f.UserIDs, user.ID)
	}
	return f, nil
}
