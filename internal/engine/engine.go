package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"testtracker/internal/domain"
	"testtracker/internal/engine/auth"
	"testtracker/internal/events"
	"testtracker/internal/repo"
)

// MasterSuiteName is the suite created with every single-suite project.
const MasterSuiteName = "Master"

// FieldError is a request the service rejects because of one field.
type FieldError struct {
	Field string
	Msg   string
}

func (e FieldError) Error() string { return fmt.Sprintf("Field :%s %s", e.Field, e.Msg) }

func required(field string) FieldError { return FieldError{Field: field, Msg: "is a required field."} }

// ErrRunCompleted rejects changes to a closed run.
var ErrRunCompleted = errors.New("the test run is completed and cannot be modified")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Auth:   auth.Service{Repo: r},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) epoch() int64 { return e.now().UTC().Unix() }

// write runs fn in a transaction and commits when it succeeds.
func (e Engine) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// invalid maps a missing referenced row to the field error the service reports.
func invalid(err error, field, msg string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return FieldError{Field: field, Msg: msg}
	}
	return err
}

func (e Engine) project(ctx context.Context, tx *sql.Tx, id int64) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, tx, id)
	if err != nil {
		return p, invalid(err, "project_id", "is not a valid or accessible project.")
	}
	return p, nil
}

func (e Engine) milestoneIn(ctx context.Context, tx *sql.Tx, projectID int64, id *int64, field string) error {
	if id == nil || *id == 0 {
		return nil
	}
	m, err := e.Repo.GetMilestone(ctx, tx, *id)
	if err != nil {
		return invalid(err, field, "is not a valid milestone.")
	}
	if m.ProjectID != projectID {
		return FieldError{Field: field, Msg: "is not a valid milestone."}
	}
	return nil
}

func (e Engine) userRef(ctx context.Context, tx *sql.Tx, id *int64) error {
	if id == nil || *id == 0 {
		return nil
	}
	if _, err := e.Repo.GetUser(ctx, tx, *id); err != nil {
		return invalid(err, "assignedto_id", "is not a valid user.")
	}
	return nil
}

type ProjectOptions struct {
	Name             string
	Announcement     string
	ShowAnnouncement bool
	SuiteMode        int
	ActorID          int64
}

// AddProject creates a project. Single-suite projects get their master suite
// in the same transaction.
func (e Engine) AddProject(ctx context.Context, opts ProjectOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Project{}, required("name")
	}
	if opts.SuiteMode == 0 {
		opts.SuiteMode = domain.SuiteModeSingle
	}
	if opts.SuiteMode < domain.SuiteModeSingle || opts.SuiteMode > domain.SuiteModeMultiple {
		return domain.Project{}, FieldError{Field: "suite_mode", Msg: "is not a valid suite mode."}
	}
	p := domain.Project{
		Name:             opts.Name,
		Announcement:     opts.Announcement,
		ShowAnnouncement: opts.ShowAnnouncement,
		SuiteMode:        opts.SuiteMode,
		CreatedOn:        e.epoch(),
	}
	err := e.write(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertProject(ctx, tx, p)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		p.ID = id
		if p.SingleSuite() {
			if _, err := e.Repo.InsertSuite(ctx, tx, domain.Suite{ProjectID: id, Name: MasterSuiteName, IsMaster: true}); err != nil {
				return fmt.Errorf("insert master suite: %w", err)
			}
		}
		return e.Events.Append(ctx, tx, "project.added", id, "project", id, opts.ActorID, events.EventPayload{"name": p.Name, "suite_mode": p.SuiteMode})
	})
	return p, err
}

type MilestoneOptions struct {
	ProjectID   int64
	ParentID    *int64
	Name        string
	Description string
	DueOn       *int64
	StartOn     *int64
	ActorID     int64
}

func (e Engine) AddMilestone(ctx context.Context, opts MilestoneOptions) (domain.Milestone, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Milestone{}, required("name")
	}
	m := domain.Milestone{
		ProjectID:   opts.ProjectID,
		ParentID:    opts.ParentID,
		Name:        opts.Name,
		Description: opts.Description,
		DueOn:       opts.DueOn,
		StartOn:     opts.StartOn,
	}
	err := e.write(ctx, func(tx *sql.Tx) error {
		if _, err := e.project(ctx, tx, opts.ProjectID); err != nil {
			return err
		}
		if err := e.milestoneIn(ctx, tx, opts.ProjectID, opts.ParentID, "parent_id"); err != nil {
			return err
		}
		id, err := e.Repo.InsertMilestone(ctx, tx, m)
		if err != nil {
			return fmt.Errorf("insert milestone: %w", err)
		}
		m.ID = id
		return e.Events.Append(ctx, tx, "milestone.added", m.ProjectID, "milestone", id, opts.ActorID, events.EventPayload{"name": m.Name})
	})
	return m, err
}

type SuiteOptions struct {
	ProjectID   int64
	Name        string
	Description string
	ActorID     int64
}

// AddSuite creates a suite. Single-suite projects already own theirs.
func (e Engine) AddSuite(ctx context.Context, opts SuiteOptions) (domain.Suite, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Suite{}, required("name")
	}
	s := domain.Suite{ProjectID: opts.ProjectID, Name: opts.Name, Description: opts.Description}
	err := e.write(ctx, func(tx *sql.Tx) error {
		p, err := e.project(ctx, tx, opts.ProjectID)
		if err != nil {
			return err
		}
		if p.SuiteMode == domain.SuiteModeSingle {
			return FieldError{Field: "project_id", Msg: "does not support multiple test suites."}
		}
		id, err := e.Repo.InsertSuite(ctx, tx, s)
		if err != nil {
			return fmt.Errorf("insert suite: %w", err)
		}
		s.ID = id
		return e.Events.Append(ctx, tx, "suite.added", s.ProjectID, "suite", id, opts.ActorID, events.EventPayload{"name": s.Name})
	})
	return s, err
}

// suiteFor picks the suite an entity of project p belongs to. suiteID is
// mandatory for multi-suite projects and defaults to the master suite otherwise.
func (e Engine) suiteFor(ctx context.Context, tx *sql.Tx, p domain.Project, suiteID int64) (domain.Suite, error) {
	if suiteID == 0 {
		if !p.SingleSuite() {
			return domain.Suite{}, required("suite_id")
		}
		s, err := e.Repo.MasterSuite(ctx, tx, p.ID)
		if err != nil {
			return s, invalid(err, "suite_id", "is not a valid test suite.")
		}
		return s, nil
	}
	s, err := e.Repo.GetSuite(ctx, tx, suiteID)
	if err != nil {
		return s, invalid(err, "suite_id", "is not a valid test suite.")
	}
	if s.ProjectID != p.ID {
		return s, FieldError{Field: "suite_id", Msg: "is not a valid test suite."}
	}
	return s, nil
}

type SectionOptions struct {
	ProjectID   int64
	SuiteID     int64
	ParentID    *int64
	Name        string
	Description string
	ActorID     int64
}

func (e Engine) AddSection(ctx context.Context, opts SectionOptions) (domain.Section, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Section{}, required("name")
	}
	sec := domain.Section{ParentID: opts.ParentID, Name: opts.Name, Description: opts.Description}
	err := e.write(ctx, func(tx *sql.Tx) error {
		p, err := e.project(ctx, tx, opts.ProjectID)
		if err != nil {
			return err
		}
		suite, err := e.suiteFor(ctx, tx, p, opts.SuiteID)
		if err != nil {
			return err
		}
		sec.SuiteID = suite.ID
		if opts.ParentID != nil && *opts.ParentID != 0 {
			parent, err := e.Repo.GetSection(ctx, tx, *opts.ParentID)
			if err != nil {
				return invalid(err, "parent_id", "is not a valid section.")
			}
			if parent.SuiteID != suite.ID {
				return FieldError{Field: "parent_id", Msg: "is not a valid section."}
			}
			sec.Depth = parent.Depth + 1
		}
		id, err := e.Repo.InsertSection(ctx, tx, sec)
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
		sec.ID = id
		return e.Events.Append(ctx, tx, "section.added", p.ID, "section", id, opts.ActorID, events.EventPayload{"name": sec.Name, "suite_id": sec.SuiteID})
	})
	return sec, err
}

type CaseOptions struct {
	SectionID   int64
	Title       string
	TemplateID  int64
	TypeID      int64
	PriorityID  int64
	MilestoneID *int64
	Estimate    string
	Refs        string
	ActorID     int64
}

// AddCase creates a case in a section. The type defaults to the service's
// default case type.
func (e Engine) AddCase(ctx context.Context, opts CaseOptions) (domain.Case, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Case{}, required("title")
	}
	c := domain.Case{
		SectionID:   opts.SectionID,
		Title:       opts.Title,
		TemplateID:  opts.TemplateID,
		TypeID:      opts.TypeID,
		PriorityID:  opts.PriorityID,
		MilestoneID: opts.MilestoneID,
		Estimate:    opts.Estimate,
		Refs:        opts.Refs,
		CreatedOn:   e.epoch(),
	}
	err := e.write(ctx, func(tx *sql.Tx) error {
		sec, err := e.Repo.GetSection(ctx, tx, opts.SectionID)
		if err != nil {
			return invalid(err, "section_id", "is not a valid section.")
		}
		suite, err := e.Repo.GetSuite(ctx, tx, sec.SuiteID)
		if err != nil {
			return err
		}
		c.SuiteID = suite.ID
		if c.TypeID == 0 {
			def, err := e.Repo.DefaultCaseType(ctx, tx)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			c.TypeID = def.ID
		} else if _, err := e.Repo.GetCaseType(ctx, tx, c.TypeID); err != nil {
			return invalid(err, "type_id", "is not a valid case type.")
		}
		if err := e.milestoneIn(ctx, tx, suite.ProjectID, c.MilestoneID, "milestone_id"); err != nil {
			return err
		}
		id, err := e.Repo.InsertCase(ctx, tx, c)
		if err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		c.ID = id
		return e.Events.Append(ctx, tx, "case.added", suite.ProjectID, "case", id, opts.ActorID, events.EventPayload{"title": c.Title, "section_id": c.SectionID})
	})
	return c, err
}

type PlanOptions struct {
	ProjectID   int64
	MilestoneID *int64
	Name        string
	Description string
	ActorID     int64
}

func (e Engine) AddPlan(ctx context.Context, opts PlanOptions) (domain.Plan, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Plan{}, required("name")
	}
	p := domain.Plan{
		ProjectID:   opts.ProjectID,
		MilestoneID: opts.MilestoneID,
		Name:        opts.Name,
		Description: opts.Description,
		CreatedOn:   e.epoch(),
	}
	err := e.write(ctx, func(tx *sql.Tx) error {
		if _, err := e.project(ctx, tx, opts.ProjectID); err != nil {
			return err
		}
		if err := e.milestoneIn(ctx, tx, opts.ProjectID, opts.MilestoneID, "milestone_id"); err != nil {
			return err
		}
		id, err := e.Repo.InsertPlan(ctx, tx, p)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		p.ID = id
		return e.Events.Append(ctx, tx, "plan.added", p.ProjectID, "plan", id, opts.ActorID, events.EventPayload{"name": p.Name})
	})
	return p, err
}

// Delete removes an entity and everything scoped under it.
func (e Engine) Delete(ctx context.Context, kind string, id, actorID int64) error {
	table := kind + "s"
	return e.write(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.Delete(ctx, tx, table, id); err != nil {
			return invalid(err, kind+"_id", "is not a valid "+kind+".")
		}
		return e.Events.Append(ctx, tx, kind+".deleted", 0, kind, id, actorID, nil)
	})
}
