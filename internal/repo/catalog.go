package repo

import (
	"context"
	"database/sql"
	"strings"

	"testtracker/internal/domain"
)

const milestoneCols = `id,project_id,parent_id,name,COALESCE(description,''),due_on,start_on,is_completed`

func scanMilestone(s scanner) (domain.Milestone, error) {
	var m domain.Milestone
	var parent, due, start sql.NullInt64
	if err := s.Scan(&m.ID, &m.ProjectID, &parent, &m.Name, &m.Description, &due, &start, &m.IsCompleted); err != nil {
		return m, err
	}
	m.ParentID, m.DueOn, m.StartOn = idPtr(parent), idPtr(due), idPtr(start)
	return m, nil
}

func (r Repo) InsertMilestone(ctx context.Context, tx *sql.Tx, m domain.Milestone) (int64, error) {
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO milestones(project_id,parent_id,name,description,due_on,start_on,is_completed) VALUES (?,?,?,?,?,?,?)`,
		m.ProjectID, nullableID(m.ParentID), m.Name, nullable(m.Description), nullableID(m.DueOn), nullableID(m.StartOn), m.IsCompleted))
}

func (r Repo) GetMilestone(ctx context.Context, tx *sql.Tx, id int64) (domain.Milestone, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+milestoneCols+` FROM milestones WHERE id=?`, id), scanMilestone)
}

func (r Repo) ListMilestones(ctx context.Context, projectID int64) ([]domain.Milestone, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+milestoneCols+` FROM milestones WHERE project_id=? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMilestone)
}

const suiteCols = `id,project_id,name,COALESCE(description,''),is_master`

func scanSuite(s scanner) (domain.Suite, error) {
	var st domain.Suite
	err := s.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Description, &st.IsMaster)
	return st, err
}

func (r Repo) InsertSuite(ctx context.Context, tx *sql.Tx, s domain.Suite) (int64, error) {
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO suites(project_id,name,description,is_master) VALUES (?,?,?,?)`,
		s.ProjectID, s.Name, nullable(s.Description), s.IsMaster))
}

func (r Repo) GetSuite(ctx context.Context, tx *sql.Tx, id int64) (domain.Suite, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+suiteCols+` FROM suites WHERE id=?`, id), scanSuite)
}

func (r Repo) ListSuites(ctx context.Context, tx *sql.Tx, projectID int64) ([]domain.Suite, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+suiteCols+` FROM suites WHERE project_id=? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSuite)
}

// MasterSuite returns the implicit suite of a single-suite project.
func (r Repo) MasterSuite(ctx context.Context, tx *sql.Tx, projectID int64) (domain.Suite, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+suiteCols+` FROM suites WHERE project_id=? ORDER BY is_master DESC, id LIMIT 1`, projectID), scanSuite)
}

const sectionCols = `s.id,s.suite_id,s.parent_id,s.name,COALESCE(s.description,''),s.depth`

func scanSection(s scanner) (domain.Section, error) {
	var sec domain.Section
	var parent sql.NullInt64
	if err := s.Scan(&sec.ID, &sec.SuiteID, &parent, &sec.Name, &sec.Description, &sec.Depth); err != nil {
		return sec, err
	}
	sec.ParentID = idPtr(parent)
	return sec, nil
}

func (r Repo) InsertSection(ctx context.Context, tx *sql.Tx, s domain.Section) (int64, error) {
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO sections(suite_id,parent_id,name,description,depth) VALUES (?,?,?,?,?)`,
		s.SuiteID, nullableID(s.ParentID), s.Name, nullable(s.Description), s.Depth))
}

func (r Repo) GetSection(ctx context.Context, tx *sql.Tx, id int64) (domain.Section, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+sectionCols+` FROM sections s WHERE s.id=?`, id), scanSection)
}

// ListSections returns the sections of a project, optionally limited to one suite.
func (r Repo) ListSections(ctx context.Context, projectID, suiteID int64) ([]domain.Section, error) {
	query := `SELECT ` + sectionCols + ` FROM sections s JOIN suites st ON st.id=s.suite_id WHERE st.project_id=?`
	args := []any{projectID}
	if suiteID != 0 {
		query += ` AND s.suite_id=?`
		args = append(args, suiteID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY s.id`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSection)
}

const caseCols = `c.id,c.section_id,c.suite_id,c.title,COALESCE(c.template_id,0),COALESCE(c.type_id,0),COALESCE(c.priority_id,0),c.milestone_id,COALESCE(c.estimate,''),COALESCE(c.refs,''),c.created_on`

func scanCase(s scanner) (domain.Case, error) {
	var c domain.Case
	var milestone sql.NullInt64
	if err := s.Scan(&c.ID, &c.SectionID, &c.SuiteID, &c.Title, &c.TemplateID, &c.TypeID, &c.PriorityID, &milestone, &c.Estimate, &c.Refs, &c.CreatedOn); err != nil {
		return c, err
	}
	c.MilestoneID = idPtr(milestone)
	return c, nil
}

func (r Repo) InsertCase(ctx context.Context, tx *sql.Tx, c domain.Case) (int64, error) {
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO cases(section_id,suite_id,title,template_id,type_id,priority_id,milestone_id,estimate,refs,created_on) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.SectionID, c.SuiteID, c.Title, nullableID(&c.TemplateID), nullableID(&c.TypeID), nullableID(&c.PriorityID), nullableID(c.MilestoneID),
		nullable(c.Estimate), nullable(c.Refs), c.CreatedOn))
}

func (r Repo) GetCase(ctx context.Context, tx *sql.Tx, id int64) (domain.Case, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+caseCols+` FROM cases c WHERE c.id=?`, id), scanCase)
}

type CaseFilters struct {
	ProjectID int64
	SuiteID   int64
	SectionID int64
}

func (r Repo) ListCases(ctx context.Context, tx *sql.Tx, f CaseFilters) ([]domain.Case, error) {
	clauses := []string{"st.project_id=?"}
	args := []any{f.ProjectID}
	if f.SuiteID != 0 {
		clauses = append(clauses, "c.suite_id=?")
		args = append(args, f.SuiteID)
	}
	if f.SectionID != 0 {
		clauses = append(clauses, "c.section_id=?")
		args = append(args, f.SectionID)
	}
	query := `SELECT ` + caseCols + ` FROM cases c JOIN suites st ON st.id=c.suite_id WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY c.id`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCase)
}

func scanCaseType(s scanner) (domain.CaseType, error) {
	var ct domain.CaseType
	err := s.Scan(&ct.ID, &ct.Name, &ct.IsDefault)
	return ct, err
}

func (r Repo) ListCaseTypes(ctx context.Context) ([]domain.CaseType, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,is_default FROM case_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCaseType)
}

func (r Repo) GetCaseType(ctx context.Context, tx *sql.Tx, id int64) (domain.CaseType, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT id,name,is_default FROM case_types WHERE id=?`, id), scanCaseType)
}

func (r Repo) DefaultCaseType(ctx context.Context, tx *sql.Tx) (domain.CaseType, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT id,name,is_default FROM case_types WHERE is_default=1 ORDER BY id LIMIT 1`), scanCaseType)
}
