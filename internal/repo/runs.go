package repo

import (
	"context"
	"database/sql"

	"testtracker/internal/domain"
)

const runCols = `id,project_id,COALESCE(suite_id,0),milestone_id,assignedto_id,name,COALESCE(description,''),include_all,is_completed,completed_on,COALESCE(refs,''),created_on`

func scanRun(s scanner) (domain.Run, error) {
	var run domain.Run
	var milestone, assignee, completed sql.NullInt64
	if err := s.Scan(&run.ID, &run.ProjectID, &run.SuiteID, &milestone, &assignee, &run.Name, &run.Description,
		&run.IncludeAll, &run.IsCompleted, &completed, &run.Refs, &run.CreatedOn); err != nil {
		return run, err
	}
	run.MilestoneID, run.AssignedToID, run.CompletedOn = idPtr(milestone), idPtr(assignee), idPtr(completed)
	return run, nil
}

// InsertRun stores the run and, for runs that do not include all cases, its case selection.
func (r Repo) InsertRun(ctx context.Context, tx *sql.Tx, run domain.Run) (int64, error) {
	id, err := insertID(r.q(tx).ExecContext(ctx, `INSERT INTO runs(project_id,suite_id,milestone_id,assignedto_id,name,description,include_all,is_completed,refs,created_on) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ProjectID, nullableID(&run.SuiteID), nullableID(run.MilestoneID), nullableID(run.AssignedToID), run.Name,
		nullable(run.Description), run.IncludeAll, run.IsCompleted, nullable(run.Refs), run.CreatedOn))
	if err != nil {
		return 0, err
	}
	for _, caseID := range run.CaseIDs {
		if _, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO run_cases(run_id,case_id) VALUES (?,?)`, id, caseID); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r Repo) GetRun(ctx context.Context, tx *sql.Tx, id int64) (domain.Run, error) {
	run, err := one(r.q(tx).QueryRowContext(ctx, `SELECT `+runCols+` FROM runs WHERE id=?`, id), scanRun)
	if err != nil {
		return run, err
	}
	run.CaseIDs, err = r.runCaseIDs(ctx, tx, id)
	return run, err
}

func (r Repo) ListRuns(ctx context.Context, projectID int64) ([]domain.Run, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+runCols+` FROM runs WHERE project_id=? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRun)
}

func (r Repo) runCaseIDs(ctx context.Context, tx *sql.Tx, runID int64) ([]int64, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT case_id FROM run_cases WHERE run_id=? ORDER BY case_id`, runID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (int64, error) {
		var id int64
		err := s.Scan(&id)
		return id, err
	})
}

// CloseRun marks a run completed; closed runs are read-only.
func (r Repo) CloseRun(ctx context.Context, tx *sql.Tx, id, completedOn int64) error {
	return affected(r.q(tx).ExecContext(ctx, `UPDATE runs SET is_completed=1, completed_on=? WHERE id=?`, completedOn, id))
}

const planCols = `id,project_id,milestone_id,name,COALESCE(description,''),created_on`

func scanPlan(s scanner) (domain.Plan, error) {
	var p domain.Plan
	var milestone sql.NullInt64
	if err := s.Scan(&p.ID, &p.ProjectID, &milestone, &p.Name, &p.Description, &p.CreatedOn); err != nil {
		return p, err
	}
	p.MilestoneID = idPtr(milestone)
	return p, nil
}

func (r Repo) InsertPlan(ctx context.Context, tx *sql.Tx, p domain.Plan) (int64, error) {
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO plans(project_id,milestone_id,name,description,created_on) VALUES (?,?,?,?,?)`,
		p.ProjectID, nullableID(p.MilestoneID), p.Name, nullable(p.Description), p.CreatedOn))
}

func (r Repo) GetPlan(ctx context.Context, tx *sql.Tx, id int64) (domain.Plan, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+planCols+` FROM plans WHERE id=?`, id), scanPlan)
}

func (r Repo) ListPlans(ctx context.Context, projectID int64) ([]domain.Plan, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+planCols+` FROM plans WHERE project_id=? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPlan)
}

const resultCols = `id,run_id,case_id,status_id,COALESCE(comment,''),COALESCE(version,''),COALESCE(elapsed,''),COALESCE(defects,''),assignedto_id,created_by,created_on`

func scanResult(s scanner) (domain.Result, error) {
	var res domain.Result
	var assignee sql.NullInt64
	if err := s.Scan(&res.ID, &res.RunID, &res.CaseID, &res.StatusID, &res.Comment, &res.Version, &res.Elapsed,
		&res.Defects, &assignee, &res.CreatedBy, &res.CreatedOn); err != nil {
		return res, err
	}
	res.AssignedToID = idPtr(assignee)
	return res, nil
}

func (r Repo) InsertResult(ctx context.Context, tx *sql.Tx, res domain.Result) (int64, error) {
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO results(run_id,case_id,status_id,comment,version,elapsed,defects,assignedto_id,created_by,created_on) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		res.RunID, res.CaseID, res.StatusID, nullable(res.Comment), nullable(res.Version), nullable(res.Elapsed),
		nullable(res.Defects), nullableID(res.AssignedToID), res.CreatedBy, res.CreatedOn))
}

// ListResultsForCase returns results newest first, the way the service orders them.
func (r Repo) ListResultsForCase(ctx context.Context, runID, caseID int64) ([]domain.Result, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+resultCols+` FROM results WHERE run_id=? AND case_id=? ORDER BY id DESC`, runID, caseID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanResult)
}

// CountResults counts stored results of a run.
func (r Repo) CountResults(ctx context.Context, runID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE run_id=?`, runID).Scan(&n)
	return n, err
}
