package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"testtracker/internal/domain"
	"testtracker/internal/events"
)

type RunOptions struct {
	ProjectID    int64
	SuiteID      int64
	MilestoneID  *int64
	AssignedToID *int64
	Name         string
	Description  string
	// IncludeAll defaults to true when nil.
	IncludeAll *bool
	CaseIDs    []int64
	Refs       string
	ActorID    int64
}

// AddRun creates a run over a suite. Runs that do not include all cases
// must list case IDs from that suite.
func (e Engine) AddRun(ctx context.Context, opts RunOptions) (domain.Run, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Run{}, required("name")
	}
	run := domain.Run{
		ProjectID:    opts.ProjectID,
		MilestoneID:  opts.MilestoneID,
		AssignedToID: opts.AssignedToID,
		Name:         opts.Name,
		Description:  opts.Description,
		IncludeAll:   opts.IncludeAll == nil || *opts.IncludeAll,
		Refs:         opts.Refs,
		CreatedOn:    e.epoch(),
	}
	if !run.IncludeAll {
		run.CaseIDs = opts.CaseIDs
	}
	err := e.write(ctx, func(tx *sql.Tx) error {
		p, err := e.project(ctx, tx, opts.ProjectID)
		if err != nil {
			return err
		}
		suite, err := e.suiteFor(ctx, tx, p, opts.SuiteID)
		if err != nil {
			return err
		}
		run.SuiteID = suite.ID
		if err := e.milestoneIn(ctx, tx, p.ID, run.MilestoneID, "milestone_id"); err != nil {
			return err
		}
		if err := e.userRef(ctx, tx, run.AssignedToID); err != nil {
			return err
		}
		for _, caseID := range run.CaseIDs {
			c, err := e.Repo.GetCase(ctx, tx, caseID)
			if err != nil || c.SuiteID != suite.ID {
				return FieldError{Field: "case_ids", Msg: fmt.Sprintf("contains an invalid case ID (%d).", caseID)}
			}
		}
		id, err := e.Repo.InsertRun(ctx, tx, run)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		run.ID = id
		return e.Events.Append(ctx, tx, "run.added", p.ID, "run", id, opts.ActorID, events.EventPayload{
			"name":        run.Name,
			"suite_id":    run.SuiteID,
			"include_all": run.IncludeAll,
		})
	})
	return run, err
}

// CloseRun completes a run. Closing an already closed run is rejected.
func (e Engine) CloseRun(ctx context.Context, runID, actorID int64) (domain.Run, error) {
	var run domain.Run
	err := e.write(ctx, func(tx *sql.Tx) error {
		var err error
		run, err = e.openRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if err := e.Repo.CloseRun(ctx, tx, runID, e.epoch()); err != nil {
			return err
		}
		if run, err = e.Repo.GetRun(ctx, tx, runID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "run.closed", run.ProjectID, "run", runID, actorID, nil)
	})
	return run, err
}

func (e Engine) openRun(ctx context.Context, tx *sql.Tx, runID int64) (domain.Run, error) {
	run, err := e.Repo.GetRun(ctx, tx, runID)
	if err != nil {
		return run, invalid(err, "run_id", "is not a valid test run.")
	}
	if run.IsCompleted {
		return run, ErrRunCompleted
	}
	return run, nil
}

// ResultOptions is one result to record against a case of a run.
type ResultOptions struct {
	CaseID       int64
	StatusID     int
	Comment      string
	Version      string
	Elapsed      string
	Defects      string
	AssignedToID *int64
}

// AddResults records a batch against one run. The batch is stored
// atomically: one invalid entry rejects all of them.
func (e Engine) AddResults(ctx context.Context, runID, actorID int64, entries []ResultOptions) ([]domain.Result, error) {
	if len(entries) == 0 {
		return nil, FieldError{Field: "results", Msg: "cannot be empty."}
	}
	var out []domain.Result
	err := e.write(ctx, func(tx *sql.Tx) error {
		run, err := e.openRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		for i, entry := range entries {
			res, err := e.addResult(ctx, tx, run, actorID, entry)
			if err != nil {
				var fe FieldError
				if errors.As(err, &fe) && len(entries) > 1 {
					fe.Field = fmt.Sprintf("results[%d].%s", i, fe.Field)
					return fe
				}
				return err
			}
			out = append(out, res)
		}
		return e.Events.Append(ctx, tx, "results.added", run.ProjectID, "run", run.ID, actorID, events.EventPayload{"count": len(out)})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e Engine) addResult(ctx context.Context, tx *sql.Tx, run domain.Run, actorID int64, opts ResultOptions) (domain.Result, error) {
	if opts.CaseID == 0 {
		return domain.Result{}, required("case_id")
	}
	switch opts.StatusID {
	case domain.StatusPassed, domain.StatusBlocked, domain.StatusRetest, domain.StatusFailed:
	case 0:
		return domain.Result{}, required("status_id")
	default:
		return domain.Result{}, FieldError{Field: "status_id", Msg: "is not a valid status."}
	}
	c, err := e.Repo.GetCase(ctx, tx, opts.CaseID)
	if err != nil {
		return domain.Result{}, invalid(err, "case_id", "is not a valid test case.")
	}
	inRun := c.SuiteID == run.SuiteID
	if !run.IncludeAll {
		inRun = slices.Contains(run.CaseIDs, c.ID)
	}
	if !inRun {
		return domain.Result{}, FieldError{Field: "case_id", Msg: fmt.Sprintf("case %d is not part of run %d.", c.ID, run.ID)}
	}
	if err := e.userRef(ctx, tx, opts.AssignedToID); err != nil {
		return domain.Result{}, err
	}
	res := domain.Result{
		RunID:        run.ID,
		CaseID:       c.ID,
		StatusID:     opts.StatusID,
		Comment:      opts.Comment,
		Version:      opts.Version,
		Elapsed:      opts.Elapsed,
		Defects:      opts.Defects,
		AssignedToID: opts.AssignedToID,
		CreatedBy:    actorID,
		CreatedOn:    e.epoch(),
	}
	id, err := e.Repo.InsertResult(ctx, tx, res)
	if err != nil {
		return domain.Result{}, fmt.Errorf("insert result: %w", err)
	}
	res.ID = id
	return res, nil
}
