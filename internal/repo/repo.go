package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"testtracker/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q runs on tx when one is open, else on the pool.
func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

type scanner interface {
	Scan(dest ...any) error
}

// collect scans every row with scan and closes rows.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var res []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

func one[T any](row *sql.Row, scan func(scanner) (T, error)) (T, error) {
	item, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

func insertID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// affected turns a zero-row update or delete into ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(v *int64) any {
	if v == nil || *v == 0 {
		return nil
	}
	return *v
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

const projectCols = `id,name,COALESCE(announcement,''),show_announcement,suite_mode,is_completed,created_on`

func scanProject(s scanner) (domain.Project, error) {
	var p domain.Project
	err := s.Scan(&p.ID, &p.Name, &p.Announcement, &p.ShowAnnouncement, &p.SuiteMode, &p.IsCompleted, &p.CreatedOn)
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) (int64, error) {
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO projects(name,announcement,show_announcement,suite_mode,is_completed,created_on) VALUES (?,?,?,?,?,?)`,
		p.Name, nullable(p.Announcement), p.ShowAnnouncement, p.SuiteMode, p.IsCompleted, p.CreatedOn))
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id int64) (domain.Project, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id), scanProject)
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

// Delete removes a row of one of the entity tables by id.
func (r Repo) Delete(ctx context.Context, tx *sql.Tx, table string, id int64) error {
	switch table {
	case "projects", "milestones", "suites", "sections", "cases", "runs", "plans":
	default:
		return fmt.Errorf("delete from %s: unsupported table", table)
	}
	return affected(r.q(tx).ExecContext(ctx, `DELETE FROM `+table+` WHERE id=?`, id))
}
