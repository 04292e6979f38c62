package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"testtracker/internal/domain"
)

// HashSecret returns a stable SHA-256 hex digest for a password or API key.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(secret)))
	return hex.EncodeToString(sum[:])
}

const userCols = `id,name,email,is_active,is_admin`

func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive, &u.IsAdmin)
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) (int64, error) {
	if strings.TrimSpace(u.Email) == "" {
		return 0, errors.New("email required")
	}
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO users(name,email,is_active,is_admin,created_at) VALUES (?,?,?,?,?)`,
		u.Name, strings.ToLower(strings.TrimSpace(u.Email)), u.IsActive, u.IsAdmin, time.Now().UTC().Format(time.RFC3339)))
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id int64) (domain.User, error) {
	return one(r.q(tx).QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id), scanUser)
}

// GetUserByEmail matches case-insensitively, like the service's login.
func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return one(r.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))), scanUser)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

// InsertCredential stores a hashed secret. SecretHash must already contain the hashed value.
func (r Repo) InsertCredential(ctx context.Context, tx *sql.Tx, c domain.Credential) (int64, error) {
	if c.UserID == 0 {
		return 0, errors.New("user_id required")
	}
	if c.SecretHash == "" {
		return 0, errors.New("secret_hash required")
	}
	if c.Kind == "" {
		c.Kind = "api_key"
	}
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return insertID(r.q(tx).ExecContext(ctx, `INSERT INTO credentials(user_id,kind,name,secret_hash,created_at) VALUES (?,?,?,?,?)`,
		c.UserID, c.Kind, nullable(c.Name), c.SecretHash, c.CreatedAt))
}

// CredentialFor returns the credential of the user with email whose hash matches.
func (r Repo) CredentialFor(ctx context.Context, email, hash string) (domain.Credential, error) {
	row := r.DB.QueryRowContext(ctx, `
SELECT c.id, c.user_id, c.kind, COALESCE(c.name,''), c.secret_hash, c.created_at
FROM credentials c JOIN users u ON u.id=c.user_id
WHERE u.email=? AND c.secret_hash=? LIMIT 1`, strings.ToLower(strings.TrimSpace(email)), hash)
	return one(row, func(s scanner) (domain.Credential, error) {
		var c domain.Credential
		err := s.Scan(&c.ID, &c.UserID, &c.Kind, &c.Name, &c.SecretHash, &c.CreatedAt)
		return c, err
	})
}
