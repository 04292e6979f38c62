package auth

import (
	"context"
	"errors"
	"strings"

	"testtracker/internal/domain"
	"testtracker/internal/repo"
)

// ErrInvalidCredentials covers unknown users, wrong secrets and inactive accounts alike.
var ErrInvalidCredentials = errors.New("authentication failed: invalid or missing user/password or session cookie")

// Service checks HTTP Basic credentials against the users table.
type Service struct {
	Repo repo.Repo
}

// Authenticate accepts the account password or any API key of the user.
func (s Service) Authenticate(ctx context.Context, email, secret string) (domain.User, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(secret) == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	cred, err := s.Repo.CredentialFor(ctx, email, repo.HashSecret(secret))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	u, err := s.Repo.GetUser(ctx, nil, cred.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// AddUser creates an active user that logs in with password.
func (s Service) AddUser(ctx context.Context, name, email, password string) (domain.User, error) {
	tx, err := s.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	u := domain.User{Name: name, Email: strings.ToLower(strings.TrimSpace(email)), IsActive: true}
	if u.ID, err = s.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if password != "" {
		if _, err := s.Repo.InsertCredential(ctx, tx, domain.Credential{UserID: u.ID, Kind: "password", SecretHash: repo.HashSecret(password)}); err != nil {
			return domain.User{}, err
		}
	}
	return u, tx.Commit()
}

// AddAPIKey stores a new API key for a user and returns nothing secret.
func (s Service) AddAPIKey(ctx context.Context, userID int64, name, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("api key required")
	}
	_, err := s.Repo.InsertCredential(ctx, nil, domain.Credential{UserID: userID, Kind: "api_key", Name: name, SecretHash: repo.HashSecret(key)})
	return err
}
