package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/user"
	"github.com/google/uuid"
)

const userColumns = `id, display_name, email, reputation, is_verified_store, google_id, avatar_url, last_login_at, created_at, updated_at`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		u           user.User
		verified    int64
		googleID    sql.NullString
		avatarURL   sql.NullString
		lastLoginAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.Reputation, &verified, &googleID, &avatarURL, &lastLoginAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.VerifiedStore = verified != 0
	u.ExternalID = googleID.String
	u.AvatarURL = avatarURL.String
	u.LastLoginAt = timePtr(lastLoginAt)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func getUserWhere(ctx context.Context, q queryer, column, value string) (*user.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	roles, err := rolesForUser(ctx, q, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return u, nil
}

// GetUserByID returns the account with id and its roles.
func (s *Store) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	u, err := getUserWhere(ctx, s.sqlDB, "id", id)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, err
}

// GetUserByExternalID returns the account linked to a provider subject.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*user.User, error) {
	u, err := getUserWhere(ctx, s.sqlDB, "google_id", externalID)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("get user by external id: %w", err)
	}
	return u, err
}

// GetUserByEmail returns the account registered with email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := getUserWhere(ctx, s.sqlDB, "email", strings.TrimSpace(email))
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, err
}

// CreateUser inserts u as given, granting the default role when u.Roles is
// empty. It is used for seeding and administration; login goes through
// UpsertFromProfile.
func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	if u == nil || strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("create user: id and email are required")
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := u.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	verified := 0
	if u.VerifiedStore {
		verified = 1
	}
	roles := u.Roles
	if len(roles) == 0 {
		roles = []string{user.DefaultRole}
	}
	for _, role := range roles {
		if !user.ValidRole(role) {
			return user.ErrInvalidRole
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create user: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.DisplayName, strings.TrimSpace(u.Email), u.Reputation, verified,
		nullString(u.ExternalID), nullString(u.AvatarURL), nullMillis(u.LastLoginAt),
		toMillis(created), toMillis(updated),
	); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	for _, role := range roles {
		if err := assignRole(ctx, tx, u.ID, role, toMillis(created)); err != nil {
			return fmt.Errorf("create user: role %s: %w", role, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create user: commit: %w", err)
	}
	return nil
}

// UpsertFromProfile resolves a provider profile to an account in one
// transaction. A known subject is refreshed in place. An unknown subject whose
// email matches an existing account is linked to it. Otherwise a new account
// is created. Linked and new accounts are granted the default role.
func (s *Store) UpsertFromProfile(ctx context.Context, p user.Profile, now time.Time) (*user.User, error) {
	subject := strings.TrimSpace(p.SubjectID)
	email := strings.TrimSpace(p.Email)
	if subject == "" || email == "" {
		return nil, fmt.Errorf("upsert user: subject and email are required")
	}
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = email
	}
	at := toMillis(now)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("upsert user: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	existing, err := getUserWhere(ctx, tx, "google_id", subject)
	switch {
	case err == nil:
		id = existing.ID
		if _, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET display_name = ?, email = ?, avatar_url = COALESCE(NULLIF(?, ''), avatar_url), last_login_at = ?, updated_at = ?
			 WHERE id = ?`,
			name, email, p.AvatarURL, at, at, id,
		); err != nil {
			return nil, fmt.Errorf("upsert user: refresh: %w", err)
		}
	case errors.Is(err, user.ErrNotFound):
		byEmail, err := getUserWhere(ctx, tx, "email", email)
		switch {
		case err == nil:
			id = byEmail.ID
			if _, err := tx.ExecContext(ctx,
				`UPDATE users
				 SET google_id = ?, display_name = ?, avatar_url = COALESCE(NULLIF(?, ''), avatar_url), last_login_at = ?, updated_at = ?
				 WHERE id = ?`,
				subject, name, p.AvatarURL, at, at, id,
			); err != nil {
				return nil, fmt.Errorf("upsert user: link: %w", err)
			}
		case errors.Is(err, user.ErrNotFound):
			generated, err := uuid.NewRandom()
			if err != nil {
				return nil, fmt.Errorf("upsert user: id: %w", err)
			}
			id = generated.String()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (id, display_name, email, reputation, is_verified_store, google_id, avatar_url, last_login_at, created_at, updated_at)
				 VALUES (?, ?, ?, 0, 0, ?, ?, ?, ?, ?)`,
				id, name, email, subject, nullString(p.AvatarURL), at, at, at,
			); err != nil {
				return nil, fmt.Errorf("upsert user: insert: %w", err)
			}
		default:
			return nil, fmt.Errorf("upsert user: lookup email: %w", err)
		}
		if err := assignRole(ctx, tx, id, user.DefaultRole, at); err != nil {
			return nil, fmt.Errorf("upsert user: default role: %w", err)
		}
	default:
		return nil, fmt.Errorf("upsert user: lookup subject: %w", err)
	}

	u, err := getUserWhere(ctx, tx, "id", id)
	if err != nil {
		return nil, fmt.Errorf("upsert user: reload: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upsert user: commit: %w", err)
	}
	return u, nil
}

// AssignRole grants role to the user. Granting an already held role is a no-op.
func (s *Store) AssignRole(ctx context.Context, userID, role string) error {
	if !user.ValidRole(role) {
		return user.ErrInvalidRole
	}
	var exists bool
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	if !exists {
		return fmt.Errorf("assign role: %w", user.ErrNotFound)
	}
	if err := assignRole(ctx, s.sqlDB, userID, role, toMillis(time.Now())); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// RemoveRole revokes role from the user.
func (s *Store) RemoveRole(ctx context.Context, userID, role string) error {
	if !user.ValidRole(role) {
		return user.ErrInvalidRole
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role = ?`, userID, role); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

// RolesForUser lists the roles held by the user in grant order.
func (s *Store) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	roles, err := rolesForUser(ctx, s.sqlDB, userID)
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	return roles, nil
}

func assignRole(ctx context.Context, q queryer, userID, role string, at int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role, granted_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, role) DO NOTHING`,
		userID, role, at,
	)
	return err
}

func rolesForUser(ctx context.Context, q queryer, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY granted_at, role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
