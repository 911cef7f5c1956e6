package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/session"
)

var _ session.Repository = (*Store)(nil)

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip_address, created_at, expires_at, revoked_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		sess      session.Session
		ua, ip    sql.NullString
		createdAt int64
		expiresAt int64
		revokedAt sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.RefreshHash, &ua, &ip, &createdAt, &expiresAt, &revokedAt); err != nil {
		return nil, err
	}
	sess.UserAgent = ua.String
	sess.IPAddress = ip.String
	sess.CreatedAt = fromMillis(createdAt)
	sess.ExpiresAt = fromMillis(expiresAt)
	sess.RevokedAt = timePtr(revokedAt)
	return &sess, nil
}

// FindSessionByID loads one session record.
func (s *Store) FindSessionByID(ctx context.Context, id string) (*session.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM user_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return sess, nil
}

// InsertSession stores a new session record.
func (s *Store) InsertSession(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO user_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.UserID,
		sess.RefreshHash,
		nullString(sess.UserAgent),
		nullString(sess.IPAddress),
		toMillis(sess.CreatedAt),
		toMillis(sess.ExpiresAt),
		nullMillis(sess.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSessionIfHashMatches applies r in a single conditioned UPDATE.
func (s *Store) UpdateSessionIfHashMatches(ctx context.Context, r session.Rotation) (*session.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`UPDATE user_sessions
		 SET refresh_token_hash = ?,
		     expires_at = ?,
		     user_agent = COALESCE(NULLIF(?, ''), user_agent),
		     ip_address = COALESCE(NULLIF(?, ''), ip_address)
		 WHERE id = ?
		   AND refresh_token_hash = ?
		   AND revoked_at IS NULL
		   AND expires_at > ?
		 RETURNING `+sessionColumns,
		r.NextHash,
		toMillis(r.ExpiresAt),
		r.UserAgent,
		r.IPAddress,
		r.ID,
		r.ExpectedHash,
		toMillis(r.Now),
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	return sess, nil
}

// MarkSessionRevoked sets revoked_at and reports whether the record exists.
func (s *Store) MarkSessionRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE user_sessions SET revoked_at = ? WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return n > 0, nil
}
