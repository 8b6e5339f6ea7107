package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/minchat/apiserver/types"
)

const pqUniqueViolation = "23505"

// MemberRepository handles persistence for members.
type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) GetByID(ctx context.Context, id int64) (types.Member, error) {
	const query = `
		SELECT id, username, password_hash, COALESCE(auth_token, ''), created_at
		FROM members
		WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *MemberRepository) GetByUsername(ctx context.Context, username string) (types.Member, error) {
	const query = `
		SELECT id, username, password_hash, COALESCE(auth_token, ''), created_at
		FROM members
		WHERE username = $1`
	return r.get(ctx, query, username)
}

// GetByToken resolves an opaque bearer token to the member holding it.
// A token that was overwritten by a newer login matches no row.
func (r *MemberRepository) GetByToken(ctx context.Context, token string) (types.Member, error) {
	const query = `
		SELECT id, username, password_hash, COALESCE(auth_token, ''), created_at
		FROM members
		WHERE auth_token = $1`
	return r.get(ctx, query, token)
}

// Create inserts a new member. The username uniqueness check happens in
// the database; a conflicting insert returns ErrDuplicateUsername.
func (r *MemberRepository) Create(ctx context.Context, member types.Member) (types.Member, error) {
	member.CreatedAt = time.Now()

	const query = `
		INSERT INTO members (username, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		member.Username,
		member.PasswordHash,
		member.CreatedAt,
	).Scan(&member.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.Member{}, ErrDuplicateUsername
		}
		return types.Member{}, err
	}
	return member, nil
}

// SetToken overwrites the member's current auth token. The previous
// token stops authenticating as soon as the write lands.
func (r *MemberRepository) SetToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE members SET auth_token = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, token, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MemberRepository) get(ctx context.Context, query string, arg any) (types.Member, error) {
	var member types.Member
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&member.ID,
		&member.Username,
		&member.PasswordHash,
		&member.AuthToken,
		&member.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Member{}, ErrNotFound
		}
		return types.Member{}, err
	}
	return member, nil
}
