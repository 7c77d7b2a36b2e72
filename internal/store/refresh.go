package store

import (
	"context"

	"github.com/coursehub/apiserver/types"
)

// AddRefreshToken appends a token to the user's accepted list. The token
// column is the primary key, so the unique-token constraint is enforced
// by the database.
func (r *UserRepository) AddRefreshToken(ctx context.Context, userID string, token types.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (token, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, token.Token, userID, token.IssuedAt, token.ExpiresAt); err != nil {
		return wrapErr(err)
	}
	return nil
}

// RemoveRefreshToken deletes a token if present and reports whether it
// was. The single DELETE makes rotation one-shot: of two racing calls
// presenting the same token, exactly one observes a row.
func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID, token string) (bool, error) {
	const query = `DELETE FROM refresh_tokens WHERE token = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, token, userID)
	if err != nil {
		return false, wrapErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr(err)
	}
	return affected > 0, nil
}

// RemoveAllRefreshTokens revokes every refresh token for the user.
func (r *UserRepository) RemoveAllRefreshTokens(ctx context.Context, userID string) error {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (r *UserRepository) refreshTokens(ctx context.Context, userID string) ([]types.RefreshToken, error) {
	const query = `
		SELECT token, issued_at, expires_at
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY issued_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var tokens []types.RefreshToken
	for rows.Next() {
		var token types.RefreshToken
		if err := rows.Scan(&token.Token, &token.IssuedAt, &token.ExpiresAt); err != nil {
			return nil, wrapErr(err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return tokens, nil
}
