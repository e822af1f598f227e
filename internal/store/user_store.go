package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func (s *SQLStore) CreateUser(ctx context.Context, username string, displayName string, passwordHash string, role models.Role) (models.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (username, display_name, password_hash, role, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		username,
		displayName,
		passwordHash,
		string(role),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, `WHERE username = ? COLLATE NOCASE`, username)
}

func (s *SQLStore) getUser(ctx context.Context, where string, arg any) (models.User, error) {
	var user models.User
	var role string
	var createTime string
	var updateTime string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, display_name, password_hash, role, create_time, update_time
		FROM users `+where,
		arg,
	).Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&role,
		&createTime,
		&updateTime,
	)
	if err != nil {
		return models.User{}, err
	}
	user.Role = models.Role(role)
	user.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.User{}, err
	}
	user.UpdateTime, err = parseTime(updateTime)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *SQLStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLStore) CreatePersonalAccessToken(ctx context.Context, userID int64, rawToken string, description string, expiresAt *time.Time) (models.PersonalAccessToken, error) {
	now := time.Now().UTC()
	tokenHash := HashToken(rawToken)
	tokenPrefix := rawToken
	if len(tokenPrefix) > 8 {
		tokenPrefix = tokenPrefix[:8]
	}
	var expiresValue any
	if expiresAt != nil {
		expiresValue = expiresAt.UTC().Format(time.RFC3339Nano)
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO personal_access_tokens (user_id, token_prefix, token_hash, description, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID,
		tokenPrefix,
		tokenHash,
		description,
		now.Format(time.RFC3339Nano),
		expiresValue,
	)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	return s.GetPersonalAccessTokenByID(ctx, id)
}

func (s *SQLStore) GetPersonalAccessTokenByID(ctx context.Context, id int64) (models.PersonalAccessToken, error) {
	var token models.PersonalAccessToken
	var createdAt string
	var lastUsedAt sql.NullString
	var expiresAt sql.NullString
	var revokedAt sql.NullString
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, token_prefix, token_hash, description, created_at, last_used_at, expires_at, revoked_at
		FROM personal_access_tokens WHERE id = ?`,
		id,
	).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenPrefix,
		&token.TokenHash,
		&token.Description,
		&createdAt,
		&lastUsedAt,
		&expiresAt,
		&revokedAt,
	)
	if err != nil {
		return models.PersonalAccessToken{}, err
	}
	var errParse error
	token.CreatedAt, errParse = parseTime(createdAt)
	if errParse != nil {
		return models.PersonalAccessToken{}, errParse
	}
	token.LastUsedAt, errParse = parseNullableTime(lastUsedAt)
	if errParse != nil {
		return models.PersonalAccessToken{}, errParse
	}
	token.ExpiresAt, errParse = parseNullableTime(expiresAt)
	if errParse != nil {
		return models.PersonalAccessToken{}, errParse
	}
	token.RevokedAt, errParse = parseNullableTime(revokedAt)
	if errParse != nil {
		return models.PersonalAccessToken{}, errParse
	}
	return token, nil
}

func (s *SQLStore) GetUserByToken(ctx context.Context, rawToken string) (models.User, models.PersonalAccessToken, error) {
	tokenHash := HashToken(rawToken)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var user models.User
	var token models.PersonalAccessToken
	var role string
	var userCreateTime string
	var userUpdateTime string
	var tokenCreateTime string
	var lastUsedAt sql.NullString
	var expiresAt sql.NullString
	var revokedAt sql.NullString

	err := s.db.QueryRowContext(
		ctx,
		`SELECT
			u.id, u.username, u.display_name, u.password_hash, u.role, u.create_time, u.update_time,
			t.id, t.user_id, t.token_prefix, t.token_hash, t.description, t.created_at, t.last_used_at, t.expires_at, t.revoked_at
		FROM personal_access_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = ?
			AND t.revoked_at IS NULL
			AND (t.expires_at IS NULL OR t.expires_at > ?)`,
		tokenHash,
		now,
	).Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&role,
		&userCreateTime,
		&userUpdateTime,
		&token.ID,
		&token.UserID,
		&token.TokenPrefix,
		&token.TokenHash,
		&token.Description,
		&tokenCreateTime,
		&lastUsedAt,
		&expiresAt,
		&revokedAt,
	)
	if err != nil {
		return models.User{}, models.PersonalAccessToken{}, err
	}

	user.Role = models.Role(role)
	var errParse error
	user.CreateTime, errParse = parseTime(userCreateTime)
	if errParse != nil {
		return models.User{}, models.PersonalAccessToken{}, errParse
	}
	user.UpdateTime, errParse = parseTime(userUpdateTime)
	if errParse != nil {
		return models.User{}, models.PersonalAccessToken{}, errParse
	}
	token.CreatedAt, errParse = parseTime(tokenCreateTime)
	if errParse != nil {
		return models.User{}, models.PersonalAccessToken{}, errParse
	}
	token.LastUsedAt, errParse = parseNullableTime(lastUsedAt)
	if errParse != nil {
		return models.User{}, models.PersonalAccessToken{}, errParse
	}
	token.ExpiresAt, errParse = parseNullableTime(expiresAt)
	if errParse != nil {
		return models.User{}, models.PersonalAccessToken{}, errParse
	}
	token.RevokedAt, errParse = parseNullableTime(revokedAt)
	if errParse != nil {
		return models.User{}, models.PersonalAccessToken{}, errParse
	}
	return user, token, nil
}

func (s *SQLStore) TouchPersonalAccessToken(ctx context.Context, tokenID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE personal_access_tokens SET last_used_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		tokenID,
	)
	return err
}

func (s *SQLStore) RevokePersonalAccessToken(ctx context.Context, tokenID int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE personal_access_tokens
		SET revoked_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano),
		tokenID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
