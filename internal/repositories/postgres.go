package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chatapi/backend/internal/db"
	"github.com/chatapi/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, user.Username, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT id, username, email, password_hash, is_online, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)
}

// FindByUsername fetches a user by username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT id, username, email, password_hash, is_online, created_at, updated_at
        FROM users
        WHERE username = $1
    `, username)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, query, arg)

	var (
		user     models.User
		isOnline sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &isOnline, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	if isOnline.Valid {
		t := isOnline.Time.UTC()
		user.IsOnline = &t
	}

	return user, nil
}

// UpdateOnline records the last-seen timestamp for a user. Last write wins;
// concurrent touches for the same user are harmless.
func (r *PostgresUserRepository) UpdateOnline(ctx context.Context, userID string, seenAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET is_online = $2
        WHERE id = $1
    `, userID, seenAt.UTC())
	if err != nil {
		return fmt.Errorf("update user online: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresProfileRepository provides PostgreSQL-backed persistence for user profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// Create persists a new profile record.
func (r *PostgresProfileRepository) Create(ctx context.Context, profile models.UserProfile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO user_profiles (id, user_id, first_name, last_name, caption, about, profile_picture_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, profile.ID, profile.UserID, profile.FirstName, profile.LastName, profile.Caption, profile.About, profile.ProfilePictureID, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

const profileColumns = `
        p.id, p.user_id, u.username, p.first_name, p.last_name, p.caption, p.about,
        p.profile_picture_id, p.created_at, p.updated_at`

// FindByID fetches a profile (with its owner's username) by primary key.
func (r *PostgresProfileRepository) FindByID(ctx context.Context, id string) (models.UserProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT`+profileColumns+`
        FROM user_profiles p
        JOIN users u ON u.id = p.user_id
        WHERE p.id = $1
    `, id)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserProfile{}, ErrNotFound
		}
		return models.UserProfile{}, fmt.Errorf("select profile: %w", err)
	}

	return profile, nil
}

// Update modifies an existing profile record.
func (r *PostgresProfileRepository) Update(ctx context.Context, profile models.UserProfile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE user_profiles
        SET first_name = $2, last_name = $3, caption = $4, about = $5, profile_picture_id = $6, updated_at = $7
        WHERE id = $1
    `, profile.ID, profile.FirstName, profile.LastName, profile.Caption, profile.About, profile.ProfilePictureID, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Search returns profiles matching the keyword against username, first name
// or last name, case-insensitively. The caller's own profile is excluded
// when excludeUserID is set.
func (r *PostgresProfileRepository) Search(ctx context.Context, keyword, excludeUserID string) ([]models.UserProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT`+profileColumns+`
        FROM user_profiles p
        JOIN users u ON u.id = p.user_id
        WHERE ($1 = '' OR u.username ILIKE '%' || $1 || '%'
               OR p.first_name ILIKE '%' || $1 || '%'
               OR p.last_name ILIKE '%' || $1 || '%')
          AND ($2 = '' OR p.user_id <> $2)
        ORDER BY p.created_at DESC
        LIMIT 100
    `, keyword, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

func scanProfile(row pgx.Row) (models.UserProfile, error) {
	var (
		profile   models.UserProfile
		pictureID sql.NullString
	)
	if err := row.Scan(&profile.ID, &profile.UserID, &profile.Username, &profile.FirstName, &profile.LastName,
		&profile.Caption, &profile.About, &pictureID, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		return models.UserProfile{}, err
	}
	if pictureID.Valid {
		id := pictureID.String
		profile.ProfilePictureID = &id
	}
	return profile, nil
}

// PostgresUploadRepository provides PostgreSQL-backed persistence for file uploads.
type PostgresUploadRepository struct {
	pool db.Pool
}

// NewPostgresUploadRepository constructs an upload repository backed by PostgreSQL.
func NewPostgresUploadRepository(pool db.Pool) *PostgresUploadRepository {
	return &PostgresUploadRepository{pool: pool}
}

// Create persists a new upload record.
func (r *PostgresUploadRepository) Create(ctx context.Context, upload models.FileUpload) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO uploads (id, location, content_type, size, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, upload.ID, upload.Location, upload.ContentType, upload.Size, upload.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert upload: %w", err)
	}

	return nil
}

// FindByID fetches an upload by primary key.
func (r *PostgresUploadRepository) FindByID(ctx context.Context, id string) (models.FileUpload, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FileUpload{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, location, content_type, size, created_at
        FROM uploads
        WHERE id = $1
    `, id)

	var upload models.FileUpload
	if err := row.Scan(&upload.ID, &upload.Location, &upload.ContentType, &upload.Size, &upload.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FileUpload{}, ErrNotFound
		}
		return models.FileUpload{}, fmt.Errorf("select upload: %w", err)
	}

	return upload, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ProfileRepository = (*PostgresProfileRepository)(nil)
var _ UploadRepository = (*PostgresUploadRepository)(nil)
