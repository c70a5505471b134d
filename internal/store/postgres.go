package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/models"
	"github.com/ayush/skillswap/internal/store/migrations"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore handles user CRUD against PostgreSQL.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, password, location, skills_offered, skills_wanted,
	availability, is_public, profile_photo, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u            models.User
		id           string
		availability string
	)
	err := row.Scan(&id, &u.Name, &u.Email, &u.Password, &u.Location, &u.SkillsOffered,
		&u.SkillsWanted, &availability, &u.IsPublic, &u.ProfilePhoto, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = models.UserID(id)
	u.Availability = models.Availability(availability)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateUser inserts a user. The email is normalized first; a duplicate
// address returns errs.ErrUserExists.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, hashedPassword string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (name, email, password)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		strings.TrimSpace(name), models.NormalizeEmail(email), hashedPassword,
	))
	if isUniqueViolation(err) {
		return nil, errs.ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// FindByEmail looks a user up by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, models.NormalizeEmail(email),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// FindByID returns errs.ErrUserNotFound for unknown or malformed ids.
func (s *PostgresStore) FindByID(ctx context.Context, id models.UserID) (*models.User, error) {
	id, ok := canonicalUserID(id)
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id.String(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// canonicalUserID returns the hyphenated lowercase form of a UUID user id.
// uuid.Parse also accepts uppercase, braced, urn:uuid: and dash-less
// spellings, and they all map to the same row.
func canonicalUserID(id models.UserID) (models.UserID, bool) {
	u, err := uuid.Parse(id.String())
	if err != nil {
		return "", false
	}
	return models.UserID(u.String()), true
}

// RefsByIDs returns display-safe references for the given ids. Unknown ids
// are absent from the result.
func (s *PostgresStore) RefsByIDs(ctx context.Context, ids []models.UserID) (map[models.UserID]models.UserRef, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id.String()); err == nil {
			valid = append(valid, id.String())
		}
	}
	refs := make(map[models.UserID]models.UserRef, len(valid))
	if len(valid) == 0 {
		return refs, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, name, profile_photo FROM users WHERE id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, fmt.Errorf("user refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name, photo string
		if err := rows.Scan(&id, &name, &photo); err != nil {
			return nil, fmt.Errorf("user refs: scan: %w", err)
		}
		refs[models.UserID(id)] = models.UserRef{ID: models.UserID(id), Name: name, ProfilePhoto: photo}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user refs: %w", err)
	}
	return refs, nil
}

// likePattern escapes ILIKE metacharacters and wraps s for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// ListPublic returns one page of public users, newest first, filtered by a
// case-insensitive substring of the name or any offered/wanted skill.
func (s *PostgresStore) ListPublic(ctx context.Context, search string, page, limit int) ([]models.User, int, error) {
	const where = `WHERE is_public AND ($1 = '' OR name ILIKE $2
		OR EXISTS (SELECT 1 FROM unnest(skills_offered || skills_wanted) AS skill WHERE skill ILIKE $2))`

	search = strings.TrimSpace(search)
	pattern := likePattern(search)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM users `+where, search, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count public users: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users `+where+`
		 ORDER BY created_at DESC, id
		 LIMIT $3 OFFSET $4`,
		search, pattern, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list public users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list public users: scan: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list public users: %w", err)
	}
	return users, total, nil
}

// UpdateProfile applies the non-nil fields of upd.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id models.UserID, upd models.ProfileUpdate) (*models.User, error) {
	id, ok := canonicalUserID(id)
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	var availability *string
	if upd.Availability != nil {
		a := string(*upd.Availability)
		availability = &a
	}
	u, err := scanUser(s.db.QueryRow(ctx,
		`UPDATE users SET
			name           = COALESCE($2, name),
			location       = COALESCE($3, location),
			skills_offered = COALESCE($4, skills_offered),
			skills_wanted  = COALESCE($5, skills_wanted),
			availability   = COALESCE($6, availability),
			is_public      = COALESCE($7, is_public),
			profile_photo  = COALESCE($8, profile_photo),
			updated_at     = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id.String(), upd.Name, upd.Location, upd.SkillsOffered, upd.SkillsWanted,
		availability, upd.IsPublic, upd.ProfilePhoto,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}
