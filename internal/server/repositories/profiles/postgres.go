package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, email, password_hash, role, first_name, last_name, middle_name, birthday,
		 location, experience, bio, place_work, avatar, contacts, education, specializations,
		 is_email_verified, is_banned, ban_reason, banned_at, banned_by, warnings, pending_changes,
		 version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	p := &models.Profile{}
	var (
		birthday, bannedAt                            sql.NullTime
		contacts, education, specs, warnings, pending []byte
	)

	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.FirstName, &p.LastName, &p.MiddleName, &birthday,
		&p.Location, &p.Experience, &p.Bio, &p.PlaceWork, &p.Avatar, &contacts, &education, &specs,
		&p.IsEmailVerified, &p.IsBanned, &p.BanReason, &bannedAt, &p.BannedBy, &warnings, &pending,
		&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if birthday.Valid {
		b := birthday.Time
		p.Birthday = &b
	}
	if bannedAt.Valid {
		b := bannedAt.Time
		p.BannedAt = &b
	}
	if err := unmarshalJSONB(contacts, &p.Contacts); err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}
	if err := unmarshalJSONB(education, &p.Education); err != nil {
		return nil, fmt.Errorf("education: %w", err)
	}
	if err := unmarshalJSONB(specs, &p.Specializations); err != nil {
		return nil, fmt.Errorf("specializations: %w", err)
	}
	if err := unmarshalJSONB(warnings, &p.Warnings); err != nil {
		return nil, fmt.Errorf("warnings: %w", err)
	}
	if len(pending) > 0 {
		pc := &models.PendingChanges{}
		if err := json.Unmarshal(pending, pc); err != nil {
			return nil, fmt.Errorf("pending_changes: %w", err)
		}
		p.PendingChanges = pc
	}
	return p, nil
}

func unmarshalJSONB(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func marshalList[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

// pendingColumns derives the denormalised queue columns from the store.
func pendingColumns(pc *models.PendingChanges) (doc []byte, status sql.NullString, submittedAt sql.NullTime, err error) {
	if pc == nil {
		return nil, status, submittedAt, nil
	}
	doc, err = json.Marshal(pc)
	if err != nil {
		return nil, status, submittedAt, err
	}
	status = sql.NullString{String: string(pc.GlobalStatus), Valid: true}
	submittedAt = sql.NullTime{Time: pc.SubmittedAt, Valid: !pc.SubmittedAt.IsZero()}
	return doc, status, submittedAt, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query :=
		`INSERT INTO profiles (id, email, password_hash, role, first_name, last_name, middle_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING version, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.Email, p.PasswordHash, p.Role, p.FirstName, p.LastName, p.MiddleName).
		Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) Save(ctx context.Context, p *models.Profile) error {
	contacts, err := marshalList(p.Contacts)
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}
	education, err := marshalList(p.Education)
	if err != nil {
		return fmt.Errorf("encode education: %w", err)
	}
	specs, err := marshalList(p.Specializations)
	if err != nil {
		return fmt.Errorf("encode specializations: %w", err)
	}
	warnings, err := marshalList(p.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	pending, pendingStatus, pendingSubmittedAt, err := pendingColumns(p.PendingChanges)
	if err != nil {
		return fmt.Errorf("encode pending changes: %w", err)
	}

	var birthday, bannedAt sql.NullTime
	if p.Birthday != nil {
		birthday = sql.NullTime{Time: *p.Birthday, Valid: true}
	}
	if p.BannedAt != nil {
		bannedAt = sql.NullTime{Time: *p.BannedAt, Valid: true}
	}

	query :=
		`UPDATE profiles SET
		   role = $3, first_name = $4, last_name = $5, middle_name = $6, birthday = $7,
		   location = $8, experience = $9, bio = $10, place_work = $11, avatar = $12,
		   contacts = $13, education = $14, specializations = $15,
		   is_email_verified = $16, is_banned = $17, ban_reason = $18, banned_at = $19, banned_by = $20,
		   pending_changes = $21, pending_status = $22, pending_submitted_at = $23, warnings = $24,
		   version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2
		 RETURNING version, updated_at
		 `

	var (
		version   int64
		updatedAt time.Time
	)
	err = r.db.QueryRowContext(ctx, query,
		p.ID, p.Version,
		p.Role, p.FirstName, p.LastName, p.MiddleName, birthday,
		p.Location, p.Experience, p.Bio, p.PlaceWork, p.Avatar,
		contacts, education, specs,
		p.IsEmailVerified, p.IsBanned, p.BanReason, bannedAt, p.BannedBy,
		pending, pendingStatus, pendingSubmittedAt, warnings,
	).Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}

	p.Version = version
	p.UpdatedAt = updatedAt
	return nil
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PostgresRepository) ListPending(ctx context.Context, q PendingQuery) ([]*models.Profile, int, error) {
	pattern := ""
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern = "%" + escapeLike(s) + "%"
	}

	where :=
		`WHERE pending_status IN ('pending', 'partial')
		   AND ($1 = '' OR first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM profiles `+where, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	if total == 0 {
		return []*models.Profile{}, 0, nil
	}

	query := `SELECT ` + profileColumns + ` FROM profiles ` + where + `
		 ORDER BY pending_submitted_at DESC NULLS LAST, id
		 LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, pattern, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Profile, 0, q.Limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return out, total, nil
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	query :=
		`UPDATE profiles SET is_email_verified = TRUE, version = version + 1, updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
