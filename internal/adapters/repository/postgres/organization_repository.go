package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/spendsync/internal/core/organization"
	pgdb "github.com/ogurasousui/spendsync/internal/platform/db/postgres"
)

// OrganizationRepository は PostgreSQL を利用した組織永続化の実装です。
type OrganizationRepository struct {
	pool pgdb.Queryer
}

// NewOrganizationRepository は OrganizationRepository を生成します。
func NewOrganizationRepository(pool pgdb.Queryer) *OrganizationRepository {
	return &OrganizationRepository{pool: pool}
}

// Create は組織を新規作成します。ID はデータベースで採番します。
func (r *OrganizationRepository) Create(ctx context.Context, o *organization.Organization) (*organization.Organization, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO organizations (name, slug, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, name, slug, status, created_at, updated_at
    `, o.Name, o.Slug, string(o.Status), o.CreatedAt, o.UpdatedAt)

	created, err := scanOrganization(row)
	if err != nil {
		return nil, translateOrganizationPgError(err)
	}
	return created, nil
}

// Update は組織情報を更新します。
func (r *OrganizationRepository) Update(ctx context.Context, o *organization.Organization) (*organization.Organization, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE organizations
           SET name = $1,
               slug = $2,
               status = $3,
               updated_at = $4
         WHERE id = $5
        RETURNING id, name, slug, status, created_at, updated_at
    `, o.Name, o.Slug, string(o.Status), o.UpdatedAt, o.ID)

	updated, err := scanOrganization(row)
	if err != nil {
		return nil, translateOrganizationPgError(err)
	}
	return updated, nil
}

// FindByID は ID で組織を取得します。
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*organization.Organization, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, name, slug, status, created_at, updated_at
          FROM organizations
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanOrganization(row)
	if err != nil {
		return nil, translateOrganizationPgError(err)
	}
	return found, nil
}

// FindBySlug はスラッグで組織を取得します。
func (r *OrganizationRepository) FindBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, name, slug, status, created_at, updated_at
          FROM organizations
         WHERE slug = $1
         LIMIT 1
    `, slug)

	found, err := scanOrganization(row)
	if err != nil {
		return nil, translateOrganizationPgError(err)
	}
	return found, nil
}

// List は組織の一覧を取得します。
func (r *OrganizationRepository) List(ctx context.Context, filter organization.ListOrganizationsFilter) ([]*organization.Organization, string, error) {
	if filter.Limit <= 0 {
		return nil, "", organization.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", organization.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 3)
	conditions := make([]string, 0, 1)

	if filter.Status != nil {
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)+1))
		args = append(args, string(*filter.Status))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT id, name, slug, status, created_at, updated_at
          FROM organizations` + whereClause + `
         ORDER BY created_at DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateOrganizationPgError(err)
	}
	defer rows.Close()

	var orgs []*organization.Organization
	for rows.Next() {
		found, err := scanOrganization(rows)
		if err != nil {
			return nil, "", translateOrganizationPgError(err)
		}
		orgs = append(orgs, found)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateOrganizationPgError(err)
	}

	var nextToken string
	if len(orgs) > filter.Limit {
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
		orgs = orgs[:filter.Limit]
	}

	return orgs, nextToken, nil
}

func scanOrganization(row pgx.Row) (*organization.Organization, error) {
	var (
		id, name, slug, status string
		createdAt, updatedAt   time.Time
	)

	if err := row.Scan(&id, &name, &slug, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organization.ErrOrganizationNotFound
		}
		return nil, err
	}

	return &organization.Organization{
		ID:        id,
		Name:      name,
		Slug:      slug,
		Status:    organization.Status(status),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func translateOrganizationPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return organization.ErrOrganizationNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return organization.ErrSlugAlreadyExists
		case checkViolationCode:
			return organization.ErrInvalidStatus
		}
	}
	return err
}
