package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/spendsync/internal/core/department"
	"github.com/ogurasousui/spendsync/internal/core/shared"
	pgdb "github.com/ogurasousui/spendsync/internal/platform/db/postgres"
)

const departmentColumns = `id, organization_id, name, description, parent_id, external_id, external_provider, metadata, created_at, updated_at`

// DepartmentRepository は PostgreSQL を利用した部署永続化の実装です。
type DepartmentRepository struct {
	pool pgdb.Queryer
}

// NewDepartmentRepository は DepartmentRepository を生成します。
func NewDepartmentRepository(pool pgdb.Queryer) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

// Save は ID をキーに部署を登録または更新します。
func (r *DepartmentRepository) Save(ctx context.Context, d *department.Department) error {
	s := d.Snapshot()
	metadata, err := marshalJSONMap(s.Metadata)
	if err != nil {
		return err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err = exec.Exec(ctx, `
        INSERT INTO departments (id, organization_id, name, description, parent_id, external_id, external_provider, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE
           SET name = EXCLUDED.name,
               description = EXCLUDED.description,
               parent_id = EXCLUDED.parent_id,
               external_id = EXCLUDED.external_id,
               external_provider = EXCLUDED.external_provider,
               metadata = EXCLUDED.metadata,
               updated_at = EXCLUDED.updated_at
    `,
		s.ID,
		s.OrganizationID,
		s.Name,
		nullableString(s.Description),
		nullableString(s.ParentID),
		nullableString(s.ExternalID),
		nullableString(string(s.ExternalProvider)),
		metadata,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return translateDepartmentPgError(err)
}

// FindByID は ID で部署を取得します。
func (r *DepartmentRepository) FindByID(ctx context.Context, organizationID, id string) (*department.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+departmentColumns+`
          FROM departments
         WHERE organization_id = $1 AND id = $2
         LIMIT 1
    `, organizationID, id)

	found, err := scanDepartment(row)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return found, nil
}

// FindByExternalID は外部 ID プロバイダ上の ID で部署を取得します。
func (r *DepartmentRepository) FindByExternalID(ctx context.Context, organizationID, externalID string) (*department.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+departmentColumns+`
          FROM departments
         WHERE organization_id = $1 AND external_id = $2
         LIMIT 1
    `, organizationID, externalID)

	found, err := scanDepartment(row)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return found, nil
}

// List は部署の一覧を取得します。
func (r *DepartmentRepository) List(ctx context.Context, filter department.ListDepartmentsFilter) ([]*department.Department, string, error) {
	if strings.TrimSpace(filter.OrganizationID) == "" {
		return nil, "", department.ErrInvalidOrganizationID
	}
	if filter.Limit <= 0 {
		return nil, "", department.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", department.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	conditions = append(conditions, "organization_id = $"+strconv.Itoa(len(args)+1))
	args = append(args, filter.OrganizationID)

	if filter.ParentID != nil {
		if *filter.ParentID == "" {
			conditions = append(conditions, "parent_id IS NULL")
		} else {
			conditions = append(conditions, "parent_id = $"+strconv.Itoa(len(args)+1))
			args = append(args, *filter.ParentID)
		}
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT ` + departmentColumns + `
          FROM departments WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY name ASC, id ASC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateDepartmentPgError(err)
	}
	defer rows.Close()

	var departments []*department.Department
	for rows.Next() {
		found, err := scanDepartment(rows)
		if err != nil {
			return nil, "", translateDepartmentPgError(err)
		}
		departments = append(departments, found)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateDepartmentPgError(err)
	}

	var nextToken string
	if len(departments) > filter.Limit {
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
		departments = departments[:filter.Limit]
	}

	return departments, nextToken, nil
}

func scanDepartment(row pgx.Row) (*department.Department, error) {
	var (
		id, organizationID, name string
		description, parentID    sql.NullString
		externalID, provider     sql.NullString
		metadata                 []byte
		createdAt, updatedAt     time.Time
	)

	if err := row.Scan(&id, &organizationID, &name, &description, &parentID, &externalID, &provider, &metadata, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, department.ErrDepartmentNotFound
		}
		return nil, err
	}

	meta, err := unmarshalJSONMap(metadata)
	if err != nil {
		return nil, err
	}

	return department.Reconstitute(department.Snapshot{
		ID:               id,
		OrganizationID:   organizationID,
		Name:             name,
		Description:      stringOrEmpty(description),
		ParentID:         stringOrEmpty(parentID),
		ExternalID:       stringOrEmpty(externalID),
		ExternalProvider: shared.IdentityProvider(stringOrEmpty(provider)),
		Metadata:         meta,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}), nil
}

func translateDepartmentPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return department.ErrDepartmentNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return department.ErrExternalIDAlreadyExists
		case foreignKeyViolationCode:
			if pgErr.ConstraintName == "departments_parent_id_fkey" {
				return department.ErrParentNotFound
			}
			return department.ErrOrganizationNotFound
		case checkViolationCode:
			return department.ErrInvalidParent
		}
	}

	return err
}
