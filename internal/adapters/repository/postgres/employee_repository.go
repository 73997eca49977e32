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

	"github.com/ogurasousui/spendsync/internal/core/employee"
	"github.com/ogurasousui/spendsync/internal/core/shared"
	pgdb "github.com/ogurasousui/spendsync/internal/platform/db/postgres"
)

const employeeColumns = `id, organization_id, name, email, status, title, phone, avatar_url, department_id, manager_id,
               hired_at, offboarded_at, external_id, external_provider, metadata,
               monthly_saas_cost_amount, monthly_saas_cost_currency, created_at, updated_at, created_by, updated_by`

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Save は ID をキーに社員を登録または更新します。
func (r *EmployeeRepository) Save(ctx context.Context, e *employee.Employee) error {
	s := e.Snapshot()
	metadata, err := marshalJSONMap(s.Metadata)
	if err != nil {
		return err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err = exec.Exec(ctx, `
        INSERT INTO employees (id, organization_id, name, email, status, title, phone, avatar_url, department_id, manager_id,
                               hired_at, offboarded_at, external_id, external_provider, metadata,
                               monthly_saas_cost_amount, monthly_saas_cost_currency, created_at, updated_at, created_by, updated_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
        ON CONFLICT (id) DO UPDATE
           SET name = EXCLUDED.name,
               email = EXCLUDED.email,
               status = EXCLUDED.status,
               title = EXCLUDED.title,
               phone = EXCLUDED.phone,
               avatar_url = EXCLUDED.avatar_url,
               department_id = EXCLUDED.department_id,
               manager_id = EXCLUDED.manager_id,
               hired_at = EXCLUDED.hired_at,
               offboarded_at = EXCLUDED.offboarded_at,
               external_id = EXCLUDED.external_id,
               external_provider = EXCLUDED.external_provider,
               metadata = EXCLUDED.metadata,
               monthly_saas_cost_amount = EXCLUDED.monthly_saas_cost_amount,
               monthly_saas_cost_currency = EXCLUDED.monthly_saas_cost_currency,
               updated_at = EXCLUDED.updated_at,
               updated_by = EXCLUDED.updated_by
    `,
		s.ID,
		s.OrganizationID,
		s.Name,
		s.Email.String(),
		string(s.Status),
		nullableString(s.Title),
		nullableString(s.Phone),
		nullableString(s.AvatarURL),
		nullableString(s.DepartmentID),
		nullableString(s.ManagerID),
		nullableDate(s.HiredAt),
		nullableTime(s.OffboardedAt),
		nullableString(s.ExternalID),
		nullableString(string(s.ExternalProvider)),
		metadata,
		s.MonthlySaaSCost.Amount(),
		s.MonthlySaaSCost.Currency(),
		s.CreatedAt,
		s.UpdatedAt,
		nullableString(s.CreatedBy),
		nullableString(s.UpdatedBy),
	)
	return translateEmployeePgError(err)
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, organizationID, id string) (*employee.Employee, error) {
	return r.findOne(ctx, `WHERE organization_id = $1 AND id = $2`, organizationID, id)
}

// FindByExternalID は外部 ID プロバイダ上の ID で社員を取得します。
func (r *EmployeeRepository) FindByExternalID(ctx context.Context, organizationID, externalID string) (*employee.Employee, error) {
	return r.findOne(ctx, `WHERE organization_id = $1 AND external_id = $2`, organizationID, externalID)
}

// FindByEmail はメールアドレスで社員を取得します。
func (r *EmployeeRepository) FindByEmail(ctx context.Context, organizationID string, email shared.Email) (*employee.Employee, error) {
	return r.findOne(ctx, `WHERE organization_id = $1 AND email = $2`, organizationID, email.String())
}

func (r *EmployeeRepository) findOne(ctx context.Context, where string, args ...any) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         `+where+`
         LIMIT 1
    `, args...)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return found, nil
}

// List は社員の一覧を取得します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	if strings.TrimSpace(filter.OrganizationID) == "" {
		return nil, "", employee.ErrInvalidOrganizationID
	}
	if filter.Limit <= 0 {
		return nil, "", employee.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", employee.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 5)
	conditions := make([]string, 0, 3)

	conditions = append(conditions, "organization_id = $"+strconv.Itoa(len(args)+1))
	args = append(args, filter.OrganizationID)

	if filter.Status != nil {
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)+1))
		args = append(args, string(*filter.Status))
	}

	if filter.DepartmentID != nil {
		conditions = append(conditions, "department_id = $"+strconv.Itoa(len(args)+1))
		args = append(args, *filter.DepartmentID)
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT ` + employeeColumns + `
          FROM employees WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY created_at DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateEmployeePgError(err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0, filter.Limit)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, "", translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateEmployeePgError(err)
	}

	var nextToken string
	if len(employees) == limitWithBuffer {
		employees = employees[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return employees, nextToken, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		id               string
		organizationID   string
		name             string
		email            string
		status           string
		title            sql.NullString
		phone            sql.NullString
		avatarURL        sql.NullString
		departmentID     sql.NullString
		managerID        sql.NullString
		hiredAt          sql.NullTime
		offboardedAt     sql.NullTime
		externalID       sql.NullString
		externalProvider sql.NullString
		metadata         []byte
		costAmount       int64
		costCurrency     string
		createdAt        time.Time
		updatedAt        time.Time
		createdBy        sql.NullString
		updatedBy        sql.NullString
	)

	if err := row.Scan(
		&id,
		&organizationID,
		&name,
		&email,
		&status,
		&title,
		&phone,
		&avatarURL,
		&departmentID,
		&managerID,
		&hiredAt,
		&offboardedAt,
		&externalID,
		&externalProvider,
		&metadata,
		&costAmount,
		&costCurrency,
		&createdAt,
		&updatedAt,
		&createdBy,
		&updatedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	parsedEmail, err := shared.NewEmail(email)
	if err != nil {
		return nil, err
	}
	cost, err := shared.NewMoney(costAmount, strings.TrimSpace(costCurrency))
	if err != nil {
		return nil, err
	}
	meta, err := unmarshalJSONMap(metadata)
	if err != nil {
		return nil, err
	}

	return employee.Reconstitute(employee.Snapshot{
		ID:               id,
		OrganizationID:   organizationID,
		Name:             name,
		Email:            parsedEmail,
		Status:           employee.Status(status),
		Title:            stringOrEmpty(title),
		Phone:            stringOrEmpty(phone),
		AvatarURL:        stringOrEmpty(avatarURL),
		DepartmentID:     stringOrEmpty(departmentID),
		ManagerID:        stringOrEmpty(managerID),
		HiredAt:          datePtr(hiredAt),
		OffboardedAt:     timePtr(offboardedAt),
		ExternalID:       stringOrEmpty(externalID),
		ExternalProvider: shared.IdentityProvider(stringOrEmpty(externalProvider)),
		Metadata:         meta,
		MonthlySaaSCost:  cost,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
		CreatedBy:        stringOrEmpty(createdBy),
		UpdatedBy:        stringOrEmpty(updatedBy),
	}), nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == "employees_org_external_id_key" {
				return employee.ErrExternalIDAlreadyExists
			}
			return employee.ErrEmailAlreadyExists
		case foreignKeyViolationCode:
			return employee.ErrOrganizationNotFound
		case checkViolationCode:
			return employee.ErrInvalidStatus
		}
	}

	return err
}
