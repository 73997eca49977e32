package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/spendsync/internal/core/department"
)

var departmentColumnNames = []string{"id", "organization_id", "name", "description", "parent_id", "external_id", "external_provider", "metadata", "created_at", "updated_at"}

func TestDepartmentRepository_List_RootOnly(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)
	root := ""
	now := time.Now().UTC()

	rows := pgxmock.NewRows(departmentColumnNames).
		AddRow("dept-1", "org-1", "Engineering", nil, nil, "ou-1", "google", []byte(`{}`), now, now).
		AddRow("dept-2", "org-1", "Sales", "field sales", nil, nil, nil, []byte(`{}`), now, now).
		AddRow("dept-3", "org-1", "Support", nil, nil, nil, nil, []byte(`{}`), now, now)

	mock.ExpectQuery(`FROM departments WHERE organization_id = \$1 AND parent_id IS NULL\s+ORDER BY name ASC, id ASC\s+LIMIT \$2\s+OFFSET \$3`).
		WithArgs("org-1", 3, 0).
		WillReturnRows(rows)

	departments, nextToken, err := repo.List(context.Background(), department.ListDepartmentsFilter{
		OrganizationID: "org-1",
		ParentID:       &root,
		Limit:          2,
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(departments) != 2 {
		t.Fatalf("expected 2 departments, got %d", len(departments))
	}
	if nextToken != "2" {
		t.Fatalf("expected next token '2', got %q", nextToken)
	}
	if departments[0].ExternalID() != "ou-1" || departments[0].ParentID() != "" {
		t.Fatalf("unexpected first department: %+v", departments[0].Snapshot())
	}
	if departments[1].Description() != "field sales" {
		t.Fatalf("unexpected description: %q", departments[1].Description())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_FindByExternalID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM departments\s+WHERE organization_id = \$1 AND external_id = \$2`).
		WithArgs("org-1", "ou-2").
		WillReturnRows(pgxmock.NewRows(departmentColumnNames).
			AddRow("dept-2", "org-1", "Platform", nil, "dept-1", "ou-2", "google", []byte(`{"path":"/Engineering/Platform"}`), now, now))
	mock.ExpectQuery(`FROM departments\s+WHERE organization_id = \$1 AND external_id = \$2`).
		WithArgs("org-1", "ou-missing").
		WillReturnError(pgx.ErrNoRows)

	found, err := repo.FindByExternalID(context.Background(), "org-1", "ou-2")
	if err != nil {
		t.Fatalf("FindByExternalID returned error: %v", err)
	}
	if found.ParentID() != "dept-1" || found.Metadata()["path"] != "/Engineering/Platform" {
		t.Fatalf("unexpected department: %+v", found.Snapshot())
	}

	if _, err := repo.FindByExternalID(context.Background(), "org-1", "ou-missing"); !errors.Is(err, department.ErrDepartmentNotFound) {
		t.Fatalf("expected ErrDepartmentNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_Save_TranslatesErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)
	dept, err := department.New(department.NewParams{OrganizationID: "org-1", Name: "Engineering", ParentID: "dept-0"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("department.New returned error: %v", err)
	}

	mock.ExpectExec(`INSERT INTO departments`).
		WithArgs(anyArgs(10)...).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "departments_parent_id_fkey"})
	mock.ExpectExec(`INSERT INTO departments`).
		WithArgs(anyArgs(10)...).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "departments_organization_id_fkey"})
	mock.ExpectExec(`INSERT INTO departments`).
		WithArgs(anyArgs(10)...).
		WillReturnError(&pgconn.PgError{Code: checkViolationCode, ConstraintName: "departments_parent_not_self"})

	ctx := context.Background()
	if err := repo.Save(ctx, dept); !errors.Is(err, department.ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
	if err := repo.Save(ctx, dept); !errors.Is(err, department.ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
	if err := repo.Save(ctx, dept); !errors.Is(err, department.ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
