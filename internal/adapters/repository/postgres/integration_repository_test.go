package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/spendsync/internal/core/integration"
)

var integrationColumnNames = []string{"id", "organization_id", "provider", "status", "credentials", "config", "last_sync_at", "last_sync_status", "last_sync_error", "created_at", "updated_at", "created_by"}

func TestIntegrationRepository_List_StatusFilter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewIntegrationRepository(mock)
	now := time.Now().UTC()
	lastSync := now.Add(-3 * time.Hour)

	rows := pgxmock.NewRows(integrationColumnNames).
		AddRow("int-1", "org-1", "google_workspace", "active", []byte("secret"), []byte(`{"domain":"example.com"}`), lastSync, "success", nil, now, now, nil).
		AddRow("int-2", "org-2", "microsoft_365", "error", []byte{}, []byte(`{}`), nil, nil, "bind failed", now, now, "admin")

	mock.ExpectQuery(`FROM integrations WHERE status = ANY\(\$1\)\s+ORDER BY created_at ASC, id ASC\s+LIMIT \$2\s+OFFSET \$3`).
		WithArgs([]string{"active", "error"}, 11, 0).
		WillReturnRows(rows)

	integrations, nextToken, err := repo.List(context.Background(), integration.ListIntegrationsFilter{
		Statuses: []integration.Status{integration.StatusActive, integration.StatusError},
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(integrations) != 2 || nextToken != "" {
		t.Fatalf("unexpected page: %d items, token %q", len(integrations), nextToken)
	}

	first := integrations[0]
	if first.Provider() != integration.ProviderGoogleWorkspace || first.ConfigString("domain") != "example.com" {
		t.Fatalf("unexpected first integration: %+v", first.Snapshot())
	}
	if first.LastSyncAt() == nil || !first.LastSyncAt().Equal(lastSync) {
		t.Fatalf("unexpected last sync at: %v", first.LastSyncAt())
	}
	if string(first.Credentials()) != "secret" {
		t.Fatalf("unexpected credentials: %q", first.Credentials())
	}

	second := integrations[1]
	if second.LastSyncAt() != nil || second.LastSyncError() != "bind failed" || second.CreatedBy() != "admin" {
		t.Fatalf("unexpected second integration: %+v", second.Snapshot())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIntegrationRepository_FindByOrganizationAndProvider_NotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewIntegrationRepository(mock)

	mock.ExpectQuery(`FROM integrations\s+WHERE organization_id = \$1 AND provider = \$2`).
		WithArgs("org-1", "okta").
		WillReturnRows(pgxmock.NewRows(integrationColumnNames))

	if _, err := repo.FindByOrganizationAndProvider(context.Background(), "org-1", integration.ProviderOkta); !errors.Is(err, integration.ErrIntegrationNotFound) {
		t.Fatalf("expected ErrIntegrationNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIntegrationRepository_Save(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewIntegrationRepository(mock)
	i, err := integration.New(integration.NewParams{
		OrganizationID: "org-1",
		Provider:       integration.ProviderGoogleWorkspace,
		Config:         map[string]any{"domain": "example.com"},
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("integration.New returned error: %v", err)
	}

	mock.ExpectExec(`INSERT INTO integrations`).
		WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO integrations`).
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "integrations_org_provider_key"})

	if err := repo.Save(context.Background(), i); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := repo.Save(context.Background(), i); !errors.Is(err, integration.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
