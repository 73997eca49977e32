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

	"github.com/ogurasousui/spendsync/internal/core/integration"
	pgdb "github.com/ogurasousui/spendsync/internal/platform/db/postgres"
)

const integrationColumns = `id, organization_id, provider, status, credentials, config, last_sync_at, last_sync_status, last_sync_error, created_at, updated_at, created_by`

// IntegrationRepository は PostgreSQL を利用した連携設定永続化の実装です。
// credentials はアプリケーション層で暗号化済みのバイト列として扱います。
type IntegrationRepository struct {
	pool pgdb.Queryer
}

// NewIntegrationRepository は IntegrationRepository を生成します。
func NewIntegrationRepository(pool pgdb.Queryer) *IntegrationRepository {
	return &IntegrationRepository{pool: pool}
}

// Save は ID をキーに連携設定を登録または更新します。
func (r *IntegrationRepository) Save(ctx context.Context, i *integration.Integration) error {
	s := i.Snapshot()
	config, err := marshalJSONMap(s.Config)
	if err != nil {
		return err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err = exec.Exec(ctx, `
        INSERT INTO integrations (id, organization_id, provider, status, credentials, config, last_sync_at, last_sync_status, last_sync_error, created_at, updated_at, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO UPDATE
           SET status = EXCLUDED.status,
               credentials = EXCLUDED.credentials,
               config = EXCLUDED.config,
               last_sync_at = EXCLUDED.last_sync_at,
               last_sync_status = EXCLUDED.last_sync_status,
               last_sync_error = EXCLUDED.last_sync_error,
               updated_at = EXCLUDED.updated_at
    `,
		s.ID,
		s.OrganizationID,
		string(s.Provider),
		string(s.Status),
		s.Credentials,
		config,
		nullableTime(s.LastSyncAt),
		nullableString(string(s.LastSyncStatus)),
		nullableString(s.LastSyncError),
		s.CreatedAt,
		s.UpdatedAt,
		nullableString(s.CreatedBy),
	)
	return translateIntegrationPgError(err)
}

// FindByID は ID で連携設定を取得します。
func (r *IntegrationRepository) FindByID(ctx context.Context, id string) (*integration.Integration, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+integrationColumns+`
          FROM integrations
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanIntegration(row)
	if err != nil {
		return nil, translateIntegrationPgError(err)
	}
	return found, nil
}

// FindByOrganizationAndProvider は組織とプロバイダ種別で連携設定を取得します。
func (r *IntegrationRepository) FindByOrganizationAndProvider(ctx context.Context, organizationID string, provider integration.Provider) (*integration.Integration, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+integrationColumns+`
          FROM integrations
         WHERE organization_id = $1 AND provider = $2
         LIMIT 1
    `, organizationID, string(provider))

	found, err := scanIntegration(row)
	if err != nil {
		return nil, translateIntegrationPgError(err)
	}
	return found, nil
}

// List は連携設定の一覧を取得します。
func (r *IntegrationRepository) List(ctx context.Context, filter integration.ListIntegrationsFilter) ([]*integration.Integration, string, error) {
	if filter.Limit <= 0 {
		return nil, "", integration.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", integration.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	if filter.OrganizationID != "" {
		conditions = append(conditions, "organization_id = $"+strconv.Itoa(len(args)+1))
		args = append(args, filter.OrganizationID)
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, "status = ANY($"+strconv.Itoa(len(args)+1)+")")
		args = append(args, statuses)
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
        SELECT ` + integrationColumns + `
          FROM integrations` + whereClause + `
         ORDER BY created_at ASC, id ASC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateIntegrationPgError(err)
	}
	defer rows.Close()

	var integrations []*integration.Integration
	for rows.Next() {
		found, err := scanIntegration(rows)
		if err != nil {
			return nil, "", translateIntegrationPgError(err)
		}
		integrations = append(integrations, found)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateIntegrationPgError(err)
	}

	var nextToken string
	if len(integrations) > filter.Limit {
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
		integrations = integrations[:filter.Limit]
	}

	return integrations, nextToken, nil
}

func scanIntegration(row pgx.Row) (*integration.Integration, error) {
	var (
		id, organizationID   string
		provider, status     string
		credentials, config  []byte
		lastSyncAt           sql.NullTime
		lastSyncStatus       sql.NullString
		lastSyncError        sql.NullString
		createdAt, updatedAt time.Time
		createdBy            sql.NullString
	)

	if err := row.Scan(
		&id,
		&organizationID,
		&provider,
		&status,
		&credentials,
		&config,
		&lastSyncAt,
		&lastSyncStatus,
		&lastSyncError,
		&createdAt,
		&updatedAt,
		&createdBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, integration.ErrIntegrationNotFound
		}
		return nil, err
	}

	cfg, err := unmarshalJSONMap(config)
	if err != nil {
		return nil, err
	}

	return integration.Reconstitute(integration.Snapshot{
		ID:             id,
		OrganizationID: organizationID,
		Provider:       integration.Provider(provider),
		Status:         integration.Status(status),
		Credentials:    credentials,
		Config:         cfg,
		LastSyncAt:     timePtr(lastSyncAt),
		LastSyncStatus: integration.SyncStatus(stringOrEmpty(lastSyncStatus)),
		LastSyncError:  stringOrEmpty(lastSyncError),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		CreatedBy:      stringOrEmpty(createdBy),
	}), nil
}

func translateIntegrationPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return integration.ErrIntegrationNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return integration.ErrAlreadyExists
		case foreignKeyViolationCode:
			return integration.ErrOrganizationNotFound
		case checkViolationCode:
			return integration.ErrInvalidStatus
		}
	}

	return err
}
