package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/spendsync/internal/core/organization"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// OrganizationFinder は連携先組織の存在確認に使います。
type OrganizationFinder interface {
	FindByID(ctx context.Context, id string) (*organization.Organization, error)
}

// ConnectionTester は外部ディレクトリへの疎通確認を行います。
type ConnectionTester interface {
	TestConnection(ctx context.Context, integration *Integration) error
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
	overdueScanPageSize = 200
)

// Service は連携設定に関するユースケースをまとめます。
type Service struct {
	repo   Repository
	orgs   OrganizationFinder
	tester ConnectionTester
	clock  Clock
	tx     TransactionManager
}

// UseCase は連携設定ユースケースの公開インターフェースです。
type UseCase interface {
	CreateIntegration(ctx context.Context, in CreateIntegrationInput) (*Integration, error)
	GetIntegration(ctx context.Context, in GetIntegrationInput) (*Integration, error)
	ListIntegrations(ctx context.Context, in ListIntegrationsInput) (*ListIntegrationsResult, error)
	ActivateIntegration(ctx context.Context, in GetIntegrationInput) (*Integration, error)
	DisableIntegration(ctx context.Context, in GetIntegrationInput) (*Integration, error)
	TestConnection(ctx context.Context, in GetIntegrationInput) (*TestConnectionResult, error)
	ListOverdueIntegrations(ctx context.Context, in ListOverdueIntegrationsInput) ([]*Integration, error)
}

// NewService は Service を生成します。orgs が nil の場合は組織の存在確認を行いません。
func NewService(repo Repository, orgs OrganizationFinder, tester ConnectionTester, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, orgs: orgs, tester: tester, clock: clock, tx: tx}
}

// CreateIntegrationInput は連携作成時の入力です。
type CreateIntegrationInput struct {
	OrganizationID string
	Provider       Provider
	Credentials    []byte
	Config         map[string]any
	CreatedBy      string
}

// GetIntegrationInput は連携を一意に特定する入力です。
type GetIntegrationInput struct {
	OrganizationID string
	ID             string
}

// ListIntegrationsInput は一覧取得時の入力です。
type ListIntegrationsInput struct {
	OrganizationID string
	Status         *Status
	PageSize       int
	PageToken      string
}

// ListIntegrationsResult は一覧取得結果です。
type ListIntegrationsResult struct {
	Integrations  []*Integration
	NextPageToken string
}

// ListOverdueIntegrationsInput は同期遅延中の連携を探す入力です。
type ListOverdueIntegrationsInput struct {
	Threshold time.Duration
}

// TestConnectionResult は接続テストの結果です。
type TestConnectionResult struct {
	Integration *Integration
	Success     bool
	Message     string
}

// CreateIntegration は pending 状態の連携を作成します。
func (s *Service) CreateIntegration(ctx context.Context, in CreateIntegrationInput) (*Integration, error) {
	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		return nil, ErrInvalidOrganizationID
	}
	if !in.Provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, in.Provider)
	}

	var created *Integration
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureOrganizationExists(txCtx, orgID); err != nil {
			return err
		}

		existing, err := s.repo.FindByOrganizationAndProvider(txCtx, orgID, in.Provider)
		if err != nil && !errors.Is(err, ErrIntegrationNotFound) {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, in.Provider)
		}

		integration, err := New(NewParams{
			OrganizationID: orgID,
			Provider:       in.Provider,
			Credentials:    in.Credentials,
			Config:         in.Config,
			CreatedBy:      in.CreatedBy,
		}, s.clock.Now())
		if err != nil {
			return err
		}

		if err := s.repo.Save(txCtx, integration); err != nil {
			return err
		}
		created = integration
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// GetIntegration は連携を取得します。
func (s *Service) GetIntegration(ctx context.Context, in GetIntegrationInput) (*Integration, error) {
	orgID, id, err := normalizeKey(in.OrganizationID, in.ID)
	if err != nil {
		return nil, err
	}

	var result *Integration
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.findInOrganization(txCtx, orgID, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListIntegrations は組織の連携一覧を取得します。
func (s *Service) ListIntegrations(ctx context.Context, in ListIntegrationsInput) (*ListIntegrationsResult, error) {
	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		return nil, ErrInvalidOrganizationID
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var statuses []Status
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		statuses = []Status{*in.Status}
	}

	var result ListIntegrationsResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		items, token, err := s.repo.List(txCtx, ListIntegrationsFilter{
			OrganizationID: orgID,
			Statuses:       statuses,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			return err
		}
		result.Integrations = items
		result.NextPageToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// ActivateIntegration は連携を有効化します。
func (s *Service) ActivateIntegration(ctx context.Context, in GetIntegrationInput) (*Integration, error) {
	return s.mutate(ctx, in, func(i *Integration, now time.Time) error {
		return i.Activate(now)
	})
}

// DisableIntegration は連携を無効化します。
func (s *Service) DisableIntegration(ctx context.Context, in GetIntegrationInput) (*Integration, error) {
	return s.mutate(ctx, in, func(i *Integration, now time.Time) error {
		i.Disable(now)
		return nil
	})
}

// TestConnection は外部ディレクトリへの疎通を確認し、結果に応じて状態を更新します。
// 疎通失敗は error ではなく結果として返します。
func (s *Service) TestConnection(ctx context.Context, in GetIntegrationInput) (*TestConnectionResult, error) {
	if s.tester == nil {
		return nil, ErrConnectionTesterUnavailable
	}

	current, err := s.GetIntegration(ctx, in)
	if err != nil {
		return nil, err
	}
	if current.IsDisabled() {
		return nil, ErrIntegrationDisabled
	}

	testErr := s.tester.TestConnection(ctx, current)

	updated, err := s.mutate(ctx, in, func(i *Integration, now time.Time) error {
		if testErr != nil {
			return i.MarkAsError(testErr.Error(), now)
		}
		return i.Activate(now)
	})
	if err != nil {
		return nil, err
	}

	result := &TestConnectionResult{Integration: updated, Success: testErr == nil}
	if testErr != nil {
		result.Message = testErr.Error()
	}
	return result, nil
}

// ListOverdueIntegrations は同期が threshold を超えて滞っている active / error の連携を返します。
func (s *Service) ListOverdueIntegrations(ctx context.Context, in ListOverdueIntegrationsInput) ([]*Integration, error) {
	now := s.clock.Now()

	var overdue []*Integration
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		offset := 0
		for {
			items, token, err := s.repo.List(txCtx, ListIntegrationsFilter{
				Statuses: []Status{StatusActive, StatusError},
				Limit:    overdueScanPageSize,
				Offset:   offset,
			})
			if err != nil {
				return err
			}
			for _, item := range items {
				if item.IsSyncOverdue(now, in.Threshold) {
					overdue = append(overdue, item)
				}
			}
			if token == "" {
				return nil
			}
			next, err := parsePageToken(token)
			if err != nil {
				return err
			}
			offset = next
		}
	}); err != nil {
		return nil, err
	}

	return overdue, nil
}

func (s *Service) mutate(ctx context.Context, in GetIntegrationInput, fn func(*Integration, time.Time) error) (*Integration, error) {
	orgID, id, err := normalizeKey(in.OrganizationID, in.ID)
	if err != nil {
		return nil, err
	}

	var updated *Integration
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.findInOrganization(txCtx, orgID, id)
		if err != nil {
			return err
		}
		if err := fn(existing, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) findInOrganization(ctx context.Context, orgID, id string) (*Integration, error) {
	found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if found.OrganizationID() != orgID {
		return nil, ErrIntegrationNotFound
	}
	return found, nil
}

func (s *Service) ensureOrganizationExists(ctx context.Context, orgID string) error {
	if s.orgs == nil {
		return nil
	}
	if _, err := s.orgs.FindByID(ctx, orgID); err != nil {
		if errors.Is(err, organization.ErrOrganizationNotFound) {
			return fmt.Errorf("%w: %s", ErrOrganizationNotFound, orgID)
		}
		return err
	}
	return nil
}

func normalizeKey(rawOrgID, rawID string) (string, string, error) {
	orgID := strings.TrimSpace(rawOrgID)
	if orgID == "" {
		return "", "", ErrInvalidOrganizationID
	}
	id := strings.TrimSpace(rawID)
	if id == "" {
		return "", "", fmt.Errorf("id: %w", ErrInvalidID)
	}
	return orgID, id, nil
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
