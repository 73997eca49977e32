package organization

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
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

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Service は組織に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は組織ユースケースの公開インターフェースです。
type UseCase interface {
	CreateOrganization(ctx context.Context, in CreateOrganizationInput) (*Organization, error)
	GetOrganization(ctx context.Context, in GetOrganizationInput) (*Organization, error)
	ListOrganizations(ctx context.Context, in ListOrganizationsInput) (*ListOrganizationsResult, error)
	UpdateOrganization(ctx context.Context, in UpdateOrganizationInput) (*Organization, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// CreateOrganizationInput は組織作成時の入力です。
type CreateOrganizationInput struct {
	Name string
	Slug string
}

// UpdateOrganizationInput は組織更新時の入力です。
type UpdateOrganizationInput struct {
	ID     string
	Name   *string
	Slug   *string
	Status *Status
}

// GetOrganizationInput は組織取得時の入力です。
type GetOrganizationInput struct {
	ID string
}

// ListOrganizationsInput は一覧取得時の入力です。
type ListOrganizationsInput struct {
	PageSize  int
	PageToken string
	Status    *Status
}

// ListOrganizationsResult は一覧取得結果を表します。
type ListOrganizationsResult struct {
	Organizations []*Organization
	NextPageToken string
}

// CreateOrganization は新しい組織を作成します。
func (s *Service) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (*Organization, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}

	slug, err := normalizeSlug(in.Slug)
	if err != nil {
		return nil, err
	}

	var created *Organization
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureSlugNotExists(txCtx, slug); err != nil {
			return err
		}

		now := s.clock.Now()
		result, err := s.repo.Create(txCtx, &Organization{
			Name:      name,
			Slug:      slug,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateOrganization は組織情報を更新します。
func (s *Service) UpdateOrganization(ctx context.Context, in UpdateOrganizationInput) (*Organization, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var updated *Organization
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if in.Name != nil {
			name, err := normalizeName(*in.Name)
			if err != nil {
				return err
			}
			existing.Name = name
		}

		if in.Slug != nil {
			slug, err := normalizeSlug(*in.Slug)
			if err != nil {
				return err
			}
			if slug != existing.Slug {
				if err := s.ensureSlugNotExists(txCtx, slug); err != nil {
					return err
				}
				existing.Slug = slug
			}
		}

		if in.Status != nil {
			if !isValidStatus(*in.Status) {
				return ErrInvalidStatus
			}
			existing.Status = *in.Status
		}

		existing.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// GetOrganization は ID で組織を取得します。
func (s *Service) GetOrganization(ctx context.Context, in GetOrganizationInput) (*Organization, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var org *Organization
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		org = result
		return nil
	}); err != nil {
		return nil, err
	}

	return org, nil
}

// ListOrganizations は組織の一覧を取得します。
func (s *Service) ListOrganizations(ctx context.Context, in ListOrganizationsInput) (*ListOrganizationsResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	if in.Status != nil && !isValidStatus(*in.Status) {
		return nil, ErrInvalidStatus
	}

	var result ListOrganizationsResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		orgs, token, err := s.repo.List(txCtx, ListOrganizationsFilter{
			Limit:  limit,
			Offset: offset,
			Status: in.Status,
		})
		if err != nil {
			return err
		}
		result.Organizations = orgs
		result.NextPageToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *Service) ensureSlugNotExists(ctx context.Context, slug string) error {
	org, err := s.repo.FindBySlug(ctx, slug)
	if err != nil && !errors.Is(err, ErrOrganizationNotFound) {
		return err
	}
	if org != nil {
		return ErrSlugAlreadyExists
	}
	return nil
}

func normalizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func normalizeSlug(raw string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if !slugPattern.MatchString(lower) {
		return "", ErrInvalidSlug
	}
	return lower, nil
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
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
