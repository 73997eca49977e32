package department

import (
	"context"
	"errors"
	"fmt"
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
	// maxAncestorDepth は親子関係を辿る上限です。
	maxAncestorDepth = 64
)

// Service は部署に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は部署ユースケースの公開インターフェースです。
type UseCase interface {
	CreateDepartment(ctx context.Context, in CreateDepartmentInput) (*Department, error)
	GetDepartment(ctx context.Context, in GetDepartmentInput) (*Department, error)
	ListDepartments(ctx context.Context, in ListDepartmentsInput) (*ListDepartmentsResult, error)
	UpdateDepartment(ctx context.Context, in UpdateDepartmentInput) (*Department, error)
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

// CreateDepartmentInput は部署作成時の入力です。
type CreateDepartmentInput struct {
	OrganizationID string
	Name           string
	Description    string
	ParentID       string
}

// UpdateDepartmentInput は部署更新時の入力です。ParentID に空文字を渡すとルート部署になります。
type UpdateDepartmentInput struct {
	OrganizationID string
	ID             string
	Name           *string
	Description    *string
	ParentID       *string
}

// GetDepartmentInput は部署取得時の入力です。
type GetDepartmentInput struct {
	OrganizationID string
	ID             string
}

// ListDepartmentsInput は一覧取得時の入力です。
type ListDepartmentsInput struct {
	OrganizationID string
	ParentID       *string
	PageSize       int
	PageToken      string
}

// ListDepartmentsResult は一覧取得結果を表します。
type ListDepartmentsResult struct {
	Departments   []*Department
	NextPageToken string
}

// CreateDepartment は新しい部署を作成します。
func (s *Service) CreateDepartment(ctx context.Context, in CreateDepartmentInput) (*Department, error) {
	orgID, err := normalizeOrganizationID(in.OrganizationID)
	if err != nil {
		return nil, err
	}
	parentID := strings.TrimSpace(in.ParentID)

	var created *Department
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if parentID != "" {
			if _, err := s.findParent(txCtx, orgID, parentID); err != nil {
				return err
			}
		}

		dept, err := New(NewParams{
			OrganizationID: orgID,
			Name:           in.Name,
			Description:    in.Description,
			ParentID:       parentID,
		}, s.clock.Now())
		if err != nil {
			return err
		}

		if err := s.repo.Save(txCtx, dept); err != nil {
			return err
		}
		created = dept
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateDepartment は部署情報を更新します。
func (s *Service) UpdateDepartment(ctx context.Context, in UpdateDepartmentInput) (*Department, error) {
	orgID, id, err := normalizeKey(in.OrganizationID, in.ID)
	if err != nil {
		return nil, err
	}

	var updated *Department
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, orgID, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrInvalidName
			}
			existing.UpdateName(name, now)
		}

		if in.Description != nil {
			existing.UpdateDescription(*in.Description, now)
		}

		if in.ParentID != nil {
			parentID := strings.TrimSpace(*in.ParentID)
			if parentID != "" {
				if err := s.ensureNotDescendant(txCtx, orgID, existing.ID(), parentID); err != nil {
					return err
				}
			}
			existing.UpdateParent(parentID, now)
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

// GetDepartment は部署を取得します。
func (s *Service) GetDepartment(ctx context.Context, in GetDepartmentInput) (*Department, error) {
	orgID, id, err := normalizeKey(in.OrganizationID, in.ID)
	if err != nil {
		return nil, err
	}

	var result *Department
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, orgID, id)
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

// ListDepartments は部署の一覧を取得します。
func (s *Service) ListDepartments(ctx context.Context, in ListDepartmentsInput) (*ListDepartmentsResult, error) {
	orgID, err := normalizeOrganizationID(in.OrganizationID)
	if err != nil {
		return nil, err
	}

	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var parentPtr *string
	if in.ParentID != nil {
		parentID := strings.TrimSpace(*in.ParentID)
		parentPtr = &parentID
	}

	var result ListDepartmentsResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		departments, token, err := s.repo.List(txCtx, ListDepartmentsFilter{
			OrganizationID: orgID,
			ParentID:       parentPtr,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			return err
		}
		result.Departments = departments
		result.NextPageToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *Service) findParent(ctx context.Context, orgID, parentID string) (*Department, error) {
	parent, err := s.repo.FindByID(ctx, orgID, parentID)
	if err != nil {
		if errors.Is(err, ErrDepartmentNotFound) {
			return nil, ErrParentNotFound
		}
		return nil, err
	}
	return parent, nil
}

// ensureNotDescendant は parentID から祖先を辿り、selfID が現れないことを確認します。
func (s *Service) ensureNotDescendant(ctx context.Context, orgID, selfID, parentID string) error {
	current := parentID
	for depth := 0; current != ""; depth++ {
		if current == selfID {
			return fmt.Errorf("%w: %s would become its own ancestor", ErrInvalidParent, selfID)
		}
		if depth >= maxAncestorDepth {
			return fmt.Errorf("%w: hierarchy deeper than %d", ErrInvalidParent, maxAncestorDepth)
		}
		ancestor, err := s.findParent(ctx, orgID, current)
		if err != nil {
			return err
		}
		current = ancestor.ParentID()
	}
	return nil
}

func normalizeOrganizationID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidOrganizationID
	}
	return trimmed, nil
}

func normalizeKey(rawOrgID, rawID string) (string, string, error) {
	orgID, err := normalizeOrganizationID(rawOrgID)
	if err != nil {
		return "", "", err
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
