package employee

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/spendsync/internal/core/shared"
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

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	SuspendEmployee(ctx context.Context, in ChangeStatusInput) (*Employee, error)
	ReactivateEmployee(ctx context.Context, in ChangeStatusInput) (*Employee, error)
	OffboardEmployee(ctx context.Context, in ChangeStatusInput) (*Employee, error)
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

// CreateEmployeeInput は社員作成時の入力です。
type CreateEmployeeInput struct {
	OrganizationID  string
	Name            string
	Email           string
	Title           string
	Phone           string
	AvatarURL       string
	DepartmentID    string
	ManagerID       string
	HiredAt         *time.Time
	MonthlySaaSCost *int64
	Currency        string
	ActorID         string
}

// UpdateEmployeeInput は社員更新時の入力です。nil の項目は変更しません。
type UpdateEmployeeInput struct {
	OrganizationID  string
	ID              string
	Name            *string
	Email           *string
	Title           *string
	Phone           *string
	AvatarURL       *string
	DepartmentID    *string
	ManagerID       *string
	HiredAt         *time.Time
	MonthlySaaSCost *int64
	Currency        string
	ActorID         string
}

// ChangeStatusInput は在籍状態変更時の入力です。
type ChangeStatusInput struct {
	OrganizationID string
	ID             string
	ActorID        string
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	OrganizationID string
	ID             string
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	OrganizationID string
	PageSize       int
	PageToken      string
	Status         *Status
	DepartmentID   *string
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	NextPageToken string
}

// CreateEmployee は新しい社員を作成します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	orgID, err := normalizeOrganizationID(in.OrganizationID)
	if err != nil {
		return nil, err
	}

	email, err := shared.NewEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	cost, err := normalizeCost(in.MonthlySaaSCost, in.Currency)
	if err != nil {
		return nil, err
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmailNotExists(txCtx, orgID, email, ""); err != nil {
			return err
		}

		emp, err := New(NewParams{
			OrganizationID:  orgID,
			Name:            in.Name,
			Email:           email,
			Title:           strings.TrimSpace(in.Title),
			Phone:           strings.TrimSpace(in.Phone),
			AvatarURL:       strings.TrimSpace(in.AvatarURL),
			DepartmentID:    strings.TrimSpace(in.DepartmentID),
			ManagerID:       strings.TrimSpace(in.ManagerID),
			HiredAt:         normalizeDate(in.HiredAt),
			MonthlySaaSCost: cost,
			CreatedBy:       in.ActorID,
		}, s.clock.Now())
		if err != nil {
			return err
		}

		if err := s.repo.Save(txCtx, emp); err != nil {
			return err
		}

		created = emp
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateEmployee は社員情報を更新します。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	orgID, id, err := normalizeKey(in.OrganizationID, in.ID)
	if err != nil {
		return nil, err
	}

	var updated *Employee
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

		if in.Email != nil {
			email, err := shared.NewEmail(*in.Email)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidEmail, err)
			}
			if !email.Equals(existing.Email()) {
				if err := s.ensureEmailNotExists(txCtx, orgID, email, existing.ID()); err != nil {
					return err
				}
				existing.UpdateEmail(email, now)
			}
		}

		existing.UpdateProfile(ProfileUpdate{
			Title:     in.Title,
			Phone:     in.Phone,
			AvatarURL: in.AvatarURL,
			HiredAt:   normalizeDate(in.HiredAt),
		}, now)

		if in.DepartmentID != nil {
			existing.UpdateDepartment(strings.TrimSpace(*in.DepartmentID), now)
		}

		if in.ManagerID != nil {
			managerID := strings.TrimSpace(*in.ManagerID)
			if managerID == existing.ID() {
				return fmt.Errorf("manager_id: %w", ErrInvalidID)
			}
			existing.UpdateManager(managerID, now)
		}

		if in.MonthlySaaSCost != nil {
			cost, err := normalizeCost(in.MonthlySaaSCost, in.Currency)
			if err != nil {
				return err
			}
			existing.UpdateMonthlySaaSCost(*cost, now)
		}

		existing.SetUpdatedBy(in.ActorID, now)

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

// SuspendEmployee は社員を休止状態にします。
func (s *Service) SuspendEmployee(ctx context.Context, in ChangeStatusInput) (*Employee, error) {
	return s.changeStatus(ctx, in, (*Employee).Suspend)
}

// ReactivateEmployee は休止中の社員を復帰させます。
func (s *Service) ReactivateEmployee(ctx context.Context, in ChangeStatusInput) (*Employee, error) {
	return s.changeStatus(ctx, in, (*Employee).Reactivate)
}

// OffboardEmployee は社員を退職状態にします。
func (s *Service) OffboardEmployee(ctx context.Context, in ChangeStatusInput) (*Employee, error) {
	return s.changeStatus(ctx, in, (*Employee).Offboard)
}

func (s *Service) changeStatus(ctx context.Context, in ChangeStatusInput, transition func(*Employee, time.Time) error) (*Employee, error) {
	orgID, id, err := normalizeKey(in.OrganizationID, in.ID)
	if err != nil {
		return nil, err
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, orgID, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := transition(existing, now); err != nil {
			return err
		}
		existing.SetUpdatedBy(in.ActorID, now)

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

// GetEmployee は社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	orgID, id, err := normalizeKey(in.OrganizationID, in.ID)
	if err != nil {
		return nil, err
	}

	var result *Employee
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

// ListEmployees は社員の一覧を取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
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

	var statusPtr *Status
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		statusPtr = &status
	}

	var departmentPtr *string
	if in.DepartmentID != nil {
		departmentID := strings.TrimSpace(*in.DepartmentID)
		departmentPtr = &departmentID
	}

	var (
		employees []*Employee
		nextToken string
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		resultEmployees, token, err := s.repo.List(txCtx, ListEmployeesFilter{
			OrganizationID: orgID,
			Status:         statusPtr,
			DepartmentID:   departmentPtr,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			return err
		}
		employees = resultEmployees
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListEmployeesResult{Employees: employees, NextPageToken: nextToken}, nil
}

func (s *Service) ensureEmailNotExists(ctx context.Context, orgID string, email shared.Email, selfID string) error {
	emp, err := s.repo.FindByEmail(ctx, orgID, email)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil && emp.ID() != selfID {
		return ErrEmailAlreadyExists
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

func normalizeCost(amount *int64, currency string) (*shared.Money, error) {
	if amount == nil {
		return nil, nil
	}
	if *amount < 0 {
		return nil, ErrInvalidCost
	}
	if strings.TrimSpace(currency) == "" {
		currency = shared.DefaultCurrency
	}
	cost, err := shared.NewMoney(*amount, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCost, err)
	}
	return &cost, nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	normalized := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &normalized
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
