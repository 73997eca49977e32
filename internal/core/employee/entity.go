package employee

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/spendsync/internal/core/shared"
)

// Status は社員の在籍状態を表します。
type Status string

const (
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended"
	StatusOffboarded Status = "offboarded"
)

// IsValid は定義済みの状態かどうかを返します。
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusOffboarded:
		return true
	default:
		return false
	}
}

// Employee は組織に所属する社員の集約です。
// 状態遷移はメソッド経由でのみ行われ、offboarded は終端状態です。
type Employee struct {
	id               string
	organizationID   string
	name             string
	email            shared.Email
	status           Status
	title            string
	phone            string
	avatarURL        string
	departmentID     string
	managerID        string
	hiredAt          *time.Time
	offboardedAt     *time.Time
	externalID       string
	externalProvider shared.IdentityProvider
	metadata         map[string]any
	monthlySaaSCost  shared.Money
	createdAt        time.Time
	updatedAt        time.Time
	createdBy        string
	updatedBy        string
}

// NewParams は社員生成時のパラメータです。
type NewParams struct {
	OrganizationID   string
	Name             string
	Email            shared.Email
	Title            string
	Phone            string
	AvatarURL        string
	DepartmentID     string
	ManagerID        string
	HiredAt          *time.Time
	ExternalID       string
	ExternalProvider shared.IdentityProvider
	Metadata         map[string]any
	MonthlySaaSCost  *shared.Money
	CreatedBy        string
}

// New は ID を採番し active 状態の社員を生成します。
func New(p NewParams, now time.Time) (*Employee, error) {
	orgID := strings.TrimSpace(p.OrganizationID)
	if orgID == "" {
		return nil, ErrInvalidOrganizationID
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if p.Email.IsZero() {
		return nil, ErrInvalidEmail
	}
	if p.ExternalProvider != "" && !p.ExternalProvider.IsValid() {
		return nil, shared.ErrInvalidIdentityProvider
	}

	cost, err := shared.ZeroMoney(shared.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if p.MonthlySaaSCost != nil {
		cost = *p.MonthlySaaSCost
	}

	metadata := make(map[string]any, len(p.Metadata))
	maps.Copy(metadata, p.Metadata)

	return &Employee{
		id:               uuid.NewString(),
		organizationID:   orgID,
		name:             name,
		email:            p.Email,
		status:           StatusActive,
		title:            p.Title,
		phone:            p.Phone,
		avatarURL:        p.AvatarURL,
		departmentID:     p.DepartmentID,
		managerID:        p.ManagerID,
		hiredAt:          cloneTime(p.HiredAt),
		externalID:       p.ExternalID,
		externalProvider: p.ExternalProvider,
		metadata:         metadata,
		monthlySaaSCost:  cost,
		createdAt:        now,
		updatedAt:        now,
		createdBy:        p.CreatedBy,
		updatedBy:        p.CreatedBy,
	}, nil
}

// Snapshot は永続化層との受け渡しに使う社員の全属性です。
type Snapshot struct {
	ID               string
	OrganizationID   string
	Name             string
	Email            shared.Email
	Status           Status
	Title            string
	Phone            string
	AvatarURL        string
	DepartmentID     string
	ManagerID        string
	HiredAt          *time.Time
	OffboardedAt     *time.Time
	ExternalID       string
	ExternalProvider shared.IdentityProvider
	Metadata         map[string]any
	MonthlySaaSCost  shared.Money
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CreatedBy        string
	UpdatedBy        string
}

// Reconstitute は永続化済みの値から社員を復元します。状態は保存値をそのまま信頼します。
func Reconstitute(s Snapshot) *Employee {
	metadata := make(map[string]any, len(s.Metadata))
	maps.Copy(metadata, s.Metadata)

	return &Employee{
		id:               s.ID,
		organizationID:   s.OrganizationID,
		name:             s.Name,
		email:            s.Email,
		status:           s.Status,
		title:            s.Title,
		phone:            s.Phone,
		avatarURL:        s.AvatarURL,
		departmentID:     s.DepartmentID,
		managerID:        s.ManagerID,
		hiredAt:          cloneTime(s.HiredAt),
		offboardedAt:     cloneTime(s.OffboardedAt),
		externalID:       s.ExternalID,
		externalProvider: s.ExternalProvider,
		metadata:         metadata,
		monthlySaaSCost:  s.MonthlySaaSCost,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
		createdBy:        s.CreatedBy,
		updatedBy:        s.UpdatedBy,
	}
}

// Snapshot は現在の属性のコピーを返します。
func (e *Employee) Snapshot() Snapshot {
	metadata := make(map[string]any, len(e.metadata))
	maps.Copy(metadata, e.metadata)

	return Snapshot{
		ID:               e.id,
		OrganizationID:   e.organizationID,
		Name:             e.name,
		Email:            e.email,
		Status:           e.status,
		Title:            e.title,
		Phone:            e.phone,
		AvatarURL:        e.avatarURL,
		DepartmentID:     e.departmentID,
		ManagerID:        e.managerID,
		HiredAt:          cloneTime(e.hiredAt),
		OffboardedAt:     cloneTime(e.offboardedAt),
		ExternalID:       e.externalID,
		ExternalProvider: e.externalProvider,
		Metadata:         metadata,
		MonthlySaaSCost:  e.monthlySaaSCost,
		CreatedAt:        e.createdAt,
		UpdatedAt:        e.updatedAt,
		CreatedBy:        e.createdBy,
		UpdatedBy:        e.updatedBy,
	}
}

func (e *Employee) ID() string                                { return e.id }
func (e *Employee) OrganizationID() string                    { return e.organizationID }
func (e *Employee) Name() string                              { return e.name }
func (e *Employee) Email() shared.Email                       { return e.email }
func (e *Employee) Status() Status                            { return e.status }
func (e *Employee) Title() string                             { return e.title }
func (e *Employee) Phone() string                             { return e.phone }
func (e *Employee) AvatarURL() string                         { return e.avatarURL }
func (e *Employee) DepartmentID() string                      { return e.departmentID }
func (e *Employee) ManagerID() string                         { return e.managerID }
func (e *Employee) HiredAt() *time.Time                       { return cloneTime(e.hiredAt) }
func (e *Employee) OffboardedAt() *time.Time                  { return cloneTime(e.offboardedAt) }
func (e *Employee) ExternalID() string                        { return e.externalID }
func (e *Employee) ExternalProvider() shared.IdentityProvider { return e.externalProvider }
func (e *Employee) MonthlySaaSCost() shared.Money             { return e.monthlySaaSCost }
func (e *Employee) CreatedAt() time.Time                      { return e.createdAt }
func (e *Employee) UpdatedAt() time.Time                      { return e.updatedAt }
func (e *Employee) CreatedBy() string                         { return e.createdBy }
func (e *Employee) UpdatedBy() string                         { return e.updatedBy }

// Metadata は任意属性のコピーを返します。
func (e *Employee) Metadata() map[string]any {
	metadata := make(map[string]any, len(e.metadata))
	maps.Copy(metadata, e.metadata)
	return metadata
}

// HasExternalID は外部 ID プロバイダと紐づいているかを返します。
func (e *Employee) HasExternalID() bool {
	return e.externalID != ""
}

// Offboard は社員を退職状態にします。既に退職済みの場合はエラーです。
func (e *Employee) Offboard(now time.Time) error {
	if e.status == StatusOffboarded {
		return ErrEmployeeAlreadyOffboarded
	}
	e.status = StatusOffboarded
	e.offboardedAt = &now
	e.updatedAt = now
	return nil
}

// Suspend は active の社員を休止状態にします。
func (e *Employee) Suspend(now time.Time) error {
	if e.status != StatusActive {
		return fmt.Errorf("%w: cannot suspend from %s", ErrInvalidEmployeeStatus, e.status)
	}
	e.status = StatusSuspended
	e.updatedAt = now
	return nil
}

// Reactivate は休止中の社員を active に戻します。
func (e *Employee) Reactivate(now time.Time) error {
	if e.status != StatusSuspended {
		return fmt.Errorf("%w: cannot reactivate from %s", ErrInvalidEmployeeStatus, e.status)
	}
	e.status = StatusActive
	e.updatedAt = now
	return nil
}

// ProfileUpdate はプロフィール部分更新の値です。nil の項目は変更しません。
type ProfileUpdate struct {
	Title     *string
	Phone     *string
	AvatarURL *string
	HiredAt   *time.Time
}

// UpdateProfile はプロフィール項目を更新します。
func (e *Employee) UpdateProfile(p ProfileUpdate, now time.Time) {
	if p.Title != nil {
		e.title = strings.TrimSpace(*p.Title)
	}
	if p.Phone != nil {
		e.phone = strings.TrimSpace(*p.Phone)
	}
	if p.AvatarURL != nil {
		e.avatarURL = strings.TrimSpace(*p.AvatarURL)
	}
	if p.HiredAt != nil {
		e.hiredAt = cloneTime(p.HiredAt)
	}
	e.updatedAt = now
}

// UpdateName は氏名を更新します。
func (e *Employee) UpdateName(name string, now time.Time) {
	e.name = strings.TrimSpace(name)
	e.updatedAt = now
}

// UpdateEmail はメールアドレスを更新します。
func (e *Employee) UpdateEmail(email shared.Email, now time.Time) {
	e.email = email
	e.updatedAt = now
}

// UpdateDepartment は所属部署を更新します。空文字で解除します。
func (e *Employee) UpdateDepartment(departmentID string, now time.Time) {
	e.departmentID = departmentID
	e.updatedAt = now
}

// UpdateManager は上長を更新します。空文字で解除します。
func (e *Employee) UpdateManager(managerID string, now time.Time) {
	e.managerID = managerID
	e.updatedAt = now
}

// UpdateExternalID は外部 ID プロバイダとの紐づけを更新します。
func (e *Employee) UpdateExternalID(externalID string, provider shared.IdentityProvider, now time.Time) {
	e.externalID = externalID
	e.externalProvider = provider
	e.updatedAt = now
}

// UpdateMonthlySaaSCost は月額 SaaS コストを更新します。
func (e *Employee) UpdateMonthlySaaSCost(cost shared.Money, now time.Time) {
	e.monthlySaaSCost = cost
	e.updatedAt = now
}

// UpdateMetadata は任意属性を置き換えます。
func (e *Employee) UpdateMetadata(metadata map[string]any, now time.Time) {
	e.metadata = make(map[string]any, len(metadata))
	maps.Copy(e.metadata, metadata)
	e.updatedAt = now
}

// SetUpdatedBy は最終更新者を記録します。
func (e *Employee) SetUpdatedBy(actorID string, now time.Time) {
	e.updatedBy = actorID
	e.updatedAt = now
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
