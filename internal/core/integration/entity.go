package integration

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status は連携設定の状態を表します。
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusError    Status = "error"
	StatusDisabled Status = "disabled"
)

// IsValid は定義済みの状態かどうかを返します。
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusError, StatusDisabled:
		return true
	default:
		return false
	}
}

// SyncStatus は直近の同期結果です。
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// DefaultOverdueThreshold は IsSyncOverdue の既定しきい値です。
const DefaultOverdueThreshold = 2 * time.Hour

// Integration は組織と外部ディレクトリの接続設定です。
//
//	pending  -> active   (Activate)
//	pending  -> error    (MarkAsError)
//	error    -> active   (Activate, RecordSyncSuccess)
//	active   -> error    (RecordSyncError)
//	*        -> disabled (Disable)
//
// disabled からは Activate も同期結果の記録もできません。
type Integration struct {
	id             string
	organizationID string
	provider       Provider
	status         Status
	credentials    []byte
	config         map[string]any
	lastSyncAt     *time.Time
	lastSyncStatus SyncStatus
	lastSyncError  string
	createdAt      time.Time
	updatedAt      time.Time
	createdBy      string
}

// NewParams は連携設定生成時のパラメータです。
type NewParams struct {
	OrganizationID string
	Provider       Provider
	Credentials    []byte
	Config         map[string]any
	CreatedBy      string
}

// New は pending 状態の連携設定を生成します。
func New(p NewParams, now time.Time) (*Integration, error) {
	orgID := strings.TrimSpace(p.OrganizationID)
	if orgID == "" {
		return nil, ErrInvalidOrganizationID
	}
	if !p.Provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, p.Provider)
	}

	config := make(map[string]any, len(p.Config))
	maps.Copy(config, p.Config)

	return &Integration{
		id:             uuid.NewString(),
		organizationID: orgID,
		provider:       p.Provider,
		status:         StatusPending,
		credentials:    cloneBytes(p.Credentials),
		config:         config,
		createdAt:      now,
		updatedAt:      now,
		createdBy:      p.CreatedBy,
	}, nil
}

// Snapshot は永続化層との受け渡しに使う全属性です。
type Snapshot struct {
	ID             string
	OrganizationID string
	Provider       Provider
	Status         Status
	Credentials    []byte
	Config         map[string]any
	LastSyncAt     *time.Time
	LastSyncStatus SyncStatus
	LastSyncError  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreatedBy      string
}

// Reconstitute は永続化済みの値から連携設定を復元します。
func Reconstitute(s Snapshot) *Integration {
	config := make(map[string]any, len(s.Config))
	maps.Copy(config, s.Config)

	return &Integration{
		id:             s.ID,
		organizationID: s.OrganizationID,
		provider:       s.Provider,
		status:         s.Status,
		credentials:    cloneBytes(s.Credentials),
		config:         config,
		lastSyncAt:     cloneTime(s.LastSyncAt),
		lastSyncStatus: s.LastSyncStatus,
		lastSyncError:  s.LastSyncError,
		createdAt:      s.CreatedAt,
		updatedAt:      s.UpdatedAt,
		createdBy:      s.CreatedBy,
	}
}

// Snapshot は現在の属性のコピーを返します。
func (i *Integration) Snapshot() Snapshot {
	return Snapshot{
		ID:             i.id,
		OrganizationID: i.organizationID,
		Provider:       i.provider,
		Status:         i.status,
		Credentials:    cloneBytes(i.credentials),
		Config:         i.Config(),
		LastSyncAt:     cloneTime(i.lastSyncAt),
		LastSyncStatus: i.lastSyncStatus,
		LastSyncError:  i.lastSyncError,
		CreatedAt:      i.createdAt,
		UpdatedAt:      i.updatedAt,
		CreatedBy:      i.createdBy,
	}
}

func (i *Integration) ID() string                 { return i.id }
func (i *Integration) OrganizationID() string     { return i.organizationID }
func (i *Integration) Provider() Provider         { return i.provider }
func (i *Integration) Status() Status             { return i.status }
func (i *Integration) Credentials() []byte        { return cloneBytes(i.credentials) }
func (i *Integration) LastSyncAt() *time.Time     { return cloneTime(i.lastSyncAt) }
func (i *Integration) LastSyncStatus() SyncStatus { return i.lastSyncStatus }
func (i *Integration) LastSyncError() string      { return i.lastSyncError }
func (i *Integration) CreatedAt() time.Time       { return i.createdAt }
func (i *Integration) UpdatedAt() time.Time       { return i.updatedAt }
func (i *Integration) CreatedBy() string          { return i.createdBy }

// Config は設定値のコピーを返します。
func (i *Integration) Config() map[string]any {
	config := make(map[string]any, len(i.config))
	maps.Copy(config, i.config)
	return config
}

// ConfigString は文字列の設定値を返します。未設定や型違いの場合は空文字です。
func (i *Integration) ConfigString(key string) string {
	v, ok := i.config[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// IsDisabled は無効化済みかどうかを返します。
func (i *Integration) IsDisabled() bool {
	return i.status == StatusDisabled
}

// Activate は連携を有効化します。既に active の場合は何もしません。
func (i *Integration) Activate(now time.Time) error {
	switch i.status {
	case StatusActive:
		return nil
	case StatusDisabled:
		return fmt.Errorf("%w: cannot activate from %s", ErrInvalidStatusTransition, i.status)
	}
	i.status = StatusActive
	i.updatedAt = now
	return nil
}

// MarkAsError は接続確認などの失敗を記録します。lastSyncAt は変更しません。
func (i *Integration) MarkAsError(message string, now time.Time) error {
	if i.status == StatusDisabled {
		return ErrIntegrationDisabled
	}
	i.status = StatusError
	i.lastSyncError = message
	i.updatedAt = now
	return nil
}

// RecordSyncSuccess は同期成功を記録し active に戻します。
func (i *Integration) RecordSyncSuccess(completedAt time.Time) error {
	if i.status == StatusDisabled {
		return ErrIntegrationDisabled
	}
	i.status = StatusActive
	i.lastSyncStatus = SyncStatusSuccess
	i.lastSyncError = ""
	i.lastSyncAt = &completedAt
	i.updatedAt = completedAt
	return nil
}

// RecordSyncError は同期失敗を記録し error にします。
func (i *Integration) RecordSyncError(message string, at time.Time) error {
	if i.status == StatusDisabled {
		return ErrIntegrationDisabled
	}
	i.status = StatusError
	i.lastSyncStatus = SyncStatusError
	i.lastSyncError = message
	i.lastSyncAt = &at
	i.updatedAt = at
	return nil
}

// Disable は連携を無効化します。既に disabled の場合は何もしません。
func (i *Integration) Disable(now time.Time) {
	if i.status == StatusDisabled {
		return
	}
	i.status = StatusDisabled
	i.updatedAt = now
}

// IsSyncOverdue は未同期、または最終同期から threshold を超えて経過しているかを返します。
// threshold が 0 以下の場合は DefaultOverdueThreshold を使います。
func (i *Integration) IsSyncOverdue(now time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultOverdueThreshold
	}
	if i.lastSyncAt == nil {
		return true
	}
	return now.Sub(*i.lastSyncAt) > threshold
}

// UpdateConfig は設定値を置き換えます。
func (i *Integration) UpdateConfig(config map[string]any, now time.Time) {
	i.config = make(map[string]any, len(config))
	maps.Copy(i.config, config)
	i.updatedAt = now
}

// UpdateCredentials は資格情報を置き換えます。
func (i *Integration) UpdateCredentials(credentials []byte, now time.Time) {
	i.credentials = cloneBytes(credentials)
	i.updatedAt = now
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
