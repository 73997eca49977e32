package organization

import "time"

// Status は組織の状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Organization は社員・部署・連携設定をスコープするテナントです。
type Organization struct {
	ID        string
	Name      string
	Slug      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive は組織が有効かどうかを返します。
func (o *Organization) IsActive() bool {
	return o != nil && o.Status == StatusActive
}
