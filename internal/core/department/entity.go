package department

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/spendsync/internal/core/shared"
)

// Department は組織内の部署を表す集約です。parentID で親部署を参照します。
// 循環参照の検証は行いません。
type Department struct {
	id               string
	organizationID   string
	name             string
	description      string
	parentID         string
	externalID       string
	externalProvider shared.IdentityProvider
	metadata         map[string]any
	createdAt        time.Time
	updatedAt        time.Time
}

// NewParams は部署生成時のパラメータです。
type NewParams struct {
	OrganizationID   string
	Name             string
	Description      string
	ParentID         string
	ExternalID       string
	ExternalProvider shared.IdentityProvider
	Metadata         map[string]any
}

// New は ID を採番して部署を生成します。
func New(p NewParams, now time.Time) (*Department, error) {
	orgID := strings.TrimSpace(p.OrganizationID)
	if orgID == "" {
		return nil, ErrInvalidOrganizationID
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if p.ExternalProvider != "" && !p.ExternalProvider.IsValid() {
		return nil, shared.ErrInvalidIdentityProvider
	}

	metadata := make(map[string]any, len(p.Metadata))
	maps.Copy(metadata, p.Metadata)

	return &Department{
		id:               uuid.NewString(),
		organizationID:   orgID,
		name:             name,
		description:      strings.TrimSpace(p.Description),
		parentID:         p.ParentID,
		externalID:       p.ExternalID,
		externalProvider: p.ExternalProvider,
		metadata:         metadata,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// Snapshot は永続化層との受け渡しに使う部署の全属性です。
type Snapshot struct {
	ID               string
	OrganizationID   string
	Name             string
	Description      string
	ParentID         string
	ExternalID       string
	ExternalProvider shared.IdentityProvider
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reconstitute は永続化済みの値から部署を復元します。
func Reconstitute(s Snapshot) *Department {
	metadata := make(map[string]any, len(s.Metadata))
	maps.Copy(metadata, s.Metadata)

	return &Department{
		id:               s.ID,
		organizationID:   s.OrganizationID,
		name:             s.Name,
		description:      s.Description,
		parentID:         s.ParentID,
		externalID:       s.ExternalID,
		externalProvider: s.ExternalProvider,
		metadata:         metadata,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// Snapshot は現在の属性のコピーを返します。
func (d *Department) Snapshot() Snapshot {
	metadata := make(map[string]any, len(d.metadata))
	maps.Copy(metadata, d.metadata)

	return Snapshot{
		ID:               d.id,
		OrganizationID:   d.organizationID,
		Name:             d.name,
		Description:      d.description,
		ParentID:         d.parentID,
		ExternalID:       d.externalID,
		ExternalProvider: d.externalProvider,
		Metadata:         metadata,
		CreatedAt:        d.createdAt,
		UpdatedAt:        d.updatedAt,
	}
}

func (d *Department) ID() string                                { return d.id }
func (d *Department) OrganizationID() string                    { return d.organizationID }
func (d *Department) Name() string                              { return d.name }
func (d *Department) Description() string                       { return d.description }
func (d *Department) ParentID() string                          { return d.parentID }
func (d *Department) ExternalID() string                        { return d.externalID }
func (d *Department) ExternalProvider() shared.IdentityProvider { return d.externalProvider }
func (d *Department) CreatedAt() time.Time                      { return d.createdAt }
func (d *Department) UpdatedAt() time.Time                      { return d.updatedAt }

// Metadata は任意属性のコピーを返します。
func (d *Department) Metadata() map[string]any {
	metadata := make(map[string]any, len(d.metadata))
	maps.Copy(metadata, d.metadata)
	return metadata
}

// UpdateName は部署名を更新します。
func (d *Department) UpdateName(name string, now time.Time) {
	d.name = strings.TrimSpace(name)
	d.updatedAt = now
}

// UpdateDescription は説明を更新します。
func (d *Department) UpdateDescription(description string, now time.Time) {
	d.description = strings.TrimSpace(description)
	d.updatedAt = now
}

// UpdateParent は親部署を更新します。空文字でルート部署になります。
func (d *Department) UpdateParent(parentID string, now time.Time) {
	d.parentID = parentID
	d.updatedAt = now
}

// UpdateExternalID は外部 ID プロバイダとの紐づけを更新します。
func (d *Department) UpdateExternalID(externalID string, provider shared.IdentityProvider, now time.Time) {
	d.externalID = externalID
	d.externalProvider = provider
	d.updatedAt = now
}
