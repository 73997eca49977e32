package integration

import "errors"

var (
	ErrInvalidID             = errors.New("integration: invalid id")
	ErrInvalidOrganizationID = errors.New("integration: invalid organization id")
	ErrInvalidProvider       = errors.New("integration: invalid provider")
	ErrInvalidStatus         = errors.New("integration: invalid status")
	ErrInvalidPageSize       = errors.New("integration: invalid page size")
	ErrInvalidPageToken      = errors.New("integration: invalid page token")
	// ErrIntegrationNotFound は連携設定が存在しない場合に返却されます。
	ErrIntegrationNotFound = errors.New("integration: not found")
	// ErrOrganizationNotFound は連携先の組織が存在しない場合に返却されます。
	ErrOrganizationNotFound = errors.New("integration: organization not found")
	// ErrAlreadyExists は同一組織・同一プロバイダの連携が既に存在する場合に返却されます。
	ErrAlreadyExists = errors.New("integration: already exists for provider")
	// ErrIntegrationDisabled は無効化済みの連携に同期結果を記録しようとした場合に返却されます。
	ErrIntegrationDisabled = errors.New("integration: disabled")
	// ErrInvalidStatusTransition は許可されていない状態遷移の場合に返却されます。
	ErrInvalidStatusTransition = errors.New("integration: invalid status transition")
	// ErrConnectionTesterUnavailable は接続テストの実装が設定されていない場合に返却されます。
	ErrConnectionTesterUnavailable = errors.New("integration: connection tester unavailable")
)
