package directorysync

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncFailed は同期全体が中断されたことを表します。errors.Is で SyncFailedError と一致します。
	ErrSyncFailed = errors.New("directorysync: sync failed")
	// ErrInvalidInput は連携 ID または組織 ID が空の場合に返却されます。
	ErrInvalidInput = errors.New("directorysync: invalid input")
	// ErrMissingExternalID は外部 ID を持たないレコードに対して返却されます。
	ErrMissingExternalID = errors.New("directorysync: record has no external id")
	// ErrSelfParent は自分自身を親に持つ組織単位に対して返却されます。
	ErrSelfParent = errors.New("directorysync: org unit is its own parent")
	// ErrExternalIDConflict はメールアドレスで見つかった社員が別の外部 ID に紐付いている場合に返却されます。
	ErrExternalIDConflict = errors.New("directorysync: email belongs to an employee linked to another external id")
	// ErrPageTokenLoop はプロバイダが同じページトークンを繰り返した場合に返却されます。
	ErrPageTokenLoop = errors.New("directorysync: provider repeated a page token")
)

// SyncFailedError は同期が致命的エラーで中断されたことを表します。
type SyncFailedError struct {
	IntegrationID string
	Kind          Kind
	Reason        error
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("directorysync: %s sync failed for integration %s: %v", e.Kind, e.IntegrationID, e.Reason)
}

func (e *SyncFailedError) Unwrap() error {
	return e.Reason
}

// Is は ErrSyncFailed との比較を可能にします。
func (e *SyncFailedError) Is(target error) bool {
	return target == ErrSyncFailed
}
