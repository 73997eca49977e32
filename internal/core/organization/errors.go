package organization

import "errors"

var (
	// ErrOrganizationNotFound は組織が存在しない場合に返却されます。
	ErrOrganizationNotFound = errors.New("organization: not found")
	// ErrSlugAlreadyExists はスラッグ重複時に返却されます。
	ErrSlugAlreadyExists = errors.New("organization: slug already exists")
	ErrInvalidName       = errors.New("organization: invalid name")
	ErrInvalidSlug       = errors.New("organization: invalid slug")
	ErrInvalidStatus     = errors.New("organization: invalid status")
	ErrInvalidID         = errors.New("organization: invalid id")
	ErrInvalidPageSize   = errors.New("organization: invalid page size")
	ErrInvalidPageToken  = errors.New("organization: invalid page token")
)
