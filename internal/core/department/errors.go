package department

import "errors"

var (
	ErrInvalidID               = errors.New("department: invalid id")
	ErrInvalidOrganizationID   = errors.New("department: invalid organization id")
	ErrInvalidName             = errors.New("department: invalid name")
	ErrInvalidParent           = errors.New("department: invalid parent")
	ErrInvalidPageSize         = errors.New("department: invalid page size")
	ErrInvalidPageToken        = errors.New("department: invalid page token")
	ErrDepartmentNotFound      = errors.New("department: not found")
	ErrParentNotFound          = errors.New("department: parent not found")
	ErrOrganizationNotFound    = errors.New("department: organization not found")
	ErrExternalIDAlreadyExists = errors.New("department: external id already exists")
)
