package employee

import "errors"

var (
	ErrInvalidID                 = errors.New("employee: invalid id")
	ErrInvalidOrganizationID     = errors.New("employee: invalid organization id")
	ErrInvalidName               = errors.New("employee: invalid name")
	ErrInvalidEmail              = errors.New("employee: invalid email")
	ErrInvalidStatus             = errors.New("employee: invalid status")
	ErrInvalidCost               = errors.New("employee: invalid monthly saas cost")
	ErrInvalidPageSize           = errors.New("employee: invalid page size")
	ErrInvalidPageToken          = errors.New("employee: invalid page token")
	ErrEmployeeNotFound          = errors.New("employee: not found")
	ErrOrganizationNotFound      = errors.New("employee: organization not found")
	ErrEmailAlreadyExists        = errors.New("employee: email already exists")
	ErrExternalIDAlreadyExists   = errors.New("employee: external id already linked")
	ErrEmployeeAlreadyOffboarded = errors.New("employee: already offboarded")
	ErrInvalidEmployeeStatus     = errors.New("employee: operation not allowed in current status")
)
