package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/spendsync/internal/core/department"
	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/directorysync"
	"github.com/ogurasousui/spendsync/internal/core/employee"
	"github.com/ogurasousui/spendsync/internal/core/integration"
	"github.com/ogurasousui/spendsync/internal/core/organization"
	"github.com/ogurasousui/spendsync/internal/core/shared"
)

var (
	invalidArgumentErrors = []error{
		organization.ErrInvalidName,
		organization.ErrInvalidSlug,
		organization.ErrInvalidStatus,
		organization.ErrInvalidID,
		organization.ErrInvalidPageSize,
		organization.ErrInvalidPageToken,
		employee.ErrInvalidID,
		employee.ErrInvalidOrganizationID,
		employee.ErrInvalidName,
		employee.ErrInvalidEmail,
		employee.ErrInvalidStatus,
		employee.ErrInvalidCost,
		employee.ErrInvalidPageSize,
		employee.ErrInvalidPageToken,
		department.ErrInvalidID,
		department.ErrInvalidOrganizationID,
		department.ErrInvalidName,
		department.ErrInvalidParent,
		department.ErrInvalidPageSize,
		department.ErrInvalidPageToken,
		integration.ErrInvalidID,
		integration.ErrInvalidOrganizationID,
		integration.ErrInvalidProvider,
		integration.ErrInvalidStatus,
		integration.ErrInvalidPageSize,
		integration.ErrInvalidPageToken,
		shared.ErrInvalidEmail,
		shared.ErrInvalidCurrency,
		shared.ErrInvalidIdentityProvider,
		directorysync.ErrInvalidInput,
	}
	alreadyExistsErrors = []error{
		organization.ErrSlugAlreadyExists,
		employee.ErrEmailAlreadyExists,
		employee.ErrExternalIDAlreadyExists,
		department.ErrExternalIDAlreadyExists,
		integration.ErrAlreadyExists,
	}
	notFoundErrors = []error{
		organization.ErrOrganizationNotFound,
		employee.ErrEmployeeNotFound,
		employee.ErrOrganizationNotFound,
		department.ErrDepartmentNotFound,
		department.ErrParentNotFound,
		department.ErrOrganizationNotFound,
		integration.ErrIntegrationNotFound,
		integration.ErrOrganizationNotFound,
	}
	failedPreconditionErrors = []error{
		integration.ErrIntegrationDisabled,
		integration.ErrInvalidStatusTransition,
		integration.ErrConnectionTesterUnavailable,
		employee.ErrEmployeeAlreadyOffboarded,
		employee.ErrInvalidEmployeeStatus,
		directory.ErrInvalidCredentials,
	}
)

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case isAny(err, invalidArgumentErrors):
		return status.Error(codes.InvalidArgument, err.Error())
	case isAny(err, alreadyExistsErrors):
		return status.Error(codes.AlreadyExists, err.Error())
	case isAny(err, notFoundErrors):
		return status.Error(codes.NotFound, err.Error())
	case isAny(err, failedPreconditionErrors):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, directory.ErrProviderNotSupported):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, directorysync.ErrSyncFailed):
		// 外部ディレクトリ起因の中断は再試行可能として扱います。
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
