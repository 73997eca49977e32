package directorysync

import (
	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/employee"
)

// MapDirectoryStatus はディレクトリ上の状態を社員の状態に変換します。
// 未知の値は active に倒し、known=false を返します。
func MapDirectoryStatus(status directory.UserStatus) (mapped employee.Status, known bool) {
	switch status {
	case directory.UserStatusActive:
		return employee.StatusActive, true
	case directory.UserStatusSuspended:
		return employee.StatusSuspended, true
	case directory.UserStatusArchived, directory.UserStatusDeleted:
		return employee.StatusOffboarded, true
	default:
		return employee.StatusActive, false
	}
}

// reachableStatus は current から状態機械で到達できる mapped に最も近い状態を返します。
// offboarded からはどこにも遷移しません。
func reachableStatus(current, mapped employee.Status) employee.Status {
	switch mapped {
	case employee.StatusOffboarded:
		return employee.StatusOffboarded
	case employee.StatusSuspended:
		if current == employee.StatusActive {
			return employee.StatusSuspended
		}
	case employee.StatusActive:
		if current == employee.StatusSuspended {
			return employee.StatusActive
		}
	}
	return current
}
