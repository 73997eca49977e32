package google

import (
	"strings"
	"time"

	admin "google.golang.org/api/admin/directory/v1"

	"github.com/ogurasousui/spendsync/internal/core/directory"
)

// neverLoggedIn は一度もログインしていないユーザーの lastLoginTime です。
const neverLoggedIn = "1970-01-01T00:00:00.000Z"

func toUser(u *admin.User, deleted bool) directory.User {
	user := directory.User{
		ExternalID:  u.Id,
		Email:       strings.ToLower(strings.TrimSpace(u.PrimaryEmail)),
		Status:      userStatus(u, deleted),
		StartDate:   parseTime(u.CreationTime),
		LastLoginAt: parseTime(u.LastLoginTime),
		Metadata: map[string]any{
			"org_unit_path": u.OrgUnitPath,
			"is_admin":      u.IsAdmin,
		},
	}
	if u.Name != nil {
		user.FullName = u.Name.FullName
		user.FirstName = u.Name.GivenName
		user.LastName = u.Name.FamilyName
	}
	if u.SuspensionReason != "" {
		user.Metadata["suspension_reason"] = u.SuspensionReason
	}
	if u.DeletionTime != "" {
		user.Metadata["deletion_time"] = u.DeletionTime
	}

	if org := primaryEntry(u.Organizations); org != nil {
		user.JobTitle = stringField(org, "title")
		user.DepartmentName = stringField(org, "department")
		if cc := stringField(org, "costCenter"); cc != "" {
			user.Metadata["cost_center"] = cc
		}
	}
	if phone := primaryEntry(u.Phones); phone != nil {
		user.PhoneNumber = stringField(phone, "value")
	}
	for _, rel := range entries(u.Relations) {
		if stringField(rel, "type") == "manager" {
			user.ManagerEmail = strings.ToLower(stringField(rel, "value"))
			break
		}
	}

	return user
}

func userStatus(u *admin.User, deleted bool) directory.UserStatus {
	switch {
	case deleted || u.DeletionTime != "":
		return directory.UserStatusDeleted
	case u.Archived:
		return directory.UserStatusArchived
	case u.Suspended:
		return directory.UserStatusSuspended
	default:
		return directory.UserStatusActive
	}
}

func toOrgUnit(ou *admin.OrgUnit) directory.OrgUnit {
	return directory.OrgUnit{
		ExternalID:  strings.TrimPrefix(ou.OrgUnitId, "id:"),
		Name:        ou.Name,
		Path:        ou.OrgUnitPath,
		ParentID:    strings.TrimPrefix(ou.ParentOrgUnitId, "id:"),
		Description: ou.Description,
		Metadata: map[string]any{
			"parent_path": ou.ParentOrgUnitPath,
		},
	}
}

func parseTime(raw string) *time.Time {
	if raw == "" || raw == neverLoggedIn {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// Admin SDK は organizations や phones を型なし JSON のまま返します。
func entries(raw any) []map[string]any {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func primaryEntry(raw any) map[string]any {
	list := entries(raw)
	if len(list) == 0 {
		return nil
	}
	for _, m := range list {
		if primary, _ := m["primary"].(bool); primary {
			return m
		}
	}
	return list[0]
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
