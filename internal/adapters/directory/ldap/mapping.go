package ldap

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"

	"github.com/ogurasousui/spendsync/internal/core/directory"
)

const (
	accountDisabledFlag = 0x2

	filetimeEpochOffset = 116444736000000000
	filetimeNever       = int64(9223372036854775807)

	generalizedTimeLayout = "20060102150405.0Z"
)

func toUsers(entries []*ldap.Entry) []directory.User {
	emails := make(map[string]string, len(entries))
	for _, e := range entries {
		emails[strings.ToLower(e.DN)] = entryEmail(e)
	}

	users := make([]directory.User, 0, len(entries))
	for _, e := range entries {
		user := toUser(e)
		if dn := e.GetAttributeValue("manager"); dn != "" {
			user.ManagerEmail = emails[strings.ToLower(dn)]
		}
		users = append(users, user)
	}
	return users
}

func toUser(e *ldap.Entry) directory.User {
	user := directory.User{
		ExternalID:     guidString(e.GetRawAttributeValue("objectGUID")),
		Email:          entryEmail(e),
		FullName:       strings.TrimSpace(e.GetAttributeValue("displayName")),
		FirstName:      strings.TrimSpace(e.GetAttributeValue("givenName")),
		LastName:       strings.TrimSpace(e.GetAttributeValue("sn")),
		Status:         userStatus(e),
		JobTitle:       strings.TrimSpace(e.GetAttributeValue("title")),
		DepartmentName: strings.TrimSpace(e.GetAttributeValue("department")),
		PhoneNumber:    strings.TrimSpace(e.GetAttributeValue("telephoneNumber")),
		StartDate:      parseGeneralizedTime(e.GetAttributeValue("whenCreated")),
		LastLoginAt:    parseFiletime(e.GetAttributeValue("lastLogonTimestamp")),
		Metadata: map[string]any{
			"dn":               e.DN,
			"sam_account_name": e.GetAttributeValue("sAMAccountName"),
		},
	}
	if manager := e.GetAttributeValue("manager"); manager != "" {
		user.Metadata["manager_dn"] = manager
	}
	if user.Status == directory.UserStatusSuspended {
		user.SuspendedAt = parseGeneralizedTime(e.GetAttributeValue("whenChanged"))
	}
	return user
}

func entryEmail(e *ldap.Entry) string {
	email := e.GetAttributeValue("mail")
	if email == "" {
		email = e.GetAttributeValue("userPrincipalName")
	}
	return strings.ToLower(strings.TrimSpace(email))
}

func userStatus(e *ldap.Entry) directory.UserStatus {
	if strings.EqualFold(e.GetAttributeValue("isDeleted"), "TRUE") {
		return directory.UserStatusDeleted
	}
	uac, err := strconv.ParseInt(e.GetAttributeValue("userAccountControl"), 10, 64)
	if err == nil && uac&accountDisabledFlag != 0 {
		return directory.UserStatusSuspended
	}
	return directory.UserStatusActive
}

// toOrgUnits は OU エントリを組織単位に変換します。親は同じ結果集合の中から Path で解決します。
func toOrgUnits(entries []*ldap.Entry, baseDN string) []directory.OrgUnit {
	units := make([]directory.OrgUnit, 0, len(entries))
	byPath := make(map[string]string, len(entries))

	for _, e := range entries {
		path := ouPath(e.DN, baseDN)
		name := e.GetAttributeValue("ou")
		if name == "" {
			name = e.GetAttributeValue("name")
		}
		unit := directory.OrgUnit{
			ExternalID:  guidString(e.GetRawAttributeValue("objectGUID")),
			Name:        strings.TrimSpace(name),
			Path:        path,
			Description: strings.TrimSpace(e.GetAttributeValue("description")),
			Metadata:    map[string]any{"dn": e.DN},
		}
		byPath[path] = unit.ExternalID
		units = append(units, unit)
	}

	for i := range units {
		parent := parentPath(units[i].Path)
		if parent == "" {
			continue
		}
		units[i].ParentID = byPath[parent]
	}
	return units
}

// ouPath は "OU=Platform,OU=Engineering,DC=example,DC=com" を "/Engineering/Platform" に変換します。
func ouPath(dn, baseDN string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return ""
	}
	base, _ := ldap.ParseDN(baseDN)

	rdns := parsed.RDNs
	if base != nil && len(base.RDNs) <= len(rdns) {
		rdns = rdns[:len(rdns)-len(base.RDNs)]
	}

	var segments []string
	for i := len(rdns) - 1; i >= 0; i-- {
		for _, attr := range rdns[i].Attributes {
			if strings.EqualFold(attr.Type, "OU") {
				segments = append(segments, attr.Value)
			}
		}
	}
	if len(segments) == 0 {
		return ""
	}
	return "/" + strings.Join(segments, "/")
}

func parentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

// guidString は AD の objectGUID (先頭 3 フィールドがリトルエンディアン) を RFC 4122 形式に変換します。
func guidString(raw []byte) string {
	if len(raw) != 16 {
		return ""
	}
	b := make([]byte, 16)
	copy(b, raw)
	swapGUIDBytes(b)

	u, err := uuid.FromBytes(b)
	if err != nil {
		return ""
	}
	return u.String()
}

func guidBytes(id string) ([]byte, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 16)
	copy(b, u[:])
	swapGUIDBytes(b)
	return b, nil
}

func swapGUIDBytes(b []byte) {
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
}

func objectGUIDFilter(id string) (string, error) {
	b, err := guidBytes(id)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("(objectGUID=")
	for _, c := range b {
		fmt.Fprintf(&sb, "\\%02x", c)
	}
	sb.WriteString(")")
	return sb.String(), nil
}

func parseGeneralizedTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(generalizedTimeLayout, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// parseFiletime は 1601 年起点の 100 ナノ秒単位の値を時刻に変換します。
func parseFiletime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 || v == filetimeNever {
		return nil
	}
	t := time.Unix(0, (v-filetimeEpochOffset)*100).UTC()
	return &t
}
