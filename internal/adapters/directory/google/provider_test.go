package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/spendsync/internal/core/directory"
)

type fakeAdminAPI struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (f *fakeAdminAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	f.mu.Unlock()

	q := r.URL.Query()
	switch r.URL.Path {
	case "/admin/directory/v1/users":
		switch {
		case q.Get("showDeleted") == "true":
			writeJSON(w, map[string]any{
				"users": []any{
					map[string]any{"id": "u-9", "primaryEmail": "gone@example.com", "deletionTime": "2024-03-01T00:00:00.000Z"},
				},
			})
		case q.Get("pageToken") == "":
			writeJSON(w, map[string]any{
				"users": []any{
					map[string]any{
						"id":            "u-1",
						"primaryEmail":  "Alice@Example.com",
						"name":          map[string]any{"fullName": "Alice Smith", "givenName": "Alice", "familyName": "Smith"},
						"orgUnitPath":   "/Engineering",
						"creationTime":  "2023-01-02T03:04:05.000Z",
						"lastLoginTime": "1970-01-01T00:00:00.000Z",
						"organizations": []any{
							map[string]any{"title": "Intern", "department": "Old"},
							map[string]any{"title": "Engineer", "department": "R&D", "primary": true},
						},
						"phones":    []any{map[string]any{"value": "+1-555-0100", "primary": true}},
						"relations": []any{map[string]any{"type": "manager", "value": "Boss@Example.com"}},
					},
				},
				"nextPageToken": "p2",
			})
		default:
			writeJSON(w, map[string]any{
				"users": []any{
					map[string]any{"id": "u-2", "primaryEmail": "bob@example.com", "suspended": true, "suspensionReason": "ADMIN"},
					map[string]any{"id": "u-3", "primaryEmail": "carol@example.com", "archived": true},
				},
			})
		}
	case "/admin/directory/v1/customer/my_customer/orgunits":
		writeJSON(w, map[string]any{
			"organizationUnits": []any{
				map[string]any{"orgUnitId": "id:ou-2", "name": "Platform", "orgUnitPath": "/Engineering/Platform", "parentOrgUnitId": "id:ou-1", "parentOrgUnitPath": "/Engineering"},
				map[string]any{"orgUnitId": "id:ou-1", "name": "Engineering", "orgUnitPath": "/Engineering", "parentOrgUnitId": "id:root", "parentOrgUnitPath": "/"},
			},
		})
	case "/admin/directory/v1/users/missing@example.com":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Resource Not Found: userKey"}}`))
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestProvider(t *testing.T) (*Provider, *fakeAdminAPI) {
	t.Helper()

	api := &fakeAdminAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	p, err := NewWithHTTPClient(context.Background(), Config{Endpoint: srv.URL + "/"}, srv.Client())
	require.NoError(t, err)
	return p, api
}

func TestProvider_ListUsers_PagesThroughDeletedPhase(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	first, err := p.ListUsers(ctx, directory.ListUsersOptions{PageSize: 2, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "p2", first.NextPageToken)

	alice := first.Items[0]
	assert.Equal(t, "u-1", alice.ExternalID)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, "Alice Smith", alice.FullName)
	assert.Equal(t, directory.UserStatusActive, alice.Status)
	assert.Equal(t, "Engineer", alice.JobTitle)
	assert.Equal(t, "R&D", alice.DepartmentName)
	assert.Equal(t, "+1-555-0100", alice.PhoneNumber)
	assert.Equal(t, "boss@example.com", alice.ManagerEmail)
	assert.Nil(t, alice.LastLoginAt)
	require.NotNil(t, alice.StartDate)
	assert.True(t, alice.StartDate.Equal(time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, "/Engineering", alice.Metadata["org_unit_path"])

	second, err := p.ListUsers(ctx, directory.ListUsersOptions{PageSize: 2, PageToken: first.NextPageToken, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, directory.UserStatusSuspended, second.Items[0].Status)
	assert.Equal(t, "ADMIN", second.Items[0].Metadata["suspension_reason"])
	assert.Equal(t, directory.UserStatusArchived, second.Items[1].Status)
	assert.Equal(t, deletedPhasePrefix, second.NextPageToken)

	third, err := p.ListUsers(ctx, directory.ListUsersOptions{PageSize: 2, PageToken: second.NextPageToken, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	assert.Equal(t, directory.UserStatusDeleted, third.Items[0].Status)
	assert.Empty(t, third.NextPageToken)
}

func TestProvider_ListUsers_WithoutDeletedStopsAfterActive(t *testing.T) {
	t.Parallel()

	p, api := newTestProvider(t)

	page, err := p.ListUsers(context.Background(), directory.ListUsersOptions{PageToken: "p2"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Empty(t, page.NextPageToken)

	require.Len(t, api.requests, 1)
	q := api.requests[0].URL.Query()
	assert.Equal(t, "my_customer", q.Get("customer"))
	assert.Equal(t, "500", q.Get("maxResults"))
	assert.Empty(t, q.Get("showDeleted"))
}

func TestProvider_ListUsers_StatusFilter(t *testing.T) {
	t.Parallel()

	p, api := newTestProvider(t)

	page, err := p.ListUsers(context.Background(), directory.ListUsersOptions{PageToken: "p2", Status: directory.UserStatusSuspended})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "u-2", page.Items[0].ExternalID)
	assert.Equal(t, "isSuspended=true", api.requests[0].URL.Query().Get("query"))

	deleted, err := p.ListUsers(context.Background(), directory.ListUsersOptions{Status: directory.UserStatusDeleted})
	require.NoError(t, err)
	assert.Empty(t, deleted.Items)
	assert.Len(t, api.requests, 1)
}

func TestProvider_ListOrgUnits(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)

	units, err := p.ListOrgUnits(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, "ou-2", units[0].ExternalID)
	assert.Equal(t, "ou-1", units[0].ParentID)
	assert.Equal(t, "/Engineering/Platform", units[0].Path)
	assert.Equal(t, 2, units[0].Depth())
	assert.Equal(t, "root", units[1].ParentID)
}

func TestProvider_GetUserByEmail_NotFound(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)

	_, err := p.GetUserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}

func TestNew_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{AdminSubject: "admin@example.com"}, nil)
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials)

	_, err = New(context.Background(), Config{}, []byte(`{"type":"service_account"}`))
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials)

	_, err = New(context.Background(), Config{AdminSubject: "admin@example.com"}, []byte(`not json`))
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials)
}
