package department

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeDepartmentRepo struct {
	departments map[string]Snapshot
	order       []string
}

func newFakeDepartmentRepo() *fakeDepartmentRepo {
	return &fakeDepartmentRepo{departments: make(map[string]Snapshot)}
}

func (r *fakeDepartmentRepo) Save(_ context.Context, d *Department) error {
	snap := d.Snapshot()
	if _, ok := r.departments[snap.ID]; !ok {
		r.order = append(r.order, snap.ID)
	}
	r.departments[snap.ID] = snap
	return nil
}

func (r *fakeDepartmentRepo) FindByID(_ context.Context, orgID, id string) (*Department, error) {
	snap, ok := r.departments[id]
	if !ok || snap.OrganizationID != orgID {
		return nil, ErrDepartmentNotFound
	}
	return Reconstitute(snap), nil
}

func (r *fakeDepartmentRepo) FindByExternalID(_ context.Context, orgID, externalID string) (*Department, error) {
	for _, snap := range r.departments {
		if snap.OrganizationID == orgID && snap.ExternalID == externalID {
			return Reconstitute(snap), nil
		}
	}
	return nil, ErrDepartmentNotFound
}

func (r *fakeDepartmentRepo) List(_ context.Context, filter ListDepartmentsFilter) ([]*Department, string, error) {
	var filtered []*Department
	for _, id := range r.order {
		snap := r.departments[id]
		if snap.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ParentID != nil && snap.ParentID != *filter.ParentID {
			continue
		}
		filtered = append(filtered, Reconstitute(snap))
	}
	if filter.Offset > len(filtered) {
		return []*Department{}, "", nil
	}
	end := min(filter.Offset+filter.Limit, len(filtered))
	next := ""
	if end < len(filtered) {
		next = strconv.Itoa(end)
	}
	return filtered[filter.Offset:end], next, nil
}

func TestDepartment_Setters(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dept, err := New(NewParams{OrganizationID: "org-1", Name: " Engineering ", Description: " core "}, now)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if dept.Name() != "Engineering" || dept.Description() != "core" {
		t.Fatalf("expected trimmed fields, got %q %q", dept.Name(), dept.Description())
	}

	later := now.Add(time.Hour)
	dept.UpdateName("Platform", later)
	dept.UpdateDescription("infra", later)
	dept.UpdateParent("dept-root", later)

	if dept.Name() != "Platform" || dept.Description() != "infra" || dept.ParentID() != "dept-root" {
		t.Fatalf("unexpected department after update: %+v", dept.Snapshot())
	}
	if !dept.UpdatedAt().Equal(later) {
		t.Fatalf("expected updatedAt %v, got %v", later, dept.UpdatedAt())
	}

	if _, err := New(NewParams{OrganizationID: "org-1", Name: " "}, now); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestService_CreateDepartment_WithParent(t *testing.T) {
	t.Parallel()

	repo := newFakeDepartmentRepo()
	svc := NewService(repo, &stubClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}, nil)
	ctx := context.Background()

	root, err := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: "Root"})
	if err != nil {
		t.Fatalf("CreateDepartment returned error: %v", err)
	}

	child, err := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: "Child", ParentID: root.ID()})
	if err != nil {
		t.Fatalf("CreateDepartment child returned error: %v", err)
	}
	if child.ParentID() != root.ID() {
		t.Fatalf("expected parent %s, got %s", root.ID(), child.ParentID())
	}

	if _, err := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: "Orphan", ParentID: "missing"}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
	if _, err := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-2", Name: "Cross", ParentID: root.ID()}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound across organizations, got %v", err)
	}
}

func TestService_UpdateDepartment_RejectsCycles(t *testing.T) {
	t.Parallel()

	repo := newFakeDepartmentRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	a, _ := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: "A"})
	b, _ := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: "B", ParentID: a.ID()})
	c, _ := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: "C", ParentID: b.ID()})

	self := a.ID()
	if _, err := svc.UpdateDepartment(ctx, UpdateDepartmentInput{OrganizationID: "org-1", ID: a.ID(), ParentID: &self}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent for self parent, got %v", err)
	}

	descendant := c.ID()
	if _, err := svc.UpdateDepartment(ctx, UpdateDepartmentInput{OrganizationID: "org-1", ID: a.ID(), ParentID: &descendant}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent for descendant parent, got %v", err)
	}

	root := ""
	moved, err := svc.UpdateDepartment(ctx, UpdateDepartmentInput{OrganizationID: "org-1", ID: c.ID(), ParentID: &root})
	if err != nil {
		t.Fatalf("UpdateDepartment returned error: %v", err)
	}
	if moved.ParentID() != "" {
		t.Fatalf("expected root department, got parent %s", moved.ParentID())
	}
}

func TestService_ListDepartments_ByParent(t *testing.T) {
	t.Parallel()

	repo := newFakeDepartmentRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	root, _ := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: "Root"})
	for _, name := range []string{"X", "Y"} {
		if _, err := svc.CreateDepartment(ctx, CreateDepartmentInput{OrganizationID: "org-1", Name: name, ParentID: root.ID()}); err != nil {
			t.Fatalf("seed error: %v", err)
		}
	}

	parent := root.ID()
	result, err := svc.ListDepartments(ctx, ListDepartmentsInput{OrganizationID: "org-1", ParentID: &parent, PageSize: 1})
	if err != nil {
		t.Fatalf("ListDepartments returned error: %v", err)
	}
	if len(result.Departments) != 1 || result.NextPageToken != "1" {
		t.Fatalf("unexpected page: %d %q", len(result.Departments), result.NextPageToken)
	}

	if _, err := svc.ListDepartments(ctx, ListDepartmentsInput{}); !errors.Is(err, ErrInvalidOrganizationID) {
		t.Fatalf("expected ErrInvalidOrganizationID, got %v", err)
	}
}
