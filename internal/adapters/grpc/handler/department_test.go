package handler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/ogurasousui/spendsync/internal/core/department"
)

type stubDepartmentUseCase struct {
	createInput department.CreateDepartmentInput
	createOut   *department.Department
	createErr   error

	getInput department.GetDepartmentInput
	getOut   *department.Department
	getErr   error

	listInput department.ListDepartmentsInput
	listOut   *department.ListDepartmentsResult
	listErr   error

	updateInput department.UpdateDepartmentInput
	updateOut   *department.Department
	updateErr   error
}

func (s *stubDepartmentUseCase) CreateDepartment(ctx context.Context, in department.CreateDepartmentInput) (*department.Department, error) {
	s.createInput = in
	return s.createOut, s.createErr
}

func (s *stubDepartmentUseCase) GetDepartment(ctx context.Context, in department.GetDepartmentInput) (*department.Department, error) {
	s.getInput = in
	return s.getOut, s.getErr
}

func (s *stubDepartmentUseCase) ListDepartments(ctx context.Context, in department.ListDepartmentsInput) (*department.ListDepartmentsResult, error) {
	s.listInput = in
	return s.listOut, s.listErr
}

func (s *stubDepartmentUseCase) UpdateDepartment(ctx context.Context, in department.UpdateDepartmentInput) (*department.Department, error) {
	s.updateInput = in
	return s.updateOut, s.updateErr
}

func newTestDepartment() *department.Department {
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	return department.Reconstitute(department.Snapshot{
		ID:             "dept-2",
		OrganizationID: "org-1",
		Name:           "Platform",
		ParentID:       "dept-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func TestDepartmentGrpcHandler_CreateDepartment_Success(t *testing.T) {
	t.Parallel()

	stub := &stubDepartmentUseCase{createOut: newTestDepartment()}
	handler := NewDepartmentGrpcHandler(stub)

	resp, err := handler.CreateDepartment(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"name":            "Platform",
		"parent_id":       "dept-1",
	}))
	if err != nil {
		t.Fatalf("CreateDepartment returned error: %v", err)
	}

	if stub.createInput.ParentID != "dept-1" {
		t.Errorf("expected parent id to pass through, got %s", stub.createInput.ParentID)
	}
	got := resp.GetFields()["department"].GetStructValue().GetFields()
	if got["parent_id"].GetStringValue() != "dept-1" {
		t.Errorf("expected parent_id dept-1, got %s", got["parent_id"].GetStringValue())
	}
}

func TestDepartmentGrpcHandler_CreateDepartment_ParentNotFound(t *testing.T) {
	t.Parallel()

	handler := NewDepartmentGrpcHandler(&stubDepartmentUseCase{createErr: department.ErrParentNotFound})

	_, err := handler.CreateDepartment(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"name":            "Platform",
		"parent_id":       "missing",
	}))
	assertCode(t, err, codes.NotFound)
}

func TestDepartmentGrpcHandler_ListDepartments_RootOnly(t *testing.T) {
	t.Parallel()

	stub := &stubDepartmentUseCase{listOut: &department.ListDepartmentsResult{}}
	handler := NewDepartmentGrpcHandler(stub)

	resp, err := handler.ListDepartments(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"parent_id":       "",
	}))
	if err != nil {
		t.Fatalf("ListDepartments returned error: %v", err)
	}

	if stub.listInput.ParentID == nil || *stub.listInput.ParentID != "" {
		t.Errorf("expected root filter, got %v", stub.listInput.ParentID)
	}
	if resp.GetFields()["departments"].GetListValue() == nil {
		t.Errorf("expected an empty list, got %v", resp.GetFields()["departments"])
	}
}

func TestDepartmentGrpcHandler_UpdateDepartment_SelfParent(t *testing.T) {
	t.Parallel()

	stub := &stubDepartmentUseCase{updateErr: department.ErrInvalidParent}
	handler := NewDepartmentGrpcHandler(stub)

	_, err := handler.UpdateDepartment(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"id":              "dept-1",
		"parent_id":       "dept-1",
	}))
	assertCode(t, err, codes.InvalidArgument)
	if stub.updateInput.Name != nil {
		t.Errorf("expected name to stay nil")
	}
}
