package handler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/spendsync/internal/core/employee"
	"github.com/ogurasousui/spendsync/internal/core/shared"
)

type stubEmployeeUseCase struct {
	createInput employee.CreateEmployeeInput
	createOut   *employee.Employee
	createErr   error

	updateInput employee.UpdateEmployeeInput
	updateOut   *employee.Employee
	updateErr   error

	statusInput employee.ChangeStatusInput
	statusCall  string
	statusOut   *employee.Employee
	statusErr   error

	getInput employee.GetEmployeeInput
	getOut   *employee.Employee
	getErr   error

	listInput employee.ListEmployeesInput
	listOut   *employee.ListEmployeesResult
	listErr   error
}

func (s *stubEmployeeUseCase) CreateEmployee(ctx context.Context, in employee.CreateEmployeeInput) (*employee.Employee, error) {
	s.createInput = in
	return s.createOut, s.createErr
}

func (s *stubEmployeeUseCase) GetEmployee(ctx context.Context, in employee.GetEmployeeInput) (*employee.Employee, error) {
	s.getInput = in
	return s.getOut, s.getErr
}

func (s *stubEmployeeUseCase) ListEmployees(ctx context.Context, in employee.ListEmployeesInput) (*employee.ListEmployeesResult, error) {
	s.listInput = in
	return s.listOut, s.listErr
}

func (s *stubEmployeeUseCase) UpdateEmployee(ctx context.Context, in employee.UpdateEmployeeInput) (*employee.Employee, error) {
	s.updateInput = in
	return s.updateOut, s.updateErr
}

func (s *stubEmployeeUseCase) SuspendEmployee(ctx context.Context, in employee.ChangeStatusInput) (*employee.Employee, error) {
	return s.changeStatus("suspend", in)
}

func (s *stubEmployeeUseCase) ReactivateEmployee(ctx context.Context, in employee.ChangeStatusInput) (*employee.Employee, error) {
	return s.changeStatus("reactivate", in)
}

func (s *stubEmployeeUseCase) OffboardEmployee(ctx context.Context, in employee.ChangeStatusInput) (*employee.Employee, error) {
	return s.changeStatus("offboard", in)
}

func (s *stubEmployeeUseCase) changeStatus(call string, in employee.ChangeStatusInput) (*employee.Employee, error) {
	s.statusCall = call
	s.statusInput = in
	return s.statusOut, s.statusErr
}

func newTestEmployee(t *testing.T, status employee.Status) *employee.Employee {
	t.Helper()
	email, err := shared.NewEmail("taro@example.com")
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}
	cost, err := shared.NewMoney(1250, "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	hired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return employee.Reconstitute(employee.Snapshot{
		ID:               "emp-1",
		OrganizationID:   "org-1",
		Name:             "Taro Yamada",
		Email:            email,
		Status:           status,
		Title:            "Engineer",
		HiredAt:          &hired,
		ExternalID:       "g-1",
		ExternalProvider: shared.IdentityProviderGoogle,
		Metadata:         map[string]any{"org_unit_path": "/Engineering"},
		MonthlySaaSCost:  cost,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func TestEmployeeGrpcHandler_CreateEmployee_Success(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{createOut: newTestEmployee(t, employee.StatusActive)}
	handler := NewEmployeeGrpcHandler(stub)

	resp, err := handler.CreateEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id":   "org-1",
		"name":              " Taro Yamada ",
		"email":             "taro@example.com",
		"hired_at":          "2024-01-01",
		"monthly_saas_cost": 1250,
		"currency":          "usd",
	}))
	if err != nil {
		t.Fatalf("CreateEmployee returned error: %v", err)
	}

	if stub.createInput.OrganizationID != "org-1" {
		t.Errorf("expected organization id to pass through, got %s", stub.createInput.OrganizationID)
	}
	if stub.createInput.Name != "Taro Yamada" {
		t.Errorf("expected trimmed name, got %q", stub.createInput.Name)
	}
	if stub.createInput.HiredAt == nil || stub.createInput.HiredAt.Format(dateLayout) != "2024-01-01" {
		t.Errorf("expected hired date parsed, got %+v", stub.createInput.HiredAt)
	}
	if stub.createInput.MonthlySaaSCost == nil || *stub.createInput.MonthlySaaSCost != 1250 {
		t.Errorf("expected cost 1250, got %+v", stub.createInput.MonthlySaaSCost)
	}

	got := resp.GetFields()["employee"].GetStructValue().GetFields()
	if got["id"].GetStringValue() != "emp-1" {
		t.Fatalf("expected response id 'emp-1', got %s", got["id"].GetStringValue())
	}
	if got["hired_at"].GetStringValue() != "2024-01-01" {
		t.Errorf("expected hired_at 2024-01-01, got %s", got["hired_at"].GetStringValue())
	}
	if _, isNull := got["offboarded_at"].GetKind().(*structpb.Value_NullValue); !isNull {
		t.Errorf("expected offboarded_at to be null, got %v", got["offboarded_at"])
	}
	cost := got["monthly_saas_cost"].GetStructValue().GetFields()
	if cost["amount"].GetNumberValue() != 1250 || cost["currency"].GetStringValue() != "USD" {
		t.Errorf("unexpected cost %v", cost)
	}
	if got["metadata"].GetStructValue().GetFields()["org_unit_path"].GetStringValue() != "/Engineering" {
		t.Errorf("expected metadata to be returned, got %v", got["metadata"])
	}
}

func TestEmployeeGrpcHandler_CreateEmployee_InvalidDateFormat(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{})

	_, err := handler.CreateEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"hired_at":        "2024/01/01",
	}))
	assertCode(t, err, codes.InvalidArgument)
}

func TestEmployeeGrpcHandler_CreateEmployee_FractionalCost(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{})

	_, err := handler.CreateEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id":   "org-1",
		"monthly_saas_cost": 12.5,
	}))
	assertCode(t, err, codes.InvalidArgument)
}

func TestEmployeeGrpcHandler_CreateEmployee_NilRequest(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{})

	_, err := handler.CreateEmployee(context.Background(), nil)
	assertCode(t, err, codes.InvalidArgument)
}

func TestEmployeeGrpcHandler_CreateEmployee_DuplicateEmail(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{createErr: employee.ErrEmailAlreadyExists})

	_, err := handler.CreateEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"name":            "Taro",
		"email":           "taro@example.com",
	}))
	assertCode(t, err, codes.AlreadyExists)
}

func TestEmployeeGrpcHandler_CreateEmployee_DefaultCurrency(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{createOut: newTestEmployee(t, employee.StatusActive)}
	handler := NewEmployeeGrpcHandler(stub, WithDefaultCurrency("JPY"))

	if _, err := handler.CreateEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id":   "org-1",
		"name":              "Taro",
		"email":             "taro@example.com",
		"monthly_saas_cost": 500,
	})); err != nil {
		t.Fatalf("CreateEmployee returned error: %v", err)
	}

	if stub.createInput.Currency != "JPY" {
		t.Errorf("expected default currency JPY, got %q", stub.createInput.Currency)
	}
}

func TestEmployeeGrpcHandler_UpdateEmployee_PartialFields(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{updateOut: newTestEmployee(t, employee.StatusActive)}
	handler := NewEmployeeGrpcHandler(stub)

	_, err := handler.UpdateEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"id":              "emp-1",
		"title":           "Staff Engineer",
		"department_id":   "",
		"manager_id":      nil,
	}))
	if err != nil {
		t.Fatalf("UpdateEmployee returned error: %v", err)
	}

	in := stub.updateInput
	if in.Name != nil || in.Email != nil {
		t.Errorf("expected absent fields to stay nil, got name=%v email=%v", in.Name, in.Email)
	}
	if in.Title == nil || *in.Title != "Staff Engineer" {
		t.Errorf("expected title to be set, got %v", in.Title)
	}
	if in.DepartmentID == nil || *in.DepartmentID != "" {
		t.Errorf("expected department to be cleared, got %v", in.DepartmentID)
	}
	if in.ManagerID != nil {
		t.Errorf("expected null manager to be treated as absent, got %v", *in.ManagerID)
	}
}

func TestEmployeeGrpcHandler_StatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(*EmployeeGrpcHandler, context.Context, *structpb.Struct) (*structpb.Struct, error)
		want string
	}{
		{name: "suspend", call: (*EmployeeGrpcHandler).SuspendEmployee, want: "suspend"},
		{name: "reactivate", call: (*EmployeeGrpcHandler).ReactivateEmployee, want: "reactivate"},
		{name: "offboard", call: (*EmployeeGrpcHandler).OffboardEmployee, want: "offboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubEmployeeUseCase{statusOut: newTestEmployee(t, employee.StatusSuspended)}
			handler := NewEmployeeGrpcHandler(stub)

			_, err := tt.call(handler, context.Background(), mustStruct(t, map[string]any{
				"organization_id": "org-1",
				"id":              "emp-1",
				"actor_id":        "admin-1",
			}))
			if err != nil {
				t.Fatalf("returned error: %v", err)
			}
			if stub.statusCall != tt.want {
				t.Errorf("expected %s to be called, got %s", tt.want, stub.statusCall)
			}
			if stub.statusInput.ActorID != "admin-1" {
				t.Errorf("expected actor id to pass through, got %s", stub.statusInput.ActorID)
			}
		})
	}
}

func TestEmployeeGrpcHandler_OffboardEmployee_AlreadyOffboarded(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{statusErr: employee.ErrEmployeeAlreadyOffboarded})

	_, err := handler.OffboardEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"id":              "emp-1",
	}))
	assertCode(t, err, codes.FailedPrecondition)
}

func TestEmployeeGrpcHandler_GetEmployee_NotFound(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{getErr: employee.ErrEmployeeNotFound}
	handler := NewEmployeeGrpcHandler(stub)

	_, err := handler.GetEmployee(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"id":              "missing",
	}))
	assertCode(t, err, codes.NotFound)
	if stub.getInput.ID != "missing" {
		t.Errorf("expected id to pass through, got %s", stub.getInput.ID)
	}
}

func TestEmployeeGrpcHandler_ListEmployees_Filters(t *testing.T) {
	t.Parallel()

	stub := &stubEmployeeUseCase{listOut: &employee.ListEmployeesResult{
		Employees:     []*employee.Employee{newTestEmployee(t, employee.StatusSuspended)},
		NextPageToken: "20",
	}}
	handler := NewEmployeeGrpcHandler(stub)

	resp, err := handler.ListEmployees(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"page_size":       20,
		"status":          "suspended",
		"department_id":   "dept-1",
	}))
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}

	if stub.listInput.PageSize != 20 {
		t.Errorf("expected page size 20, got %d", stub.listInput.PageSize)
	}
	if stub.listInput.Status == nil || *stub.listInput.Status != employee.StatusSuspended {
		t.Errorf("expected suspended filter, got %v", stub.listInput.Status)
	}
	if stub.listInput.DepartmentID == nil || *stub.listInput.DepartmentID != "dept-1" {
		t.Errorf("expected department filter, got %v", stub.listInput.DepartmentID)
	}
	if len(resp.GetFields()["employees"].GetListValue().GetValues()) != 1 {
		t.Fatalf("expected one employee, got %v", resp.GetFields()["employees"])
	}
	if resp.GetFields()["next_page_token"].GetStringValue() != "20" {
		t.Errorf("expected next page token 20, got %s", resp.GetFields()["next_page_token"].GetStringValue())
	}
}

func TestEmployeeGrpcHandler_ListEmployees_InvalidPageToken(t *testing.T) {
	t.Parallel()

	handler := NewEmployeeGrpcHandler(&stubEmployeeUseCase{listErr: employee.ErrInvalidPageToken})

	_, err := handler.ListEmployees(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"page_token":      "abc",
	}))
	assertCode(t, err, codes.InvalidArgument)
}
