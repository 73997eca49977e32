package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/spendsync/internal/core/employee"
)

const dateLayout = "2006-01-02"

// EmployeeServiceName は社員サービスの完全修飾名です。
const EmployeeServiceName = "spendsync.employee.v1.EmployeeService"

// EmployeeServiceServer は EmployeeService のサーバー側インターフェースです。
type EmployeeServiceServer interface {
	CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SuspendEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReactivateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	OffboardEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// EmployeeServiceDesc は EmployeeService の ServiceDesc です。
var EmployeeServiceDesc = grpc.ServiceDesc{
	ServiceName: EmployeeServiceName,
	HandlerType: (*EmployeeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(EmployeeServiceName, "CreateEmployee", func(srv any) unaryFunc { return srv.(EmployeeServiceServer).CreateEmployee }),
		unaryMethod(EmployeeServiceName, "GetEmployee", func(srv any) unaryFunc { return srv.(EmployeeServiceServer).GetEmployee }),
		unaryMethod(EmployeeServiceName, "ListEmployees", func(srv any) unaryFunc { return srv.(EmployeeServiceServer).ListEmployees }),
		unaryMethod(EmployeeServiceName, "UpdateEmployee", func(srv any) unaryFunc { return srv.(EmployeeServiceServer).UpdateEmployee }),
		unaryMethod(EmployeeServiceName, "SuspendEmployee", func(srv any) unaryFunc { return srv.(EmployeeServiceServer).SuspendEmployee }),
		unaryMethod(EmployeeServiceName, "ReactivateEmployee", func(srv any) unaryFunc { return srv.(EmployeeServiceServer).ReactivateEmployee }),
		unaryMethod(EmployeeServiceName, "OffboardEmployee", func(srv any) unaryFunc { return srv.(EmployeeServiceServer).OffboardEmployee }),
	},
	Metadata: "spendsync/employee/v1/employee.proto",
}

// EmployeeGrpcHandler は EmployeeService の gRPC 実装です。
type EmployeeGrpcHandler struct {
	svc             employee.UseCase
	defaultCurrency string
}

// EmployeeHandlerOption は EmployeeGrpcHandler の任意設定です。
type EmployeeHandlerOption func(*EmployeeGrpcHandler)

// WithDefaultCurrency は currency が指定されなかった場合の通貨コードを設定します。
func WithDefaultCurrency(code string) EmployeeHandlerOption {
	return func(h *EmployeeGrpcHandler) {
		h.defaultCurrency = code
	}
}

var _ EmployeeServiceServer = (*EmployeeGrpcHandler)(nil)

// NewEmployeeGrpcHandler は EmployeeGrpcHandler を生成します。
func NewEmployeeGrpcHandler(svc employee.UseCase, opts ...EmployeeHandlerOption) *EmployeeGrpcHandler {
	h := &EmployeeGrpcHandler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *EmployeeGrpcHandler) currency(req *structpb.Struct) string {
	if c := stringValue(req, "currency"); c != "" {
		return c
	}
	return h.defaultCurrency
}

// CreateEmployee は社員を作成します。
func (h *EmployeeGrpcHandler) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	hiredAt, err := optionalDate(req, "hired_at")
	if err != nil {
		return nil, err
	}
	cost, err := optionalInt64(req, "monthly_saas_cost")
	if err != nil {
		return nil, err
	}

	created, err := h.svc.CreateEmployee(ctx, employee.CreateEmployeeInput{
		OrganizationID:  stringValue(req, "organization_id"),
		Name:            stringValue(req, "name"),
		Email:           stringValue(req, "email"),
		Title:           stringValue(req, "title"),
		Phone:           stringValue(req, "phone"),
		AvatarURL:       stringValue(req, "avatar_url"),
		DepartmentID:    stringValue(req, "department_id"),
		ManagerID:       stringValue(req, "manager_id"),
		HiredAt:         hiredAt,
		MonthlySaaSCost: cost,
		Currency:        h.currency(req),
		ActorID:         stringValue(req, "actor_id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return employeeResponse(created)
}

// GetEmployee は社員を取得します。
func (h *EmployeeGrpcHandler) GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	found, err := h.svc.GetEmployee(ctx, employee.GetEmployeeInput{
		OrganizationID: stringValue(req, "organization_id"),
		ID:             stringValue(req, "id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return employeeResponse(found)
}

// ListEmployees は社員の一覧を取得します。
func (h *EmployeeGrpcHandler) ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	pageSize, err := intValue(req, "page_size")
	if err != nil {
		return nil, err
	}

	in := employee.ListEmployeesInput{
		OrganizationID: stringValue(req, "organization_id"),
		PageSize:       pageSize,
		PageToken:      stringValue(req, "page_token"),
		DepartmentID:   optionalString(req, "department_id"),
	}
	if raw := stringValue(req, "status"); raw != "" {
		st := employee.Status(raw)
		in.Status = &st
	}

	result, err := h.svc.ListEmployees(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	employees := make([]any, 0, len(result.Employees))
	for _, e := range result.Employees {
		employees = append(employees, employeeFields(e))
	}

	return newResponse(map[string]any{
		"employees":       employees,
		"next_page_token": result.NextPageToken,
	})
}

// UpdateEmployee は社員情報を更新します。指定されなかった項目は変更しません。
func (h *EmployeeGrpcHandler) UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	hiredAt, err := optionalDate(req, "hired_at")
	if err != nil {
		return nil, err
	}
	cost, err := optionalInt64(req, "monthly_saas_cost")
	if err != nil {
		return nil, err
	}

	updated, err := h.svc.UpdateEmployee(ctx, employee.UpdateEmployeeInput{
		OrganizationID:  stringValue(req, "organization_id"),
		ID:              stringValue(req, "id"),
		Name:            optionalString(req, "name"),
		Email:           optionalString(req, "email"),
		Title:           optionalString(req, "title"),
		Phone:           optionalString(req, "phone"),
		AvatarURL:       optionalString(req, "avatar_url"),
		DepartmentID:    optionalString(req, "department_id"),
		ManagerID:       optionalString(req, "manager_id"),
		HiredAt:         hiredAt,
		MonthlySaaSCost: cost,
		Currency:        h.currency(req),
		ActorID:         stringValue(req, "actor_id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return employeeResponse(updated)
}

// SuspendEmployee は社員を休止状態にします。
func (h *EmployeeGrpcHandler) SuspendEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.changeStatus(ctx, req, h.svc.SuspendEmployee)
}

// ReactivateEmployee は休止中の社員を在籍状態に戻します。
func (h *EmployeeGrpcHandler) ReactivateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.changeStatus(ctx, req, h.svc.ReactivateEmployee)
}

// OffboardEmployee は社員を退職済みにします。
func (h *EmployeeGrpcHandler) OffboardEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.changeStatus(ctx, req, h.svc.OffboardEmployee)
}

func (h *EmployeeGrpcHandler) changeStatus(ctx context.Context, req *structpb.Struct, fn func(context.Context, employee.ChangeStatusInput) (*employee.Employee, error)) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	changed, err := fn(ctx, employee.ChangeStatusInput{
		OrganizationID: stringValue(req, "organization_id"),
		ID:             stringValue(req, "id"),
		ActorID:        stringValue(req, "actor_id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return employeeResponse(changed)
}

func employeeResponse(e *employee.Employee) (*structpb.Struct, error) {
	return newResponse(map[string]any{"employee": employeeFields(e)})
}

func employeeFields(e *employee.Employee) map[string]any {
	if e == nil {
		return nil
	}

	var hiredAt any
	if h := e.HiredAt(); h != nil {
		hiredAt = h.Format(dateLayout)
	}

	cost := e.MonthlySaaSCost()
	return map[string]any{
		"id":                e.ID(),
		"organization_id":   e.OrganizationID(),
		"name":              e.Name(),
		"email":             e.Email().String(),
		"status":            string(e.Status()),
		"title":             e.Title(),
		"phone":             e.Phone(),
		"avatar_url":        e.AvatarURL(),
		"department_id":     e.DepartmentID(),
		"manager_id":        e.ManagerID(),
		"hired_at":          hiredAt,
		"offboarded_at":     formatOptionalTime(e.OffboardedAt()),
		"external_id":       e.ExternalID(),
		"external_provider": string(e.ExternalProvider()),
		"metadata":          nonNilMap(e.Metadata()),
		"monthly_saas_cost": map[string]any{
			"amount":   cost.Amount(),
			"currency": cost.Currency(),
			"display":  cost.Display(),
		},
		"created_at": formatTime(e.CreatedAt()),
		"updated_at": formatTime(e.UpdatedAt()),
	}
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
