package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/spendsync/internal/core/department"
)

// DepartmentServiceName は部署サービスの完全修飾名です。
const DepartmentServiceName = "spendsync.department.v1.DepartmentService"

// DepartmentServiceServer は DepartmentService のサーバー側インターフェースです。
type DepartmentServiceServer interface {
	CreateDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListDepartments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// DepartmentServiceDesc は DepartmentService の ServiceDesc です。
var DepartmentServiceDesc = grpc.ServiceDesc{
	ServiceName: DepartmentServiceName,
	HandlerType: (*DepartmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(DepartmentServiceName, "CreateDepartment", func(srv any) unaryFunc { return srv.(DepartmentServiceServer).CreateDepartment }),
		unaryMethod(DepartmentServiceName, "GetDepartment", func(srv any) unaryFunc { return srv.(DepartmentServiceServer).GetDepartment }),
		unaryMethod(DepartmentServiceName, "ListDepartments", func(srv any) unaryFunc { return srv.(DepartmentServiceServer).ListDepartments }),
		unaryMethod(DepartmentServiceName, "UpdateDepartment", func(srv any) unaryFunc { return srv.(DepartmentServiceServer).UpdateDepartment }),
	},
	Metadata: "spendsync/department/v1/department.proto",
}

// DepartmentGrpcHandler は DepartmentService の gRPC 実装です。
type DepartmentGrpcHandler struct {
	svc department.UseCase
}

var _ DepartmentServiceServer = (*DepartmentGrpcHandler)(nil)

// NewDepartmentGrpcHandler は DepartmentGrpcHandler を生成します。
func NewDepartmentGrpcHandler(svc department.UseCase) *DepartmentGrpcHandler {
	return &DepartmentGrpcHandler{svc: svc}
}

// CreateDepartment は部署を作成します。
func (h *DepartmentGrpcHandler) CreateDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	created, err := h.svc.CreateDepartment(ctx, department.CreateDepartmentInput{
		OrganizationID: stringValue(req, "organization_id"),
		Name:           stringValue(req, "name"),
		Description:    stringValue(req, "description"),
		ParentID:       stringValue(req, "parent_id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"department": departmentFields(created)})
}

// GetDepartment は部署を取得します。
func (h *DepartmentGrpcHandler) GetDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	found, err := h.svc.GetDepartment(ctx, department.GetDepartmentInput{
		OrganizationID: stringValue(req, "organization_id"),
		ID:             stringValue(req, "id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"department": departmentFields(found)})
}

// ListDepartments は部署の一覧を取得します。parent_id に空文字を渡すとルート部署のみを返します。
func (h *DepartmentGrpcHandler) ListDepartments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	pageSize, err := intValue(req, "page_size")
	if err != nil {
		return nil, err
	}

	result, err := h.svc.ListDepartments(ctx, department.ListDepartmentsInput{
		OrganizationID: stringValue(req, "organization_id"),
		ParentID:       optionalString(req, "parent_id"),
		PageSize:       pageSize,
		PageToken:      stringValue(req, "page_token"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	departments := make([]any, 0, len(result.Departments))
	for _, d := range result.Departments {
		departments = append(departments, departmentFields(d))
	}

	return newResponse(map[string]any{
		"departments":     departments,
		"next_page_token": result.NextPageToken,
	})
}

// UpdateDepartment は部署情報を更新します。
func (h *DepartmentGrpcHandler) UpdateDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	updated, err := h.svc.UpdateDepartment(ctx, department.UpdateDepartmentInput{
		OrganizationID: stringValue(req, "organization_id"),
		ID:             stringValue(req, "id"),
		Name:           optionalString(req, "name"),
		Description:    optionalString(req, "description"),
		ParentID:       optionalString(req, "parent_id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"department": departmentFields(updated)})
}

func departmentFields(d *department.Department) map[string]any {
	if d == nil {
		return nil
	}
	return map[string]any{
		"id":                d.ID(),
		"organization_id":   d.OrganizationID(),
		"name":              d.Name(),
		"description":       d.Description(),
		"parent_id":         d.ParentID(),
		"external_id":       d.ExternalID(),
		"external_provider": string(d.ExternalProvider()),
		"metadata":          nonNilMap(d.Metadata()),
		"created_at":        formatTime(d.CreatedAt()),
		"updated_at":        formatTime(d.UpdatedAt()),
	}
}
