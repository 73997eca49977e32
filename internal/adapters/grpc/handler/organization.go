package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/spendsync/internal/core/organization"
)

// OrganizationServiceName は組織サービスの完全修飾名です。
const OrganizationServiceName = "spendsync.organization.v1.OrganizationService"

// OrganizationServiceServer は OrganizationService のサーバー側インターフェースです。
type OrganizationServiceServer interface {
	CreateOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListOrganizations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// OrganizationServiceDesc は OrganizationService の ServiceDesc です。
var OrganizationServiceDesc = grpc.ServiceDesc{
	ServiceName: OrganizationServiceName,
	HandlerType: (*OrganizationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(OrganizationServiceName, "CreateOrganization", func(srv any) unaryFunc { return srv.(OrganizationServiceServer).CreateOrganization }),
		unaryMethod(OrganizationServiceName, "GetOrganization", func(srv any) unaryFunc { return srv.(OrganizationServiceServer).GetOrganization }),
		unaryMethod(OrganizationServiceName, "ListOrganizations", func(srv any) unaryFunc { return srv.(OrganizationServiceServer).ListOrganizations }),
		unaryMethod(OrganizationServiceName, "UpdateOrganization", func(srv any) unaryFunc { return srv.(OrganizationServiceServer).UpdateOrganization }),
	},
	Metadata: "spendsync/organization/v1/organization.proto",
}

// OrganizationGrpcHandler は OrganizationService の gRPC 実装です。
type OrganizationGrpcHandler struct {
	svc organization.UseCase
}

var _ OrganizationServiceServer = (*OrganizationGrpcHandler)(nil)

// NewOrganizationGrpcHandler は OrganizationGrpcHandler を生成します。
func NewOrganizationGrpcHandler(svc organization.UseCase) *OrganizationGrpcHandler {
	return &OrganizationGrpcHandler{svc: svc}
}

// CreateOrganization は組織を作成します。
func (h *OrganizationGrpcHandler) CreateOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	created, err := h.svc.CreateOrganization(ctx, organization.CreateOrganizationInput{
		Name: stringValue(req, "name"),
		Slug: stringValue(req, "slug"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"organization": organizationFields(created)})
}

// GetOrganization は組織を取得します。
func (h *OrganizationGrpcHandler) GetOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	found, err := h.svc.GetOrganization(ctx, organization.GetOrganizationInput{ID: stringValue(req, "id")})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"organization": organizationFields(found)})
}

// ListOrganizations は組織の一覧を取得します。
func (h *OrganizationGrpcHandler) ListOrganizations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	pageSize, err := intValue(req, "page_size")
	if err != nil {
		return nil, err
	}

	in := organization.ListOrganizationsInput{
		PageSize:  pageSize,
		PageToken: stringValue(req, "page_token"),
	}
	if raw := stringValue(req, "status"); raw != "" {
		st := organization.Status(raw)
		in.Status = &st
	}

	result, err := h.svc.ListOrganizations(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	orgs := make([]any, 0, len(result.Organizations))
	for _, o := range result.Organizations {
		orgs = append(orgs, organizationFields(o))
	}

	return newResponse(map[string]any{
		"organizations":   orgs,
		"next_page_token": result.NextPageToken,
	})
}

// UpdateOrganization は組織情報を更新します。
func (h *OrganizationGrpcHandler) UpdateOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	in := organization.UpdateOrganizationInput{
		ID:   stringValue(req, "id"),
		Name: optionalString(req, "name"),
		Slug: optionalString(req, "slug"),
	}
	if raw := optionalString(req, "status"); raw != nil {
		st := organization.Status(*raw)
		in.Status = &st
	}

	updated, err := h.svc.UpdateOrganization(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"organization": organizationFields(updated)})
}

func organizationFields(o *organization.Organization) map[string]any {
	if o == nil {
		return nil
	}
	return map[string]any{
		"id":         o.ID,
		"name":       o.Name,
		"slug":       o.Slug,
		"status":     string(o.Status),
		"created_at": formatTime(o.CreatedAt),
		"updated_at": formatTime(o.UpdatedAt),
	}
}
