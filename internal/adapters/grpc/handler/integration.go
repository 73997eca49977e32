package handler

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/spendsync/internal/core/integration"
)

// IntegrationServiceName は連携設定サービスの完全修飾名です。
const IntegrationServiceName = "spendsync.integration.v1.IntegrationService"

// IntegrationServiceServer は IntegrationService のサーバー側インターフェースです。
type IntegrationServiceServer interface {
	CreateIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListIntegrations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ActivateIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DisableIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TestConnection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListOverdueIntegrations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// IntegrationServiceDesc は IntegrationService の ServiceDesc です。
var IntegrationServiceDesc = grpc.ServiceDesc{
	ServiceName: IntegrationServiceName,
	HandlerType: (*IntegrationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(IntegrationServiceName, "CreateIntegration", func(srv any) unaryFunc { return srv.(IntegrationServiceServer).CreateIntegration }),
		unaryMethod(IntegrationServiceName, "GetIntegration", func(srv any) unaryFunc { return srv.(IntegrationServiceServer).GetIntegration }),
		unaryMethod(IntegrationServiceName, "ListIntegrations", func(srv any) unaryFunc { return srv.(IntegrationServiceServer).ListIntegrations }),
		unaryMethod(IntegrationServiceName, "ActivateIntegration", func(srv any) unaryFunc { return srv.(IntegrationServiceServer).ActivateIntegration }),
		unaryMethod(IntegrationServiceName, "DisableIntegration", func(srv any) unaryFunc { return srv.(IntegrationServiceServer).DisableIntegration }),
		unaryMethod(IntegrationServiceName, "TestConnection", func(srv any) unaryFunc { return srv.(IntegrationServiceServer).TestConnection }),
		unaryMethod(IntegrationServiceName, "ListOverdueIntegrations", func(srv any) unaryFunc { return srv.(IntegrationServiceServer).ListOverdueIntegrations }),
	},
	Metadata: "spendsync/integration/v1/integration.proto",
}

// IntegrationGrpcHandler は IntegrationService の gRPC 実装です。
// 資格情報はレスポンスに含めません。
type IntegrationGrpcHandler struct {
	svc              integration.UseCase
	overdueThreshold time.Duration
}

var _ IntegrationServiceServer = (*IntegrationGrpcHandler)(nil)

// NewIntegrationGrpcHandler は IntegrationGrpcHandler を生成します。
// overdueThreshold はリクエストでしきい値が指定されなかった場合に使います。
func NewIntegrationGrpcHandler(svc integration.UseCase, overdueThreshold time.Duration) *IntegrationGrpcHandler {
	if overdueThreshold <= 0 {
		overdueThreshold = integration.DefaultOverdueThreshold
	}
	return &IntegrationGrpcHandler{svc: svc, overdueThreshold: overdueThreshold}
}

// CreateIntegration は pending 状態の連携設定を作成します。
func (h *IntegrationGrpcHandler) CreateIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	created, err := h.svc.CreateIntegration(ctx, integration.CreateIntegrationInput{
		OrganizationID: stringValue(req, "organization_id"),
		Provider:       integration.Provider(stringValue(req, "provider")),
		Credentials:    []byte(req.GetFields()["credentials"].GetStringValue()),
		Config:         mapValue(req, "config"),
		CreatedBy:      stringValue(req, "created_by"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"integration": integrationFields(created)})
}

// GetIntegration は連携設定を取得します。
func (h *IntegrationGrpcHandler) GetIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.single(ctx, req, h.svc.GetIntegration)
}

// ActivateIntegration は連携設定を有効化します。
func (h *IntegrationGrpcHandler) ActivateIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.single(ctx, req, h.svc.ActivateIntegration)
}

// DisableIntegration は連携設定を無効化します。
func (h *IntegrationGrpcHandler) DisableIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.single(ctx, req, h.svc.DisableIntegration)
}

func (h *IntegrationGrpcHandler) single(ctx context.Context, req *structpb.Struct, fn func(context.Context, integration.GetIntegrationInput) (*integration.Integration, error)) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	found, err := fn(ctx, integrationKey(req))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"integration": integrationFields(found)})
}

// ListIntegrations は連携設定の一覧を取得します。
func (h *IntegrationGrpcHandler) ListIntegrations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	pageSize, err := intValue(req, "page_size")
	if err != nil {
		return nil, err
	}

	in := integration.ListIntegrationsInput{
		OrganizationID: stringValue(req, "organization_id"),
		PageSize:       pageSize,
		PageToken:      stringValue(req, "page_token"),
	}
	if raw := stringValue(req, "status"); raw != "" {
		st := integration.Status(raw)
		in.Status = &st
	}

	result, err := h.svc.ListIntegrations(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{
		"integrations":    integrationList(result.Integrations),
		"next_page_token": result.NextPageToken,
	})
}

// TestConnection は外部ディレクトリへの疎通を確認します。
// 疎通失敗はエラーではなく success=false として返します。
func (h *IntegrationGrpcHandler) TestConnection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	result, err := h.svc.TestConnection(ctx, integrationKey(req))
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{
		"success":     result.Success,
		"message":     result.Message,
		"integration": integrationFields(result.Integration),
	})
}

// ListOverdueIntegrations は同期が遅延している連携設定を返します。
func (h *IntegrationGrpcHandler) ListOverdueIntegrations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	threshold := h.overdueThreshold
	if raw := stringValue(req, "threshold"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("threshold: invalid duration %q", raw))
		}
		threshold = parsed
	}

	found, err := h.svc.ListOverdueIntegrations(ctx, integration.ListOverdueIntegrationsInput{Threshold: threshold})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"integrations": integrationList(found)})
}

func integrationKey(req *structpb.Struct) integration.GetIntegrationInput {
	return integration.GetIntegrationInput{
		OrganizationID: stringValue(req, "organization_id"),
		ID:             stringValue(req, "id"),
	}
}

func integrationList(items []*integration.Integration) []any {
	out := make([]any, 0, len(items))
	for _, i := range items {
		out = append(out, integrationFields(i))
	}
	return out
}

func integrationFields(i *integration.Integration) map[string]any {
	if i == nil {
		return nil
	}
	return map[string]any{
		"id":               i.ID(),
		"organization_id":  i.OrganizationID(),
		"provider":         string(i.Provider()),
		"status":           string(i.Status()),
		"config":           nonNilMap(i.Config()),
		"last_sync_at":     formatOptionalTime(i.LastSyncAt()),
		"last_sync_status": string(i.LastSyncStatus()),
		"last_sync_error":  i.LastSyncError(),
		"created_at":       formatTime(i.CreatedAt()),
		"updated_at":       formatTime(i.UpdatedAt()),
		"created_by":       i.CreatedBy(),
	}
}
