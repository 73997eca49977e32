package handler

import (
	"context"

	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/spendsync/internal/core/directorysync"
)

// DirectorySyncServiceName はディレクトリ同期サービスの完全修飾名です。
const DirectorySyncServiceName = "spendsync.directorysync.v1.DirectorySyncService"

// DirectorySyncServiceServer は DirectorySyncService のサーバー側インターフェースです。
type DirectorySyncServiceServer interface {
	SyncEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SyncDepartments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// DirectorySyncServiceDesc は DirectorySyncService の ServiceDesc です。
var DirectorySyncServiceDesc = grpc.ServiceDesc{
	ServiceName: DirectorySyncServiceName,
	HandlerType: (*DirectorySyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(DirectorySyncServiceName, "SyncEmployees", func(srv any) unaryFunc { return srv.(DirectorySyncServiceServer).SyncEmployees }),
		unaryMethod(DirectorySyncServiceName, "SyncDepartments", func(srv any) unaryFunc { return srv.(DirectorySyncServiceServer).SyncDepartments }),
	},
	Metadata: "spendsync/directorysync/v1/directorysync.proto",
}

// DirectorySyncGrpcHandler は DirectorySyncService の gRPC 実装です。
// 同じ種別・同じ連携への同時リクエストは 1 回の実行にまとめ、結果を共有します。
type DirectorySyncGrpcHandler struct {
	svc   directorysync.UseCase
	group singleflight.Group
}

var _ DirectorySyncServiceServer = (*DirectorySyncGrpcHandler)(nil)

// NewDirectorySyncGrpcHandler は DirectorySyncGrpcHandler を生成します。
func NewDirectorySyncGrpcHandler(svc directorysync.UseCase) *DirectorySyncGrpcHandler {
	return &DirectorySyncGrpcHandler{svc: svc}
}

// SyncEmployees は外部ディレクトリのユーザーを社員へ同期します。
func (h *DirectorySyncGrpcHandler) SyncEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.run(ctx, req, directorysync.KindEmployees, h.svc.SyncEmployees)
}

// SyncDepartments は外部ディレクトリの組織単位を部署へ同期します。
func (h *DirectorySyncGrpcHandler) SyncDepartments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.run(ctx, req, directorysync.KindDepartments, h.svc.SyncDepartments)
}

func (h *DirectorySyncGrpcHandler) run(ctx context.Context, req *structpb.Struct, kind directorysync.Kind, fn func(context.Context, directorysync.SyncInput) (*directorysync.SyncResult, error)) (*structpb.Struct, error) {
	if err := requireRequest(req); err != nil {
		return nil, err
	}

	in := directorysync.SyncInput{
		IntegrationID:  stringValue(req, "integration_id"),
		OrganizationID: stringValue(req, "organization_id"),
	}

	key := string(kind) + ":" + in.OrganizationID + ":" + in.IntegrationID
	// 共有される実行は先頭の呼び出し元の切断に引きずられないようにします。各呼び出し元は下の select で個別に離脱できます。
	runCtx := context.WithoutCancel(ctx)
	ch := h.group.DoChan(key, func() (any, error) {
		return fn(runCtx, in)
	})

	select {
	case <-ctx.Done():
		return nil, toStatusError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, toStatusError(res.Err)
		}
		return syncResultResponse(kind, res.Val.(*directorysync.SyncResult), res.Shared)
	}
}

func syncResultResponse(kind directorysync.Kind, r *directorysync.SyncResult, shared bool) (*structpb.Struct, error) {
	errs := make([]any, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}

	return newResponse(map[string]any{
		"kind":         string(kind),
		"success":      r.Success,
		"started_at":   formatTime(r.StartedAt),
		"completed_at": formatTime(r.CompletedAt),
		"stats": map[string]any{
			"created": r.Stats.Created,
			"updated": r.Stats.Updated,
			"skipped": r.Stats.Skipped,
			"errors":  r.Stats.Errors,
		},
		"errors": errs,
		"shared": shared,
	})
}
