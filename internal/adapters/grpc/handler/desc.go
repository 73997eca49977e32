package handler

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// 各サービスは google.protobuf.Struct をリクエスト・レスポンスに用いる手書きの ServiceDesc で公開します。
type unaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(serviceName, methodName string, bind func(srv any) unaryFunc) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + methodName
	return grpc.MethodDesc{
		MethodName: methodName,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := bind(srv)
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func requireRequest(req *structpb.Struct) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	return nil
}

func stringValue(req *structpb.Struct, key string) string {
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

func optionalString(req *structpb.Struct, key string) *string {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	s := strings.TrimSpace(v.GetStringValue())
	return &s
}

func intValue(req *structpb.Struct, key string) (int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, nil
	}
	n := v.GetNumberValue()
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an integer", key))
	}
	return int(n), nil
}

func optionalInt64(req *structpb.Struct, key string) (*int64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	n := v.GetNumberValue()
	if n != math.Trunc(n) {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an integer", key))
	}
	out := int64(n)
	return &out, nil
}

func optionalDate(req *structpb.Struct, key string) (*time.Time, error) {
	raw := optionalString(req, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, *raw, time.UTC)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("%s: invalid format, expected YYYY-MM-DD", key))
	}
	return &t, nil
}

func mapValue(req *structpb.Struct, key string) map[string]any {
	s := req.GetFields()[key].GetStructValue()
	if s == nil {
		return nil
	}
	return s.AsMap()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func newResponse(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
