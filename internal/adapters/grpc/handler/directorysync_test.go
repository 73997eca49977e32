package handler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/spendsync/internal/core/directorysync"
	"github.com/ogurasousui/spendsync/internal/core/integration"
)

type stubDirectorySyncUseCase struct {
	employeeCalls   atomic.Int32
	departmentCalls atomic.Int32
	started         chan struct{}
	release         chan struct{}
	lastInput       directorysync.SyncInput
	mu              sync.Mutex
	result          *directorysync.SyncResult
	err             error
}

func (s *stubDirectorySyncUseCase) SyncEmployees(ctx context.Context, in directorysync.SyncInput) (*directorysync.SyncResult, error) {
	s.employeeCalls.Add(1)
	return s.run(ctx, in)
}

func (s *stubDirectorySyncUseCase) SyncDepartments(ctx context.Context, in directorysync.SyncInput) (*directorysync.SyncResult, error) {
	s.departmentCalls.Add(1)
	return s.run(ctx, in)
}

func (s *stubDirectorySyncUseCase) run(ctx context.Context, in directorysync.SyncInput) (*directorysync.SyncResult, error) {
	s.mu.Lock()
	s.lastInput = in
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if err := ctx.Err(); err != nil {
		return nil, &directorysync.SyncFailedError{IntegrationID: in.IntegrationID, Kind: directorysync.KindEmployees, Reason: err}
	}
	return s.result, s.err
}

func testSyncResult() *directorysync.SyncResult {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &directorysync.SyncResult{
		Success:     false,
		StartedAt:   started,
		CompletedAt: started.Add(3 * time.Second),
		Stats:       directorysync.Stats{Created: 2, Updated: 1, Skipped: 4, Errors: 1},
		Errors:      []string{"employee:bad@example.com - employee: invalid name"},
	}
}

func TestDirectorySyncGrpcHandler_SyncEmployees_Result(t *testing.T) {
	t.Parallel()

	stub := &stubDirectorySyncUseCase{result: testSyncResult()}
	handler := NewDirectorySyncGrpcHandler(stub)

	resp, err := handler.SyncEmployees(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"integration_id":  "int-1",
	}))
	if err != nil {
		t.Fatalf("SyncEmployees returned error: %v", err)
	}

	if stub.lastInput.IntegrationID != "int-1" || stub.lastInput.OrganizationID != "org-1" {
		t.Errorf("unexpected input %+v", stub.lastInput)
	}

	fields := resp.GetFields()
	if fields["kind"].GetStringValue() != "employees" {
		t.Errorf("expected kind employees, got %s", fields["kind"].GetStringValue())
	}
	if fields["success"].GetBoolValue() {
		t.Errorf("expected success=false for a run with record errors")
	}
	stats := fields["stats"].GetStructValue().GetFields()
	if stats["created"].GetNumberValue() != 2 || stats["errors"].GetNumberValue() != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
	errs := fields["errors"].GetListValue().GetValues()
	if len(errs) != 1 || errs[0].GetStringValue() != "employee:bad@example.com - employee: invalid name" {
		t.Errorf("unexpected errors %v", errs)
	}
	if fields["completed_at"].GetStringValue() != "2024-06-01T12:00:03Z" {
		t.Errorf("unexpected completed_at %s", fields["completed_at"].GetStringValue())
	}
}

func TestDirectorySyncGrpcHandler_SyncDepartments_UsesDepartmentRun(t *testing.T) {
	t.Parallel()

	stub := &stubDirectorySyncUseCase{result: testSyncResult()}
	handler := NewDirectorySyncGrpcHandler(stub)

	if _, err := handler.SyncDepartments(context.Background(), mustStruct(t, map[string]any{
		"organization_id": "org-1",
		"integration_id":  "int-1",
	})); err != nil {
		t.Fatalf("SyncDepartments returned error: %v", err)
	}

	if stub.departmentCalls.Load() != 1 || stub.employeeCalls.Load() != 0 {
		t.Errorf("expected only a department run, got departments=%d employees=%d", stub.departmentCalls.Load(), stub.employeeCalls.Load())
	}
}

func TestDirectorySyncGrpcHandler_CollapsesConcurrentRuns(t *testing.T) {
	t.Parallel()

	stub := &stubDirectorySyncUseCase{
		result:  testSyncResult(),
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	handler := NewDirectorySyncGrpcHandler(stub)
	req := mustStruct(t, map[string]any{"organization_id": "org-1", "integration_id": "int-1"})

	type outcome struct {
		resp *structpb.Struct
		err  error
	}
	results := make(chan outcome, 2)
	call := func() {
		resp, err := handler.SyncEmployees(context.Background(), req)
		results <- outcome{resp: resp, err: err}
	}

	go call()
	<-stub.started
	go call()
	// 2 件目が同じキーで待機するまで待ってから解放します。
	time.Sleep(100 * time.Millisecond)
	close(stub.release)

	for range 2 {
		got := <-results
		if got.err != nil {
			t.Fatalf("SyncEmployees returned error: %v", got.err)
		}
		if !got.resp.GetFields()["shared"].GetBoolValue() {
			t.Errorf("expected the result to be shared")
		}
	}
	if n := stub.employeeCalls.Load(); n != 1 {
		t.Fatalf("expected a single run, got %d", n)
	}
}

func TestDirectorySyncGrpcHandler_SharedRunSurvivesFirstCallerCancel(t *testing.T) {
	t.Parallel()

	stub := &stubDirectorySyncUseCase{
		result:  testSyncResult(),
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	handler := NewDirectorySyncGrpcHandler(stub)
	req := mustStruct(t, map[string]any{"organization_id": "org-1", "integration_id": "int-1"})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := handler.SyncEmployees(leaderCtx, req)
		leaderErr <- err
	}()
	<-stub.started

	type outcome struct {
		resp *structpb.Struct
		err  error
	}
	follower := make(chan outcome, 1)
	go func() {
		resp, err := handler.SyncEmployees(context.Background(), req)
		follower <- outcome{resp: resp, err: err}
	}()
	// 2 件目が同じキーで待機するまで待ってから先頭の呼び出し元を切断します。
	time.Sleep(100 * time.Millisecond)
	cancelLeader()
	assertCode(t, <-leaderErr, codes.Canceled)

	close(stub.release)
	got := <-follower
	if got.err != nil {
		t.Fatalf("follower returned error: %v", got.err)
	}
	if !got.resp.GetFields()["shared"].GetBoolValue() {
		t.Errorf("expected the follower to share the run")
	}
	if n := stub.employeeCalls.Load(); n != 1 {
		t.Fatalf("expected a single run, got %d", n)
	}
}

func TestDirectorySyncGrpcHandler_DistinctIntegrationsRunSeparately(t *testing.T) {
	t.Parallel()

	stub := &stubDirectorySyncUseCase{result: testSyncResult()}
	handler := NewDirectorySyncGrpcHandler(stub)

	for _, id := range []string{"int-1", "int-2"} {
		if _, err := handler.SyncEmployees(context.Background(), mustStruct(t, map[string]any{
			"organization_id": "org-1",
			"integration_id":  id,
		})); err != nil {
			t.Fatalf("SyncEmployees(%s) returned error: %v", id, err)
		}
	}

	if n := stub.employeeCalls.Load(); n != 2 {
		t.Fatalf("expected two runs, got %d", n)
	}
}

func TestDirectorySyncGrpcHandler_ErrorCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "invalid input", err: directorysync.ErrInvalidInput, want: codes.InvalidArgument},
		{
			name: "listing failed",
			err:  &directorysync.SyncFailedError{IntegrationID: "int-1", Kind: directorysync.KindEmployees, Reason: errors.New("googleapi: 503")},
			want: codes.Unavailable,
		},
		{
			name: "disabled integration",
			err:  &directorysync.SyncFailedError{IntegrationID: "int-1", Kind: directorysync.KindEmployees, Reason: integration.ErrIntegrationDisabled},
			want: codes.FailedPrecondition,
		},
		{
			name: "integration not found",
			err:  &directorysync.SyncFailedError{IntegrationID: "int-1", Kind: directorysync.KindDepartments, Reason: integration.ErrIntegrationNotFound},
			want: codes.NotFound,
		},
		{
			name: "cancelled",
			err:  &directorysync.SyncFailedError{IntegrationID: "int-1", Kind: directorysync.KindEmployees, Reason: context.Canceled},
			want: codes.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := NewDirectorySyncGrpcHandler(&stubDirectorySyncUseCase{err: tt.err})
			_, err := handler.SyncEmployees(context.Background(), mustStruct(t, map[string]any{
				"organization_id": "org-1",
				"integration_id":  "int-1",
			}))
			assertCode(t, err, tt.want)
		})
	}
}
