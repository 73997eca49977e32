package directorysync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ogurasousui/spendsync/internal/core/department"
	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/employee"
	"github.com/ogurasousui/spendsync/internal/core/integration"
	"github.com/ogurasousui/spendsync/internal/core/shared"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// DefaultPageSize はユーザー一覧取得時の既定ページサイズです。
const DefaultPageSize = 500

// Dependencies は同期エンジンが利用するポートです。
type Dependencies struct {
	Integrations integration.Repository
	Employees    employee.Repository
	Departments  department.Repository
	Providers    directory.ProviderFactory
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithClock は時刻の取得元を差し替えます。
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTransactionManager はトランザクション管理を設定します。
func WithTransactionManager(tx TransactionManager) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRecorder は計測値の送り先を設定します。
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithPageSize はユーザー一覧取得のページサイズを設定します。0 以下は既定値です。
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// SyncInput は同期対象の連携を指定します。
type SyncInput struct {
	IntegrationID  string
	OrganizationID string
}

// UseCase は同期エンジンの公開インターフェースです。
type UseCase interface {
	SyncEmployees(ctx context.Context, in SyncInput) (*SyncResult, error)
	SyncDepartments(ctx context.Context, in SyncInput) (*SyncResult, error)
}

// Service は外部ディレクトリと社員・部署を突き合わせる同期エンジンです。
// 1 回の実行はレコードを入力順に 1 件ずつ処理し、各レコードは独立したトランザクションで保存します。
type Service struct {
	integrations integration.Repository
	employees    employee.Repository
	departments  department.Repository
	providers    directory.ProviderFactory
	clock        Clock
	tx           TransactionManager
	logger       zerolog.Logger
	recorder     Recorder
	pageSize     int
}

// NewService は Service を生成します。
func NewService(deps Dependencies, opts ...Option) *Service {
	s := &Service{
		integrations: deps.Integrations,
		employees:    deps.Employees,
		departments:  deps.Departments,
		providers:    deps.Providers,
		clock:        realClock{},
		tx:           noopTransactionManager{},
		logger:       zerolog.Nop(),
		recorder:     noopRecorder{},
		pageSize:     DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run は 1 回の同期実行の文脈です。
type run struct {
	kind        Kind
	integration *integration.Integration
	identity    shared.IdentityProvider
	provider    directory.Provider
	logger      zerolog.Logger
	startedAt   time.Time
}

// SyncEmployees は外部ディレクトリのユーザーを社員として取り込みます。
// レコード単位の失敗は結果に集約し、連携の取得やユーザー一覧の取得失敗は *SyncFailedError を返します。
func (s *Service) SyncEmployees(ctx context.Context, in SyncInput) (*SyncResult, error) {
	r, err := s.begin(ctx, KindEmployees, in)
	if err != nil {
		return nil, err
	}

	users, err := s.fetchUsers(ctx, r.provider)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}
	r.logger.Info().Int("records", len(users)).Msg("directory users fetched")

	result := newResult(r.startedAt)
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(ctx, r, err)
		}

		o, err := s.syncEmployee(ctx, r, user)
		if err != nil {
			r.logger.Warn().Err(err).Str("email", user.Email).Str("external_id", user.ExternalID).Msg("employee sync record failed")
			result.addError(RecordError{Type: RecordTypeEmployee, Identifier: user.Email, Message: err.Error()})
			continue
		}
		result.count(o)
	}
	result.finish(s.clock.Now())

	if err := s.recordOutcome(ctx, r, result); err != nil {
		return nil, s.fail(ctx, r, err)
	}

	s.complete(r, result)
	return result, nil
}

// SyncDepartments は外部ディレクトリの組織単位を部署として取り込みます。
// 親が子より先に処理されるよう、組織単位はパスの階層が浅い順に処理します。
// 社員同期と異なり、完了時に連携の同期状態は更新しません。
func (s *Service) SyncDepartments(ctx context.Context, in SyncInput) (*SyncResult, error) {
	r, err := s.begin(ctx, KindDepartments, in)
	if err != nil {
		return nil, err
	}

	units, err := r.provider.ListOrgUnits(ctx)
	if err != nil {
		return nil, s.fail(ctx, r, fmt.Errorf("list org units: %w", err))
	}
	r.logger.Info().Int("records", len(units)).Msg("directory org units fetched")

	ordered := sortByDepth(units)
	// 外部 ID からローカル部署 ID への対応はこの実行の中でのみ有効です。
	localIDs := make(map[string]string, len(ordered))

	result := newResult(r.startedAt)
	for _, unit := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(ctx, r, err)
		}

		localID, o, err := s.syncDepartment(ctx, r, unit, localIDs)
		if err != nil {
			r.logger.Warn().Err(err).Str("external_id", unit.ExternalID).Str("path", unit.Path).Msg("department sync record failed")
			result.addError(RecordError{Type: RecordTypeDepartment, Identifier: unit.ExternalID, Message: err.Error()})
			continue
		}
		localIDs[unit.ExternalID] = localID
		result.count(o)
	}
	result.finish(s.clock.Now())

	s.complete(r, result)
	return result, nil
}

func (s *Service) begin(ctx context.Context, kind Kind, in SyncInput) (*run, error) {
	integrationID := strings.TrimSpace(in.IntegrationID)
	orgID := strings.TrimSpace(in.OrganizationID)
	if integrationID == "" || orgID == "" {
		return nil, ErrInvalidInput
	}

	r := &run{
		kind:      kind,
		startedAt: s.clock.Now(),
		logger: s.logger.With().
			Str("kind", string(kind)).
			Str("integration_id", integrationID).
			Str("organization_id", orgID).
			Logger(),
	}
	r.logger.Info().Msg("directory sync started")

	loaded, err := s.loadIntegration(ctx, integrationID, orgID)
	if err != nil {
		return nil, s.failWithID(ctx, r, integrationID, err)
	}
	if loaded.IsDisabled() {
		// 無効化済みの連携には何も記録しません。
		return nil, s.failWithID(ctx, r, integrationID, integration.ErrIntegrationDisabled)
	}
	r.integration = loaded

	identity, err := loaded.Provider().IdentityProvider()
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}
	r.identity = identity

	provider, err := s.providers.ForIntegration(ctx, loaded)
	if err != nil {
		return nil, s.fail(ctx, r, fmt.Errorf("resolve directory provider: %w", err))
	}
	r.provider = provider

	return r, nil
}

func (s *Service) loadIntegration(ctx context.Context, id, orgID string) (*integration.Integration, error) {
	var found *integration.Integration
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		i, err := s.integrations.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if i.OrganizationID() != orgID {
			return integration.ErrIntegrationNotFound
		}
		found = i
		return nil
	}); err != nil {
		return nil, err
	}
	return found, nil
}

// fetchUsers は削除済みを含む全ユーザーをページトークンが尽きるまで取得します。
func (s *Service) fetchUsers(ctx context.Context, provider directory.Provider) ([]directory.User, error) {
	var (
		users []directory.User
		token string
	)
	seen := make(map[string]struct{})
	for {
		page, err := provider.ListUsers(ctx, directory.ListUsersOptions{
			PageSize:       s.pageSize,
			PageToken:      token,
			IncludeDeleted: true,
		})
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		if page == nil {
			return users, nil
		}
		users = append(users, page.Items...)
		if page.NextPageToken == "" {
			return users, nil
		}
		if _, ok := seen[page.NextPageToken]; ok {
			return nil, fmt.Errorf("list users: %w", ErrPageTokenLoop)
		}
		seen[page.NextPageToken] = struct{}{}
		token = page.NextPageToken
	}
}

func (s *Service) syncEmployee(ctx context.Context, r *run, user directory.User) (outcome, error) {
	externalID := strings.TrimSpace(user.ExternalID)
	if externalID == "" {
		return 0, ErrMissingExternalID
	}
	email, err := shared.NewEmail(user.Email)
	if err != nil {
		return 0, err
	}

	mapped, known := MapDirectoryStatus(user.Status)
	if !known {
		r.logger.Warn().
			Str("status_mapping", "fallback").
			Str("directory_status", string(user.Status)).
			Str("email", email.String()).
			Msg("unknown directory status treated as active")
		s.recorder.UnmappedStatus(r.integration.Provider(), user.Status)
	}

	orgID := r.integration.OrganizationID()
	name := displayName(user, email)

	var result outcome
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.matchEmployee(txCtx, orgID, externalID, email)
		if errors.Is(err, ErrExternalIDConflict) {
			// 削除済みの旧アカウントが現役社員と同じアドレスを持つ場合など。既存の紐付けを優先します。
			r.logger.Warn().
				Str("email", email.String()).
				Str("external_id", externalID).
				Msg("email already linked to another external id, record skipped")
			result = outcomeSkipped
			return nil
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if existing == nil {
			created, err := newEmployee(orgID, name, email, externalID, r.identity, user, mapped, now)
			if err != nil {
				return err
			}
			if err := s.employees.Save(txCtx, created); err != nil {
				return err
			}
			result = outcomeCreated
			return nil
		}

		target := reachableStatus(existing.Status(), mapped)
		needsUpdate := existing.Name() != name ||
			!existing.Email().Equals(email) ||
			existing.Status() != target ||
			!existing.HasExternalID()
		if !needsUpdate {
			result = outcomeSkipped
			return nil
		}

		existing.UpdateName(name, now)
		existing.UpdateEmail(email, now)
		if err := applyStatus(existing, mapped, now); err != nil {
			return err
		}
		if !existing.HasExternalID() {
			existing.UpdateExternalID(externalID, r.identity, now)
		}
		if err := s.employees.Save(txCtx, existing); err != nil {
			return err
		}
		result = outcomeUpdated
		return nil
	})
	return result, err
}

// matchEmployee は外部 ID、次にメールアドレスの順で既存社員を探します。見つからなければ nil です。
// メールアドレスで見つかった社員が別の外部 ID に紐付いている場合は ErrExternalIDConflict を返します。
func (s *Service) matchEmployee(ctx context.Context, orgID, externalID string, email shared.Email) (*employee.Employee, error) {
	found, err := s.employees.FindByExternalID(ctx, orgID, externalID)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, employee.ErrEmployeeNotFound) {
		return nil, err
	}

	found, err = s.employees.FindByEmail(ctx, orgID, email)
	if err == nil {
		if found.HasExternalID() && found.ExternalID() != externalID {
			return nil, ErrExternalIDConflict
		}
		return found, nil
	}
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		return nil, nil
	}
	return nil, err
}

func newEmployee(orgID, name string, email shared.Email, externalID string, identity shared.IdentityProvider, user directory.User, mapped employee.Status, now time.Time) (*employee.Employee, error) {
	e, err := employee.New(employee.NewParams{
		OrganizationID:   orgID,
		Name:             name,
		Email:            email,
		Title:            strings.TrimSpace(user.JobTitle),
		Phone:            strings.TrimSpace(user.PhoneNumber),
		HiredAt:          user.StartDate,
		ExternalID:       externalID,
		ExternalProvider: identity,
		Metadata:         user.Metadata,
	}, now)
	if err != nil {
		return nil, err
	}
	// 最初の保存前に遷移させ、active の行が一時的にも残らないようにします。
	if err := applyStatus(e, mapped, now); err != nil {
		return nil, err
	}
	return e, nil
}

// applyStatus は状態機械のメソッドを通して mapped に近づけます。到達できない遷移は何もしません。
func applyStatus(e *employee.Employee, mapped employee.Status, now time.Time) error {
	current := e.Status()
	switch {
	case mapped == employee.StatusSuspended && current == employee.StatusActive:
		return e.Suspend(now)
	case mapped == employee.StatusOffboarded && current != employee.StatusOffboarded:
		return e.Offboard(now)
	case mapped == employee.StatusActive && current == employee.StatusSuspended:
		return e.Reactivate(now)
	}
	return nil
}

func displayName(user directory.User, email shared.Email) string {
	if name := strings.TrimSpace(user.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName)); name != "" {
		return name
	}
	return email.String()
}

func (s *Service) syncDepartment(ctx context.Context, r *run, unit directory.OrgUnit, localIDs map[string]string) (string, outcome, error) {
	externalID := strings.TrimSpace(unit.ExternalID)
	if externalID == "" {
		return "", 0, ErrMissingExternalID
	}
	parentExternalID := strings.TrimSpace(unit.ParentID)
	if parentExternalID == externalID {
		return "", 0, ErrSelfParent
	}

	orgID := r.integration.OrganizationID()
	name := strings.TrimSpace(unit.Name)
	description := strings.TrimSpace(unit.Description)

	var (
		localID string
		result  outcome
	)
	err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		parentID, err := s.resolveParent(txCtx, r, orgID, parentExternalID, localIDs)
		if err != nil {
			return err
		}

		existing, err := s.departments.FindByExternalID(txCtx, orgID, externalID)
		if err != nil && !errors.Is(err, department.ErrDepartmentNotFound) {
			return err
		}

		now := s.clock.Now()
		if existing == nil {
			created, err := department.New(department.NewParams{
				OrganizationID:   orgID,
				Name:             name,
				Description:      description,
				ParentID:         parentID,
				ExternalID:       externalID,
				ExternalProvider: r.identity,
				Metadata:         unit.Metadata,
			}, now)
			if err != nil {
				return err
			}
			if err := s.departments.Save(txCtx, created); err != nil {
				return err
			}
			localID = created.ID()
			result = outcomeCreated
			return nil
		}

		if parentID != "" && parentID == existing.ID() {
			return ErrSelfParent
		}

		localID = existing.ID()
		if existing.Name() == name && existing.Description() == description && existing.ParentID() == parentID {
			result = outcomeSkipped
			return nil
		}

		if name == "" {
			return department.ErrInvalidName
		}
		existing.UpdateName(name, now)
		existing.UpdateDescription(description, now)
		existing.UpdateParent(parentID, now)
		if err := s.departments.Save(txCtx, existing); err != nil {
			return err
		}
		result = outcomeUpdated
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return localID, result, nil
}

// resolveParent は実行中の対応表、次にリポジトリの順で親部署のローカル ID を引きます。
// どちらにも無い親はルート扱いにします。
func (s *Service) resolveParent(ctx context.Context, r *run, orgID, parentExternalID string, localIDs map[string]string) (string, error) {
	if parentExternalID == "" {
		return "", nil
	}
	if id, ok := localIDs[parentExternalID]; ok {
		return id, nil
	}

	parent, err := s.departments.FindByExternalID(ctx, orgID, parentExternalID)
	if err == nil {
		return parent.ID(), nil
	}
	if errors.Is(err, department.ErrDepartmentNotFound) {
		r.logger.Warn().Str("parent_external_id", parentExternalID).Msg("parent org unit not found, placing at root")
		return "", nil
	}
	return "", err
}

// recordOutcome は社員同期の結果を連携に記録します。
func (s *Service) recordOutcome(ctx context.Context, r *run, result *SyncResult) error {
	return s.updateIntegration(ctx, r.integration.ID(), func(i *integration.Integration) error {
		if result.Success {
			return i.RecordSyncSuccess(result.CompletedAt)
		}
		return i.RecordSyncError(result.errorSummary(RecordTypeEmployee), result.CompletedAt)
	})
}

func (s *Service) updateIntegration(ctx context.Context, id string, fn func(*integration.Integration) error) error {
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.integrations.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		return s.integrations.Save(txCtx, current)
	})
}

func (s *Service) complete(r *run, result *SyncResult) {
	r.logger.Info().
		Bool("success", result.Success).
		Int("created", result.Stats.Created).
		Int("updated", result.Stats.Updated).
		Int("skipped", result.Stats.Skipped).
		Int("errors", result.Stats.Errors).
		Dur("elapsed", result.CompletedAt.Sub(result.StartedAt)).
		Msg("directory sync finished")
	s.recorder.RunCompleted(r.kind, r.integration.Provider(), result)
}

// fail は致命的エラーを連携に記録し、*SyncFailedError を返します。
func (s *Service) fail(ctx context.Context, r *run, reason error) error {
	return s.failWithID(ctx, r, r.integration.ID(), reason)
}

func (s *Service) failWithID(ctx context.Context, r *run, integrationID string, reason error) error {
	var provider integration.Provider
	if r.integration != nil {
		provider = r.integration.Provider()
		// 呼び出し元のキャンセル後も記録できるようにします。
		recordCtx := context.WithoutCancel(ctx)
		if err := s.updateIntegration(recordCtx, integrationID, func(i *integration.Integration) error {
			return i.RecordSyncError(reason.Error(), s.clock.Now())
		}); err != nil {
			r.logger.Warn().Err(err).Msg("failed to record sync error on integration")
		}
	}

	r.logger.Error().Err(reason).Msg("directory sync failed")
	s.recorder.RunFailed(r.kind, provider, s.clock.Now().Sub(r.startedAt))

	return &SyncFailedError{IntegrationID: integrationID, Kind: r.kind, Reason: reason}
}
