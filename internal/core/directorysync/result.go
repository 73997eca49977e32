package directorysync

import (
	"fmt"
	"strings"
	"time"
)

// Kind は同期対象の種別です。
type Kind string

const (
	KindEmployees   Kind = "employees"
	KindDepartments Kind = "departments"
)

// RecordType はエラーになったレコードの種別です。
type RecordType string

const (
	RecordTypeEmployee   RecordType = "employee"
	RecordTypeDepartment RecordType = "department"
)

// maxSummaryIdentifiers は連携に記録するエラー要約に含める識別子の上限です。
const maxSummaryIdentifiers = 20

// Stats はレコード単位の集計です。
type Stats struct {
	Created int
	Updated int
	Skipped int
	Errors  int
}

// RecordError は 1 レコードの処理失敗です。
type RecordError struct {
	Type       RecordType
	Identifier string
	Message    string
}

func (e RecordError) String() string {
	return fmt.Sprintf("%s:%s - %s", e.Type, e.Identifier, e.Message)
}

// SyncResult は 1 回の同期実行の結果です。
type SyncResult struct {
	Success      bool
	StartedAt    time.Time
	CompletedAt  time.Time
	Stats        Stats
	Errors       []string
	RecordErrors []RecordError
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

func newResult(startedAt time.Time) *SyncResult {
	return &SyncResult{StartedAt: startedAt, Errors: []string{}}
}

func (r *SyncResult) count(o outcome) {
	switch o {
	case outcomeCreated:
		r.Stats.Created++
	case outcomeUpdated:
		r.Stats.Updated++
	case outcomeSkipped:
		r.Stats.Skipped++
	}
}

func (r *SyncResult) addError(e RecordError) {
	r.Stats.Errors++
	r.RecordErrors = append(r.RecordErrors, e)
	r.Errors = append(r.Errors, e.String())
}

func (r *SyncResult) finish(completedAt time.Time) {
	r.CompletedAt = completedAt
	r.Success = len(r.RecordErrors) == 0
}

// errorSummary は連携の lastSyncError に記録する要約です。
func (r *SyncResult) errorSummary(t RecordType) string {
	ids := make([]string, 0, min(len(r.RecordErrors), maxSummaryIdentifiers))
	for _, e := range r.RecordErrors {
		if len(ids) == maxSummaryIdentifiers {
			break
		}
		ids = append(ids, e.Identifier)
	}
	summary := fmt.Sprintf("%d error(s) during %s sync: %s", len(r.RecordErrors), t, strings.Join(ids, ", "))
	if rest := len(r.RecordErrors) - len(ids); rest > 0 {
		summary += fmt.Sprintf(" and %d more", rest)
	}
	return summary
}
