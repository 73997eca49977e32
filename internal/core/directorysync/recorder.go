package directorysync

import (
	"time"

	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/integration"
)

// Recorder は同期実行の計測値を受け取ります。
type Recorder interface {
	RunCompleted(kind Kind, provider integration.Provider, result *SyncResult)
	RunFailed(kind Kind, provider integration.Provider, elapsed time.Duration)
	UnmappedStatus(provider integration.Provider, status directory.UserStatus)
}

type noopRecorder struct{}

func (noopRecorder) RunCompleted(Kind, integration.Provider, *SyncResult)      {}
func (noopRecorder) RunFailed(Kind, integration.Provider, time.Duration)       {}
func (noopRecorder) UnmappedStatus(integration.Provider, directory.UserStatus) {}
