package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar counts the items of a long job, for example the requests of
// a workload. Items move from in progress to finished. Progress bars are
// updated by the simulation and read by the HTTP handlers.
type ProgressBar struct {
	id        string
	name      string
	startTime time.Time
	total     uint64

	lock       sync.Mutex
	finished   uint64
	inProgress uint64
}

type progressRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func newProgressBar(id, name string, total uint64) *ProgressBar {
	return &ProgressBar{
		id:        id,
		name:      name,
		startTime: time.Now(),
		total:     total,
	}
}

// IncrementInProgress marks amount more items as started.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.lock.Lock()
	b.inProgress += amount
	b.lock.Unlock()
}

// MoveInProgressToFinished marks amount started items as finished.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	amount = min(amount, b.inProgress)
	b.inProgress -= amount
	b.finished += amount
}

func (b *ProgressBar) snapshot() progressRsp {
	b.lock.Lock()
	defer b.lock.Unlock()

	return progressRsp{
		ID:         b.id,
		Name:       b.name,
		StartTime:  b.startTime,
		Total:      b.total,
		Finished:   b.finished,
		InProgress: b.inProgress,
	}
}
