// Package job 执行批量预计算任务。
//
// 同一类型的任务同一时刻只允许一个在跑（单写者）；第二个并发调用立即返回
// ErrBatchInProgress，而不是排队等待。每次运行分配一个 run id，
// 开始/结束写日志，并记录 Prometheus 指标。
package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/metrics"
)

// Kind 批任务类型
type Kind string

const (
	KindSuggestions         Kind = "suggestions"
	KindContentSimilarities Kind = "content_similarities"
	KindUserSuggestions     Kind = "user_suggestions"
	KindBehaviorSimilarity  Kind = "behavior_similarities"
	KindFeatureSimilarity   Kind = "feature_similarities"
)

// ErrBatchInProgress 表示同类型批任务正在运行
var ErrBatchInProgress = core.NewDomainError(core.ModuleJob, core.ErrorCodeConflict, "job: batch of the same kind already running")

// Status 是一次批任务的结果
type Status struct {
	RunID     string        `json:"run_id"`
	Kind      Kind          `json:"kind"`
	Rows      int           `json:"rows"` // 失败时为 0
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// OK 是否成功
func (s Status) OK() bool {
	return s.Err == nil
}

// Func 是批任务主体，返回写入行数
type Func func(ctx context.Context) (int, error)

// Runner 按类型串行化批任务
type Runner struct {
	mu      sync.Mutex
	running map[Kind]*sync.Mutex
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRunner 创建 Runner
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{
		running: make(map[Kind]*sync.Mutex),
		logger:  logger.With().Str("component", "job").Logger(),
		now:     time.Now,
	}
}

func (r *Runner) lock(kind Kind) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.running[kind]
	if !ok {
		l = &sync.Mutex{}
		r.running[kind] = l
	}
	return l
}

// Run 执行 fn。同类型任务已在运行时返回 ErrBatchInProgress；
// fn 失败时 Status.Rows 为 0，返回的 error 与 Status.Err 相同。
func (r *Runner) Run(ctx context.Context, kind Kind, fn Func) (Status, error) {
	st := Status{
		RunID:     uuid.NewString(),
		Kind:      kind,
		StartedAt: r.now(),
	}
	log := r.logger.With().Str("run_id", st.RunID).Str("kind", string(kind)).Logger()

	l := r.lock(kind)
	if !l.TryLock() {
		st.Err = ErrBatchInProgress
		metrics.RecordBatch(string(kind), metrics.StatusConflict, 0, 0)
		log.Warn().Msg("batch rejected: already running")
		return st, st.Err
	}
	defer l.Unlock()

	log.Info().Msg("batch started")
	rows, err := fn(ctx)
	st.Duration = r.now().Sub(st.StartedAt)
	if err != nil {
		st.Err = err
		metrics.RecordBatch(string(kind), metrics.StatusFailed, st.Duration, 0)
		log.Error().Err(err).Dur("duration", st.Duration).Msg("batch failed")
		return st, err
	}
	st.Rows = rows
	metrics.RecordBatch(string(kind), metrics.StatusSuccess, st.Duration, rows)
	log.Info().Int("rows", rows).Dur("duration", st.Duration).Msg("batch finished")
	return st, nil
}

// Running 某类型任务是否正在运行
func (r *Runner) Running(kind Kind) bool {
	l := r.lock(kind)
	if l.TryLock() {
		l.Unlock()
		return false
	}
	return true
}
