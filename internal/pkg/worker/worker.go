package worker

import (
	"context"
	"sync"
	"time"

	"marketplace/pkg/logger"

	"go.uber.org/zap"
)

// Task 后台任务
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// FuncTask 以函数形式定义的任务
type FuncTask struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

func (t FuncTask) Name() string                  { return t.TaskName }
func (t FuncTask) Run(ctx context.Context) error { return t.Fn(ctx) }

// Recorder 任务结果上报，由 metrics 实现
type Recorder interface {
	RecordWorkerTask(task, result string)
}

type job struct {
	task  Task
	retry int // 重试次数
}

type WorkerPool struct {
	taskQueue    chan job
	retryQueue   chan job // 重试队列
	workerNum    int
	maxRetry     int // 最大重试次数
	retryBackoff time.Duration
	taskTimeout  time.Duration
	recorder     Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Option 可选配置
type Option func(*WorkerPool)

// WithRetryBackoff 第 n 次重试前等待 n*d
func WithRetryBackoff(d time.Duration) Option {
	return func(p *WorkerPool) { p.retryBackoff = d }
}

// WithTaskTimeout 单个任务的执行超时
func WithTaskTimeout(d time.Duration) Option {
	return func(p *WorkerPool) { p.taskTimeout = d }
}

// WithRecorder 上报任务执行结果
func WithRecorder(r Recorder) Option {
	return func(p *WorkerPool) { p.recorder = r }
}

func NewWorkerPool(workerNum, bufferSize, maxRetry int, opts ...Option) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize <= 1 {
		bufferSize = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		taskQueue:    make(chan job, bufferSize),
		retryQueue:   make(chan job, bufferSize/2),
		workerNum:    workerNum,
		maxRetry:     maxRetry,
		retryBackoff: time.Second,
		taskTimeout:  5 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	logger.Log.Info("worker pool started", zap.Int("workers", p.workerNum))
}

// Stop 停止所有协程，正在执行的任务会执行完，队列中剩余任务丢弃
func (p *WorkerPool) Stop() {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		logger.Log.Info("worker pool stopped",
			zap.Int("pending", len(p.taskQueue)),
			zap.Int("pending_retry", len(p.retryQueue)),
		)
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.taskQueue:
			p.process(id, j)
		}
	}
}

func (p *WorkerPool) process(id int, j job) {
	ctx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	err := j.task.Run(ctx)
	cancel()
	if err == nil {
		p.record(j.task, "ok")
		return
	}

	log := logger.Log.With(
		zap.Int("worker", id),
		zap.String("task", j.task.Name()),
		zap.Int("attempt", j.retry+1),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if j.retry < p.maxRetry {
		j.retry++
		select {
		case p.retryQueue <- j:
			p.record(j.task, "retry")
			log.Warn("task failed, added to retry queue")
			return
		default:
			log.Error("retry queue full, task dropped")
		}
	} else {
		log.Error("task exceeded max retries, dropped")
	}
	p.record(j.task, "dropped")
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.retryQueue:
			// 延迟重试，避免立即重试
			timer := time.NewTimer(time.Duration(j.retry) * p.retryBackoff)
			select {
			case <-p.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			// 重新加入主队列
			select {
			case p.taskQueue <- j:
			default:
				logger.Log.Error("main queue full, retry dropped", zap.String("task", j.task.Name()))
				p.record(j.task, "dropped")
			}
		}
	}
}

// AddTask 非阻塞入队，队列满或已停止时返回 false
func (p *WorkerPool) AddTask(task Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.taskQueue <- job{task: task}:
		return true
	default:
		logger.Log.Warn("worker pool queue full, dropping task", zap.String("task", task.Name()))
		p.record(task, "dropped")
		return false
	}
}

func (p *WorkerPool) record(task Task, result string) {
	if p.recorder != nil {
		p.recorder.RecordWorkerTask(task.Name(), result)
	}
}
