package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ffcompress/config"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-hclog"
	"github.com/lithammer/shortuuid/v4"
)

// Runner executes one Job to completion. It may send Stage and Progress
// events on the channel while it works and must not send after returning.
type Runner interface {
	Run(ctx context.Context, job Job, events chan<- Event) (Result, error)
}

type submitReq struct {
	t     *Task
	reply chan submitResp
}

type submitResp struct {
	t   *Task
	err error
}

type cancelReq struct {
	id    string
	reply chan error
}

type completion struct {
	res Result
	err error
}

// Manager is a strictly sequential FIFO job queue. A single control
// goroutine owns the pending list and the active slot; everything else
// talks to it over channels. At most one job runs at a time and the next
// one is promoted as soon as the previous one reports back, whatever its
// outcome.
type Manager struct {
	cfg    *config.Config
	runner Runner
	log    hclog.Logger

	tasks sync.Map // id -> *Task snapshot

	submitCh chan submitReq
	cancelCh chan cancelReq
	idleCh   chan chan struct{}
	events   chan Event
	done     chan completion
	stopped  chan struct{}

	startOnce sync.Once

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	now func() time.Time
}

func NewManager(cfg *config.Config, runner Runner, log hclog.Logger) (*Manager, error) {
	if runner == nil {
		return nil, errors.New("task manager needs a runner")
	}
	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("queue size must be positive, got %d", cfg.QueueSize)
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Manager{
		cfg:      cfg,
		runner:   runner,
		log:      log.Named("queue"),
		submitCh: make(chan submitReq),
		cancelCh: make(chan cancelReq),
		idleCh:   make(chan chan struct{}),
		events:   make(chan Event),
		done:     make(chan completion),
		stopped:  make(chan struct{}),
		subs:     make(map[int]chan Event),
		now:      time.Now,
	}, nil
}

// Start launches the control loop. Canceling ctx stops accepting work,
// lets the active job finish and cancels whatever is still pending.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.log.Info("task manager started", "queue_size", m.cfg.QueueSize)
		go m.pruneLoop(ctx)
		go m.loop(ctx)
	})
}

// Done is closed once the control loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.stopped
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.stopped)

	var (
		pending  []*Task
		active   *Task
		waiters  []chan struct{}
		seq      uint64
		stopping bool
	)
	ctxDone := ctx.Done()

	for {
		if active == nil && len(pending) > 0 && !stopping {
			active, pending = pending[0], pending[1:]
			m.startTask(ctx, active)
		}
		if active == nil {
			for _, w := range waiters {
				close(w)
			}
			waiters = nil
			if stopping {
				for _, t := range pending {
					m.markCanceled(t, "Canceled by shutdown")
				}
				m.log.Info("task manager stopped")
				return
			}
		}

		select {
		case <-ctxDone:
			stopping = true
			ctxDone = nil
			m.log.Info("task manager shutting down", "pending", len(pending), "active", active != nil)

		case req := <-m.submitCh:
			switch {
			case stopping:
				req.reply <- submitResp{err: ErrStopped}
			case len(pending) >= m.cfg.QueueSize:
				req.reply <- submitResp{err: ErrQueueFull}
			default:
				seq++
				req.t.Seq = seq
				pending = append(pending, req.t)
				m.store(req.t)
				m.publish(Event{Type: EventQueued, TaskID: req.t.ID}, req.t)
				req.reply <- submitResp{t: req.t.clone()}
			}

		case req := <-m.cancelCh:
			req.reply <- m.cancel(req.id, active, &pending)

		case w := <-m.idleCh:
			if active == nil && len(pending) == 0 {
				close(w)
			} else {
				waiters = append(waiters, w)
			}

		case ev := <-m.events:
			if active == nil || ev.TaskID != active.ID {
				m.log.Warn("dropping event for inactive task", "task_id", ev.TaskID, "type", ev.Type)
				continue
			}
			switch ev.Type {
			case EventStage:
				active.Stage = ev.Stage
			case EventProgress:
				if ev.Progress > active.Progress {
					active.Progress = ev.Progress
				}
			}
			m.store(active)
			m.publish(ev, active)

		case c := <-m.done:
			m.finish(active, c.res, c.err)
			active = nil
		}
	}
}

// startTask hands t to a worker goroutine. The worker's context is
// detached from ctx: a running encode always runs to completion.
func (m *Manager) startTask(ctx context.Context, t *Task) {
	t.Status = StatusProcessing
	t.Stage = StageIdle
	t.StartedAt = m.now()
	m.store(t)
	m.publish(Event{Type: EventStarted, TaskID: t.ID, Stage: StageIdle}, t)
	m.log.Info("processing task", "task_id", t.ID, "path", t.InputPath, "profile", t.Profile, "quality", t.Quality)

	job := t.clone().Job
	runCtx := context.WithoutCancel(ctx)
	go func() {
		res, err := m.runner.Run(runCtx, job, m.events)
		m.done <- completion{res: res, err: err}
	}()
}

func (m *Manager) finish(t *Task, res Result, err error) {
	t.CompletedAt = m.now()
	t.OutputPath = res.OutputPath
	t.Encoder = res.Encoder
	t.Normalized = res.Normalized
	t.InputSize = res.InputSize
	t.OutputSize = res.OutputSize
	t.FFMpegOutput = res.Log

	if err != nil {
		t.Status = StatusFailed
		t.Stage = StageFailed
		t.Error = err.Error()
		t.FailureKind = KindOf(err)
		var se *StageError
		if t.FFMpegOutput == "" && errors.As(err, &se) {
			t.FFMpegOutput = se.Output
		}
		m.log.Error("task failed", "task_id", t.ID, "kind", t.FailureKind, "error", err)
		m.store(t)
		m.publish(Event{Type: EventFailed, TaskID: t.ID, Stage: StageFailed}, t)
		return
	}

	t.Status = StatusCompleted
	t.Stage = StageDone
	t.Progress = 1
	m.log.Info("task completed",
		"task_id", t.ID,
		"output", t.OutputPath,
		"encoder", t.Encoder,
		"input_size", datasize.ByteSize(t.InputSize).HumanReadable(),
		"output_size", datasize.ByteSize(t.OutputSize).HumanReadable(),
		"elapsed", t.CompletedAt.Sub(t.StartedAt).Round(time.Millisecond))
	m.store(t)
	m.publish(Event{Type: EventCompleted, TaskID: t.ID, Stage: StageDone, Progress: 1}, t)
}

func (m *Manager) cancel(id string, active *Task, pending *[]*Task) error {
	if active != nil && active.ID == id {
		return fmt.Errorf("cannot cancel task in state: %s", active.Status)
	}
	for i, t := range *pending {
		if t.ID == id {
			*pending = append((*pending)[:i:i], (*pending)[i+1:]...)
			m.markCanceled(t, "Canceled by user while in queue")
			return nil
		}
	}
	t, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("cannot cancel task in state: %s", t.Status)
}

func (m *Manager) markCanceled(t *Task, reason string) {
	t.Status = StatusCanceled
	t.Error = reason
	t.CompletedAt = m.now()
	m.store(t)
	m.publish(Event{Type: EventCanceled, TaskID: t.ID}, t)
	m.log.Info("task canceled", "task_id", t.ID, "reason", reason)
}

func (m *Manager) store(t *Task) {
	m.tasks.Store(t.ID, t.clone())
}

// publish fans ev out to subscribers without blocking the control loop.
// Slow subscribers miss events.
func (m *Manager) publish(ev Event, t *Task) {
	ev.Task = t.clone()
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.log.Trace("subscriber lagging, event dropped", "subscriber", id, "task_id", ev.TaskID)
		}
	}
}

// pruneLoop forgets finished tasks older than HISTORY_LIFETIME.
func (m *Manager) pruneLoop(ctx context.Context) {
	lifetime := m.cfg.HistoryLifetime
	if lifetime <= 0 {
		return
	}
	interval := lifetime / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.prune(); n > 0 {
				m.log.Debug("pruned task history", "removed", n)
			}
		}
	}
}

func (m *Manager) prune() int {
	cutoff := m.now().Add(-m.cfg.HistoryLifetime)
	n := 0
	m.tasks.Range(func(key, value interface{}) bool {
		t := value.(*Task)
		if t.Status.Terminal() && t.CompletedAt.Before(cutoff) {
			m.tasks.Delete(key)
			n++
		}
		return true
	})
	return n
}

// Submit validates job and appends it to the tail of the queue. Start
// must have been called.
func (m *Manager) Submit(job Job) (*Task, error) {
	if job.InputPath == "" {
		return nil, fmt.Errorf("%w: input path is required", ErrInvalidJob)
	}
	if !job.Profile.Valid() {
		return nil, fmt.Errorf("%w: unknown profile %q", ErrInvalidJob, job.Profile)
	}
	job.Quality = job.Profile.ResolveQuality(job.Quality)
	if r := job.Profile.QualityRange(); !r.Contains(job.Quality) {
		return nil, fmt.Errorf("%w: quality %d outside %s range %d-%d", ErrInvalidJob, job.Quality, job.Profile, r.Min, r.Max)
	}
	if job.ID == "" {
		job.ID = fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix())
	}

	t := &Task{
		Job:       job,
		Status:    StatusQueued,
		Stage:     StageIdle,
		CreatedAt: m.now(),
	}
	req := submitReq{t: t, reply: make(chan submitResp, 1)}
	select {
	case m.submitCh <- req:
	case <-m.stopped:
		return nil, ErrStopped
	}
	resp := <-req.reply
	if resp.err != nil {
		return nil, resp.err
	}
	m.log.Info("task submitted to queue", "task_id", job.ID, "path", job.InputPath)
	return resp.t, nil
}

func (m *Manager) Get(taskID string) (*Task, bool) {
	if val, ok := m.tasks.Load(taskID); ok {
		return val.(*Task).clone(), true
	}
	return nil, false
}

// List returns every known task in submission order.
func (m *Manager) List() []*Task {
	taskList := []*Task{}
	m.tasks.Range(func(key, value interface{}) bool {
		taskList = append(taskList, value.(*Task).clone())
		return true
	})
	sort.Slice(taskList, func(i, j int) bool { return taskList[i].Seq < taskList[j].Seq })
	return taskList
}

// Cancel removes a queued task. The active task cannot be canceled.
func (m *Manager) Cancel(taskID string) error {
	req := cancelReq{id: taskID, reply: make(chan error, 1)}
	select {
	case m.cancelCh <- req:
	case <-m.stopped:
		return ErrStopped
	}
	return <-req.reply
}

// WaitIdle blocks until nothing is pending or running, ctx is done, or
// the manager has stopped.
func (m *Manager) WaitIdle(ctx context.Context) error {
	w := make(chan struct{})
	select {
	case m.idleCh <- w:
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-w:
		return nil
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers an event listener with the given buffer size. The
// returned function unregisters it and closes the channel.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			close(ch)
			m.subMu.Unlock()
		})
	}
}
