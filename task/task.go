package task

import (
	"time"

	"ffcompress/profile"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Stage is the pipeline step a processing task is in.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageProbed     Stage = "probed"
	StageFixingVFR  Stage = "fixing_vfr"
	StageEncoding   Stage = "encoding"
	StageCleaningUp Stage = "cleaning_up"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Job is one compression request as accepted into the queue.
type Job struct {
	ID        string          `json:"id"`
	InputPath string          `json:"inputPath"`
	Profile   profile.Profile `json:"profile"`
	Quality   int             `json:"quality"`
	ForceFix  bool            `json:"forceFix"`
	ExtraArgs []string        `json:"extraArgs,omitempty"`
}

// Task is the externally visible record of a Job. Values handed out by
// the Manager are snapshots and may be modified freely by the caller.
type Task struct {
	Job
	Seq          uint64    `json:"seq"`
	Status       Status    `json:"status"`
	Stage        Stage     `json:"stage"`
	Progress     float64   `json:"progress"`
	OutputPath   string    `json:"outputPath,omitempty"`
	DownloadURL  string    `json:"downloadUrl,omitempty"`
	Encoder      string    `json:"encoder,omitempty"`
	Normalized   bool      `json:"normalized"`
	InputSize    int64     `json:"inputSize,omitempty"`
	OutputSize   int64     `json:"outputSize,omitempty"`
	Error        string    `json:"error,omitempty"`
	FailureKind  string    `json:"failureKind,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	CompletedAt  time.Time `json:"completedAt,omitempty"`
	FFMpegOutput string    `json:"ffmpegOutput,omitempty"`
}

func (t *Task) clone() *Task {
	c := *t
	if t.ExtraArgs != nil {
		c.ExtraArgs = append([]string(nil), t.ExtraArgs...)
	}
	return &c
}

// Result is what a Runner reports for a finished Job.
type Result struct {
	OutputPath string
	Encoder    string
	Normalized bool
	InputSize  int64
	OutputSize int64
	Log        string
}

type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventStage     EventType = "stage"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCanceled  EventType = "canceled"
)

// Event is emitted by a Runner while it works (Stage, Progress) and
// re-published by the Manager to subscribers with a Task snapshot attached.
type Event struct {
	Type     EventType `json:"type"`
	TaskID   string    `json:"taskId"`
	Stage    Stage     `json:"stage,omitempty"`
	Progress float64   `json:"progress,omitempty"`
	Task     *Task     `json:"task,omitempty"`
}
