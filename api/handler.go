package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"ffcompress/config"
	"ffcompress/ffmpeg"
	"ffcompress/profile"
	"ffcompress/task"

	"github.com/gin-gonic/gin"
)

// Inspector answers read-only questions about inputs and the host.
type Inspector interface {
	Probe(ctx context.Context, path string) ffmpeg.VideoMetadata
	Capabilities(ctx context.Context) ffmpeg.Capabilities
}

type Handler struct {
	taskManager *task.Manager
	inspector   Inspector
	cfg         *config.Config
}

func NewHandler(tm *task.Manager, inspector Inspector, cfg *config.Config) *Handler {
	return &Handler{
		taskManager: tm,
		inspector:   inspector,
		cfg:         cfg,
	}
}

type TaskRequest struct {
	InputPath string `json:"inputPath" form:"inputPath" binding:"required"`
	Profile   string `json:"profile" form:"profile"`
	Quality   int    `json:"quality" form:"quality"`
	// ForceFix defaults to the FORCE_FIX setting when omitted.
	ForceFix  *bool  `json:"forceFix" form:"forceFix"`
	ExtraArgs string `json:"extraArgs" form:"extraArgs"`
}

// handleCreateTask validates the request and queues a compression job.
func (h *Handler) handleCreateTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := h.cfg.Profile()
	if req.Profile != "" {
		parsed, err := profile.Parse(req.Profile)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p = parsed
	}
	quality := req.Quality
	if quality == 0 && p == h.cfg.Profile() {
		quality = h.cfg.DefaultQuality
	}
	forceFix := h.cfg.ForceFix
	if req.ForceFix != nil {
		forceFix = *req.ForceFix
	}

	extra, err := ffmpeg.ParseExtraArgs(req.ExtraArgs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid extra arguments: %v", err)})
		return
	}

	inputPath, err := filepath.Abs(req.InputPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ffmpeg.ValidateInput(inputPath, h.cfg.MaxInputSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.taskManager.Submit(task.Job{
		InputPath: inputPath,
		Profile:   p,
		Quality:   quality,
		ForceFix:  forceFix,
		ExtraArgs: extra,
	})
	switch {
	case errors.Is(err, task.ErrInvalidJob):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, task.ErrQueueFull), errors.Is(err, task.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"taskId": t.ID})
}

// handleListTasks lists all tasks in queue order.
func (h *Handler) handleListTasks(c *gin.Context) {
	tasks := h.taskManager.List()
	for _, t := range tasks {
		h.buildDownloadURL(c, t)
	}
	c.JSON(http.StatusOK, tasks)
}

// buildDownloadURL constructs the full URL for a completed task's file.
func (h *Handler) buildDownloadURL(c *gin.Context, t *task.Task) {
	if t.Status != task.StatusCompleted || t.OutputPath == "" {
		return
	}

	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	t.DownloadURL = fmt.Sprintf("%s/api/v1/tasks/%s/output", baseURL, t.ID)
}

// handleGetTaskStatus retrieves the status of a single task.
func (h *Handler) handleGetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	t, found := h.taskManager.Get(taskID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	h.buildDownloadURL(c, t)
	c.JSON(http.StatusOK, t)
}

// handleCancelTask removes a queued task. Running tasks cannot be canceled.
func (h *Handler) handleCancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	err := h.taskManager.Cancel(taskID)
	switch {
	case errors.Is(err, task.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task canceled"})
}

// handleGetOutput serves the compressed file of a completed task.
func (h *Handler) handleGetOutput(c *gin.Context) {
	t, found := h.taskManager.Get(c.Param("taskId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if t.Status != task.StatusCompleted || t.OutputPath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("no output for task in state: %s", t.Status)})
		return
	}
	c.FileAttachment(t.OutputPath, filepath.Base(t.OutputPath))
}

// handleEvents streams queue events as server-sent events. The first
// event is a snapshot of every known task.
func (h *Handler) handleEvents(c *gin.Context) {
	events, unsubscribe := h.taskManager.Subscribe(64)
	defer unsubscribe()

	c.SSEvent("snapshot", h.taskManager.List())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

type probeResponse struct {
	ffmpeg.VideoMetadata
	EstimatedMB float64 `json:"estimatedMB"`
}

// handleProbe reports metadata for a local file without queueing it.
func (h *Handler) handleProbe(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}
	if err := ffmpeg.ValidateInput(path, 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	md := h.inspector.Probe(c.Request.Context(), path)
	c.JSON(http.StatusOK, probeResponse{VideoMetadata: md, EstimatedMB: md.EstimatedMB()})
}

func (h *Handler) handleCapabilities(c *gin.Context) {
	caps := h.inspector.Capabilities(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"hardware": caps.Hardware,
		"encoders": caps.Encoders,
		"summary":  caps.Summary(),
		"mode":     caps.Mode(),
		"hwaccel":  h.cfg.HWAccel,
	})
}

func (h *Handler) handleProfiles(c *gin.Context) {
	specs := make([]profile.Spec, 0, len(profile.All()))
	for _, p := range profile.All() {
		s, _ := profile.Lookup(p)
		specs = append(specs, s)
	}
	c.JSON(http.StatusOK, gin.H{"default": h.cfg.Profile(), "profiles": specs})
}
