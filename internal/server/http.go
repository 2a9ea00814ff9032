package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/core"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/ingest"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// TaskService is the submission side of the core service.
type TaskService interface {
	Submit(ctx context.Context, uploads []ingest.Upload) (string, error)
	Status(id string) (tasks.Task, error)
	Reset(ctx context.Context) error
}

// ReportStore persists generated summaries for download.
type ReportStore interface {
	Save(r export.Report) (string, error)
	Path(id string) (string, error)
}

type APIConfig struct {
	Tasks      TaskService
	Summarizer llm.Summarizer // optional; /analyze answers 503 without it
	Reports    ReportStore
	MaxBytes   int64
}

// API serves the HTTP surface.
type API struct {
	tasks      TaskService
	summarizer llm.Summarizer
	reports    ReportStore
	maxBytes   int64
	logger     *slog.Logger
	now        func() time.Time
}

func NewAPI(cfg APIConfig, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	return &API{
		tasks:      cfg.Tasks,
		summarizer: cfg.Summarizer,
		reports:    cfg.Reports,
		maxBytes:   cfg.MaxBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// Handler returns the routed handler wrapped in request-id, logging and
// recovery middleware.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", a.handleUpload)
	mux.HandleFunc("GET /check_status/{id}", a.handleStatus)
	mux.HandleFunc("POST /analyze", a.handleAnalyze)
	mux.HandleFunc("GET /download-summary/{id}", a.handleDownload)
	mux.HandleFunc("POST /reset", a.handleReset)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /test", a.handleHealth)
	return withRequestID(withRecovery(withLogging(mux, a.logger), a.logger))
}

type uploadResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	Status   constants.TaskStatus `json:"status"`
	Progress int                  `json:"progress"`
	Result   *string              `json:"result,omitempty"`
}

type analyzeRequest struct {
	ExtractedText string `json:"extracted_text"`
	PromptType    string `json:"prompt_type"`
	CustomPrompt  string `json:"custom_prompt"`
	TaskID        string `json:"task_id"`
}

type analyzeResponse struct {
	Summary  string `json:"summary"`
	ReportID string `json:"report_id"`
}

type statusMessage struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerFrom(r.Context(), a.logger)
	// multipart framing needs headroom above the content limit
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", a.maxBytes))
			return
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			writeError(w, http.StatusBadRequest, "no files uploaded")
			return
		}
		logger.Warn("parse upload failed", "error", err)
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	uploads := make([]ingest.Upload, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			logger.Error("open uploaded part failed", "file", fh.Filename, "error", err)
			writeError(w, http.StatusBadRequest, "unreadable upload part")
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, ingest.Upload{Name: fh.Filename, Size: fh.Size, Content: f})
	}

	id, err := a.tasks.Submit(r.Context(), uploads)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, uploadResponse{TaskID: id})
	case errors.Is(err, core.ErrNoFiles):
		writeError(w, http.StatusBadRequest, "no files uploaded")
	case errors.Is(err, core.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", a.maxBytes))
	case errors.Is(err, async.ErrQueueFull), errors.Is(err, async.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "server busy, retry later")
	default:
		logger.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not accept upload")
	}
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	task, err := a.tasks.Status(r.PathValue("id"))
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		common.LoggerFrom(r.Context(), a.logger).Error("status lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	resp := statusResponse{Status: task.Status, Progress: task.Progress}
	if task.Status.IsTerminal() {
		resp.Result = &task.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeAnalyze reads an analyze request as form fields or as JSON,
// depending on Content-Type.
func decodeAnalyze(w http.ResponseWriter, r *http.Request) (analyzeRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(16 << 20)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return analyzeRequest{}, errors.New("invalid form body")
		}
		return analyzeRequest{
			ExtractedText: r.FormValue("extracted_text"),
			PromptType:    r.FormValue("prompt_type"),
			CustomPrompt:  r.FormValue("custom_prompt"),
			TaskID:        r.FormValue("task_id"),
		}, nil
	default:
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return analyzeRequest{}, errors.New("invalid JSON body")
		}
		return req, nil
	}
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerFrom(r.Context(), a.logger)
	req, err := decodeAnalyze(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(req.ExtractedText)
	if text == "" && req.TaskID != "" {
		if task, err := a.tasks.Status(req.TaskID); err == nil && task.Status == constants.TaskStatusCompleted {
			text = strings.TrimSpace(task.Result)
		}
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "no text to analyze")
		return
	}
	pt, err := llm.ParsePromptType(req.PromptType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if a.summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, "summarization is not configured")
		return
	}

	start := time.Now()
	sum, err := a.summarizer.Summarize(r.Context(), llm.SummaryRequest{Text: text, PromptType: pt, CustomPrompt: req.CustomPrompt})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, common.PublicMessage(err))
		return
	default:
		logger.Error("summarize failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		writeError(w, http.StatusBadGateway, "summarization failed")
		return
	}

	reportID, err := a.reports.Save(export.Report{Summary: sum.Text, FullText: text})
	if err != nil {
		logger.Error("save report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not store report")
		return
	}
	logger.Info("analysis complete", "report_id", reportID, "prompt_type", pt, "model", sum.Model,
		"structured", sum.Structured != nil, "duration_ms", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, analyzeResponse{Summary: sum.Text, ReportID: reportID})
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path, err := a.reports.Path(id)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		common.LoggerFrom(r.Context(), a.logger).Error("report lookup failed", "report_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "report lookup failed")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report lookup failed")
		return
	}
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="summary_%s.docx"`, id))
	http.ServeContent(w, r, "", st.ModTime(), f)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	err := a.tasks.Reset(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusMessage{Status: "reset ok"})
	case errors.Is(err, core.ErrBusy):
		writeError(w, http.StatusConflict, "tasks still running")
	default:
		common.LoggerFrom(r.Context(), a.logger).Error("reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reset failed")
	}
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusMessage{Status: "OK", Timestamp: a.now().UTC().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
