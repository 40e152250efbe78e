package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/nomis52/docscore/extract"
	"github.com/nomis52/docscore/scoring"
	"github.com/nomis52/docscore/server/runner"
)

const (
	// DefaultMaxUploadBytes bounds the size of a POST /score request body.
	DefaultMaxUploadBytes = 16 << 20
	multipartMemory       = 1 << 20
)

// Form field names. The second name of each pair is accepted for
// compatibility with resume screening clients.
var (
	candidateFields   = []string{"candidate", "resume"}
	requirementFields = []string{"requirement", "job_description"}
)

// ScoreResponse is the JSON response for POST /score.
type ScoreResponse struct {
	RunID string `json:"run_id"`
	scoring.Result
	Termination string `json:"termination"`
}

// ScoreHandler handles multipart evaluation requests.
type ScoreHandler struct {
	logger    *slog.Logger
	evaluator Evaluator
	maxBytes  int64
}

// NewScoreHandler creates a new ScoreHandler. maxBytes bounds the request
// body; zero selects DefaultMaxUploadBytes.
func NewScoreHandler(logger *slog.Logger, evaluator Evaluator, maxBytes int64) *ScoreHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ScoreHandler{
		logger:    logger,
		evaluator: evaluator,
		maxBytes:  maxBytes,
	}
}

// ServeHTTP implements http.Handler.
func (h *ScoreHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", h.maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	candidate, err := readDocument(r.MultipartForm, candidateFields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	requirement, err := readDocument(r.MultipartForm, requirementFields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.evaluator.Evaluate(r.Context(), runner.TriggerAPI, candidate, requirement)
	if err != nil {
		status := statusFor(err)
		h.logger.Warn("evaluation request failed", "run_id", summary.ID, "status", status, "error", err)
		writeJSON(w, status, ErrorResponse{
			Error: err.Error(),
			Kind:  string(scoring.Classify(scoring.Result{}, err)),
			RunID: summary.ID,
		})
		return
	}

	writeJSON(w, http.StatusOK, ScoreResponse{
		RunID:       summary.ID,
		Result:      *summary.Result,
		Termination: summary.Termination,
	})
}

// readDocument returns the first of fields present in the form, as an
// uploaded file or a plain text value.
func readDocument(form *multipart.Form, fields []string) (extract.Handle, error) {
	for _, field := range fields {
		if files := form.File[field]; len(files) > 0 {
			data, err := readFile(files[0])
			if err != nil {
				return extract.Handle{}, fmt.Errorf("reading %s: %w", field, err)
			}
			return extract.Bytes(files[0].Filename, data), nil
		}
		if values := form.Value[field]; len(values) > 0 {
			return extract.Bytes(field, []byte(values[0])), nil
		}
	}
	return extract.Handle{}, fmt.Errorf("missing form field %q", fields[0])
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// statusFor maps an evaluation error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extract.ErrEmptyDocument),
		errors.Is(err, extract.ErrNotText),
		errors.Is(err, extract.ErrInvalidPDF),
		errors.Is(err, extract.ErrTooLarge),
		errors.Is(err, extract.ErrUnsupportedSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, runner.ErrNoWorkflow):
		return http.StatusServiceUnavailable
	}
	switch scoring.Classify(scoring.Result{}, err) {
	case scoring.TerminationMalformedResponse, scoring.TerminationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
