package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/collegepredictor/internal/college"
	"github.com/onnwee/collegepredictor/internal/middleware"
	"github.com/onnwee/collegepredictor/internal/predict"
	"github.com/onnwee/collegepredictor/internal/validate"
)

// maxPredictBodyBytes caps the request body of POST /api/predict-colleges.
const maxPredictBodyBytes = 1 << 20

// RankWindowHeader carries the applied rank window ("min-max") on successful predictions.
const RankWindowHeader = "X-Rank-Window"

// Predictor is the engine capability the handlers need.
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (*predict.Prediction, error)
}

// PredictHandlers serves the prediction endpoints.
type PredictHandlers struct {
	engine Predictor
}

// NewPredictHandlers creates handlers backed by engine.
func NewPredictHandlers(engine Predictor) *PredictHandlers {
	return &PredictHandlers{engine: engine}
}

// PredictRequest is the JSON body of POST /api/predict-colleges. Rank is
// kept raw because clients send it either as a number or a numeric string.
type PredictRequest struct {
	Rank           json.RawMessage `json:"rank"`
	CategoryGender string          `json:"categoryGender"`
	BranchName     string          `json:"branchName"`
}

// CategoriesResponse is the body of GET /api/categories.
type CategoriesResponse struct {
	Categories []college.Category `json:"categories"`
}

// PredictColleges handles POST /api/predict-colleges.
//
// The 200 body maps every phase name to its matching colleges, sorted by
// closing rank and capped at 50 per phase; a phase without matches is an
// empty array. The applied window is returned in X-Rank-Window.
func (h *PredictHandlers) PredictColleges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	ctx := r.Context()

	var body PredictRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxPredictBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
		case errors.Is(err, io.EOF):
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Request body is required")
		default:
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		}
		return
	}

	req, err := body.toRequest()
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	pred, err := h.engine.Predict(ctx, req)
	if err != nil {
		h.writePredictError(w, ctx, err)
		return
	}

	w.Header().Set(RankWindowHeader, pred.Window.String())
	writeJSON(w, ctx, http.StatusOK, pred.Results)
}

func (h *PredictHandlers) writePredictError(w http.ResponseWriter, ctx context.Context, err error) {
	code := ErrorCodeFor(err)
	switch code {
	case ErrCodeValidation:
		WriteError(w, ctx, http.StatusBadRequest, code, err.Error())
	case ErrCodeDataSource:
		var dsErr *predict.DataSourceError
		message := "College data is temporarily unavailable"
		if errors.As(err, &dsErr) {
			message = fmt.Sprintf("College data is temporarily unavailable: failed to query %s", dsErr.Partition)
		}
		slog.ErrorContext(ctx, "prediction failed", "error", err, "request_id", middleware.GetRequestID(ctx))
		WriteError(w, ctx, http.StatusServiceUnavailable, code, message)
	default:
		slog.ErrorContext(ctx, "prediction failed", "error", err, "request_id", middleware.GetRequestID(ctx))
		WriteError(w, ctx, http.StatusInternalServerError, code, "Internal server error")
	}
}

// toRequest checks presence and shape of the fields. Category membership is
// left to the engine, which rejects unknown categories before any query.
func (b PredictRequest) toRequest() (predict.Request, error) {
	raw := bytes.TrimSpace(b.Rank)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return predict.Request{}, errors.New("rank is required")
	}
	if b.CategoryGender == "" {
		return predict.Request{}, errors.New("categoryGender is required")
	}
	if b.BranchName == "" {
		return predict.Request{}, errors.New("branchName is required")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return predict.Request{}, errors.New("rank must be a number")
		}
	}
	rank, err := validate.PositiveInteger(text)
	if err != nil {
		return predict.Request{}, fmt.Errorf("rank is invalid: %w", err)
	}

	branch, err := validate.BranchName(b.BranchName)
	if err != nil {
		return predict.Request{}, fmt.Errorf("branchName is invalid: %w", err)
	}

	return predict.Request{
		Rank:     rank,
		Category: b.CategoryGender,
		Branch:   branch,
	}, nil
}

// Categories handles GET /api/categories.
func (h *PredictHandlers) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, CategoriesResponse{Categories: college.Categories()})
}

// Root handles GET / and answers 404 for every path no other route claims.
func Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]string{
		"service": "college-predictor-api",
		"status":  "running",
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
}
