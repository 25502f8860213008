package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/collegepredictor/internal/college"
	"github.com/onnwee/collegepredictor/internal/predict"
)

const cse = "COMPUTER SCIENCE AND ENGINEERING"

// stubPredictor records the request it receives and returns canned values.
type stubPredictor struct {
	got   *predict.Request
	pred  *predict.Prediction
	err   error
	calls int
}

func (s *stubPredictor) Predict(ctx context.Context, req predict.Request) (*predict.Prediction, error) {
	s.calls++
	s.got = &req
	return s.pred, s.err
}

func seededEngine(t *testing.T) *predict.Engine {
	t.Helper()
	store := college.NewInMemoryStore()
	err := store.Add(college.FirstPhase,
		&college.Record{
			InstituteName: "JNTU COLLEGE OF ENGINEERING",
			Place:         "HYDERABAD",
			DistCode:      "HYD",
			CollegeType:   "UNIV",
			BranchName:    cse,
			TuitionFee:    35000,
			ClosingRanks:  map[college.Category]int{"OC_BOYS": 4200, "BC_A_GIRLS": 9100},
		},
		&college.Record{
			InstituteName: "VASAVI COLLEGE OF ENGINEERING",
			Place:         "HYDERABAD",
			DistCode:      "HYD",
			CollegeType:   "PVT",
			BranchName:    cse,
			TuitionFee:    140000,
			ClosingRanks:  map[college.Category]int{"OC_BOYS": 3100},
		},
	)
	if err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return predict.NewEngine(store)
}

func postPredict(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/predict-colleges", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestPredictColleges_Success(t *testing.T) {
	h := NewPredictHandlers(seededEngine(t))

	rr := postPredict(h.PredictColleges, `{"rank": 5000, "categoryGender": "OC_BOYS", "branchName": "`+cse+`"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get(RankWindowHeader); got != "3000-7000" {
		t.Errorf("X-Rank-Window = %q, want 3000-7000", got)
	}

	var resp map[string][]college.Projection
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 3 {
		t.Fatalf("expected 3 phases, got %d: %v", len(resp), resp)
	}

	first := resp["First_Phase"]
	if len(first) != 2 {
		t.Fatalf("expected 2 First_Phase results, got %d", len(first))
	}
	if first[0].InstituteName != "VASAVI COLLEGE OF ENGINEERING" || first[0].ClosingRank != 3100 {
		t.Errorf("expected lowest closing rank first, got %+v", first[0])
	}
	if first[1].Category != "OC_BOYS" || first[1].ClosingRank != 4200 {
		t.Errorf("unexpected second result %+v", first[1])
	}
}

func TestPredictColleges_EmptyPhasesAreArrays(t *testing.T) {
	h := NewPredictHandlers(seededEngine(t))

	rr := postPredict(h.PredictColleges, `{"rank": 5000, "categoryGender": "OC_BOYS", "branchName": "`+cse+`"}`)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, phase := range []string{"Second_Phase", "Final_Phase"} {
		if got := string(raw[phase]); got != "[]" {
			t.Errorf("%s = %s, want []", phase, got)
		}
	}
}

func TestPredictColleges_ProjectionFields(t *testing.T) {
	h := NewPredictHandlers(seededEngine(t))

	rr := postPredict(h.PredictColleges, `{"rank": 9000, "categoryGender": "BC_A_GIRLS", "branchName": "`+cse+`"}`)

	var raw map[string][]map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	rows := raw["First_Phase"]
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := []string{"institute_name", "place", "dist_code", "college_type", "branch_name", "tuition_fee", "category", "closing_rank"}
	if len(rows[0]) != len(want) {
		t.Errorf("expected exactly %d fields, got %v", len(want), rows[0])
	}
	for _, field := range want {
		if _, ok := rows[0][field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
	if rows[0]["closing_rank"] != float64(9100) {
		t.Errorf("closing_rank = %v, want 9100", rows[0]["closing_rank"])
	}
}

func TestPredictColleges_RankAsString(t *testing.T) {
	stub := &stubPredictor{pred: &predict.Prediction{Results: map[college.Partition][]college.Projection{}}}
	h := NewPredictHandlers(stub)

	rr := postPredict(h.PredictColleges, `{"rank": " 12000 ", "categoryGender": "SC_GIRLS", "branchName": "CIVIL ENGINEERING"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := predict.Request{Rank: 12000, Category: "SC_GIRLS", Branch: "CIVIL ENGINEERING"}
	if stub.got == nil || *stub.got != want {
		t.Errorf("engine got %+v, want %+v", stub.got, want)
	}
}

func TestPredictColleges_RankOutOfRangeMessage(t *testing.T) {
	h := NewPredictHandlers(&stubPredictor{})

	rr := postPredict(h.PredictColleges, `{"rank": "3e9", "categoryGender": "OC_BOYS", "branchName": "X"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	msg := decodeError(t, rr.Body.Bytes()).Error.Message
	if !strings.Contains(msg, "too large") || strings.Contains(msg, "whole number") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestPredictColleges_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"empty body", ``, http.StatusBadRequest, ErrCodeBadRequest},
		{"malformed json", `{"rank": 5000,`, http.StatusBadRequest, ErrCodeBadRequest},
		{"wrong type for category", `{"rank": 5000, "categoryGender": 7, "branchName": "X"}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing rank", `{"categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"null rank", `{"rank": null, "categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"missing category", `{"rank": 5000, "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"missing branch", `{"rank": 5000, "categoryGender": "OC_BOYS"}`, http.StatusBadRequest, ErrCodeValidation},
		{"non-numeric rank", `{"rank": "abc", "categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"zero rank", `{"rank": 0, "categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"negative rank", `{"rank": -5, "categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"fractional rank", `{"rank": 5000.5, "categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"rank above range", `{"rank": 3e9, "categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"boolean rank", `{"rank": true, "categoryGender": "OC_BOYS", "branchName": "X"}`, http.StatusBadRequest, ErrCodeValidation},
		{"control character in branch", `{"rank": 5000, "categoryGender": "OC_BOYS", "branchName": "A\u0000B"}`, http.StatusBadRequest, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPredictor{}
			h := NewPredictHandlers(stub)

			rr := postPredict(h.PredictColleges, tt.body)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if resp := decodeError(t, rr.Body.Bytes()); resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}
			if stub.calls != 0 {
				t.Error("engine should not be called for a rejected request")
			}
		})
	}
}

func TestPredictColleges_UnknownCategory(t *testing.T) {
	h := NewPredictHandlers(seededEngine(t))

	rr := postPredict(h.PredictColleges, `{"rank": 5000, "categoryGender": "oc_boys; DROP TABLE first_phase", "branchName": "`+cse+`"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr.Body.Bytes()); resp.Error.Code != ErrCodeValidation {
		t.Errorf("expected validation_error, got %s", resp.Error.Code)
	}
}

func TestPredictColleges_DataSourceError(t *testing.T) {
	stub := &stubPredictor{err: &predict.DataSourceError{Partition: college.FinalPhase, Err: errors.New("connection refused")}}
	h := NewPredictHandlers(stub)

	rr := postPredict(h.PredictColleges, `{"rank": 5000, "categoryGender": "OC_BOYS", "branchName": "X"}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	resp := decodeError(t, rr.Body.Bytes())
	if resp.Error.Code != ErrCodeDataSource {
		t.Errorf("expected data_source_error, got %s", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "Final_Phase") {
		t.Errorf("expected message to name the phase, got %q", resp.Error.Message)
	}
	if strings.Contains(resp.Error.Message, "connection refused") {
		t.Errorf("driver error leaked to client: %q", resp.Error.Message)
	}
}

func TestPredictColleges_InternalError(t *testing.T) {
	h := NewPredictHandlers(&stubPredictor{err: errors.New("unexpected")})

	rr := postPredict(h.PredictColleges, `{"rank": 5000, "categoryGender": "OC_BOYS", "branchName": "X"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr.Body.Bytes()); resp.Error.Code != ErrCodeInternal {
		t.Errorf("expected internal_error, got %s", resp.Error.Code)
	}
}

func TestPredictColleges_MethodNotAllowed(t *testing.T) {
	h := NewPredictHandlers(&stubPredictor{})

	rr := httptest.NewRecorder()
	h.PredictColleges(rr, httptest.NewRequest(http.MethodGet, "/api/predict-colleges", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestPredictColleges_BodyTooLarge(t *testing.T) {
	h := NewPredictHandlers(&stubPredictor{})

	body := `{"rank": 5000, "categoryGender": "OC_BOYS", "branchName": "` + strings.Repeat("A", maxPredictBodyBytes) + `"}`
	rr := postPredict(h.PredictColleges, body)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	h := NewPredictHandlers(&stubPredictor{})

	rr := httptest.NewRecorder()
	h.Categories(rr, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp CategoriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Categories) != 18 {
		t.Errorf("expected 18 categories, got %d", len(resp.Categories))
	}
}

func TestRoot(t *testing.T) {
	rr := httptest.NewRecorder()
	Root(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp["status"] != "running" {
		t.Errorf("unexpected body %v", resp)
	}

	rr = httptest.NewRecorder()
	Root(rr, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if resp := decodeError(t, rr.Body.Bytes()); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected not_found, got %s", resp.Error.Code)
	}
}
