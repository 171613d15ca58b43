package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/employee-store/internal/employee"
)

// Query values accepted by GET /api/employees/abc-sums?source=.
const (
	sourceStore   = "store"
	sourceListing = "listing"
)

// employeeHandler maps the /api/employees routes onto employee.Service.
type employeeHandler struct {
	svc          *employee.Service
	defaultQuery employee.GroupQuery
	logger       *zap.Logger
}

func newEmployeeHandler(svc *employee.Service, defaultQuery employee.GroupQuery, logger *zap.Logger) *employeeHandler {
	return &employeeHandler{svc: svc, defaultQuery: defaultQuery, logger: logger}
}

type addRequest struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type updateRequest struct {
	OriginalName string `json:"originalName"`
	NewName      string `json:"newName"`
	Value        int64  `json:"value"`
}

// list handles GET /api/employees.
func (h *employeeHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// add handles POST /api/employees with {"name","value"}.
func (h *employeeHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.svc.Add(r.Context(), employee.Record{Name: req.Name, Value: req.Value}); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// update handles POST /api/employees/update with
// {"originalName","newName","value"}.
func (h *employeeHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.svc.Update(r.Context(), req.OriginalName, req.NewName, req.Value); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// remove handles DELETE /api/employees?name=.
func (h *employeeHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.URL.Query().Get("name")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// incrementRule handles POST /api/employees/increment-rule.
func (h *employeeHandler) incrementRule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.BulkAdjust(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// abcSums handles GET /api/employees/abc-sums?prefixes=A,B,C&threshold=N&source=store|listing.
// Omitted parameters fall back to the configured query.
func (h *employeeHandler) abcSums(w http.ResponseWriter, r *http.Request) {
	q, source, err := h.parseGroupQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var totals []employee.GroupTotal
	switch source {
	case sourceListing:
		totals, err = h.svc.GroupedSumFromListing(r.Context(), q)
	default:
		totals, err = h.svc.GroupedSum(r.Context(), q)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *employeeHandler) parseGroupQuery(r *http.Request) (employee.GroupQuery, string, error) {
	values := r.URL.Query()
	q := employee.GroupQuery{
		Prefixes:  h.defaultQuery.Prefixes,
		Threshold: h.defaultQuery.Threshold,
	}
	if values.Has("prefixes") {
		q.Prefixes = splitPrefixes(values.Get("prefixes"))
	}
	if raw := strings.TrimSpace(values.Get("threshold")); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return employee.GroupQuery{}, "", fmt.Errorf("threshold must be an integer")
		}
		q.Threshold = threshold
	}
	source := strings.TrimSpace(values.Get("source"))
	switch source {
	case "", sourceStore, sourceListing:
	default:
		return employee.GroupQuery{}, "", fmt.Errorf("source must be %q or %q", sourceStore, sourceListing)
	}
	return q, source, nil
}

// splitPrefixes parses "A, B,C" into [A B C]. An empty value selects no groups.
func splitPrefixes(raw string) []string {
	prefixes := make([]string, 0, 3)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			prefixes = append(prefixes, part)
		}
	}
	return prefixes
}

// writeServiceError maps employee error kinds onto HTTP status codes.
func (h *employeeHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, employee.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, employee.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, employee.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("employee request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}
