package api

import (
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/employee-store/internal/employee"
)

func TestListEmployees(t *testing.T) {
	t.Parallel()

	srv := newTestServer(
		employee.Record{Name: "Bob", Value: 2},
		employee.Record{Name: "Abe", Value: 1},
	)
	rec := serve(t, srv, http.MethodGet, "/api/employees", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `[{"name":"Abe","value":1},{"name":"Bob","value":2}]`, rec.Body.String())
}

func TestListEmployeesEmptyIsArray(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(), http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestAddEmployee(t *testing.T) {
	t.Parallel()

	srv := newTestServer()
	rec := serve(t, srv, http.MethodPost, "/api/employees", jsonBody(`{"name":"Abe","value":5000}`))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/employees", jsonBody(`{"name":"Abe","value":1}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already exists")

	rec = serve(t, srv, http.MethodGet, "/api/employees", nil)
	require.JSONEq(t, `[{"name":"Abe","value":5000}]`, rec.Body.String())
}

func TestAddEmployeeRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{"name":`, want: http.StatusBadRequest},
		{name: "fractional value", body: `{"name":"Abe","value":1.5}`, want: http.StatusBadRequest},
		{name: "blank name", body: `{"name":"   ","value":1}`, want: http.StatusBadRequest},
		{name: "missing name", body: `{"value":1}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, newTestServer(), http.MethodPost, "/api/employees", jsonBody(tt.body))
			require.Equal(t, tt.want, rec.Code)
			require.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestUpdateEmployee(t *testing.T) {
	t.Parallel()

	srv := newTestServer(
		employee.Record{Name: "Abe", Value: 1},
		employee.Record{Name: "Bob", Value: 2},
	)

	rec := serve(t, srv, http.MethodPost, "/api/employees/update",
		jsonBody(`{"originalName":"Abe","newName":"Ann","value":50}`))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/employees/update",
		jsonBody(`{"originalName":"Zed","newName":"Zoe","value":1}`))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/employees/update",
		jsonBody(`{"originalName":"Ann","newName":"Bob","value":1}`))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/employees/update",
		jsonBody(`{"originalName":"Ann","newName":"","value":1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, srv, http.MethodGet, "/api/employees", nil)
	require.JSONEq(t, `[{"name":"Ann","value":50},{"name":"Bob","value":2}]`, rec.Body.String())
}

func TestDeleteEmployee(t *testing.T) {
	t.Parallel()

	srv := newTestServer(employee.Record{Name: "Abe", Value: 1})

	require.Equal(t, http.StatusBadRequest, serve(t, srv, http.MethodDelete, "/api/employees", nil).Code)
	require.Equal(t, http.StatusNoContent, serve(t, srv, http.MethodDelete, "/api/employees?name=Abe", nil).Code)
	require.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodDelete, "/api/employees?name=Abe", nil).Code)
}

func TestIncrementRule(t *testing.T) {
	t.Parallel()

	srv := newTestServer(
		employee.Record{Name: "Eve", Value: 1},
		employee.Record{Name: "Gia", Value: 2},
		employee.Record{Name: "Bob", Value: 3},
	)

	rec := serve(t, srv, http.MethodPost, "/api/employees/increment-rule", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, srv, http.MethodGet, "/api/employees", nil)
	require.JSONEq(t,
		`[{"name":"Bob","value":103},{"name":"Eve","value":2},{"name":"Gia","value":12}]`,
		rec.Body.String(),
	)
}

func TestIncrementRuleOverflowIs500(t *testing.T) {
	t.Parallel()

	srv := newTestServer(employee.Record{Name: "Bob", Value: math.MaxInt64})
	rec := serve(t, srv, http.MethodPost, "/api/employees/increment-rule", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"storage failure"}`, rec.Body.String())
}

func TestABCSums(t *testing.T) {
	t.Parallel()

	seed := []employee.Record{
		{Name: "Abe", Value: 5000},
		{Name: "Amy", Value: 6200},
		{Name: "Bob", Value: 20000},
		{Name: "Cy", Value: 11170},
	}
	want := `[{"initial":"A","sum":11200},{"initial":"B","sum":20000}]`

	for _, target := range []string{
		"/api/employees/abc-sums",
		"/api/employees/abc-sums?source=store",
		"/api/employees/abc-sums?source=listing",
		"/api/employees/abc-sums?prefixes=C,%20B,A,A&threshold=11171",
	} {
		t.Run(target, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, newTestServer(seed...), http.MethodGet, target, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			require.JSONEq(t, want, rec.Body.String())
		})
	}
}

func TestABCSumsCustomQuery(t *testing.T) {
	t.Parallel()

	srv := newTestServer(
		employee.Record{Name: "Cy", Value: 11170},
		employee.Record{Name: "Dan", Value: 7},
	)

	rec := serve(t, srv, http.MethodGet, "/api/employees/abc-sums?prefixes=C,D&threshold=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"initial":"C","sum":11170},{"initial":"D","sum":7}]`, rec.Body.String())

	rec = serve(t, srv, http.MethodGet, "/api/employees/abc-sums?prefixes=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestABCSumsSumBeyondInt64(t *testing.T) {
	t.Parallel()

	srv := newTestServer(
		employee.Record{Name: "Abe", Value: math.MaxInt64},
		employee.Record{Name: "Amy", Value: math.MaxInt64},
	)
	rec := serve(t, srv, http.MethodGet, "/api/employees/abc-sums", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"initial":"A","sum":18446744073709551614}]`, rec.Body.String())
}

func TestABCSumsRejectsBadParameters(t *testing.T) {
	t.Parallel()

	for _, target := range []string{
		"/api/employees/abc-sums?threshold=ten",
		"/api/employees/abc-sums?source=cache",
		"/api/employees/abc-sums?prefixes=AB",
	} {
		t.Run(target, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, newTestServer(), http.MethodGet, target, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestStorageFailuresMapTo500(t *testing.T) {
	t.Parallel()

	srv := newTestServerWithStore(brokenStore{err: fmt.Errorf("list: %w: %w", employee.ErrStorage, errDisk)})

	for _, tc := range []struct {
		method, target, body string
	}{
		{http.MethodGet, "/api/employees", ""},
		{http.MethodPost, "/api/employees", `{"name":"Abe","value":1}`},
		{http.MethodPost, "/api/employees/update", `{"originalName":"Abe","newName":"Ann","value":1}`},
		{http.MethodDelete, "/api/employees?name=Abe", ""},
		{http.MethodPost, "/api/employees/increment-rule", ""},
		{http.MethodGet, "/api/employees/abc-sums", ""},
		{http.MethodGet, "/api/employees/abc-sums?source=listing", ""},
	} {
		rec := serve(t, srv, tc.method, tc.target, jsonBody(tc.body))
		require.Equal(t, http.StatusInternalServerError, rec.Code, "%s %s", tc.method, tc.target)
		require.NotContains(t, rec.Body.String(), "disk full")
	}
}

func TestCapitalizedControllerPath(t *testing.T) {
	t.Parallel()

	srv := newTestServer(employee.Record{Name: "Bob", Value: 20000})

	rec := serve(t, srv, http.MethodPost, "/api/Employees", jsonBody(`{"name":"Abe","value":11171}`))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/Employees/update",
		jsonBody(`{"originalName":"Abe","newName":"Amy","value":11171}`))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, srv, http.MethodPost, "/api/Employees/increment-rule", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, srv, http.MethodGet, "/api/Employees/abc-sums", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"initial":"A","sum":11271},{"initial":"B","sum":20100}]`, rec.Body.String())

	require.Equal(t, http.StatusNoContent, serve(t, srv, http.MethodDelete, "/api/Employees?name=Amy", nil).Code)

	rec = serve(t, srv, http.MethodGet, "/api/Employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"name":"Bob","value":20100}]`, rec.Body.String())
}
