package qcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"qscan/internal/circuit"
)

func TestOriginIRRendering(t *testing.T) {
	c := &circuit.Circuit{NumQubits: 2}
	c.Gates = []circuit.Gate{
		{Kind: circuit.GateU3, Qubit: 0, Theta: 1.5, Phi: 0, Lambda: 3},
		{Kind: circuit.GateCZ, Control: 0, Target: 1},
		{Kind: circuit.GateMeasure, Qubit: 0, CBit: 0},
		{Kind: circuit.GateMeasure, Qubit: 1, CBit: 1},
	}

	want := "QINIT 2\nCREG 2\nU3 q[0],(1.5,0,3)\nCZ q[0],q[1]\nMEASURE q[0],c[0]\nMEASURE q[1],c[1]\n"
	require.Equal(t, want, OriginIR(c))
}

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name string
		code int
		body string
		want Category
	}{
		{"server error", 500, "internal", CategorySubmission},
		{"queue pressure", 429, "too many requests", CategorySubmission},
		{"routing", 400, "mapping failed for qubit pair (3,7)", CategoryRouting},
		{"compensation", 400, "invalid compensate qubit pair", CategoryRouting},
		{"depth", 400, "circuit depth exceeds limit", CategoryDepth},
		{"layer", 400, "layer count over budget", CategoryDepth},
		{"other rejection", 403, "quota exhausted", CategoryExecution},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			perr := classifyHTTP(StageSubmit, tc.code, tc.body)
			require.Equal(t, tc.want, perr.Category)
			require.Contains(t, perr.Message, tc.body)
		})
	}
}

func TestHTTPBackendRoundTrip(t *testing.T) {
	var gotAuth string
	var gotSubmit submitRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/task/submit", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSubmit))
		json.NewEncoder(w).Encode(submitResponse{JobID: "job-42"})
	})
	mux.HandleFunc("/task/status/job-42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{Status: "FINISHED"})
	})
	mux.HandleFunc("/task/result/job-42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(resultResponse{
			ProbsList: []map[string]float64{{"01": 0.7, "10": 0.3}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, "origin_wukong", "secret-key")
	defer backend.httpClient.CloseIdleConnections()
	ctx := context.Background()

	circ, err := circuit.Calibration(2, 0)
	require.NoError(t, err)

	handle, err := backend.Submit(ctx, circ, 2000, MinimalOptions())
	require.NoError(t, err)
	require.Equal(t, JobHandle("job-42"), handle)
	require.Equal(t, "Bearer secret-key", gotAuth)
	require.Equal(t, "origin_wukong", gotSubmit.Backend)
	require.Equal(t, 2000, gotSubmit.Shots)
	require.Contains(t, gotSubmit.Program, "QINIT")

	status, err := backend.Status(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, StatusFinished, status)

	probs, err := backend.Result(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"01": 0.7, "10": 0.3}, probs)
}

func TestHTTPBackendSubmitRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mapping failed: no route between qubits", http.StatusBadRequest)
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, "origin_wukong", "k")
	defer backend.httpClient.CloseIdleConnections()
	circ, err := circuit.Calibration(2, 0)
	require.NoError(t, err)

	_, err = backend.Submit(context.Background(), circ, 2000, nil)
	require.Error(t, err)

	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CategoryRouting, perr.Category)
}

func TestHTTPBackendStatusMapping(t *testing.T) {
	statuses := map[string]JobStatus{
		"QUEUED":    StatusQueued,
		"waiting":   StatusQueued,
		"RUNNING":   StatusRunning,
		"COMPUTING": StatusRunning,
		"FINISHED":  StatusFinished,
		"FAILED":    StatusFailed,
		"CANCELED":  StatusCanceled,
	}
	var current string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{Status: current})
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, "origin_wukong", "k")
	defer backend.httpClient.CloseIdleConnections()
	for wire, want := range statuses {
		current = wire
		got, err := backend.Status(context.Background(), "h")
		require.NoError(t, err)
		require.Equal(t, want, got, "wire status %q", wire)
	}

	current = "EXPLODED"
	_, err := backend.Status(context.Background(), "h")
	require.Error(t, err)
}
