package near

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
)

func testReport(t *testing.T) analysis.Report {
	t.Helper()
	m, err := analysis.NewMatrix([]string{"a", "b"}, []float64{0.3})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	return analysis.Report{
		Distances:       m,
		Consensus:       analysis.Consensus{DocumentID: "a", MeanDistance: 0.3, Reason: analysis.ConsensusReason},
		Outliers:        []analysis.Outlier{},
		Threshold:       analysis.DefaultThreshold,
		DocumentCount:   2,
		ComparisonCount: 1,
	}
}

func TestStorageKey(t *testing.T) {
	key := StorageKey("semantic", "abc")
	if len(key) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(key))
	}
	if key != StorageKey("semantic", "abc") {
		t.Error("key is not deterministic")
	}
	if key == StorageKey("analysis", "abc") {
		t.Error("prefix does not separate key spaces")
	}
}

func TestSubmit(t *testing.T) {
	var got relayerRequest
	relayer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode relayer request: %v", err)
		}
		json.NewEncoder(w).Encode(relayerResponse{TxHash: "9xyz"})
	}))
	defer relayer.Close()

	client := NewClient(Config{
		RelayerURL: relayer.URL,
		ContractID: "semantic-guard.testnet",
	})

	receipt, err := client.Submit(context.Background(), "query-hash", testReport(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if receipt.TxHash != "9xyz" {
		t.Errorf("TxHash = %q", receipt.TxHash)
	}
	if receipt.StorageKey != StorageKey(storagePrefix, "query-hash") {
		t.Errorf("StorageKey = %q", receipt.StorageKey)
	}
	if got.MethodName != submitMethod {
		t.Errorf("method = %q", got.MethodName)
	}
	if got.ContractID != "semantic-guard.testnet" {
		t.Errorf("contract = %q", got.ContractID)
	}
	if got.Args.AnalysisID != receipt.StorageKey {
		t.Errorf("analysis_id = %q, want storage key", got.Args.AnalysisID)
	}
	if got.Args.Metadata.Identifier != "query-hash" {
		t.Errorf("metadata identifier = %q", got.Args.Metadata.Identifier)
	}

	raw, err := base64.StdEncoding.DecodeString(got.Args.AnalysisData)
	if err != nil {
		t.Fatalf("analysis_data is not base64: %v", err)
	}
	var stored analysis.Report
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("analysis_data is not a report: %v", err)
	}
	if stored.Consensus.DocumentID != "a" {
		t.Errorf("stored consensus = %+v", stored.Consensus)
	}
}

func TestSubmit_NoRelayer(t *testing.T) {
	client := NewClient(Config{ContractID: "semantic-guard.testnet"})

	receipt, err := client.Submit(context.Background(), "q", testReport(t))
	if !errors.Is(err, domain.ErrChainUnavailable) {
		t.Fatalf("err = %v, want ErrChainUnavailable", err)
	}
	if receipt.StorageKey == "" {
		t.Error("receipt should still carry the storage key")
	}
}

func TestSubmit_RelayerError(t *testing.T) {
	relayer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(relayerResponse{Error: "account out of gas"})
	}))
	defer relayer.Close()

	client := NewClient(Config{RelayerURL: relayer.URL, ContractID: "c.testnet"})

	if _, err := client.Submit(context.Background(), "q", testReport(t)); !errors.Is(err, domain.ErrChainUnavailable) {
		t.Fatalf("err = %v, want ErrChainUnavailable", err)
	}
}

// viewResult packs a contract return value the way the RPC does: a JSON
// array of byte values.
func viewResult(t *testing.T, v any) []int {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal view result: %v", err)
	}
	out := make([]int, len(raw))
	for i, b := range raw {
		out[i] = int(b)
	}
	return out
}

func TestGetAnalysis(t *testing.T) {
	report := testReport(t)
	reportJSON, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
		}
		if req.Method != "query" {
			t.Errorf("rpc method = %q", req.Method)
		}

		record := map[string]string{
			"analysis_data": base64.StdEncoding.EncodeToString(reportJSON),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"result": viewResult(t, record)},
		})
	}))
	defer rpc.Close()

	client := NewClient(Config{RPCURL: rpc.URL, ContractID: "c.testnet"})

	got, err := client.GetAnalysis(context.Background(), "query-hash")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.Consensus.DocumentID != "a" {
		t.Errorf("consensus = %+v", got.Consensus)
	}
	if got.DocumentCount != 2 || got.ComparisonCount != 1 {
		t.Errorf("counts = %d/%d", got.DocumentCount, got.ComparisonCount)
	}
	if d, ok := got.Distances.Distance("a", "b"); !ok || d != 0.3 {
		t.Errorf("distance a->b = %f, %t", d, ok)
	}
}

func TestGetAnalysis_NotFound(t *testing.T) {
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"result": []int{}},
		})
	}))
	defer rpc.Close()

	client := NewClient(Config{RPCURL: rpc.URL, ContractID: "c.testnet"})

	if _, err := client.GetAnalysis(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetAnalysis_RPCError(t *testing.T) {
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"name": "HANDLER_ERROR", "message": "unknown contract"},
		})
	}))
	defer rpc.Close()

	client := NewClient(Config{RPCURL: rpc.URL, ContractID: "c.testnet"})

	if _, err := client.GetAnalysis(context.Background(), "q"); !errors.Is(err, domain.ErrChainUnavailable) {
		t.Fatalf("err = %v, want ErrChainUnavailable", err)
	}
}

func TestHealthCheck(t *testing.T) {
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "status" {
			t.Errorf("rpc method = %q", req.Method)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]string{"chain_id": "testnet"},
		})
	}))
	defer rpc.Close()

	client := NewClient(Config{RPCURL: rpc.URL})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
