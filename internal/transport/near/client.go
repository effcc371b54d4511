// Package near records analysis reports on the NEAR blockchain and reads
// them back through contract view calls. Submission goes through a relayer
// endpoint that holds the signing key; this service never touches keys.
package near

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/neargravity/semguard/internal/domain"
)

const (
	// storagePrefix namespaces analysis records inside the contract.
	storagePrefix = "semantic"

	submitMethod = "store_semantic_analysis"
	viewMethod   = "get_semantic_analysis"
)

// RPC URLs per network.
var rpcURLs = map[string]string{
	"testnet": "https://rpc.testnet.near.org",
	"mainnet": "https://rpc.mainnet.near.org",
}

// Client talks to a NEAR network: view calls go straight to the public RPC,
// state changes go through the relayer.
type Client struct {
	rpcURL     string
	relayerURL string
	contractID string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the NEAR client settings.
type Config struct {
	Network    string // "testnet" or "mainnet"
	RPCURL     string // overrides the per-network default
	RelayerURL string // signing relayer; empty disables submission
	ContractID string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewClient creates a NEAR chain client.
func NewClient(cfg Config) *Client {
	rpcURL := cfg.RPCURL
	if rpcURL == "" {
		rpcURL = rpcURLs[cfg.Network]
		if rpcURL == "" {
			rpcURL = rpcURLs["testnet"]
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		rpcURL:     rpcURL,
		relayerURL: cfg.RelayerURL,
		contractID: cfg.ContractID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// StorageKey derives the contract storage key for an identifier.
func StorageKey(prefix, identifier string) string {
	sum := sha256.Sum256([]byte(prefix + ":" + identifier))
	return hex.EncodeToString(sum[:])
}

// encodePayload serializes a record for contract storage. JSON object keys
// marshal in sorted order, so the encoding is deterministic.
func encodePayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// rpcRequest is a NEAR JSON-RPC request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (c *Client) callRPC(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "dontcare",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChainUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: rpc returned status %d", domain.ErrChainUnavailable, resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode rpc response: %v", domain.ErrChainUnavailable, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%w: rpc error %s: %s", domain.ErrChainUnavailable, envelope.Error.Name, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%w: decode rpc result: %v", domain.ErrChainUnavailable, err)
		}
	}
	return nil
}

// viewFunction invokes a read-only contract method. The result comes back
// as a byte array holding the method's JSON return value; empty means the
// contract returned null.
func (c *Client) viewFunction(ctx context.Context, method string, args any, out any) error {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal view args: %w", err)
	}

	params := map[string]any{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   c.contractID,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(rawArgs),
	}

	// NEAR encodes the return value as a JSON array of byte values.
	var result struct {
		Result []int `json:"result"`
	}
	if err := c.callRPC(ctx, "query", params, &result); err != nil {
		return err
	}
	raw := make([]byte, len(result.Result))
	for i, b := range result.Result {
		raw[i] = byte(b)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode view result: %v", domain.ErrChainUnavailable, err)
	}
	return nil
}

// HealthCheck verifies RPC reachability via the status method.
func (c *Client) HealthCheck(ctx context.Context) error {
	var status struct {
		ChainID string `json:"chain_id"`
	}
	if err := c.callRPC(ctx, "status", []any{}, &status); err != nil {
		return err
	}
	if status.ChainID == "" {
		return fmt.Errorf("%w: status response missing chain id", domain.ErrChainUnavailable)
	}
	return nil
}
