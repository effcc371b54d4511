package near

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
	"github.com/neargravity/semguard/internal/usecase/guard"
)

// submitArgs is the contract call payload for a stored analysis.
type submitArgs struct {
	AnalysisID   string         `json:"analysis_id"`
	AnalysisData string         `json:"analysis_data"`
	Timestamp    int64          `json:"timestamp"`
	Metadata     submitMetadata `json:"metadata"`
}

type submitMetadata struct {
	Prefix     string `json:"prefix"`
	Identifier string `json:"identifier"`
	Version    string `json:"version"`
}

// relayerRequest asks the relayer to sign and send a contract call.
type relayerRequest struct {
	ContractID string     `json:"contract_id"`
	MethodName string     `json:"method_name"`
	Args       submitArgs `json:"args"`
	Deposit    string     `json:"deposit"`
}

type relayerResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

// Submit implements guard.Recorder: stores a finished report on the contract
// through the relayer. The storage key is derived from the identifier, so a
// caller holding the same identifier can read the record back.
func (c *Client) Submit(ctx context.Context, identifier string, report analysis.Report) (guard.Receipt, error) {
	key := StorageKey(storagePrefix, identifier)
	receipt := guard.Receipt{StorageKey: key}

	if c.relayerURL == "" {
		return receipt, fmt.Errorf("%w: relayer not configured", domain.ErrChainUnavailable)
	}

	encoded, err := encodePayload(report)
	if err != nil {
		return receipt, err
	}

	body, err := json.Marshal(relayerRequest{
		ContractID: c.contractID,
		MethodName: submitMethod,
		Args: submitArgs{
			AnalysisID:   key,
			AnalysisData: encoded,
			Timestamp:    time.Now().Unix(),
			Metadata: submitMetadata{
				Prefix:     storagePrefix,
				Identifier: identifier,
				Version:    "1.0",
			},
		},
		Deposit: "0",
	})
	if err != nil {
		return receipt, fmt.Errorf("marshal relayer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayerURL, bytes.NewReader(body))
	if err != nil {
		return receipt, fmt.Errorf("build relayer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return receipt, fmt.Errorf("%w: %v", domain.ErrChainUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return receipt, fmt.Errorf("%w: relayer returned status %d", domain.ErrChainUnavailable, resp.StatusCode)
	}

	var parsed relayerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return receipt, fmt.Errorf("%w: decode relayer response: %v", domain.ErrChainUnavailable, err)
	}
	if parsed.Error != "" {
		return receipt, fmt.Errorf("%w: relayer error: %s", domain.ErrChainUnavailable, parsed.Error)
	}

	c.logger.Info("analysis recorded on chain",
		zap.String("storage_key", key),
		zap.String("tx_hash", parsed.TxHash))

	receipt.TxHash = parsed.TxHash
	return receipt, nil
}

// GetAnalysis reads a stored report back from the contract. Returns
// domain.ErrNotFound when the contract holds no record for the identifier.
func (c *Client) GetAnalysis(ctx context.Context, identifier string) (analysis.Report, error) {
	key := StorageKey(storagePrefix, identifier)

	var record struct {
		AnalysisData string `json:"analysis_data"`
	}
	args := map[string]string{"analysis_id": key}
	if err := c.viewFunction(ctx, viewMethod, args, &record); err != nil {
		return analysis.Report{}, err
	}
	if record.AnalysisData == "" {
		return analysis.Report{}, domain.ErrNotFound
	}

	raw, err := base64.StdEncoding.DecodeString(record.AnalysisData)
	if err != nil {
		return analysis.Report{}, fmt.Errorf("%w: decode stored analysis: %v", domain.ErrChainUnavailable, err)
	}

	var report analysis.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return analysis.Report{}, fmt.Errorf("%w: unmarshal stored analysis: %v", domain.ErrChainUnavailable, err)
	}
	return report, nil
}
