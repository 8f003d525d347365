package addresser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"
)

// IPFSHTTP addresses content through a Kubo RPC endpoint
// (POST /api/v0/add?only-hash=true). It produces the same identifiers as
// IPFSCommand without forking a process per item.
type IPFSHTTP struct {
	client *resty.Client
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// NewIPFSHTTP returns an addresser for the RPC API at baseURL,
// e.g. http://127.0.0.1:5001.
func NewIPFSHTTP(baseURL string, timeout time.Duration) *IPFSHTTP {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", "tokencid")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &IPFSHTTP{client: client}
}

func (h *IPFSHTTP) Scheme() string { return SchemeIPFS }

func (h *IPFSHTTP) Address(ctx context.Context, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", newError(KindInvalidInput, "empty payload", nil)
	}

	var out addResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"only-hash": "true",
			"pin":       "false",
			"quiet":     "true",
		}).
		SetMultipartField("file", "token", "application/octet-stream", bytes.NewReader(payload)).
		SetResult(&out).
		Post("/api/v0/add")
	if err != nil {
		return "", classify(ctx, "ipfs rpc add", err)
	}
	if resp.IsError() {
		return "", newError(KindProcessFailure,
			fmt.Sprintf("ipfs rpc add: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())), nil)
	}
	if out.Hash == "" {
		return "", newError(KindProcessFailure, "ipfs rpc add returned no identifier", nil)
	}
	return out.Hash, nil
}

// Close releases idle connections held by the client.
func (h *IPFSHTTP) Close() error {
	return h.client.Close()
}
