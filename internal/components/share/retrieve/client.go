// Package retrieve fetches a shared item from the share service, trying
// caller-supplied identity tokens in order until one is accepted.
package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sharelock/sharelock-go/internal/components/share/itemcrypto"
	"github.com/sharelock/sharelock-go/internal/components/share/secret"
	"github.com/sharelock/sharelock-go/internal/components/share/spec"
	"github.com/sharelock/sharelock-go/internal/platform/dates"
	httpclient "github.com/sharelock/sharelock-go/internal/platform/http/client"
	"github.com/sharelock/sharelock-go/internal/platform/logutil"
)

// ItemDecryptor opens the encrypted payload fields of a share record.
// Extracted for mocks.
type ItemDecryptor interface {
	Decrypt(encOverview, encDetails spec.EncryptedBlob, key []byte) (*itemcrypto.Item, error)
}

// Client performs one fetch-and-classify attempt per call. Stateless between
// calls; it either returns a classified outcome or fails with a
// ClassifiedError, never both.
type Client struct {
	httpClient *httpclient.ContextClient
	serviceURL string
	decryptor  ItemDecryptor
	logger     *slog.Logger
}

// NewClient builds a fetch-and-classify client for the given service base URL.
func NewClient(httpClient *httpclient.ContextClient, serviceURL string, decryptor ItemDecryptor, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		serviceURL: strings.TrimSuffix(serviceURL, "/"),
		decryptor:  decryptor,
		logger:     logutil.NoopIfNil(logger),
	}
}

// Attempt issues one read request for the resource, carrying the possession
// proof always and the identity proof only when identityToken is non-empty.
// Classified error bodies map to outcome variants; everything else is an
// unrecoverable error for the orchestrator to judge.
func (c *Client) Attempt(ctx context.Context, access *secret.Access, identityToken string) (*Outcome, error) {
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.shareURL(access.ResourceID), nil)
	if err != nil {
		return nil, NewClassifiedError(ReasonNetworkError, "failed to build share request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(spec.HeaderRequestID, requestID)
	req.Header.Set(spec.HeaderShareToken, access.PossessionToken)
	if identityToken != "" {
		req.Header.Set(spec.HeaderIdentityToken, identityToken)
	}

	c.logger.Debug("fetching share",
		"resource_id", access.ResourceID,
		"request_id", requestID,
		"with_identity", identityToken != "")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewClassifiedError(ReasonNetworkError, "share request failed", err)
	}

	body, err := c.httpClient.ReadAll(resp)
	if err != nil {
		return nil, NewClassifiedError(ReasonNetworkError, "failed to read share response", err)
	}

	if resp.StatusCode >= 400 {
		return c.classifyErrorBody(access.ResourceID, resp.StatusCode, body)
	}

	return c.buildSuccess(access, body)
}

// classifyErrorBody maps a classified error body onto an outcome variant.
// Unknown reasons and malformed bodies are unrecoverable; no classification
// is guessed.
func (c *Client) classifyErrorBody(resourceID string, status int, body []byte) (*Outcome, error) {
	var errResp spec.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Reason == "" {
		return nil, NewClassifiedError(
			ReasonBadStatusBody,
			fmt.Sprintf("share service returned status %d without a classified reason", status),
			err,
		)
	}

	switch errResp.Reason {
	case spec.ReasonUnauthorized:
		return Unauthorized(resourceID), nil
	case spec.ReasonMaxViews:
		return MaxViewsExceeded(resourceID), nil
	case spec.ReasonExpired:
		return Expired(resourceID), nil
	case spec.ReasonNotFound:
		return NotFound(resourceID), nil
	default:
		return nil, NewClassifiedError(
			ReasonUnclassifiedReason,
			fmt.Sprintf("share service returned unclassified reason %q", errResp.Reason),
			nil,
		)
	}
}

// buildSuccess parses the share record, decrypts the payload, and assembles
// the success outcome. A record that looks successful but does not decrypt
// is an error, never a Success.
func (c *Client) buildSuccess(access *secret.Access, body []byte) (*Outcome, error) {
	var record spec.ShareRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, NewClassifiedError(ReasonBadRecord, "failed to parse share record", err)
	}
	if record.EncOverview.Data == "" || record.EncDetails.Data == "" {
		return nil, NewClassifiedError(ReasonBadRecord, "share record is missing encrypted payload", nil)
	}

	item, err := c.decryptor.Decrypt(record.EncOverview, record.EncDetails, access.Key)
	if err != nil {
		return nil, NewClassifiedError(ReasonDecryptFailed, "failed to decrypt share payload", err)
	}

	md := &Metadata{
		MaxViews:    record.MaxViews,
		AccountName: record.AccountName,
		AccountType: record.AccountType,
		CanJoinTeam: record.CanJoinTeam,
		Template:    record.Template,
	}
	if record.ExpiresAt != "" {
		expiresAt, err := dates.ParseInstant(record.ExpiresAt)
		if err != nil {
			return nil, NewClassifiedError(ReasonBadRecord, "share record has invalid expiry", err)
		}
		md.ExpiresAt = &expiresAt
	}

	return Success(access.ResourceID, item, md), nil
}

func (c *Client) shareURL(resourceID string) string {
	return c.serviceURL + "/v1/shares/" + resourceID
}
