package retrieve_test

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sharelock/sharelock-go/internal/components/share/itemcrypto"
	"github.com/sharelock/sharelock-go/internal/components/share/retrieve"
	"github.com/sharelock/sharelock-go/internal/components/share/secret"
	"github.com/sharelock/sharelock-go/internal/components/share/spec"
	"github.com/sharelock/sharelock-go/internal/platform/config"
	httpclient "github.com/sharelock/sharelock-go/internal/platform/http/client"
)

const clientTestSecret = "mJ2kP8wQx4RtY7uL0cVbN3sDfG6hAz1e"

func testAccess(t *testing.T) *secret.Access {
	t.Helper()
	access, err := secret.NewResolver().Derive(clientTestSecret)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	return access
}

func sealBlob(t *testing.T, key, plaintext []byte) spec.EncryptedBlob {
	t.Helper()

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("NewGCM: %v", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		t.Fatalf("rand: %v", err)
	}

	return spec.EncryptedBlob{
		Enc:  itemcrypto.EncA256GCM,
		IV:   base64.RawURLEncoding.EncodeToString(iv),
		Data: base64.RawURLEncoding.EncodeToString(gcm.Seal(nil, iv, plaintext, nil)),
	}
}

func newTestClient(serviceURL string) *retrieve.Client {
	hc := httpclient.NewContextClient(httpclient.New(&config.OutboundHTTPConfig{
		SSRFMode: "off",
	}))
	return retrieve.NewClient(hc, serviceURL, itemcrypto.NewDecryptor(), nil)
}

func successRecord(t *testing.T, access *secret.Access) spec.ShareRecord {
	t.Helper()
	maxViews := 5
	return spec.ShareRecord{
		UUID:        access.ResourceID,
		EncOverview: sealBlob(t, access.Key, []byte(`{"title":"Wifi Password","url":"https://router.local"}`)),
		EncDetails:  sealBlob(t, access.Key, []byte(`{"notesPlain":"guest network"}`)),
		MaxViews:    &maxViews,
		ExpiresAt:   "2026-12-01T00:00:00Z",
		CanJoinTeam: true,
		AccountName: "Example Co",
		// AccountType deliberately omitted
	}
}

func TestAttempt_Success(t *testing.T) {
	access := testAccess(t)

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if want := "/v1/shares/" + access.ResourceID; r.URL.Path != want {
			t.Errorf("expected path %s, got %s", want, r.URL.Path)
		}
		if got := r.Header.Get(spec.HeaderShareToken); got != access.PossessionToken {
			t.Errorf("wrong possession token header: %q", got)
		}
		if r.Header.Get(spec.HeaderIdentityToken) != "" {
			t.Error("identity header must be absent for anonymous attempts")
		}
		if r.Header.Get(spec.HeaderRequestID) == "" {
			t.Error("expected request id header")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(successRecord(t, access))
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Attempt(context.Background(), access, "")
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}

	if outcome.Kind != retrieve.KindSuccess {
		t.Fatalf("expected success, got %s", outcome.Kind)
	}
	if outcome.ResourceID != access.ResourceID {
		t.Errorf("wrong resource id: %s", outcome.ResourceID)
	}
	if outcome.Item == nil || outcome.Item.Title != "Wifi Password" {
		t.Errorf("unexpected item: %+v", outcome.Item)
	}
	if outcome.Metadata == nil {
		t.Fatal("expected metadata on success")
	}
	if outcome.Metadata.AccountType != "" {
		t.Errorf("account type must default to empty string, got %q", outcome.Metadata.AccountType)
	}
	if outcome.Metadata.MaxViews == nil || *outcome.Metadata.MaxViews != 5 {
		t.Errorf("unexpected max views: %v", outcome.Metadata.MaxViews)
	}
	if outcome.Metadata.ExpiresAt == nil || outcome.Metadata.ExpiresAt.Year() != 2026 {
		t.Errorf("unexpected expiry: %v", outcome.Metadata.ExpiresAt)
	}
	if !outcome.Metadata.CanJoinTeam {
		t.Error("expected CanJoinTeam carried through")
	}
	if requests != 1 {
		t.Errorf("expected 1 request, got %d", requests)
	}
}

func TestAttempt_IdentityHeaderPresent(t *testing.T) {
	access := testAccess(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(spec.HeaderIdentityToken); got != "identity-1" {
			t.Errorf("expected identity header, got %q", got)
		}
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(spec.ErrorResponse{Reason: spec.ReasonUnauthorized})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Attempt(context.Background(), access, "identity-1")
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if outcome.Kind != retrieve.KindUnauthorized {
		t.Errorf("expected unauthorized, got %s", outcome.Kind)
	}
}

func TestAttempt_NotFound(t *testing.T) {
	access := testAccess(t)

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(spec.ErrorResponse{Reason: spec.ReasonNotFound})
	}))
	defer server.Close()

	outcome, err := newTestClient(server.URL).Attempt(context.Background(), access, "")
	if err != nil {
		t.Fatalf("Attempt failed: %v", err)
	}
	if outcome.Kind != retrieve.KindNotFound {
		t.Errorf("expected not_found, got %s", outcome.Kind)
	}
	if outcome.ResourceID != access.ResourceID {
		t.Errorf("expected resource id populated, got %q", outcome.ResourceID)
	}
	if requests != 1 {
		t.Errorf("expected exactly one request, got %d", requests)
	}
}

func TestAttempt_UnclassifiedReason(t *testing.T) {
	access := testAccess(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(spec.ErrorResponse{Reason: "rate_limited"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Attempt(context.Background(), access, "")
	if err == nil {
		t.Fatal("expected error for unclassified reason")
	}
	if retrieve.ReasonOf(err) != retrieve.ReasonUnclassifiedReason {
		t.Errorf("expected unclassified_reason, got %q", retrieve.ReasonOf(err))
	}
}

func TestAttempt_MalformedErrorBody(t *testing.T) {
	access := testAccess(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Attempt(context.Background(), access, "")
	if retrieve.ReasonOf(err) != retrieve.ReasonBadStatusBody {
		t.Errorf("expected bad_status_body, got %v", err)
	}
}

func TestAttempt_DecryptFailure(t *testing.T) {
	access := testAccess(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := successRecord(t, access)
		record.EncDetails.Data = base64.RawURLEncoding.EncodeToString([]byte("garbage ciphertext"))
		json.NewEncoder(w).Encode(record)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Attempt(context.Background(), access, "")
	if retrieve.ReasonOf(err) != retrieve.ReasonDecryptFailed {
		t.Errorf("expected decrypt_failed, got %v", err)
	}
}

func TestAttempt_InvalidExpiry(t *testing.T) {
	access := testAccess(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := successRecord(t, access)
		record.ExpiresAt = "whenever"
		json.NewEncoder(w).Encode(record)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Attempt(context.Background(), access, "")
	if retrieve.ReasonOf(err) != retrieve.ReasonBadRecord {
		t.Errorf("expected bad_record, got %v", err)
	}
}

func TestAttempt_NetworkError(t *testing.T) {
	access := testAccess(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	_, err := newTestClient(server.URL).Attempt(context.Background(), access, "")
	if retrieve.ReasonOf(err) != retrieve.ReasonNetworkError {
		t.Errorf("expected network_error, got %v", err)
	}
}

func TestRetrieve_IdentityFallback_EndToEnd(t *testing.T) {
	access := testAccess(t)

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.Header.Get(spec.HeaderIdentityToken) {
		case "T1":
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(spec.ErrorResponse{Reason: spec.ReasonUnauthorized})
		case "T2":
			json.NewEncoder(w).Encode(successRecord(t, access))
		default:
			t.Errorf("unexpected identity header %q", r.Header.Get(spec.HeaderIdentityToken))
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	o := retrieve.NewOrchestrator(secret.NewResolver(), newTestClient(server.URL), nil)

	outcome, err := o.Retrieve(context.Background(), clientTestSecret, []string{"T1", "T2"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if outcome.Kind != retrieve.KindSuccess {
		t.Fatalf("expected success via second identity, got %s", outcome.Kind)
	}
	if outcome.Item.Title != "Wifi Password" {
		t.Errorf("unexpected item title %q", outcome.Item.Title)
	}
	if requests != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
}
