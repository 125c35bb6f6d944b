package societyapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societyadmin/societyapi"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) societyapi.Client {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := societyapi.NewClient(ts.URL)
	require.NoError(t, err)

	return c
}

func TestLoginReturnsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)

		var req societyapi.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "treasurer", req.Username)
		assert.Equal(t, "hunter2", req.Password)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"success": true, "data": {"token": "abc123", "user": {"_id": "u1", "username": "treasurer", "role": "admin"}}}`)
	})

	result, err := c.Login(context.Background(), "treasurer", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.Token)
	assert.Equal(t, "admin", result.User.Role)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success": true, "data": {}}`)
	})

	_, err := c.Login(context.Background(), "treasurer", "hunter2")
	assert.ErrorIs(t, err, societyapi.ErrUnableToDecodeResponse)
}

func TestLoginBadCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintln(w, `{"success": false, "message": "Invalid credentials"}`)
	})

	_, err := c.Login(context.Background(), "treasurer", "wrong")
	require.ErrorIs(t, err, societyapi.ErrUnauthorized)

	var apiErr *societyapi.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestAuthorizedRequestsSendBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/loans", r.URL.Path)
		fmt.Fprintln(w, `{"success": true, "data": {"data": {"loans": [{"_id": "l1", "principal": "5000", "status": "active"}]}}}`)
	})

	ac := societyapi.NewAuthorizedClient(c, "secret-token")
	loans, err := ac.GetLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "l1", loans[0].Key())
	assert.Equal(t, "5000", loans[0].Principal.String())
}

func TestMissingListIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success": true, "data": null}`)
	})

	receipts, err := societyapi.NewAuthorizedClient(c, "t").GetReceipts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, receipts)
	assert.Empty(t, receipts)
}

func TestInvalidJsonResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{this is invalid json}`)
	})

	_, err := societyapi.NewAuthorizedClient(c, "t").GetMembers(context.Background())
	assert.ErrorIs(t, err, societyapi.ErrUnableToDecodeResponse)
}

func TestSuccessFalseIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success": false, "error": {"message": "ledger locked"}}`)
	})

	_, err := societyapi.NewAuthorizedClient(c, "t").GetRevenueSummary(context.Background())

	var apiErr *societyapi.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "ledger locked", apiErr.Message)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
}

func TestServerErrorUsesStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintln(w, `<html>bad gateway</html>`)
	})

	_, err := societyapi.NewAuthorizedClient(c, "t").GetPenalties(context.Background())

	var apiErr *societyapi.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestMaintenanceMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := societyapi.NewAuthorizedClient(c, "t").GetLoans(context.Background())
	assert.ErrorIs(t, err, societyapi.ErrMaintenance)
}

func TestGetLoanNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loans/l%2F9", r.URL.EscapedPath())
		fmt.Fprintln(w, `{"success": true, "data": null}`)
	})

	_, err := societyapi.NewAuthorizedClient(c, "t").GetLoan(context.Background(), "l/9")
	assert.ErrorIs(t, err, societyapi.ErrNotFound)
}

func TestGetMemberAtRoot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"id": 42, "firstName": "Ada", "lastName": "Obi"}`)
	})

	member, err := societyapi.NewAuthorizedClient(c, "t").GetMember(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", member.Key())
	assert.Equal(t, "Ada Obi", member.FullName())
}

func TestUpdateBankDocumentStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/bank-documents/d1/status", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req societyapi.UpdateBankDocumentStatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "approved", req.Status)
		assert.Equal(t, "matches statement", req.Note)

		fmt.Fprintln(w, `{"success": true, "data": {"document": {"_id": "d1", "status": "approved"}}}`)
	})

	doc, err := societyapi.NewAuthorizedClient(c, "t").UpdateBankDocumentStatus(context.Background(), "d1", "approved", "matches statement")
	require.NoError(t, err)
	assert.Equal(t, "approved", doc.Status)
}

func TestRetryRateLimitFailThenSucceed(t *testing.T) {
	attemptCount := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attemptCount == 0 {
			attemptCount += 1
			w.Header().Set("Retry-After", "0.005")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintln(w, `[{"_id": "m1"}]`)
	})

	members, err := societyapi.NewAuthorizedClient(c, "t").GetMembers(context.Background())
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRetryRateLimitAlwaysFail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0.005")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := societyapi.NewAuthorizedClient(c, "t").GetMembers(context.Background())
	assert.ErrorIs(t, err, societyapi.ErrTooManyRetries)
}

func TestRetryGivesUpWithoutWaitingAfterLastAttempt(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		last := attempts >= 3
		mu.Unlock()

		if last {
			w.Header().Set("Retry-After", "30")
		} else {
			w.Header().Set("Retry-After", "0.005")
		}
		w.WriteHeader(http.StatusTooManyRequests)
	})

	start := time.Now()
	_, err := societyapi.NewAuthorizedClient(c, "t").GetMembers(context.Background())

	assert.ErrorIs(t, err, societyapi.ErrTooManyRetries)
	assert.Less(t, time.Since(start), 5*time.Second)
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestRetryHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := societyapi.NewAuthorizedClient(c, "t").GetMembers(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSetBaseURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/members", r.URL.Path)
		fmt.Fprintln(w, `{"success": true, "data": [{"id": 7, "name": "Jane Doe"}]}`)
	}))
	defer ts.Close()

	c, err := societyapi.NewClient("http://unused.invalid/")
	require.NoError(t, err)
	assert.Equal(t, "http://unused.invalid", c.BaseURL())

	c.SetBaseURL(ts.URL + "/")
	assert.Equal(t, ts.URL, c.BaseURL())

	members, err := societyapi.NewAuthorizedClient(c, "t").GetMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "7", members[0].Key())
}
