package societyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxAttempts  = 3
	maxRetryWait = time.Minute
)

type Client struct {
	httpClient http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(baseURL string) (Client, error) {
	transport := &http.Transport{}

	envProxy := os.Getenv("HTTP_PROXY")
	if envProxy != "" {
		proxy, err := url.Parse(envProxy)
		if err != nil {
			return Client{}, fmt.Errorf("unable to parse HTTP_PROXY as a url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return Client{
		httpClient: http.Client{
			Transport: transport,
			Timeout:   time.Second * 10,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  zap.NewNop(),
	}, nil
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) SetLogger(logger *zap.Logger) {
	c.logger = logger
}

func (c Client) BaseURL() string {
	return c.baseURL
}

// executeRequest performs the request and returns the raw body once the envelope has been
// checked. Rate limited requests are retried after the Retry-After delay.
func executeRequest(ctx context.Context, client Client, method string, path string, token string, body []byte) ([]byte, error) {
	for attemptCount := 1; ; attemptCount++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		request, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("unable to create a new request with context: %w", err)
		}

		request.Header.Set("Accept", "application/json")
		if body != nil {
			request.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			request.Header.Set("Authorization", "Bearer "+token)
		}

		response, err := client.httpClient.Do(request)
		if err != nil {
			return nil, fmt.Errorf("unable to execute http request: %w", err)
		}

		responseBody, err := io.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("unable to read response body: %w", err)
		}

		if response.StatusCode == http.StatusTooManyRequests {
			if attemptCount >= maxAttempts {
				return nil, ErrTooManyRetries
			}

			waitTime := retryAfter(response.Header.Get("Retry-After"))
			client.logger.Warn("rate limited by backend",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("wait", waitTime),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
			continue
		}

		envelope, decodeErr := decodeEnvelope(responseBody)

		if response.StatusCode >= 200 && response.StatusCode < 300 {
			if decodeErr != nil {
				client.logger.Debug("undecodable backend response", zap.String("path", path), zap.Error(decodeErr))
				return nil, ErrUnableToDecodeResponse
			}
			if envelope.Failed() {
				return nil, &APIError{StatusCode: response.StatusCode, Message: messageOrDefault(envelope.Message, "request failed")}
			}
			return responseBody, nil
		}

		message := http.StatusText(response.StatusCode)
		if decodeErr == nil {
			message = messageOrDefault(envelope.Message, message)
		}

		return nil, &APIError{StatusCode: response.StatusCode, Message: message}
	}
}

// retryAfter reads a Retry-After header given in seconds. Missing or garbled values wait
// one second; anything past maxRetryWait is capped.
func retryAfter(header string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 {
		return time.Second
	}
	if seconds >= maxRetryWait.Seconds() {
		return maxRetryWait
	}
	return time.Duration(seconds * float64(time.Second))
}

func messageOrDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

// Login exchanges admin credentials for a bearer token.
func (c Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	requestJson, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return LoginResult{}, fmt.Errorf("unable to marshal login request: %w", err)
	}

	body, err := executeRequest(ctx, c, http.MethodPost, "/auth/login", "", requestJson)
	if err != nil {
		return LoginResult{}, fmt.Errorf("unable to log in as \"%s\": %w", username, err)
	}

	token := extractString(body,
		[]string{"data", "token"},
		[]string{"data", "data", "token"},
		[]string{"token"},
		[]string{"data", "accessToken"},
		[]string{"accessToken"},
	)
	if token == "" {
		return LoginResult{}, fmt.Errorf("%w: login response did not include a token", ErrUnableToDecodeResponse)
	}

	user, _, err := DecodeObject[User](body, "user")
	if err != nil {
		return LoginResult{}, fmt.Errorf("unable to decode login user: %w", err)
	}
	if user.Username == "" {
		user.Username = username
	}

	return LoginResult{Token: token, User: user}, nil
}

func extractString(body []byte, paths ...[]string) string {
	for _, path := range paths {
		raw, ok := lookup(bytes.TrimSpace(body), path...)
		if !ok {
			continue
		}

		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

type AuthorizedClient struct {
	client Client
	token  string
}

func NewAuthorizedClient(client Client, token string) AuthorizedClient {
	return AuthorizedClient{
		client: client,
		token:  token,
	}
}

func (ac AuthorizedClient) Token() string {
	return ac.token
}

func (ac AuthorizedClient) get(ctx context.Context, path string) ([]byte, error) {
	return executeRequest(ctx, ac.client, http.MethodGet, path, ac.token, nil)
}

// ////////////////////////////////////////////
// /// LOANS
// ////////////////////////////////////////////

func (ac AuthorizedClient) GetLoans(ctx context.Context) ([]Loan, error) {
	body, err := ac.get(ctx, "/loans")
	if err != nil {
		return nil, fmt.Errorf("unable to get loans: %w", err)
	}

	loans, err := DecodeList[Loan](body, "loans")
	if err != nil {
		return nil, fmt.Errorf("unable to decode loans: %w", err)
	}

	return loans, nil
}

func (ac AuthorizedClient) GetLoan(ctx context.Context, loanId string) (Loan, error) {
	body, err := ac.get(ctx, "/loans/"+url.PathEscape(loanId))
	if err != nil {
		return Loan{}, fmt.Errorf("unable to get loan \"%s\": %w", loanId, err)
	}

	loan, found, err := DecodeObject[Loan](body, "loan")
	if err != nil {
		return Loan{}, fmt.Errorf("unable to decode loan \"%s\": %w", loanId, err)
	}
	if !found || loan.Key() == "" {
		return Loan{}, fmt.Errorf("unable to get loan \"%s\": %w", loanId, ErrNotFound)
	}

	return loan, nil
}

// ////////////////////////////////////////////
// /// RECEIPTS
// ////////////////////////////////////////////

func (ac AuthorizedClient) GetReceipts(ctx context.Context) ([]Receipt, error) {
	body, err := ac.get(ctx, "/receipts")
	if err != nil {
		return nil, fmt.Errorf("unable to get receipts: %w", err)
	}

	receipts, err := DecodeList[Receipt](body, "receipts")
	if err != nil {
		return nil, fmt.Errorf("unable to decode receipts: %w", err)
	}

	return receipts, nil
}

// ////////////////////////////////////////////
// /// CD PENALTIES
// ////////////////////////////////////////////

func (ac AuthorizedClient) GetPenalties(ctx context.Context) ([]Penalty, error) {
	body, err := ac.get(ctx, "/cd-penalties")
	if err != nil {
		return nil, fmt.Errorf("unable to get cd penalties: %w", err)
	}

	penalties, err := DecodeList[Penalty](body, "penalties", "cdPenalties")
	if err != nil {
		return nil, fmt.Errorf("unable to decode cd penalties: %w", err)
	}

	return penalties, nil
}

// ////////////////////////////////////////////
// /// BANK DOCUMENTS
// ////////////////////////////////////////////

func (ac AuthorizedClient) GetBankDocuments(ctx context.Context) ([]BankDocument, error) {
	body, err := ac.get(ctx, "/bank-documents")
	if err != nil {
		return nil, fmt.Errorf("unable to get bank documents: %w", err)
	}

	documents, err := DecodeList[BankDocument](body, "documents", "bankDocuments")
	if err != nil {
		return nil, fmt.Errorf("unable to decode bank documents: %w", err)
	}

	return documents, nil
}

func (ac AuthorizedClient) UpdateBankDocumentStatus(ctx context.Context, documentId, status, note string) (BankDocument, error) {
	request := UpdateBankDocumentStatusRequest{
		Status: status,
		Note:   note,
	}
	requestJson, err := json.Marshal(request)
	if err != nil {
		return BankDocument{}, fmt.Errorf("unable to marshal bank document status request: %w", err)
	}

	body, err := executeRequest(ctx, ac.client, http.MethodPatch, "/bank-documents/"+url.PathEscape(documentId)+"/status", ac.token, requestJson)
	if err != nil {
		return BankDocument{}, fmt.Errorf("unable to set bank document \"%s\" to \"%s\": %w", documentId, status, err)
	}

	document, _, err := DecodeObject[BankDocument](body, "document", "bankDocument")
	if err != nil {
		return BankDocument{}, fmt.Errorf("unable to decode bank document \"%s\": %w", documentId, err)
	}

	return document, nil
}

// ////////////////////////////////////////////
// /// MEMBERS
// ////////////////////////////////////////////

func (ac AuthorizedClient) GetMembers(ctx context.Context) ([]Member, error) {
	body, err := ac.get(ctx, "/members")
	if err != nil {
		return nil, fmt.Errorf("unable to get members: %w", err)
	}

	members, err := DecodeList[Member](body, "members")
	if err != nil {
		return nil, fmt.Errorf("unable to decode members: %w", err)
	}

	return members, nil
}

func (ac AuthorizedClient) GetMember(ctx context.Context, memberId string) (Member, error) {
	body, err := ac.get(ctx, "/members/"+url.PathEscape(memberId))
	if err != nil {
		return Member{}, fmt.Errorf("unable to get member \"%s\": %w", memberId, err)
	}

	member, found, err := DecodeObject[Member](body, "member")
	if err != nil {
		return Member{}, fmt.Errorf("unable to decode member \"%s\": %w", memberId, err)
	}
	if !found || member.Key() == "" {
		return Member{}, fmt.Errorf("unable to get member \"%s\": %w", memberId, ErrNotFound)
	}

	return member, nil
}

// ////////////////////////////////////////////
// /// REVENUE
// ////////////////////////////////////////////

func (ac AuthorizedClient) GetRevenueSummary(ctx context.Context) (RevenueSummary, error) {
	body, err := ac.get(ctx, "/revenue/summary")
	if err != nil {
		return RevenueSummary{}, fmt.Errorf("unable to get revenue summary: %w", err)
	}

	summary, _, err := DecodeObject[RevenueSummary](body, "summary", "revenue")
	if err != nil {
		return RevenueSummary{}, fmt.Errorf("unable to decode revenue summary: %w", err)
	}

	return summary, nil
}
