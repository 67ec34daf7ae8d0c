package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
	tu "github.com/desertthunder/licentry/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			if srv.BaseURL() != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.BaseURL())
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != DefaultBaseURL {
				t.Errorf("expected default baseURL %q, got %s", DefaultBaseURL, srv.baseURL)
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected response to be JSON")
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			_, err := NewAPIService("http://example.com", nil).Get(context.Background(), "/test\x00invalid")
			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})
	})

	t.Run("FetchTokens", func(t *testing.T) {
		t.Run("Current Field Names", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/get-token" {
					t.Errorf("expected path '/get-token', got %s", r.URL.Path)
				}
				w.Write([]byte(`{"primaryToken": "p-1", "secondaryToken": "s-1"}`))
			}))
			defer server.Close()

			pair, err := NewAPIService(server.URL, nil).FetchTokens(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pair != (models.TokenPair{PrimaryToken: "p-1", SecondaryToken: "s-1"}) {
				t.Errorf("unexpected pair %+v", pair)
			}
		})

		t.Run("Legacy Field Names", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"pdcToken": "pdc", "crmToken": "crm"}`))
			}))
			defer server.Close()

			pair, err := NewAPIService(server.URL, nil).FetchTokens(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pair.PrimaryToken != "pdc" || pair.SecondaryToken != "crm" {
				t.Errorf("unexpected pair %+v", pair)
			}
		})

		tests := []struct {
			name    string
			status  int
			body    string
			message string
		}{
			{"Non-200 Status", http.StatusInternalServerError, `{"detail": "boom"}`, "status 500"},
			{"Created Is Not OK", http.StatusCreated, `{"primaryToken": "a", "secondaryToken": "b"}`, "status 201"},
			{"Malformed Body", http.StatusOK, `not json`, "malformed token response"},
			{"Missing Token", http.StatusOK, `{"primaryToken": "a"}`, "missing a token"},
			{"Empty Object", http.StatusOK, `{}`, "missing a token"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}))
				defer server.Close()

				_, err := NewAPIService(server.URL, nil).FetchTokens(context.Background())

				var tae *shared.TokenAcquisitionError
				if !errors.As(err, &tae) {
					t.Fatalf("expected TokenAcquisitionError, got %v", err)
				}
				if !strings.Contains(tae.Message, tt.message) {
					t.Errorf("expected message containing %q, got %q", tt.message, tae.Message)
				}
				if shared.ExitCode(err) != shared.ExitTokenAcquisition {
					t.Errorf("expected exit code %d, got %d", shared.ExitTokenAcquisition, shared.ExitCode(err))
				}
			})
		}

		t.Run("Transport Failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}

			_, err := NewAPIService("http://example.com", client).FetchTokens(context.Background())
			if !errors.Is(err, shared.ErrTokenAcquisition) {
				t.Errorf("expected ErrTokenAcquisition, got %v", err)
			}
		})
	})

	t.Run("CreateLicenceEntry", func(t *testing.T) {
		entry := tu.ValidEntry()
		tokens := models.TokenPair{PrimaryToken: "pdc", SecondaryToken: "crm"}

		t.Run("Sends Entry And Tokens", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.URL.Path != "/create-licence-entry" {
					t.Errorf("expected path '/create-licence-entry', got %s", r.URL.Path)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected JSON content type, got %s", r.Header.Get("Content-Type"))
				}
				if r.Header.Get(RequestIDHeader) == "" {
					t.Error("expected request id header")
				}

				var body map[string]string
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				want := map[string]string{
					"username":       "jdoe",
					"birth_date":     "04/12/1980",
					"email":          "jdoe@example.com",
					"phone":          "5551234567",
					"primaryToken":   "pdc",
					"secondaryToken": "crm",
				}
				for k, v := range want {
					if body[k] != v {
						t.Errorf("expected %s=%q, got %q", k, v, body[k])
					}
				}
				if len(body) != len(want) {
					t.Errorf("expected %d fields, got %d: %v", len(want), len(body), body)
				}

				w.Header().Set("Content-Type", "text/event-stream")
				w.Write([]byte(tu.Frame(5, "start", "Starting")))
				w.Write([]byte(tu.CompleteFrame("77")))
			}))
			defer server.Close()

			body, err := NewAPIService(server.URL, nil).CreateLicenceEntry(context.Background(), entry, tokens)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer body.Close()

			data, err := io.ReadAll(body)
			if err != nil {
				t.Fatalf("failed to read stream: %v", err)
			}
			if !strings.Contains(string(data), "'userId': '77'") {
				t.Errorf("expected raw stream to be returned, got %q", data)
			}
		})

		t.Run("Non-2xx Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(strings.Repeat("x", 2000)))
			}))
			defer server.Close()

			body, err := NewAPIService(server.URL, nil).CreateLicenceEntry(context.Background(), entry, tokens)
			if body != nil {
				t.Error("expected no body on failure")
			}

			var rse *shared.RequestSubmissionError
			if !errors.As(err, &rse) {
				t.Fatalf("expected RequestSubmissionError, got %v", err)
			}
			if rse.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("expected status 422, got %d", rse.StatusCode)
			}
			if len(rse.Body) > maxErrorBody+3 {
				t.Errorf("expected truncated body, got %d bytes", len(rse.Body))
			}
			if shared.ExitCode(err) != shared.ExitRequestSubmission {
				t.Errorf("expected exit code %d, got %d", shared.ExitRequestSubmission, shared.ExitCode(err))
			}
		})

		t.Run("Transport Failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}

			_, err := NewAPIService("http://example.com", client).CreateLicenceEntry(context.Background(), entry, tokens)
			if !errors.Is(err, shared.ErrRequestSubmission) {
				t.Errorf("expected ErrRequestSubmission, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := NewAPIService(server.URL, nil).CreateLicenceEntry(ctx, entry, tokens)
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	})

	t.Run("Health", func(t *testing.T) {
		t.Run("Reachable", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Hello": "World"}`))
			}))
			defer server.Close()

			if err := NewAPIService(server.URL, nil).Health(context.Background()); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("Server Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			err := NewAPIService(server.URL, nil).Health(context.Background())
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})

		t.Run("Unreachable", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("no route to host"))}

			err := NewAPIService("http://example.com", client).Health(context.Background())
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})
}

func TestNewHTTPClient(t *testing.T) {
	if c := NewHTTPClient(0); c.Timeout != 0 {
		t.Errorf("expected no timeout, got %v", c.Timeout)
	}
}
