// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/licentry/internal/models"
)

// MockBackend is a test double for [services.Backend].
//
// Nil funcs fall back to a fixed token pair, a stream that completes immediately, and a healthy backend.
type MockBackend struct {
	FetchFunc  func(ctx context.Context) (models.TokenPair, error)
	SubmitFunc func(ctx context.Context, entry models.LicenseEntry, tokens models.TokenPair) (io.ReadCloser, error)
	HealthFunc func(ctx context.Context) error

	mu        sync.Mutex
	fetches   int
	submitted []models.LicenseEntry
}

// MockTokens is the pair [MockBackend] issues by default.
var MockTokens = models.TokenPair{PrimaryToken: "pdc-test", SecondaryToken: "crm-test"}

func (m *MockBackend) FetchTokens(ctx context.Context) (models.TokenPair, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return MockTokens, nil
}

func (m *MockBackend) CreateLicenceEntry(ctx context.Context, entry models.LicenseEntry, tokens models.TokenPair) (io.ReadCloser, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, entry)
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, entry, tokens)
	}
	return StreamBody(CompleteFrame("1")), nil
}

func (m *MockBackend) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Fetches returns how many times FetchTokens was called.
func (m *MockBackend) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// Submitted returns the entries passed to CreateLicenceEntry, in call order.
func (m *MockBackend) Submitted() []models.LicenseEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LicenseEntry(nil), m.submitted...)
}

// StreamBody joins frames into a progress stream body.
func StreamBody(frames ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(frames, "")))
}

// Frame renders a progress frame the way the backend does, with single quotes and a trailing blank line.
func Frame(progress int, step, message string) string {
	return fmt.Sprintf("data: {'progress': %d, 'step': '%s', 'message': '%s'}\n\n", progress, step, message)
}

// CompleteFrame renders the terminal success frame for userID.
func CompleteFrame(userID string) string {
	return fmt.Sprintf("data: {'progress': 100, 'step': 'complete', 'message': 'Process completed successfully!', 'userId': '%s'}\n\n", userID)
}

// ErrorFrame renders the terminal failure frame.
func ErrorFrame(message string) string {
	return Frame(0, "error", message)
}

// ValidEntry returns an entry that passes validation.
func ValidEntry() models.LicenseEntry {
	return models.LicenseEntry{
		Username:  "jdoe",
		BirthDate: "04/12/1980",
		Email:     "jdoe@example.com",
		Phone:     "5551234567",
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
