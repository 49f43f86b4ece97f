// Package mock provides a deterministic in-process engine for testing.
package mock

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/iris-batch/internal/engine"
)

// MockEngine implements engine.Engine and engine.Session.
//
// Templates are the SHA-256 of the image content, so identical images yield
// identical templates; scores are a pure function of the two templates.
type MockEngine struct {
	mu            sync.RWMutex
	failPaths     map[string]string // image path -> engine status
	deniedLicense map[string]bool
	obtained      bool
	session       engine.SessionConfig

	createCalls atomic.Int64
	verifyCalls atomic.Int64

	// Error injection
	VerifyError  error
	ReleaseError error
}

var (
	_ engine.Engine  = (*MockEngine)(nil)
	_ engine.Session = (*MockEngine)(nil)
)

// NewMockEngine creates a new mock engine
func NewMockEngine() *MockEngine {
	return &MockEngine{
		failPaths:     make(map[string]string),
		deniedLicense: make(map[string]bool),
	}
}

// FailTemplate makes CreateTemplate report status for imagePath.
func (m *MockEngine) FailTemplate(imagePath, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPaths[imagePath] = status
}

// DenyLicense makes Obtain fail for license.
func (m *MockEngine) DenyLicense(license string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deniedLicense[license] = true
}

// CreateTemplate hashes the image content.
func (m *MockEngine) CreateTemplate(ctx context.Context, imagePath string) ([]byte, error) {
	m.createCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	status, fail := m.failPaths[imagePath]
	m.mu.RUnlock()
	if fail {
		return nil, &engine.StatusError{Op: "create template", Status: status}
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// Verify returns Score(probe, gallery).
func (m *MockEngine) Verify(ctx context.Context, probe, gallery []byte) (float64, error) {
	m.verifyCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.VerifyError != nil {
		return 0, m.VerifyError
	}
	if len(probe) == 0 || len(gallery) == 0 {
		return 0, errors.New("empty template")
	}
	return Score(probe, gallery), nil
}

// Score is the deterministic comparison used by Verify: the percentage of
// equal bytes at equal offsets. Identical templates score 100.
func Score(a, b []byte) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	equal := 0
	for i := range n {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal*100) / float64(n)
}

// Obtain grants every license not denied.
func (m *MockEngine) Obtain(ctx context.Context, cfg engine.SessionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []string
	for _, l := range cfg.Licenses {
		if m.deniedLicense[l] {
			failed = append(failed, l)
		}
	}
	if len(failed) > 0 {
		return &engine.LicenseError{Failed: failed}
	}
	m.obtained = true
	m.session = cfg
	return nil
}

// Release drops the session.
func (m *MockEngine) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obtained = false
	return m.ReleaseError
}

// Obtained reports whether a session is held.
func (m *MockEngine) Obtained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.obtained
}

// Session returns the last configuration passed to Obtain.
func (m *MockEngine) Session() engine.SessionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// CreateCalls returns the number of CreateTemplate calls.
func (m *MockEngine) CreateCalls() int {
	return int(m.createCalls.Load())
}

// VerifyCalls returns the number of Verify calls.
func (m *MockEngine) VerifyCalls() int {
	return int(m.verifyCalls.Load())
}
