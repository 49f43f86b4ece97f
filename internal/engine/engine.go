// Package engine defines the boundary to the external biometric engine.
//
// The pipeline only needs two capabilities: turning an image into an opaque
// template and comparing two templates. Licensing and engine configuration
// happen once per run through a Session before any capability is used.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Engine creates and compares iris templates.
type Engine interface {
	// CreateTemplate extracts a template from the image at imagePath.
	// A non-OK extraction is reported as *StatusError.
	CreateTemplate(ctx context.Context, imagePath string) ([]byte, error)
	// Verify compares two templates and returns the engine's score.
	Verify(ctx context.Context, probe, gallery []byte) (float64, error)
}

// Session acquires the licenses and configuration the engine needs.
type Session interface {
	Obtain(ctx context.Context, cfg SessionConfig) error
	Release(ctx context.Context) error
}

// SessionConfig is passed to the engine verbatim; thresholds are engine-side
// settings and are not interpreted by the pipeline.
type SessionConfig struct {
	Licenses          []string `json:"licenses"`
	TrialMode         bool     `json:"trial_mode"`
	MatchingThreshold int      `json:"matching_threshold"`
	LivenessThreshold int      `json:"liveness_threshold"`
}

// StatusOK is the engine status of a successful operation.
const StatusOK = "Ok"

// StatusError is a non-OK status reported by the engine.
type StatusError struct {
	Op      string
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: engine status %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: engine status %s: %s", e.Op, e.Status, e.Message)
}

// IsStatusError reports whether err is a non-OK engine status.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// LicenseError lists the licenses that could not be obtained.
type LicenseError struct {
	Failed []string
}

func (e *LicenseError) Error() string {
	return "failed to obtain licenses: " + strings.Join(e.Failed, ", ")
}
