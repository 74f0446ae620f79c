// Package security validates untrusted capture references before they
// touch the filesystem and audit-logs every open attempt.
package security

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/logging"
)

// maxCaptureRefLen bounds reference length; anything longer is hostile
// or a mistake.
const maxCaptureRefLen = 512

// ValidateCaptureRef rejects capture references that could escape the
// dump directory. References must stay relative and local.
func ValidateCaptureRef(ref string) error {
	if ref == "" {
		return errors.NewValidationError("security.ValidateCaptureRef",
			"capture reference is empty")
	}
	if len(ref) > maxCaptureRefLen {
		return errors.NewValidationError("security.ValidateCaptureRef",
			"capture reference too long").WithContext("length", len(ref))
	}
	if strings.ContainsRune(ref, 0) {
		return errors.NewValidationError("security.ValidateCaptureRef",
			"capture reference contains NUL")
	}
	if !filepath.IsLocal(ref) {
		return errors.NewValidationError("security.ValidateCaptureRef",
			"capture reference escapes the dump directory").
			WithContext("ref", ref)
	}
	return nil
}

// ResolveCaptureRef validates a reference and resolves it under root.
func ResolveCaptureRef(root, ref string) (string, error) {
	if err := ValidateCaptureRef(ref); err != nil {
		return "", err
	}
	return filepath.Join(root, ref), nil
}

// AuditLogger records every capture open attempt, allowed or not.
type AuditLogger struct {
	logger *logging.StructuredLogger
}

// NewAuditLogger builds an audit logger on the shared structured logger.
func NewAuditLogger(logger *logging.StructuredLogger) *AuditLogger {
	if logger == nil {
		logger = logging.DiscardLogger()
	}
	return &AuditLogger{logger: logger.WithComponent("audit")}
}

// CaptureOpened records a successful open.
func (a *AuditLogger) CaptureOpened(ctx context.Context, ref, path string, elapsed time.Duration) {
	a.logger.Info(ctx, "capture opened", map[string]any{
		"capture": ref,
		"path":    path,
		"elapsed": elapsed.String(),
		"allowed": true,
	})
}

// CaptureRejected records a refused or failed open.
func (a *AuditLogger) CaptureRejected(ctx context.Context, ref string, reason error) {
	a.logger.Warn(ctx, "capture open rejected", map[string]any{
		"capture": ref,
		"reason":  reason.Error(),
		"allowed": false,
	})
}
