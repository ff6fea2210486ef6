package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/models"
)

// DefaultTimeout bounds a single executor invocation.
const DefaultTimeout = 2 * time.Minute

// Bridge delegates write operations to an external executor process. The
// handoff medium is the filesystem: the executor takes an endpoint, a
// credential file path and a descriptor file path as positional arguments.
type Bridge struct {
	// ExecutorPath is the path to the write-capable executor binary.
	ExecutorPath string
	// Timeout is the hard wall-clock bound per invocation.
	Timeout time.Duration
}

func New(executorPath string, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		ExecutorPath: executorPath,
		Timeout:      timeout,
	}
}

// Execute runs one delegated operation. The descriptor is validated before
// any process is spawned; the temporary credential and descriptor files are
// removed on every exit path, since the credential file holds a live bearer
// token.
func (b *Bridge) Execute(
	ctx context.Context,
	desc *models.OperationDescriptor,
	cred models.Credential,
	endpoint string,
) (*models.BridgeResult, error) {

	if desc == nil {
		return nil, models.NewError(models.ErrInvalidOperation, "operation descriptor is required")
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if len(endpoint) == 0 {
		return nil, models.NewError(models.ErrInvalidOperation, "endpoint is required")
	}
	if len(b.ExecutorPath) == 0 {
		return nil, models.NewError(models.ErrBridgeFailure, "no executor configured")
	}

	invocation := uuid.New().String()[:8]

	tokenPath, err := writeTempFile("fabric-token-", cred.Token)
	if err != nil {
		return nil, models.NewError(models.ErrBridgeFailure, "failed to stage credential: %v", err)
	}

	payload, err := json.Marshal(desc)
	if err != nil {
		_ = os.Remove(tokenPath)
		return nil, models.NewError(models.ErrBridgeFailure, "failed to encode descriptor: %v", err)
	}

	descPath, err := writeTempFile("fabric-op-", string(payload))
	if err != nil {
		_ = os.Remove(tokenPath)
		return nil, models.NewError(models.ErrBridgeFailure, "failed to stage descriptor: %v", err)
	}

	cleanupOK := true
	defer func() {
		for _, path := range []string{tokenPath, descPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				cleanupOK = false
				logrus.WithError(err).WithField("path", path).
					Errorln("Failed to remove bridge temp file")
			}
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	logrus.WithFields(logrus.Fields{
		"invocation": invocation,
		"operation":  desc.Operation,
		"endpoint":   endpoint,
		"timeout":    b.Timeout,
	}).Debugln("Invoking executor")

	cmd := exec.CommandContext(runCtx, b.ExecutorPath, endpoint, tokenPath, descPath)
	output, runErr := cmd.CombinedOutput()

	result := &models.BridgeResult{
		Operation: desc.Operation,
		Output:    string(output),
	}

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	// Remove the temp files before classifying; the deferred pass then
	// only records that nothing was left behind.
	for _, path := range []string{tokenPath, descPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			cleanupOK = false
			logrus.WithError(err).WithField("path", path).
				Errorln("Failed to remove bridge temp file")
		}
	}
	result.CleanupOK = cleanupOK

	if timedOut {
		result.Status = models.BridgeTimedOut
		result.ExitCode = -1
		logrus.WithFields(logrus.Fields{
			"invocation": invocation,
			"operation":  desc.Operation,
		}).Errorln("Executor timed out and was terminated")
		return result, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Output = fmt.Sprintf("%s%v", result.Output, runErr)
		}
		result.Status = models.BridgeFailed
		return result, nil
	}

	result.ExitCode = 0
	result.Status = classify(desc, result.Output)

	logrus.WithFields(logrus.Fields{
		"invocation": invocation,
		"operation":  desc.Operation,
		"status":     result.Status,
	}).Debugln("Executor finished")

	return result, nil
}

// classify interprets a zero-exit invocation. Only recognized marker text
// counts as success; everything else is ambiguous and treated as failure by
// callers (fail-closed).
func classify(desc *models.OperationDescriptor, output string) models.BridgeStatus {
	if strings.Contains(output, markerSuccess) {
		return models.BridgeSuccess
	}

	if desc.IsDelete() {
		if strings.Contains(output, markerMeasureAbsent) ||
			strings.Contains(output, markerRelationshipAbsent) {
			return models.BridgeSuccess
		}
	}

	// An explicit error marker on a zero exit is a recognized failure, not
	// an ambiguous one.
	if strings.Contains(output, markerError) {
		return models.BridgeFailed
	}

	return models.BridgeAmbiguous
}

// ResultError converts a non-success result into the typed error callers
// propagate. The captured output travels verbatim as diagnostic detail.
func ResultError(result *models.BridgeResult) error {
	switch result.Status {
	case models.BridgeSuccess:
		return nil
	case models.BridgeTimedOut:
		return models.NewError(models.ErrBridgeTimeout,
			"%s did not complete in time (cleanup_ok=%t)", result.Operation, result.CleanupOK)
	case models.BridgeAmbiguous:
		return models.NewErrorWithDetail(models.ErrAmbiguousSuccess, result.Output,
			"%s exited cleanly without a recognized success marker", result.Operation)
	default:
		return models.NewErrorWithDetail(models.ErrBridgeFailure, result.Output,
			"%s failed with exit code %d (cleanup_ok=%t)", result.Operation, result.ExitCode, result.CleanupOK)
	}
}

func writeTempFile(prefix, content string) (string, error) {
	file, err := os.CreateTemp("", prefix)
	if err != nil {
		return "", err
	}

	// Owner-only before any content lands.
	if err := file.Chmod(0600); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}

	if _, err := file.WriteString(content); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}

	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}

	return file.Name(), nil
}
