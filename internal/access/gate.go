package access

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-homegate/internal/audit"
)

// ErrDoorUnavailable is returned when a correct code could not be turned
// into a door command.
var ErrDoorUnavailable = errors.New("access: door command failed")

// Reasons recorded alongside a Result.
const (
	ReasonGranted         = "granted"
	ReasonMismatch        = "mismatch"
	ReasonNoCode          = "no_code"
	ReasonEmptySubmission = "empty_submission"
	ReasonDoorUnavailable = "door_unavailable"
)

// CodeSource returns the current one-time code.
type CodeSource interface {
	OTP() (string, bool)
}

// DoorOpener drives the door open.
type DoorOpener interface {
	OpenDoor(ctx context.Context) error
}

// Recorder persists access attempts.
type Recorder interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Logger is the logging interface the gate writes to.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Gate. Codes and Door are required.
type Options struct {
	Codes CodeSource
	Door  DoorOpener

	// Audit, when set, receives every attempt.
	Audit Recorder

	// RequestID extracts a correlation ID for audit entries.
	RequestID func(ctx context.Context) string

	Logger Logger
}

// Result is the outcome of one verification.
type Result struct {
	Granted bool
	Reason  string
}

// Gate checks submitted codes against the most recent one-time code and
// opens the door on a match.
//
// A verified code stays valid until the device sends a new one, and nothing
// about the attempt is remembered beyond the optional audit entry.
type Gate struct {
	codes     CodeSource
	door      DoorOpener
	audit     Recorder
	requestID func(ctx context.Context) string
	logger    Logger
}

// New creates a Gate.
func New(opts Options) (*Gate, error) {
	if opts.Codes == nil {
		return nil, errors.New("access: code source is required")
	}
	if opts.Door == nil {
		return nil, errors.New("access: door opener is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Gate{
		codes:     opts.Codes,
		door:      opts.Door,
		audit:     opts.Audit,
		requestID: opts.RequestID,
		logger:    opts.Logger,
	}, nil
}

// Verify compares submitted with the current code. On a match it sends one
// door-open command. The error is non-nil only when that command fails.
func (g *Gate) Verify(ctx context.Context, submitted, source string) (Result, error) {
	submitted = strings.TrimSpace(submitted)
	stored, ok := g.codes.OTP()

	var res Result
	switch {
	case submitted == "":
		res = Result{Reason: ReasonEmptySubmission}
	case !ok:
		res = Result{Reason: ReasonNoCode}
	case subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) != 1:
		res = Result{Reason: ReasonMismatch}
	default:
		res = Result{Granted: true, Reason: ReasonGranted}
	}

	if !res.Granted {
		g.logger.Warn("access denied", "reason", res.Reason, "source", source)
		g.record(ctx, audit.OutcomeDenied, res.Reason, source)
		return res, nil
	}

	if err := g.door.OpenDoor(ctx); err != nil {
		g.logger.Error("access granted but door command failed", "source", source, "error", err)
		g.record(ctx, audit.OutcomeError, ReasonDoorUnavailable, source)
		return Result{Reason: ReasonDoorUnavailable}, fmt.Errorf("%w: %w", ErrDoorUnavailable, err)
	}

	g.logger.Info("access granted", "source", source)
	g.record(ctx, audit.OutcomeGranted, "", source)
	return res, nil
}

// record writes an audit entry. Failures are logged; they never change
// the verification result.
func (g *Gate) record(ctx context.Context, outcome audit.Outcome, reason, source string) {
	if g.audit == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	entry := &audit.Entry{Outcome: outcome, Reason: reason, Source: source}
	if g.requestID != nil {
		entry.RequestID = g.requestID(ctx)
	}
	if err := g.audit.Create(ctx, entry); err != nil {
		g.logger.Error("recording access attempt", "error", err)
	}
}
