package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a classified pipeline error.
type ErrorCode string

const (
	ErrJoinFailed               ErrorCode = "join_failed"
	ErrLaunchFailed             ErrorCode = "launch_failed"
	ErrRecordingIncomplete      ErrorCode = "recording_incomplete"
	ErrTranscriptionUnavailable ErrorCode = "transcription_unavailable"
	ErrSynthesisUnavailable     ErrorCode = "synthesis_unavailable"
	ErrPersistence              ErrorCode = "persistence_error"
	ErrTimeout                  ErrorCode = "timeout"
	ErrContextCancelled         ErrorCode = "context_cancelled"
	ErrProcessingError          ErrorCode = "processing_error"
)

// Pipeline stage names.
const (
	StageLaunch     = "launch"
	StageJoin       = "join"
	StageRecord     = "record"
	StageTranscode  = "transcode"
	StageTranscribe = "transcribe"
	StageSynthesize = "synthesize"
	StagePersist    = "persist"
)

// PipelineError is a structured error for pipeline failures.
type PipelineError struct {
	Code      ErrorCode
	Stage     string
	MeetingID string
	Message   string
	Duration  time.Duration
	Timeout   time.Duration
	Cause     error
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.MeetingID != "" {
		fmt.Fprintf(&b, " [meeting %s]", e.MeetingID)
	}
	if e.Timeout > 0 && e.Duration > 0 {
		fmt.Fprintf(&b, ": %s timed out after %s (limit: %s)", e.Stage, e.Duration.Truncate(time.Second), e.Timeout.Truncate(time.Second))
		return b.String()
	}
	if e.Stage != "" {
		fmt.Fprintf(&b, ": %s", e.Stage)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// New builds a PipelineError for the given code and stage.
func New(code ErrorCode, stage string, cause error) *PipelineError {
	pe := &PipelineError{Code: code, Stage: stage, Cause: cause}
	if cause != nil {
		pe.Message = cause.Error()
	}
	return pe
}

// JoinFailed wraps a failure to enter the meeting.
func JoinFailed(cause error) *PipelineError {
	return New(ErrJoinFailed, StageJoin, cause)
}

// PersistenceFailed wraps a failure writing a Meeting or Note.
func PersistenceFailed(cause error) *PipelineError {
	return New(ErrPersistence, StagePersist, cause)
}

// WithMeeting returns the error annotated with a meeting id.
func (e *PipelineError) WithMeeting(id string) *PipelineError {
	e.MeetingID = id
	return e
}

// ClassifyError inspects an error and returns a *PipelineError with the appropriate code.
// Errors that are already PipelineErrors are returned unchanged.
func ClassifyError(err error, stage string) *PipelineError {
	if err == nil {
		return nil
	}

	var existing *PipelineError
	if errors.As(err, &existing) {
		return existing
	}

	pe := &PipelineError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		pe.Code = ErrTimeout
		pe.Message = "operation timed out"
		return pe
	}

	if errors.Is(err, context.Canceled) {
		pe.Code = ErrContextCancelled
		pe.Message = "operation cancelled"
		return pe
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	pe.Message = msg

	switch stage {
	case StageLaunch:
		pe.Code = ErrLaunchFailed
	case StageJoin:
		pe.Code = ErrJoinFailed
	case StageRecord, StageTranscode:
		pe.Code = ErrRecordingIncomplete
	case StageTranscribe:
		pe.Code = ErrTranscriptionUnavailable
	case StageSynthesize:
		pe.Code = ErrSynthesisUnavailable
	case StagePersist:
		pe.Code = ErrPersistence
	default:
		pe.Code = ErrProcessingError
	}

	if pe.Code == ErrProcessingError && (strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out")) {
		pe.Code = ErrTimeout
	}
	return pe
}

// CodeOf returns the pipeline error code for err, or "" when err is not a PipelineError.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// CodeFromReason recovers the code from a stored failure reason, which is
// the text of the PipelineError that failed the meeting. Reasons that do not
// start with a known code yield "".
func CodeFromReason(reason string) ErrorCode {
	end := strings.IndexAny(reason, " :")
	if end < 0 {
		end = len(reason)
	}
	code := ErrorCode(reason[:end])
	if _, ok := ErrorCodeRegistry[code]; !ok {
		return ""
	}
	return code
}

// IsJoinFailed returns true if the agent could not enter the meeting.
func IsJoinFailed(err error) bool {
	code := CodeOf(err)
	return code == ErrJoinFailed || code == ErrLaunchFailed
}

// IsErrorFatal reports whether err should move the meeting to failed.
// Errors that are not PipelineErrors are treated as fatal.
func IsErrorFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return IsFatal(pe.Code)
	}
	return true
}
