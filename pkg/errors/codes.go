package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code ErrorCode
	// Fatal codes end the capture attempt and mark the meeting failed.
	Fatal           bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrJoinFailed: {
		Code:            ErrJoinFailed,
		Fatal:           true,
		Description:     "Agent could not enter the meeting",
		SuggestedAction: "Check the join URL and lobby settings, then retry: notetaker attend <meeting-id>",
	},
	ErrLaunchFailed: {
		Code:            ErrLaunchFailed,
		Fatal:           true,
		Description:     "Browser agent failed to start",
		SuggestedAction: "Verify the playwright browsers are installed and the host has a display or runs headless",
	},
	ErrRecordingIncomplete: {
		Code:            ErrRecordingIncomplete,
		Description:     "Recording ended early; partial audio is used",
		SuggestedAction: "Check ffmpeg and the audio source configuration",
	},
	ErrTranscriptionUnavailable: {
		Code:            ErrTranscriptionUnavailable,
		Description:     "Speech-to-text service unavailable; placeholder transcript substituted",
		SuggestedAction: "Check the transcription API key and endpoint: notetaker credentials set openai",
	},
	ErrSynthesisUnavailable: {
		Code:            ErrSynthesisUnavailable,
		Description:     "Note generation service unavailable; heuristic notes substituted",
		SuggestedAction: "Check the AI API key and endpoint configuration",
	},
	ErrPersistence: {
		Code:            ErrPersistence,
		Fatal:           true,
		Description:     "Failed to write meeting or note to the store",
		SuggestedAction: "Check database connectivity, then run: notetaker sweep --stuck",
	},
	ErrTimeout: {
		Code:            ErrTimeout,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Check timeout configuration in ~/.notetaker/config.yaml",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Fatal:           true,
		Description:     "Operation cancelled by shutdown or caller",
		SuggestedAction: "Stuck meetings are reconciled by the next sweep",
	},
	ErrProcessingError: {
		Code:            ErrProcessingError,
		Fatal:           true,
		Description:     "Unclassified processing error",
		SuggestedAction: "Check logs with --debug for more details",
	},
}

// IsFatal returns true if the code ends the pipeline with the meeting failed.
// Unknown codes are fatal.
func IsFatal(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Fatal
	}
	return true
}

// GetSuggestedAction returns what an operator can do about code. The empty
// code has no suggestion.
func GetSuggestedAction(code ErrorCode) string {
	if code == "" {
		return ""
	}
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check logs with --debug for more details"
}
