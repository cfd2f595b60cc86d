package notes

import "fmt"

// FillerTranscript is the stand-in transcript for a meeting that was never attended.
func FillerTranscript(meetingTitle string) string {
	return fmt.Sprintf("Welcome to %s. Today's session covered important concepts and practical applications. "+
		"Key topics discussed include fundamental principles and advanced techniques. "+
		"Students should review the material and complete the assigned exercises. "+
		"Next class will build upon today's foundation.", meetingTitle)
}
