package domain

import "context"

type recordingDisabledKey struct{}

// WithoutRecording marks ctx so that statements executed with it are not
// captured by the query recorder. The panel's own re-execution endpoints use
// it so that replaying a query never lands in a request scope.
func WithoutRecording(ctx context.Context) context.Context {
	return context.WithValue(ctx, recordingDisabledKey{}, true)
}

// RecordingDisabled reports whether ctx was marked with WithoutRecording.
func RecordingDisabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(recordingDisabledKey{}).(bool)
	return disabled
}
