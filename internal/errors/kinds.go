package errors

// KindInfo contains metadata about an error kind.
type KindInfo struct {
	Kind            Kind
	Retryable       bool
	Description     string
	SuggestedAction string
}

// KindRegistry maps error kinds to their metadata. All pipeline operations are
// local and deterministic, so nothing is retryable yet.
var KindRegistry = map[Kind]KindInfo{
	KindAudioDecode: {
		Kind:            KindAudioDecode,
		Retryable:       false,
		Description:     "Audio file or time range could not be decoded",
		SuggestedAction: "Check the file plays with ffmpeg and that segment times fall inside the audio",
	},
	KindFeatureExtraction: {
		Kind:            KindFeatureExtraction,
		Retryable:       false,
		Description:     "Acoustic features could not be computed for a segment",
		SuggestedAction: "Inspect the reported segment; empty or zero-length segments cannot be analysed",
	},
	KindClusterConfig: {
		Kind:            KindClusterConfig,
		Retryable:       false,
		Description:     "Requested speaker count is not positive or exceeds the segment count",
		SuggestedAction: "Pass --speakers between 1 and the number of segments",
	},
	KindSerialization: {
		Kind:            KindSerialization,
		Retryable:       false,
		Description:     "Result document could not be written",
		SuggestedAction: "Check permissions and free space in the output directory",
	},
	KindInvalidInput: {
		Kind:            KindInvalidInput,
		Retryable:       false,
		Description:     "Segments document is malformed",
		SuggestedAction: "Validate the segments file: each segment needs start <= end and text",
	},
}

// IsRetryable reports whether err is worth retrying at a higher level.
func IsRetryable(err error) bool {
	if info, ok := KindRegistry[KindOf(err)]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for kind.
func GetSuggestedAction(kind Kind) string {
	if info, ok := KindRegistry[kind]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug and check the logs"
}

// GetDescription returns the human-readable description for kind.
func GetDescription(kind Kind) string {
	if info, ok := KindRegistry[kind]; ok {
		return info.Description
	}
	return "Unknown error"
}
