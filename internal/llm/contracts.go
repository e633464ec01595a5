package llm

import "context"

// VisionClient is the behavior the pipeline depends on: send one prompt plus
// zero or more images (as data URLs) to a vision model and get text back.
type VisionClient interface {
	// Configured reports whether an API key is present. Unconfigured clients
	// must fail CompleteVision with a configuration error.
	Configured() bool
	CompleteVision(ctx context.Context, prompt string, imageDataURLs []string) (string, error)
}
