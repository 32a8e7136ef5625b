// Package analysis turns a motion trigger into a natural-language event
// description, cascading through analysis modes and AI providers until
// one succeeds.
package analysis

import (
	"context"

	"github.com/your-org/homewatch/internal/models"
)

// Usage is the token accounting a provider reports for one call.
// Reported is false when the vendor response carried no usage block.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Reported         bool
}

// Description is a successful provider response.
type Description struct {
	Text       string
	Objects    []string
	Confidence float32
	Usage      Usage
}

// Provider is one AI vision vendor client. Each declares which analysis
// modes it can serve; the orchestrator only calls supported modes.
type Provider interface {
	Name() string
	Supports(mode models.AnalysisMode) bool

	// DescribeImage analyses a single JPEG snapshot.
	DescribeImage(ctx context.Context, image []byte) (Description, error)
	// DescribeImages analyses an ordered frame sequence.
	DescribeImages(ctx context.Context, images [][]byte) (Description, error)
	// DescribeVideo analyses a native video clip.
	DescribeVideo(ctx context.Context, video []byte, mimeType string) (Description, error)

	// MaxImages bounds the frame count per DescribeImages call.
	MaxImages() int
	// TokensPerImage is the vendor's per-image token constant, used when
	// usage must be estimated.
	TokensPerImage() int
	// Rates returns the per-1K-token input and output prices in dollars.
	Rates() (input, output float64)
}
