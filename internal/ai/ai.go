package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wgunawan/hiradc/internal/domain"
)

// Provider defines the interface for AI-powered hazard analysis and the
// follow-up grounded-query and image-edit capabilities.
type Provider interface {
	// AnalyzeHazards analyzes a task description (and optional work-area
	// photo) for K3 hazards and returns the structured risk assessment.
	// An empty hazard list is a valid, non-error outcome.
	AnalyzeHazards(ctx context.Context, params AnalyzeParams) (*domain.Analysis, error)

	// GroundedQuery answers a free-text question using live web retrieval,
	// adding maps retrieval (biased by location when available) for
	// location-sensitive prompts.
	GroundedQuery(ctx context.Context, params QueryParams) (*domain.GroundingResult, error)

	// EditImage applies a textual edit instruction to a source image and
	// returns the edited image bytes. Returns EAINoImage when the model
	// answered without producing an image.
	EditImage(ctx context.Context, params EditParams) (*EditedImage, error)
}

// AnalyzeParams contains parameters for hazard analysis of one task.
type AnalyzeParams struct {
	TaskDescription string            // Required: what the worker is doing
	Image           *domain.ImageData // Optional: decoded work-area photo
}

// QueryParams contains parameters for a grounded query.
type QueryParams struct {
	Prompt   string           // Required: the question text
	Location *domain.Location // Optional: coordinate bias for maps retrieval
}

// EditParams contains parameters for an image edit.
type EditParams struct {
	Image       domain.ImageData // Required: decoded source image
	Instruction string           // Required: the edit to apply
}

// EditedImage is the raw result of an image edit, carrying the media type
// the model reported for the returned bytes.
type EditedImage struct {
	MediaType string
	Data      []byte
}

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIMalformedOutput indicates the call succeeded but the response did
	// not match the required structured shape
	EAIMalformedOutput = errors.New("ai response did not match the expected structure")

	// EAINoImage indicates an image edit call succeeded transport-wise but
	// the response contained no inline image
	EAINoImage = errors.New("ai model produced no image")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
