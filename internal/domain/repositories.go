package domain

import "context"

// Backend is the external reading service: extraction, synthesis,
// translation, summarization, accounts and payments.
type Backend interface {
	// Upload sends a local file for text extraction
	Upload(ctx context.Context, path string) (string, error)

	// Synthesize converts text to audio plus timing marks
	Synthesize(ctx context.Context, req SynthesisRequest) (*Synthesis, error)

	// Voices lists the available synthesis voices
	Voices(ctx context.Context) ([]Voice, error)

	// Translate returns text translated into the target language code
	Translate(ctx context.Context, text, targetLang string) (string, error)

	// Summarize returns a summary of roughly sentences sentences
	Summarize(ctx context.Context, text string, sentences int) (string, error)

	// SyncUser registers the user and returns the stored plan
	SyncUser(ctx context.Context, user User) (Plan, error)

	// CreateSubscription starts a subscription for a provider plan ID
	CreateSubscription(ctx context.Context, planID string) (*Subscription, error)

	// VerifySubscription confirms a completed payment
	VerifySubscription(ctx context.Context, confirmation PaymentConfirmation) error
}
