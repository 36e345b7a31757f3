package backend

import "github.com/mmcdole/lector/internal/domain"

// healthResponse is returned by GET /
type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// uploadResponse is returned by POST /upload
type uploadResponse struct {
	Text string `json:"text"`
}

// ttsRequest is the body of POST /tts
type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Rate  string `json:"rate"`
	Pitch string `json:"pitch"`
}

// ttsMark is one sentence boundary as reported by the backend (seconds)
type ttsMark struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ttsResponse is returned by POST /tts
type ttsResponse struct {
	AudioURL string    `json:"audio_url"`
	Marks    []ttsMark `json:"marks"`
}

// translateRequest is the body of POST /translate
type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// summarizeRequest is the body of POST /summarize
type summarizeRequest struct {
	Text           string `json:"text"`
	SentencesCount int    `json:"sentences_count"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// userSyncRequest is the body of POST /auth/sync
type userSyncRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type userSyncResponse struct {
	Success bool   `json:"success"`
	Plan    string `json:"plan"`
	Error   string `json:"error"`
}

type createSubscriptionRequest struct {
	PlanID string `json:"plan_id"`
}

type createSubscriptionResponse struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscription_id"`
	KeyID          string `json:"key_id"`
	Error          string `json:"error"`
}

type verifySubscriptionRequest struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
	PlanName       string `json:"plan_name"`
	UserID         string `json:"user_id"`
}

type verifySubscriptionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// errorResponse is the body of a non-2xx backend reply
type errorResponse struct {
	Detail string `json:"detail"`
}

// mapMarks converts backend marks to domain marks, preserving order
func mapMarks(in []ttsMark) domain.Marks {
	marks := make(domain.Marks, 0, len(in))
	for _, m := range in {
		marks = append(marks, domain.Mark{Text: m.Text, Start: m.Start, End: m.End})
	}
	return marks
}
