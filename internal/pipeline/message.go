// Package pipeline drives per-contact message production: the bounded
// retry loop over generation and evaluation, and the resumable run over a
// whole contact list.
package pipeline

import (
	"outreach/internal/evaluator"
)

// Attempt is one generation attempt recorded in the retry ledger.
type Attempt struct {
	Number     int              `json:"number"`
	Variant    string           `json:"variant"`
	Opener     string           `json:"opener"`
	Subject    string           `json:"subject"`
	Body       string           `json:"body"`
	Evaluation evaluator.Result `json:"evaluation"`
}

// GeneratedMessage is the final artifact for one contact.
type GeneratedMessage struct {
	Recipient            string            `json:"recipient"`
	ToName               string            `json:"to_name"`
	Company              string            `json:"company"`
	Subject              string            `json:"subject"`
	Body                 string            `json:"body"`
	Opener               string            `json:"opener"`
	UsedGenerativeOpener bool              `json:"used_generative_opener"`
	VariantUsed          string            `json:"variant_used,omitempty"`
	Evaluation           *evaluator.Result `json:"evaluation,omitempty"`
	DraftID              string            `json:"draft_id,omitempty"`
}
