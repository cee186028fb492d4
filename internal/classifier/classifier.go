// Package classifier suggests routing metadata for a complaint: category,
// agency, a 0..100 confidence, a -1..1 sentiment score and the language
// the complaint is written in.
//
// Classification is best effort. Callers bound it with a context timeout
// and fall back to defaults on any error; nothing here retries.
package classifier

import (
	"context"
	"errors"
)

// ErrDisabled is returned by Disabled.Classify.
var ErrDisabled = errors.New("classifier: disabled")

// Input is what the model sees. Categories and Agencies are the names it
// must choose from.
type Input struct {
	Title       string
	Description string
	Location    string
	Categories  []string
	Agencies    []string
}

// Suggestion is the parsed model answer. It is echoed to the reporter as
// aiSuggestions.
type Suggestion struct {
	Category       string  `json:"category"`
	Agency         string  `json:"agency"`
	Confidence     float64 `json:"confidence"`
	SentimentScore float64 `json:"sentimentScore"`
	Language       string  `json:"language"`
}

// Classifier suggests a category, an agency and a sentiment for a
// complaint. Implementations must honour ctx cancellation; callers treat
// any error as "no suggestion".
type Classifier interface {
	Classify(ctx context.Context, in Input) (*Suggestion, error)
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) Classify(context.Context, Input) (*Suggestion, error) {
	return nil, ErrDisabled
}
