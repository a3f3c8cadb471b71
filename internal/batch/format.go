package batch

import (
	"maps"
	"slices"
)

// FormatRequests builds one batch request per record. The user message is
// the OCR text exactly as given and the system message is the prompt.
// Requests are ordered by custom id so the same input always produces the
// same payload.
func FormatRequests(records map[string]string, systemPrompt, model string) []Request {
	ids := slices.Sorted(maps.Keys(records))

	requests := make([]Request, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, NewRequest(id, records[id], systemPrompt, model))
	}
	return requests
}

// NewRequest builds a single chat completion batch line.
func NewRequest(customID, text, systemPrompt, model string) Request {
	return Request{
		CustomID: customID,
		Method:   RequestMethod,
		URL:      ChatCompletionsEndpoint,
		Body: RequestBody{
			Model: model,
			Messages: []Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: text},
			},
		},
	}
}
