package types

// SuccessEnvelope wraps every 2xx body as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the caller-facing part of a failure. Details is set only for
// codes that allow it, e.g. field errors on VALIDATION_ERROR.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Page is one slice of a keyset-paginated list. NextCursor is empty on the
// last page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NewPage never returns a nil Items slice, so an empty page encodes as [].
func NewPage[T any](items []T, next string) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, NextCursor: next}
}
