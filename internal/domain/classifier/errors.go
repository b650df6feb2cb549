package classifier

import "errors"

// ErrQuotaExceeded indicates the provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("classifier quota exceeded")

// ErrMalformedResponse is returned when the provider answer is not the expected JSON document.
var ErrMalformedResponse = errors.New("malformed classifier response")
