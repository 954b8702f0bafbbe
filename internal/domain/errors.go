package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNoFetchers       = errors.New("no fetchers match the requested protocols and networks")
	ErrNoTokens         = errors.New("pool has no tokens")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrEmptyResult      = errors.New("source returned no pools")
)

// StatusError reports a non-2xx HTTP response from an upstream provider.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from %s", e.Status, e.URL)
}
