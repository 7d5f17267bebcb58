package source

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
)

// FetchKind classifies why a fetch failed.
type FetchKind uint8

const (
	FetchNetwork FetchKind = iota
	FetchNotFound
	FetchTimeout
)

func (k FetchKind) String() string {
	switch k {
	case FetchNotFound:
		return "not_found"
	case FetchTimeout:
		return "timeout"
	}
	return "network"
}

var (
	ErrNetwork  = errors.New("tile fetch network error")
	ErrNotFound = errors.New("tile not found upstream")
	ErrTimeout  = errors.New("tile fetch timed out")
)

type FetchError struct {
	Kind FetchKind
	Key  entity.TileKey
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel of the error's kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == FetchNetwork
	case ErrNotFound:
		return e.Kind == FetchNotFound
	case ErrTimeout:
		return e.Kind == FetchTimeout
	}
	return false
}

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	return e.Kind != FetchNotFound
}

// Classify turns any fetch error into a *FetchError.
func Classify(key entity.TileKey, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	kind := FetchNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = FetchTimeout
	}

	return &FetchError{Kind: kind, Key: key, Err: err}
}
