package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRule = errors.New("invalid rate limit rule")
	ErrStore       = errors.New("counter store failure")
)

func invalidRule(operation, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidRule, operation, reason)
}

func IsStoreError(err error) bool {
	return errors.Is(err, ErrStore)
}
