package qdrant

import (
	"errors"

	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/resilience"
)

func asStatusError(err error) (*resilience.HTTPStatusError, bool) {
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
