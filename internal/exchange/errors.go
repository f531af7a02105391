package exchange

import "errors"

// ErrOrderNotFound: the aggregator has no order with that id. Unlike a
// transient error this is a definitive answer.
var ErrOrderNotFound = errors.New("exchange: order not found")

// IsTransient reports whether err should be treated as "still pending".
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
