/*

This file contains the two error classes every component error wraps.

*/

package types

import "errors"

var (
	// ErrInvalidInput marks caller bugs: out-of-range arguments, malformed
	// catalogs, over-allocated supply. These are not meant to be retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState marks recoverable conditions the caller must branch on,
	// such as a locked month or a trade that exceeds the impact threshold.
	ErrInvalidState = errors.New("invalid state")
)
