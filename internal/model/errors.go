package model

import "github.com/rotisserie/eris"

var (
	// ErrInvalidProfile is returned when a profile's identity is missing or
	// malformed. The candidate is excluded; the batch continues.
	ErrInvalidProfile = eris.New("invalid profile")

	// ErrInvalidWeights is returned when a weight configuration is unusable.
	// Ranking aborts before any candidate is scored.
	ErrInvalidWeights = eris.New("invalid weights")

	// ErrCapabilityTimeout is returned by the embedding guard when a call
	// exceeds its bound. Scorers treat it as a degraded score.
	ErrCapabilityTimeout = eris.New("capability timeout")
)
