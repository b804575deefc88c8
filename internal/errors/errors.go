package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for different categories
var (
	// ErrConfiguration - required input or setting missing (fatal before any paid work)
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidArgument - tool arguments failed declared-schema validation (recoverable, folded into a tool result)
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrToolUnavailable - the remote job behind a tool could not be started (fatal for the run)
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrIncompleteResult - the loop terminated without everything needed to deliver
	ErrIncompleteResult = errors.New("incomplete result")

	// ErrUpstreamInference - the reasoning service is unreachable or errored
	ErrUpstreamInference = errors.New("upstream inference error")

	// ErrBudgetExceeded - the run consumed more tokens than allowed
	ErrBudgetExceeded = errors.New("token budget exceeded")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrTransient - transient error (rate limit, timeout, network)
	ErrTransient = errors.New("transient error")

	// ErrInvalidModelOutput - model returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)

// Incomplete result reasons. Each one is reported on its own.
var (
	ErrMissingStructuredAnswer = fmt.Errorf("no structured answer: %w", ErrIncompleteResult)
	ErrMissingFinalMessage     = fmt.Errorf("no final assistant message: %w", ErrIncompleteResult)
	ErrMissingMessages         = fmt.Errorf("no message history: %w", ErrIncompleteResult)
	ErrMissingUsage            = fmt.Errorf("token usage not computable: %w", ErrIncompleteResult)
)
