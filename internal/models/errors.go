package models

import "errors"

// Domain errors shared by the ledger, match registry, reconciliation engine,
// conversation gate and HTTP layer. Callers match them with errors.Is.
var (
	// ErrInvalidPairing is returned for self-pairing or same-role pairing.
	ErrInvalidPairing = errors.New("invalid pairing")

	// ErrDuplicateExpression is returned by the ledger when an active
	// expression already exists in the requested direction.
	ErrDuplicateExpression = errors.New("duplicate active expression")

	// ErrAlreadyExpressed and ErrAlreadyAccepted are state conflicts the UI
	// surfaces as a no-op message.
	ErrAlreadyExpressed = errors.New("interest already expressed")
	ErrAlreadyAccepted  = errors.New("interest already accepted")

	ErrNotFound = errors.New("not found")

	// ErrAccessDenied means the pair has no accepted match and is not mutual.
	ErrAccessDenied = errors.New("mutual match required")

	// ErrReadOnlyConversation is returned when writing to an archived conversation.
	ErrReadOnlyConversation = errors.New("conversation is read-only")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotSender         = errors.New("only the sender may withdraw")
	ErrNotReceiver       = errors.New("only the receiver may respond")

	// ErrPersistence wraps transient storage failures. Safe to retry.
	ErrPersistence = errors.New("persistence failure")
)
