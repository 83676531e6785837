package models

import "errors"

var (
	// ErrRetrievalFailure means embedding or vector search was unavailable.
	ErrRetrievalFailure = errors.New("retrieval failure")
	// ErrGenerationFailure means the generation collaborator failed or timed out.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrUnknownSession means no session exists for the identifier.
	ErrUnknownSession = errors.New("unknown session")
	// ErrEmptyUtterance rejects a turn without text.
	ErrEmptyUtterance = errors.New("empty utterance")
	// ErrSessionBusy means the context ended while waiting for exclusive access to a session.
	ErrSessionBusy = errors.New("session busy")
)
