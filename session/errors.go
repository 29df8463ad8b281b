package session

import "errors"

var (
	ErrSessionNotFound  = errors.New("session: no matching session")
	ErrSessionAmbiguous = errors.New("session: reference matches more than one session")
)
