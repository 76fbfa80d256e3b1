package memory

import "errors"

var (
	ErrTransactionIDNotFoundInCtx = errors.New("no transaction id found in ctx")
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrRoomLockTimeout            = errors.New("room lock wait timed out")
	ErrDuplicateRoomNumber        = errors.New("room number already taken")
	ErrDuplicateIdempotencyKey    = errors.New("idempotency key already used")
	ErrDuplicateSystemIdentifier  = errors.New("system identifier already taken")
)
