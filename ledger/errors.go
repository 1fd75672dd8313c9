package ledger

import "fmt"

// Domain errors. Layers wrap these with context; only the API layer
// translates them to HTTP status codes.
var (
	ErrNotFound            = fmt.Errorf("not found")
	ErrConflict            = fmt.Errorf("conflict")
	ErrInvalidInput        = fmt.Errorf("invalid input")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrFrozenCard          = fmt.Errorf("card is frozen")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
)
