package services

import (
	"context"

	"github.com/iota-uz/statreg/pkg/composables"
)

// TxRunner runs fn inside one database transaction carried by ctx.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// DefaultTxRunner opens a transaction on the pool stored in ctx.
var DefaultTxRunner TxRunner = composables.InTx

// Permissions answers whether a user may write a unit type or one of its fields.
type Permissions interface {
	CanWrite(ctx context.Context, userID string, isAdmin bool, object string) (bool, error)
}
