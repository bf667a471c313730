package transfer

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Execute(ctx context.Context, t *Transfer) error
	UsedToday(ctx context.Context, userID int) (decimal.Decimal, error)
	ListSent(ctx context.Context, userID int, limit int) ([]Transfer, error)
	ListReceived(ctx context.Context, userID int, limit int) ([]Transfer, error)
}
