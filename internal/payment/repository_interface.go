package payment

import "context"

type Repository interface {
	Create(ctx context.Context, order *PaymentOrder) error
	FindByExternalID(ctx context.Context, externalOrderID string) (*PaymentOrder, error)
	MarkConfirmed(ctx context.Context, externalOrderID, notes string) (*PaymentOrder, error)
	MarkRejected(ctx context.Context, externalOrderID, notes string) (*PaymentOrder, error)
	ListByUser(ctx context.Context, userID int, limit int) ([]PaymentOrder, error)
}
