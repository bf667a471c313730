package transfer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lancepay/internal/auth"
	"lancepay/internal/metrics"
	"lancepay/internal/user"
)

var (
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrSelfTransfer        = errors.New("cannot transfer to yourself")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrPerTransactionLimit = errors.New("amount exceeds per-transaction limit")
	ErrDailyLimit          = errors.New("transfer would exceed daily limit")
	ErrPinNotSet           = errors.New("transfer pin not set")
	ErrPinMismatch         = errors.New("transfer pin mismatch")
)

type Service interface {
	Send(ctx context.Context, fromUserID int, req SendRequest) (*Transfer, error)
	Limits(ctx context.Context, userID int) (*LimitsSnapshot, error)
	SetPin(ctx context.Context, userID int, pin, confirmPin string) error
	HasPin(ctx context.Context, userID int) (bool, error)
	History(ctx context.Context, userID int) (*History, error)
}

type service struct {
	transferRepo Repository
	userRepo     user.Repository
}

func NewService(transferRepo Repository, userRepo user.Repository) Service {
	return &service{
		transferRepo: transferRepo,
		userRepo:     userRepo,
	}
}

// Send validates in a fixed order so callers get the most actionable error
// first: recipient, amount, limits, pin, funds. Execution is atomic.
func (s *service) Send(ctx context.Context, fromUserID int, req SendRequest) (*Transfer, error) {
	recipient, err := s.userRepo.FindByEmail(ctx, req.ToUserEmail)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if recipient.ID == fromUserID {
		return nil, ErrSelfTransfer
	}

	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	sender, err := s.userRepo.FindByID(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	limits := LimitsForTier(sender.Tier)

	if amount.GreaterThan(limits.PerTransactionLimit) {
		return nil, ErrPerTransactionLimit
	}

	usedToday, err := s.transferRepo.UsedToday(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	if usedToday.Add(amount).GreaterThan(limits.DailyLimit) {
		return nil, ErrDailyLimit
	}

	if !sender.TransferPinHash.Valid || sender.TransferPinHash.String == "" {
		return nil, ErrPinNotSet
	}
	if !auth.CheckPin(sender.TransferPinHash.String, req.Pin) {
		return nil, ErrPinMismatch
	}

	fee := limits.Fees.Fee(amount)
	t := &Transfer{
		ID:             uuid.NewString(),
		FromUserID:     fromUserID,
		ToUserID:       recipient.ID,
		Amount:         amount,
		Fee:            fee,
		TotalDeduction: amount.Add(fee),
		Note:           req.Note,
		Status:         StatusCompleted,
	}

	// The repository re-checks available >= total_deduction under the row
	// lock; checking it here first would just race.
	if err := s.transferRepo.Execute(ctx, t); err != nil {
		metrics.RecordTransfer("failed")
		return nil, err
	}

	metrics.RecordTransfer("completed")
	return t, nil
}

func (s *service) Limits(ctx context.Context, userID int) (*LimitsSnapshot, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	limits := LimitsForTier(u.Tier)
	usedToday, err := s.transferRepo.UsedToday(ctx, userID)
	if err != nil {
		return nil, err
	}

	remaining := limits.DailyLimit.Sub(usedToday)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return &LimitsSnapshot{
		TierLimits:     limits,
		UsedToday:      usedToday,
		RemainingToday: remaining,
	}, nil
}

func (s *service) SetPin(ctx context.Context, userID int, pin, confirmPin string) error {
	if pin != confirmPin {
		return ErrPinMismatch
	}

	hash, err := auth.HashPin(pin)
	if err != nil {
		return err
	}

	return s.userRepo.SetTransferPin(ctx, userID, hash)
}

func (s *service) HasPin(ctx context.Context, userID int) (bool, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.TransferPinHash.Valid && u.TransferPinHash.String != "", nil
}

func (s *service) History(ctx context.Context, userID int) (*History, error) {
	sent, err := s.transferRepo.ListSent(ctx, userID, 50)
	if err != nil {
		return nil, err
	}
	received, err := s.transferRepo.ListReceived(ctx, userID, 50)
	if err != nil {
		return nil, err
	}
	return &History{Sent: sent, Received: received}, nil
}
