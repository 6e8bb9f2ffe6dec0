package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/metrics"
)

// Relay forwards a text to the admins' Telegram chat.
type Relay interface {
	RelayToAdmins(ctx context.Context, text string) error
}

type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body, reference string) error
}

type Limits struct {
	MinDeposit    int64
	MinWithdrawal int64
}

type Service struct {
	log      *logrus.Logger
	store    Store
	relay    Relay
	notifier Notifier
	limits   Limits
}

func NewService(log *logrus.Logger, store Store, relay Relay, notifier Notifier, limits Limits) *Service {
	return &Service{log: log, store: store, relay: relay, notifier: notifier, limits: limits}
}

func (s *Service) Balance(ctx context.Context, userID string) (*Wallet, error) {
	w, err := s.store.Wallet(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return nil, apperr.NotFound("wallet not found")
	}
	if err != nil {
		return nil, fmt.Errorf("wallet.Service.Balance: %w", err)
	}
	return w, nil
}

func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	return s.list(ctx, TxFilter{UserID: userID, Limit: limit, Offset: offset})
}

func (s *Service) AdminList(ctx context.Context, f TxFilter) ([]Transaction, error) {
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f TxFilter) ([]Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("wallet.Service.list: %w", err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// Deposit records a pending top-up and sends the proof to the admins.
// Nothing is credited until an admin approves it.
func (s *Service) Deposit(ctx context.Context, userID string, req DepositRequest) (*Transaction, error) {
	const op = "wallet.Service.Deposit"

	if req.Amount < s.limits.MinDeposit {
		return nil, apperr.Validation(fmt.Sprintf("minimum deposit is %d GT", s.limits.MinDeposit))
	}
	t := &Transaction{
		UserID:        userID,
		Amount:        req.Amount,
		Type:          TypeDeposit,
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		ProofURL:      req.ProofURL,
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		s.log.WithError(err).WithField("op", op).Error("failed to record deposit")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.relayToAdmins(ctx, fmt.Sprintf("New deposit %s\nUser: %s\nAmount: %d GT\nMethod: %s\nProof: %s",
		t.ID, userID, t.Amount, t.PaymentMethod, t.ProofURL))
	s.log.WithFields(logrus.Fields{"op": op, "tx_id": t.ID, "amount": t.Amount}).Info("deposit submitted")
	return t, nil
}

// Withdraw reserves the amount immediately so it cannot be spent twice while
// the payout waits for an admin.
func (s *Service) Withdraw(ctx context.Context, userID string, req WithdrawRequest) (*Transaction, error) {
	const op = "wallet.Service.Withdraw"

	if req.Amount < s.limits.MinWithdrawal {
		return nil, apperr.Validation(fmt.Sprintf("minimum withdrawal is %d GT", s.limits.MinWithdrawal))
	}
	t := &Transaction{
		UserID:        userID,
		Amount:        req.Amount,
		Type:          TypeWithdrawal,
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		Details:       req.Details,
	}
	err := s.store.WithinTx(ctx, func(st Store) error {
		if err := st.Hold(ctx, userID, req.Amount); err != nil {
			return err
		}
		return st.CreateTransaction(ctx, t)
	})
	if err != nil {
		return nil, s.walletErr(op, err)
	}

	s.relayToAdmins(ctx, fmt.Sprintf("Withdrawal request %s\nUser: %s\nAmount: %d GT\nMethod: %s\nDetails: %s",
		t.ID, userID, t.Amount, t.PaymentMethod, t.Details))
	s.log.WithFields(logrus.Fields{"op": op, "tx_id": t.ID, "amount": t.Amount}).Info("withdrawal requested")
	return t, nil
}

// Approve completes a pending deposit or withdrawal.
func (s *Service) Approve(ctx context.Context, adminID, txID string, req ReviewRequest) (*Transaction, error) {
	return s.review(ctx, adminID, txID, req.Note, true)
}

// Reject declines a pending deposit or withdrawal. A rejected withdrawal
// returns its held amount to the balance.
func (s *Service) Reject(ctx context.Context, adminID, txID string, req ReviewRequest) (*Transaction, error) {
	return s.review(ctx, adminID, txID, req.Note, false)
}

func (s *Service) review(ctx context.Context, adminID, txID, note string, approve bool) (*Transaction, error) {
	const op = "wallet.Service.review"
	decision, status := "rejected", StatusRejected
	if approve {
		decision, status = "approved", StatusCompleted
	}

	var out *Transaction
	err := s.store.WithinTx(ctx, func(st Store) error {
		t, err := st.LockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return apperr.InvalidState("transaction already reviewed")
		}

		switch t.Type {
		case TypeDeposit:
			if approve {
				err = st.AddBalance(ctx, t.UserID, t.Amount)
			}
		case TypeWithdrawal:
			err = st.ReleaseHeld(ctx, t.UserID, t.Amount, !approve)
		default:
			return apperr.InvalidState("only deposits and withdrawals are reviewed")
		}
		if err != nil {
			return err
		}

		out, err = st.FinishTransaction(ctx, txID, status, adminID, note)
		return err
	})
	if err != nil {
		return nil, s.walletErr(op, err)
	}

	metrics.TransactionsReviewed.WithLabelValues(out.Type, decision).Inc()
	s.notify(ctx, out.UserID, "transaction_"+decision,
		fmt.Sprintf("Your %s was %s", out.Type, decision),
		fmt.Sprintf("%d GT. %s", out.Amount, note), out.ID)
	s.log.WithFields(logrus.Fields{
		"op":       op,
		"tx_id":    txID,
		"type":     out.Type,
		"decision": decision,
		"admin_id": adminID,
	}).Info("transaction reviewed")
	return out, nil
}

// Adjust credits or debits a wallet by hand. Debits never push the balance
// below zero.
func (s *Service) Adjust(ctx context.Context, adminID, userID string, req AdjustRequest) (*Transaction, error) {
	const op = "wallet.Service.Adjust"

	t := &Transaction{
		UserID:     userID,
		Amount:     req.Amount,
		Type:       TypeAdjustment,
		Status:     StatusCompleted,
		AdminNote:  req.Note,
		ReviewedBy: &adminID,
	}
	err := s.store.WithinTx(ctx, func(st Store) error {
		if err := st.AddBalance(ctx, userID, req.Amount); err != nil {
			return err
		}
		return st.CreateTransaction(ctx, t)
	})
	if err != nil {
		return nil, s.walletErr(op, err)
	}

	s.notify(ctx, userID, "balance_adjusted", "Your balance was adjusted", fmt.Sprintf("%+d GT. %s", req.Amount, req.Note), t.ID)
	s.log.WithFields(logrus.Fields{"op": op, "user_id": userID, "amount": req.Amount, "admin_id": adminID}).Info("balance adjusted")
	return t, nil
}

func (s *Service) walletErr(op string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrWalletNotFound):
		return apperr.NotFound("wallet not found")
	case errors.Is(err, ErrTransactionNotFound):
		return apperr.NotFound("transaction not found")
	case errors.Is(err, ErrInsufficientFunds):
		return apperr.New(apperr.ErrInsufficientFunds, "insufficient balance")
	}
	s.log.WithError(err).WithField("op", op).Error("wallet operation failed")
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) relayToAdmins(ctx context.Context, text string) {
	if s.relay == nil {
		return
	}
	if err := s.relay.RelayToAdmins(ctx, text); err != nil {
		s.log.WithError(err).Warn("admin relay failed")
	}
}

func (s *Service) notify(ctx context.Context, userID, kind, title, body, ref string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, title, body, ref); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "kind": kind}).Warn("notification failed")
	}
}
