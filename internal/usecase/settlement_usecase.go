package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

// SettlementResult summarizes one settlement batch.
type SettlementResult struct {
	Locked              int
	Expired             int64
	Released            int
	ReleasedAmount      decimal.Decimal
	SkippedNoCommission int
	SkippedNoWallet     int
}

type SettlementUseCase struct {
	txManager  TransactionManager
	offerRepo  OfferRepository
	walletRepo WalletRepository
	ledgerRepo LedgerEntryRepository
	idGen      IDGenerator
	clock      Clock
	retrier    Retrier
	log        EventLogger
	metrics    *metrics.Metrics
	// batchSize caps the offers settled per run; zero settles every due offer.
	batchSize int
}

func NewSettlementUseCase(
	txManager TransactionManager,
	offerRepo OfferRepository,
	walletRepo WalletRepository,
	ledgerRepo LedgerEntryRepository,
	idGen IDGenerator,
	clock Clock,
	retrier Retrier,
	log EventLogger,
	metrics *metrics.Metrics,
	batchSize int,
) *SettlementUseCase {
	return &SettlementUseCase{
		txManager:  txManager,
		offerRepo:  offerRepo,
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		idGen:      idGen,
		clock:      clock,
		retrier:    retrier,
		log:        log,
		metrics:    metrics,
		batchSize:  batchSize,
	}
}

// ExpireOffers expires every pending offer past its expiry and releases its
// commission hold, all in one transaction. On failure nothing is written and
// the offers stay eligible for the next run.
func (uc *SettlementUseCase) ExpireOffers(ctx context.Context) (*SettlementResult, error) {
	start := time.Now()

	var result *SettlementResult
	err := uc.retrier.Retry(ctx, func() error {
		r, err := uc.settleBatch(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		uc.log.LogDatabaseError(ctx, err, "settlement.expire_offers")
		if uc.metrics != nil {
			uc.metrics.SettlementFailures.Inc()
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.SettlementBatchSize.Observe(float64(result.Locked))
		uc.metrics.OffersExpired.Add(float64(result.Expired))
		uc.metrics.CommissionsReleased.Add(float64(result.Released))
		uc.metrics.WalletsMissing.Add(float64(result.SkippedNoWallet))
		if result.Released > 0 {
			amount, _ := result.ReleasedAmount.Float64()
			uc.metrics.CommissionAmount.Observe(amount)
		}
	}

	if result.Locked > 0 {
		uc.log.LogInfo(ctx, "expired offers settled",
			"expired", result.Expired,
			"released", result.Released,
			"released_amount", result.ReleasedAmount.StringFixed(2),
			"skipped_no_commission", result.SkippedNoCommission,
			"skipped_no_wallet", result.SkippedNoWallet,
			"duration", time.Since(start),
		)
	}

	return result, nil
}

func (uc *SettlementUseCase) settleBatch(ctx context.Context) (*SettlementResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := uc.clock.Now()

	// Rows stay locked until commit, so the loop below works on this exact set.
	offers, err := uc.offerRepo.ListExpiredPendingForUpdate(txCtx, tx, now, uc.batchSize)
	if err != nil {
		return nil, fmt.Errorf("lock expired offers: %w", err)
	}

	result := &SettlementResult{Locked: len(offers), ReleasedAmount: decimal.Zero}
	if len(offers) == 0 {
		return result, nil
	}

	ids := make([]string, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}

	expired, err := uc.offerRepo.MarkExpired(txCtx, tx, ids, now)
	if err != nil {
		return nil, fmt.Errorf("expire offers: %w", err)
	}
	result.Expired = expired

	for _, offer := range offers {
		amount := offer.Commission()
		if !amount.IsPositive() {
			result.SkippedNoCommission++
			continue
		}

		wallet, err := uc.walletRepo.GetByOwnerForUpdate(txCtx, tx, offer.CarrierID)
		if errors.Is(err, domain.ErrWalletNotFound) {
			uc.log.LogInfo(ctx, "carrier has no wallet, commission not released",
				"offer_id", offer.ID,
				"carrier_id", offer.CarrierID,
				"amount", amount.StringFixed(2),
			)
			result.SkippedNoWallet++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock wallet of carrier %s: %w", offer.CarrierID, err)
		}

		wallet.ReleaseReserved(amount)
		if err := uc.walletRepo.UpdateReservedBalance(txCtx, tx, wallet.ID, wallet.ReservedBalance, now); err != nil {
			return nil, fmt.Errorf("update reserved balance of wallet %s: %w", wallet.ID, err)
		}

		entry := domain.NewCommissionReleaseEntry(offer, amount, now)
		entry.ID = uc.idGen.Generate()
		if err := uc.ledgerRepo.Create(txCtx, tx, entry); err != nil {
			return nil, fmt.Errorf("record commission release for offer %s: %w", offer.ID, err)
		}

		result.Released++
		result.ReleasedAmount = result.ReleasedAmount.Add(amount)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}

	return result, nil
}
