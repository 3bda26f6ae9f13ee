/*
This file contains the monthly simulation driver.

A Simulator owns one instance of every engine and advances them together, one month at a
time, in a fixed order: TVL, bonds, trades, position top-up, drift, finalize, snapshot.
Every month produces a MonthSnapshot that is handed to the store and the metrics recorder.
*/

package simulations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/treasury-sim/internal/analyzer"
	"github.com/elys-network/treasury-sim/internal/config"
	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/pricing"
	"github.com/elys-network/treasury-sim/internal/redemption"
	"github.com/elys-network/treasury-sim/internal/reserve"
	"github.com/elys-network/treasury-sim/internal/tvl"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/elys-network/treasury-sim/internal/utils"
)

var ErrMonthOutOfOrder = fmt.Errorf("%w: simulation months must be run in order", types.ErrInvalidState)

// SnapshotSink receives every finished month.
type SnapshotSink interface {
	SaveMonthSnapshot(snapshot types.MonthSnapshot) error
}

// MonthObserver is notified of every finished month, e.g. a metrics recorder.
type MonthObserver interface {
	ObserveMonth(snapshot types.MonthSnapshot)
}

// Config holds the dependencies of a Simulator.
type Config struct {
	Parameters  types.SimulationParameters
	DeepPool    *reserve.DeepPool
	Positions   *reserve.PositionBook
	Price       *pricing.Engine
	Bonds       *redemption.Engine
	TVL         *tvl.Book
	Store       SnapshotSink  // optional
	Observer    MonthObserver // optional
	RunID       string        // generated when empty
	TradePacing time.Duration // optional delay between months, for watching a served run
}

// Simulator advances the engines month by month. Not safe for concurrent use.
type Simulator struct {
	logger zerolog.Logger
	params types.SimulationParameters
	runID  string

	deepPool  *reserve.DeepPool
	positions *reserve.PositionBook
	price     *pricing.Engine
	bonds     *redemption.Engine
	tvl       *tvl.Book

	store    SnapshotSink
	observer MonthObserver
	pacing   time.Duration

	nextMonth int
	snapshots []types.MonthSnapshot
}

// NewSimulator validates the dependencies and returns a simulator positioned at month 0.
func NewSimulator(cfg Config) (*Simulator, error) {
	if err := validateSimulatorConfig(cfg); err != nil {
		return nil, fmt.Errorf("simulator configuration validation failed: %w", err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	s := &Simulator{
		logger:    logger.GetForComponent("simulator").With().Str("run_id", runID).Logger(),
		params:    cfg.Parameters,
		runID:     runID,
		deepPool:  cfg.DeepPool,
		positions: cfg.Positions,
		price:     cfg.Price,
		bonds:     cfg.Bonds,
		tvl:       cfg.TVL,
		store:     cfg.Store,
		observer:  cfg.Observer,
		pacing:    cfg.TradePacing,
	}

	s.logger.Info().
		Int("months", s.params.Months).
		Int("trades", len(s.params.SimulatedTrades)).
		Msg("Simulator created")
	return s, nil
}

func validateSimulatorConfig(cfg Config) error {
	var errs []error
	if cfg.DeepPool == nil {
		errs = append(errs, errors.New("deep pool cannot be nil"))
	}
	if cfg.Positions == nil {
		errs = append(errs, errors.New("position book cannot be nil"))
	}
	if cfg.Price == nil {
		errs = append(errs, errors.New("price engine cannot be nil"))
	}
	if cfg.Bonds == nil {
		errs = append(errs, errors.New("redemption engine cannot be nil"))
	}
	if cfg.TVL == nil {
		errs = append(errs, errors.New("tvl book cannot be nil"))
	}
	if err := config.ValidateSimulationParameters(cfg.Parameters); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	return nil
}

// RunID identifies this run in logs and snapshots.
func (s *Simulator) RunID() string {
	return s.runID
}

// Snapshots returns every month produced so far.
func (s *Simulator) Snapshots() []types.MonthSnapshot {
	return append([]types.MonthSnapshot(nil), s.snapshots...)
}

// Run steps every remaining month. It stops early, returning ctx.Err(), if the context is
// cancelled between months.
func (s *Simulator) Run(ctx context.Context) (types.RunSummary, error) {
	start := time.Now()
	s.logger.Info().Msg("--- Starting simulation run ---")

	for month := s.nextMonth; month < s.params.Months; month++ {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Int("month", month).Msg("Simulation stopped due to context cancellation")
			return types.RunSummary{}, err
		}
		if _, err := s.RunMonth(ctx, month); err != nil {
			return types.RunSummary{}, err
		}
		if s.pacing > 0 && month+1 < s.params.Months {
			select {
			case <-ctx.Done():
				return types.RunSummary{}, ctx.Err()
			case <-time.After(s.pacing):
			}
		}
	}

	summary, err := s.Summary()
	if err != nil {
		return types.RunSummary{}, err
	}
	s.logger.Info().
		Float64("finalPrice", summary.FinalPrice).
		Float64("volatility", summary.PriceVolatility).
		Str("redeemed", summary.TotalRedeemed.String()).
		Str("duration", time.Since(start).String()).
		Msg("--- Simulation run completed ---")
	return summary, nil
}

// RunMonth advances every engine by one month. Months must be run in order from 0.
func (s *Simulator) RunMonth(ctx context.Context, month int) (types.MonthSnapshot, error) {
	if month != s.nextMonth {
		return types.MonthSnapshot{}, fmt.Errorf("%w: got %d, expected %d", ErrMonthOutOfOrder, month, s.nextMonth)
	}
	if err := ctx.Err(); err != nil {
		return types.MonthSnapshot{}, err
	}
	monthLogger := s.logger.With().Int("month", month).Logger()

	snapshot := types.MonthSnapshot{RunID: s.runID, Month: month}

	// Step 1: TVL and revenue
	totals, err := s.tvl.Step(month)
	if err != nil {
		return types.MonthSnapshot{}, fmt.Errorf("tvl step: %w", err)
	}
	applyTVL(&snapshot, totals)

	// Step 2: Bond distribution, redemption and settlement at the last finalized price
	snapshot.RedeemedTotal = s.bonds.RedeemedTotal()
	snapshot.RemainingSupply = s.bonds.RemainingSupply()
	if month >= s.params.BondStartMonth {
		result, err := s.bonds.Step(month, s.deepPool, s.price.CurrentPrice())
		if err != nil {
			return types.MonthSnapshot{}, fmt.Errorf("bond step: %w", err)
		}
		applyBonds(&snapshot, result)
		snapshot.RedeemedTotal = s.bonds.RedeemedTotal()
		if snapshot.WeightedAvgIRRThreshold, err = s.bonds.WeightedAvgIRRThreshold(); err != nil {
			return types.MonthSnapshot{}, fmt.Errorf("weighted irr threshold: %w", err)
		}
		if len(result.Redeemed) > 0 {
			monthLogger.Info().
				Int("counterparties", len(result.Redeemed)).
				Str("amount", result.RedeemedTotal.String()).
				Float64("settledToken", result.Settlement.Token).
				Float64("settledNumeraire", result.Settlement.Numeraire).
				Msg("Bond redemptions settled")
		}
	}

	// Step 3: Trades
	if month >= s.params.PriceStartMonth {
		prices, skipped, err := s.applyTrades(month, monthLogger)
		if err != nil {
			return types.MonthSnapshot{}, err
		}
		snapshot.TradePrices = prices
		snapshot.SkippedTrades = skipped
	}

	// Step 4: Position top-up
	if s.params.RebalancePositions && month >= s.params.PositionsStartMonth {
		purchased, err := s.topUpPositions(month, monthLogger)
		if err != nil {
			return types.MonthSnapshot{}, err
		}
		snapshot.TokenPurchased = purchased
	}

	// Step 5: Drift and finalize
	if month >= s.params.PriceStartMonth {
		if _, err := s.price.ApplyDrift(month, s.params.MonthlyPriceDrift); err != nil {
			return types.MonthSnapshot{}, fmt.Errorf("price drift: %w", err)
		}
	}
	finalPrice, err := s.price.Finalize(month)
	if err != nil {
		return types.MonthSnapshot{}, fmt.Errorf("finalize price: %w", err)
	}
	snapshot.Price = finalPrice
	snapshot.PriceLocked = s.price.IsLocked(month)

	// Step 6: Record and publish
	if err := s.recordReserves(&snapshot, month, finalPrice); err != nil {
		return types.MonthSnapshot{}, err
	}
	s.publish(snapshot, monthLogger)

	s.snapshots = append(s.snapshots, snapshot)
	s.nextMonth = month + 1

	monthLogger.Info().
		Float64("price", snapshot.Price).
		Float64("poolToken", snapshot.DeepPool.Token).
		Float64("poolNumeraire", snapshot.DeepPool.Numeraire).
		Str("remainingSupply", snapshot.RemainingSupply.String()).
		Float64("tvl", snapshot.TotalTVL).
		Float64("revenue", snapshot.MonthlyRevenue).
		Int("skippedTrades", snapshot.SkippedTrades).
		Msg("Month completed")
	return snapshot, nil
}

// depth combines the deep pool and active position depth within the configured range.
func (s *Simulator) depth(month int, price float64) (deepPool, positions types.LiquidityDepth, err error) {
	if month >= s.params.DeepPoolStartMonth {
		deepPool, err = s.deepPool.LiquidityWithin(s.params.LiquidityRangePercent, price)
		if err != nil {
			return types.LiquidityDepth{}, types.LiquidityDepth{}, fmt.Errorf("deep pool depth: %w", err)
		}
	}
	if month >= s.params.PositionsStartMonth {
		positions, err = s.positions.LiquidityWithin(month, s.params.LiquidityRangePercent, price)
		if err != nil {
			return types.LiquidityDepth{}, types.LiquidityDepth{}, fmt.Errorf("position depth: %w", err)
		}
	}
	return deepPool, positions, nil
}

// applyTrades runs the configured trade list. A trade over the impact threshold is resized
// by TradeResizeFactor up to MaxTradeResizes times and skipped after that.
func (s *Simulator) applyTrades(month int, monthLogger zerolog.Logger) ([]float64, int, error) {
	var (
		prices  []float64
		skipped int
	)

	for i, trade := range s.params.SimulatedTrades {
		if trade == 0 {
			continue
		}
		size := trade
		for attempt := 0; ; attempt++ {
			price := s.price.CurrentPrice()
			deepPool, positions, err := s.depth(month, price)
			if err != nil {
				return nil, 0, err
			}
			combined := deepPool.Add(positions)
			if !(combined.Value(price) > 0) {
				monthLogger.Warn().Int("trade", i).Float64("size", size).Msg("Trade skipped, no liquidity depth")
				skipped++
				break
			}

			newPrice, err := s.price.ApplyTrade(month, combined, size)
			if err == nil {
				prices = append(prices, newPrice)
				monthLogger.Debug().
					Int("trade", i).
					Float64("size", size).
					Float64("price", newPrice).
					Msg("Trade applied")
				break
			}
			if !errors.Is(err, pricing.ErrImpactExceeded) {
				return nil, 0, fmt.Errorf("trade %d: %w", i, err)
			}
			if attempt >= s.params.MaxTradeResizes {
				monthLogger.Warn().
					Int("trade", i).
					Float64("requested", trade).
					Float64("lastSize", size).
					Msg("Trade skipped, impact above threshold after resizing")
				skipped++
				break
			}
			size *= s.params.TradeResizeFactor
			monthLogger.Warn().
				Int("trade", i).
				Float64("requested", trade).
				Float64("resized", size).
				Msg("Trade resized, impact above threshold")
		}
	}
	return prices, skipped, nil
}

// topUpPositions buys token out of the deep pool to bring active positions back to their
// target ratio. The purchase is paid in numeraire from outside the pool.
func (s *Simulator) topUpPositions(month int, monthLogger zerolog.Logger) (float64, error) {
	price := s.price.CurrentPrice()
	deficits, total := s.positions.TokenNeeded(month, price)
	if total <= 0 {
		return 0, nil
	}

	proceeds, err := s.deepPool.SellToken(total/price, price)
	if err != nil {
		return 0, fmt.Errorf("position top-up: %w", err)
	}
	purchased := proceeds / price
	if _, err := s.positions.DistributePurchased(purchased, deficits); err != nil {
		return 0, fmt.Errorf("position top-up: %w", err)
	}

	monthLogger.Debug().
		Int("positions", len(deficits)).
		Float64("deficitValue", total).
		Float64("tokenPurchased", purchased).
		Msg("Positions topped up")
	return purchased, nil
}

// recordReserves closes the month on the pool and the positions and copies their state
// into the snapshot.
func (s *Simulator) recordReserves(snapshot *types.MonthSnapshot, month int, price float64) error {
	s.deepPool.RecordMonth(month)
	s.positions.RecordMonth(month)

	snapshot.DeepPool = s.deepPool.Balances()
	coins, err := s.deepPool.Coins()
	if err != nil {
		return fmt.Errorf("deep pool coins: %w", err)
	}
	snapshot.DeepPoolCoins = coins

	deepPool, positions, err := s.depth(month, price)
	if err != nil {
		return err
	}
	snapshot.DeepPoolDepth = deepPool
	snapshot.PositionDepth = positions
	snapshot.PositionValue = utils.RoundTo(s.positions.TotalLiquidity(month, price), 2)
	snapshot.ActivePositions = len(s.positions.Active(month))

	branches := s.positions.Branches(month, price)
	if len(branches) > 0 {
		snapshot.PositionBranches = make(map[string]string, len(branches))
		for counterparty, branch := range branches {
			snapshot.PositionBranches[counterparty] = branch.String()
		}
	}
	return nil
}

func (s *Simulator) publish(snapshot types.MonthSnapshot, monthLogger zerolog.Logger) {
	if s.store != nil {
		if err := s.store.SaveMonthSnapshot(snapshot); err != nil {
			monthLogger.Error().Err(err).Msg("Failed to save month snapshot")
		}
	}
	if s.observer != nil {
		s.observer.ObserveMonth(snapshot)
	}
}

// Summary aggregates the months run so far.
func (s *Simulator) Summary() (types.RunSummary, error) {
	summary := types.RunSummary{
		RunID:             s.runID,
		Months:            len(s.snapshots),
		TotalRedeemed:     s.bonds.RedeemedTotal(),
		RemainingSupply:   s.bonds.RemainingSupply(),
		FinalDeepPool:     s.deepPool.Balances(),
		CumulativeRevenue: s.tvl.CumulativeRevenue(),
	}
	if len(s.snapshots) == 0 {
		return summary, nil
	}

	for _, snap := range s.snapshots {
		summary.SkippedTrades += snap.SkippedTrades
	}
	summary.FinalPrice = s.snapshots[len(s.snapshots)-1].Price

	prices := s.price.MonthEndPrices()
	low, high, err := analyzer.PriceRange(prices)
	if err != nil {
		return types.RunSummary{}, fmt.Errorf("price range: %w", err)
	}
	summary.MinPrice, summary.MaxPrice = low, high

	if len(prices) >= 2 {
		vol, err := analyzer.CalculateVolatility(prices, analyzer.MonthsPerYear)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Could not compute price volatility")
		} else {
			summary.PriceVolatility = vol
		}
	}
	return summary, nil
}

func applyTVL(snapshot *types.MonthSnapshot, totals tvl.MonthTotals) {
	snapshot.TotalTVL = totals.Total
	snapshot.BoostedTVL = totals.Boosted
	snapshot.MonthlyRevenue = totals.MonthlyRevenue
	snapshot.CumulativeRevenue = totals.CumulativeRevenue

	snapshot.TVLByCategory = make(map[string]float64, len(totals.ByCategory))
	for category, amount := range totals.ByCategory {
		snapshot.TVLByCategory[string(category)] = amount
	}
	snapshot.TVLByType = make(map[string]float64, len(totals.ByType))
	for tvlType, amount := range totals.ByType {
		snapshot.TVLByType[string(tvlType)] = amount
	}
	snapshot.RevenueByType = make(map[string]float64, len(totals.RevenueByType))
	for tvlType, amount := range totals.RevenueByType {
		snapshot.RevenueByType[string(tvlType)] = amount
	}
}

func applyBonds(snapshot *types.MonthSnapshot, result redemption.StepResult) {
	if len(result.Distributed) > 0 {
		snapshot.Distributed = result.Distributed
	}
	if len(result.Redeemed) > 0 {
		snapshot.Redeemed = result.Redeemed
	}
	snapshot.RemainingSupply = result.RemainingSupply
	snapshot.Settlement = result.Settlement

	switch {
	case math.IsInf(result.ExpectedIRR, -1):
		snapshot.RedeemNow = true
	case math.IsNaN(result.ExpectedIRR) || math.IsInf(result.ExpectedIRR, 0):
	default:
		snapshot.ExpectedIRR = result.ExpectedIRR
	}
}
