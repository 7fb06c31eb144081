package journal

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-intel-bot/internal/market"
)

// Status is a paper trade's lifecycle state. Once a trade leaves PENDING it
// is immutable.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusWinT1    Status = "WIN_T1"
	StatusWinT2    Status = "WIN_T2"
	StatusLossStop Status = "LOSS_STOP"
	StatusWinEOD   Status = "WIN_EOD"
	StatusLossEOD  Status = "LOSS_EOD"
	StatusExpired  Status = "EXPIRED"
	StatusClosed   Status = "CLOSED" // manual close via the API boundary
)

// Closed reports whether the trade has left PENDING
func (s Status) Closed() bool { return s != StatusPending }

// Win reports a winning terminal state
func (s Status) Win() bool {
	return s == StatusWinT1 || s == StatusWinT2 || s == StatusWinEOD
}

// Loss reports a losing terminal state
func (s Status) Loss() bool {
	return s == StatusLossStop || s == StatusLossEOD
}

// Trade is one simulated position
type Trade struct {
	ID            string           `json:"id"`
	Ticker        string           `json:"ticker"`
	Direction     market.Direction `json:"direction"`
	Entry         float64          `json:"entry"` // actual fill
	Shares        float64          `json:"shares"`
	Target1       float64          `json:"target1"`
	Target2       float64          `json:"target2"`
	Stop          float64          `json:"stop"`
	Horizon       market.Horizon   `json:"horizon"`
	Confidence    float64          `json:"confidence"`
	Features      []float64        `json:"features,omitempty"`
	SignalVersion string           `json:"signalVersion"`

	OpenedAt  time.Time  `json:"openedAt"`
	Status    Status     `json:"status"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	ExitPrice float64    `json:"exitPrice,omitempty"`

	PnLPct    float64 `json:"pnlPct"`
	PnLPoints float64 `json:"pnlPoints"`
	PnLTotal  float64 `json:"pnlTotal"`

	UnrealizedPct   float64 `json:"unrealizedPct"`
	UnrealizedTotal float64 `json:"unrealizedTotal"`
}

// Notional is the position's dollar exposure at fill
func (t *Trade) Notional() float64 { return t.Entry * t.Shares }

// Config tunes the admission gates and sizing
type Config struct {
	Cooldown      time.Duration
	MaxPerTicker  int
	VersionBudget float64
	AccountBudget float64
}

// DefaultConfig mirrors production: 2h cooldown, 3 positions per ticker,
// $25k per version bucket, $100k account-wide.
func DefaultConfig() Config {
	return Config{
		Cooldown:      2 * time.Hour,
		MaxPerTicker:  3,
		VersionBudget: 25_000,
		AccountBudget: 100_000,
	}
}

// Rejection reasons returned in the typed admission outcome
const (
	ReasonNotTradingSession = "NOT_TRADING_SESSION"
	ReasonCooldown          = "COOLDOWN_ACTIVE"
	ReasonTickerLimit       = "TICKER_LIMIT"
	ReasonOverBudget        = "OVER_BUDGET"
	ReasonMinShares         = "BELOW_MIN_SHARES"
	ReasonBadInput          = "BAD_INPUT"
)

// Admission is the typed outcome of an open attempt; a rejection is not an
// error.
type Admission struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
	Trade    *Trade `json:"trade,omitempty"`
}

// Journal owns the paper-trade ledger. Single writer, many readers. When a
// path is set every mutation is persisted best-effort.
type Journal struct {
	mu     sync.Mutex
	cfg    Config
	trades []*Trade

	activeVersion string
	isTrading     func() bool
	log           zerolog.Logger
	path          string

	now func() time.Time
}

// New creates a journal. isTrading gates admissions on the market session.
func New(cfg Config, activeVersion string, isTrading func() bool) *Journal {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.MaxPerTicker <= 0 {
		cfg.MaxPerTicker = DefaultConfig().MaxPerTicker
	}
	if cfg.VersionBudget <= 0 {
		cfg.VersionBudget = DefaultConfig().VersionBudget
	}
	if cfg.AccountBudget <= 0 {
		cfg.AccountBudget = DefaultConfig().AccountBudget
	}
	return &Journal{
		cfg:           cfg,
		activeVersion: activeVersion,
		isTrading:     isTrading,
		log:           zerolog.New(os.Stdout).With().Timestamp().Str("component", "journal").Logger(),
		now:           time.Now,
	}
}

// SetPath enables autosave to the given journal file
func (j *Journal) SetPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.path = path
}

// ActiveVersion returns the current A/B bucket tag
func (j *Journal) ActiveVersion() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.activeVersion
}

// SetActiveVersion switches the bucket new trades are tagged with. Existing
// trades keep their tag, so buckets remain comparable after a promotion.
func (j *Journal) SetActiveVersion(version string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if version != "" {
		j.activeVersion = version
	}
}

// Open runs the admission gates in order and, when all pass, opens a trade
// at fillPrice with the setup's levels rescaled to the fill.
func (j *Journal) Open(setup *market.Setup, fillPrice float64, features []float64) Admission {
	if setup == nil || fillPrice <= 0 {
		return Admission{Reason: ReasonBadInput}
	}
	if j.isTrading != nil && !j.isTrading() {
		return Admission{Reason: ReasonNotTradingSession}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	version := j.activeVersion
	now := j.now().UTC()

	// gate 2: cooldown per (ticker, direction, signalVersion)
	for _, t := range j.trades {
		if t.Ticker == setup.Ticker && t.Direction == setup.Direction &&
			t.SignalVersion == version && now.Sub(t.OpenedAt) < j.cfg.Cooldown {
			return Admission{Reason: ReasonCooldown}
		}
	}

	// gate 3: open positions per ticker within this version bucket
	open := 0
	for _, t := range j.trades {
		if t.Ticker == setup.Ticker && t.SignalVersion == version && t.Status == StatusPending {
			open++
		}
	}
	if open >= j.cfg.MaxPerTicker {
		return Admission{Reason: ReasonTickerLimit}
	}

	shares := j.sizeLocked(setup.Confidence, fillPrice, version)
	if shares < 1 {
		return Admission{Reason: ReasonOverBudget}
	}
	if shares < minShares(fillPrice) {
		return Admission{Reason: ReasonMinShares}
	}

	trade := &Trade{
		ID:            uuid.NewString(),
		Ticker:        setup.Ticker,
		Direction:     setup.Direction,
		Entry:         fillPrice,
		Shares:        shares,
		Target1:       setup.Target1,
		Target2:       setup.Target2,
		Stop:          setup.Stop,
		Horizon:       setup.Horizon,
		Confidence:    setup.Confidence,
		Features:      features,
		SignalVersion: version,
		OpenedAt:      now,
		Status:        StatusPending,
	}
	rescaleToFill(trade, setup)

	j.trades = append(j.trades, trade)
	j.log.Info().Str("ticker", trade.Ticker).Str("direction", string(trade.Direction)).
		Float64("fill", fillPrice).Float64("shares", shares).Str("version", version).
		Msg("paper trade opened")
	j.saveLocked()

	return Admission{Admitted: true, Trade: trade}
}

// rescaleThreshold is the fill deviation beyond which levels are rescaled
const rescaleThreshold = 0.001 // 0.1%

// rescaleToFill preserves the percentage distances of stop and targets from
// the fill when it deviates from the setup entry by more than 0.1%. A fill
// equal to the entry is a no-op.
func rescaleToFill(t *Trade, setup *market.Setup) {
	if setup.Entry <= 0 {
		return
	}
	if math.Abs(t.Entry-setup.Entry)/setup.Entry <= rescaleThreshold {
		return
	}
	ratio := t.Entry / setup.Entry
	t.Stop = setup.Stop * ratio
	t.Target1 = setup.Target1 * ratio
	t.Target2 = setup.Target2 * ratio
}

// sizeLocked computes the share count: half-Kelly over the closed history
// with a confidence modifier, clamped to [10%, 50%] of the version budget;
// with fewer than 10 closed trades, a confidence-scaled 10-40% allocation.
// The result is clamped to the remaining version and account budgets.
func (j *Journal) sizeLocked(confidence, price float64, version string) float64 {
	alloc := j.allocationLocked(confidence)
	notional := alloc * j.cfg.VersionBudget

	if remaining := j.cfg.VersionBudget - j.pendingNotionalLocked(version); notional > remaining {
		notional = remaining
	}
	if remaining := j.cfg.AccountBudget - j.pendingNotionalLocked(""); notional > remaining {
		notional = remaining
	}
	if notional <= 0 {
		return 0
	}

	// Budget clamps are hard: a count below the minimum-share floor is
	// rejected by the caller, never bumped past the remaining notional.
	return math.Floor(notional / price)
}

func (j *Journal) allocationLocked(confidence float64) float64 {
	wins, losses, payoff := 0, 0, 0.0
	var winSum, lossSum float64
	for _, t := range j.trades {
		if !t.Status.Closed() || t.Status == StatusExpired || t.Status == StatusClosed {
			continue
		}
		if t.Status.Win() {
			wins++
			winSum += math.Abs(t.PnLPct)
		} else {
			losses++
			lossSum += math.Abs(t.PnLPct)
		}
	}
	closed := wins + losses

	if closed < 10 {
		// confidence-scaled fallback: 10% at conf 0, 40% at conf 100
		return 0.10 + clamp01(confidence/100)*0.30
	}

	winRate := float64(wins) / float64(closed)
	avgWin := winSum / math.Max(float64(wins), 1)
	avgLoss := lossSum / math.Max(float64(losses), 1)
	if avgLoss > 0 {
		payoff = avgWin / avgLoss
	}
	if payoff <= 0 {
		payoff = 1
	}

	kelly := winRate - (1-winRate)/payoff
	alloc := kelly / 2 * clamp01(confidence/100+0.5)
	return math.Max(0.10, math.Min(0.50, alloc))
}

func (j *Journal) pendingNotionalLocked(version string) float64 {
	var total float64
	for _, t := range j.trades {
		if t.Status != StatusPending {
			continue
		}
		if version != "" && t.SignalVersion != version {
			continue
		}
		total += t.Notional()
	}
	return total
}

// minShares is the floor below which a position is not worth simulating
func minShares(price float64) float64 {
	switch {
	case price < 100:
		return 10
	case price < 500:
		return 5
	}
	return 2
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Trades returns a copy of the ledger
func (j *Journal) Trades() []*Trade {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Trade, len(j.trades))
	copy(out, j.trades)
	return out
}

// Pending returns the open positions
func (j *Journal) Pending() []*Trade {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*Trade
	for _, t := range j.trades {
		if t.Status == StatusPending {
			out = append(out, t)
		}
	}
	return out
}

// ===== Persistence =====

type journalFile struct {
	Trades []*Trade `json:"trades"`
	Stats  Stats    `json:"stats"`
}

// Save writes the ledger atomically to path
func (j *Journal) Save(path string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.saveTo(path)
}

func (j *Journal) saveLocked() {
	if j.path == "" {
		return
	}
	if err := j.saveTo(j.path); err != nil {
		j.log.Warn().Err(err).Msg("journal save failed")
	}
}

func (j *Journal) saveTo(path string) error {
	doc := journalFile{Trades: j.trades, Stats: j.statsLocked()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces the ledger from a journal file. A missing file is a clean
// start; a file that exists but cannot be parsed is fatal corruption and the
// caller should exit nonzero.
func (j *Journal) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var doc journalFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("journal file corrupted: %w", err)
	}

	j.mu.Lock()
	j.trades = doc.Trades
	j.mu.Unlock()
	j.log.Info().Int("trades", len(doc.Trades)).Msg("journal loaded")
	return nil
}
