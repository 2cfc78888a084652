// Package service assembles the dashboard summary payload: it fetches the
// caller's data, runs the aggregation engine, and caches the result per
// caller for rapid repeated loads.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/statement-pilot/internal/cache"
	"github.com/FACorreiaa/statement-pilot/internal/domain/analytics/engine"
	"github.com/FACorreiaa/statement-pilot/internal/domain/analytics/repository"
)

const (
	topCategoriesN  = 5
	topPayeesN      = 10
	unmappedPayeesN = 10
)

// Tiles are the headline numbers of the dashboard payload
type Tiles struct {
	CurrentBalance float64 `json:"currentBalance"`
	// WeeklyAvgSpend26 averages absolute outflow over 26 Monday-anchored weeks
	WeeklyAvgSpend26 float64 `json:"weeklyAvgSpend26"`
	// MonthlyNetFlow uses a rolling 30-day window ending now
	MonthlyNetFlow float64 `json:"monthlyNetFlow"`
}

// CategoryAmount is one entry of the top-categories list
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// PayeeAmount is one entry of the top-payees list
type PayeeAmount struct {
	Payee  string  `json:"payee"`
	Amount float64 `json:"amount"`
}

// Recurring is one detected or precomputed recurring payment
type Recurring struct {
	Payee            string  `json:"payee"`
	AvgAmount        float64 `json:"avg_amount"`
	Frequency        string  `json:"frequency"`
	LastDate         string  `json:"last_date"`
	NextExpectedDate string  `json:"next_expected_date"`
	Occurrences      int     `json:"occurrences"`
}

// UpcomingBill is a projected next charge
type UpcomingBill struct {
	Payee    string  `json:"payee"`
	Amount   float64 `json:"amount"`
	NextDate string  `json:"next_date"`
}

// WeekPoint is one bucket of the weekly spend chart
type WeekPoint struct {
	WeekStart string  `json:"weekStart"`
	Amount    float64 `json:"amount"`
}

// Charts groups the chart series of the payload
type Charts struct {
	WeeklySeries26 []WeekPoint `json:"weeklySeries26"`
}

// Scenario is one savings suggestion with linear projections
type Scenario struct {
	WeeklyAmount float64 `json:"weeklyAmount"`
	Weeks12      float64 `json:"projected12Weeks"`
	Weeks26      float64 `json:"projected26Weeks"`
}

// SavingsScenarios holds the three fixed-percentage suggestions
type SavingsScenarios struct {
	BaselineWeekly float64  `json:"baselineWeekly"`
	Conservative   Scenario `json:"conservative"`
	Moderate       Scenario `json:"moderate"`
	Aggressive     Scenario `json:"aggressive"`
}

// UnmappedPayee is a mapping-rule suggestion for a human reviewer
type UnmappedPayee struct {
	Payee string `json:"payee"`
	Count int    `json:"count"`
}

// Summary is the full dashboard payload
type Summary struct {
	Cached           bool             `json:"cached"`
	GeneratedAt      time.Time        `json:"generated_at"`
	Tiles            Tiles            `json:"tiles"`
	TopCategories    []CategoryAmount `json:"topCategories"`
	TopPayees        []PayeeAmount    `json:"topPayees"`
	Recurring        []Recurring      `json:"recurring"`
	UpcomingBills    []UpcomingBill   `json:"upcomingBills"`
	Charts           Charts           `json:"charts"`
	SavingsScenarios SavingsScenarios `json:"savingsScenarios"`
	UnmappedPayees   []UnmappedPayee  `json:"unmappedPayees"`
}

// DashboardService computes dashboard summaries with a read-through cache
type DashboardService struct {
	repo       repository.AnalyticsRepository
	cache      cache.Cache[*Summary]
	logger     *slog.Logger
	thresholds engine.Thresholds
	now        func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(repo repository.AnalyticsRepository, c cache.Cache[*Summary], thresholds engine.Thresholds, logger *slog.Logger) *DashboardService {
	if c == nil {
		c = cache.Noop[*Summary]{}
	}
	return &DashboardService{
		repo:       repo,
		cache:      c,
		logger:     logger,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Summary returns the caller's dashboard payload, reusing a cached one
// when fresh. A failing transaction fetch is fatal; mapping and recurring
// summary fetches degrade to empty sub-results.
func (s *DashboardService) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	key := userID.String()
	if cached, ok := s.cache.Get(key); ok {
		hit := *cached
		hit.Cached = true
		return &hit, nil
	}

	var (
		txs       []repository.Transaction
		recurring []repository.RecurringSummary
		mappings  []repository.PayeeMapping
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.repo.ListTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recurring, err = s.repo.ListRecurringSummary(gctx, userID)
		if err != nil {
			s.logger.Warn("recurring summary unavailable, falling back to heuristic", "error", err)
			recurring = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		mappings, err = s.repo.ListMappings(gctx)
		if err != nil {
			s.logger.Warn("payee mappings unavailable, skipping unmapped payees", "error", err)
			mappings = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := s.build(txs, recurring, mappings)
	s.cache.Set(key, summary)

	return summary, nil
}

// Invalidate drops the caller's cached summary, e.g. after an import
func (s *DashboardService) Invalidate(userID uuid.UUID) {
	s.cache.Delete(userID.String())
}

func (s *DashboardService) build(txs []repository.Transaction, precomputed []repository.RecurringSummary, mappings []repository.PayeeMapping) *Summary {
	now := s.now()

	tiles := engine.ComputeTiles(txs, now)
	series := engine.WeeklySeries(txs, engine.DefaultWeeks, now)
	topCategories := engine.TopBy(txs, func(tx repository.Transaction) string { return tx.Category }, topCategoriesN)
	topPayees := engine.TopBy(txs, func(tx repository.Transaction) string { return tx.PayeeClean }, topPayeesN)

	// The precomputed summary and the heuristic are mutually exclusive per
	// request, never merged.
	var candidates []engine.RecurringCandidate
	if len(precomputed) > 0 {
		candidates = make([]engine.RecurringCandidate, 0, len(precomputed))
		for _, r := range precomputed {
			candidates = append(candidates, engine.RecurringCandidate{
				Payee:            r.Payee,
				AvgAmount:        r.AvgAmount,
				Frequency:        r.Frequency,
				LastDate:         r.LastDate,
				NextExpectedDate: r.NextExpectedDate,
				Occurrences:      r.Occurrences,
			})
		}
	} else {
		candidates = engine.DetectRecurring(txs, s.thresholds, now)
	}

	scenarios := engine.SavingsScenarios(txs, now)

	summary := &Summary{
		GeneratedAt: now.UTC(),
		Tiles: Tiles{
			CurrentBalance:   tiles.CurrentBalance.InexactFloat64(),
			WeeklyAvgSpend26: tiles.WeeklyAvgSpend.InexactFloat64(),
			MonthlyNetFlow:   tiles.MonthlyNetFlow.InexactFloat64(),
		},
		TopCategories:  make([]CategoryAmount, 0, len(topCategories)),
		TopPayees:      make([]PayeeAmount, 0, len(topPayees)),
		Recurring:      make([]Recurring, 0, len(candidates)),
		UpcomingBills:  make([]UpcomingBill, 0, len(candidates)),
		Charts:         Charts{WeeklySeries26: make([]WeekPoint, 0, len(series))},
		UnmappedPayees: make([]UnmappedPayee, 0, unmappedPayeesN),
		SavingsScenarios: SavingsScenarios{
			BaselineWeekly: scenarios.BaselineWeekly.InexactFloat64(),
			Conservative:   toScenario(scenarios.Conservative),
			Moderate:       toScenario(scenarios.Moderate),
			Aggressive:     toScenario(scenarios.Aggressive),
		},
	}

	for _, g := range topCategories {
		summary.TopCategories = append(summary.TopCategories, CategoryAmount{Category: g.Key, Amount: g.Amount.InexactFloat64()})
	}
	for _, g := range topPayees {
		summary.TopPayees = append(summary.TopPayees, PayeeAmount{Payee: g.Key, Amount: g.Amount.InexactFloat64()})
	}
	for _, c := range candidates {
		summary.Recurring = append(summary.Recurring, Recurring{
			Payee:            c.Payee,
			AvgAmount:        c.AvgAmount.InexactFloat64(),
			Frequency:        c.Frequency,
			LastDate:         c.LastDate.Format("2006-01-02"),
			NextExpectedDate: c.NextExpectedDate.Format("2006-01-02"),
			Occurrences:      c.Occurrences,
		})
	}
	for _, b := range engine.UpcomingBills(candidates) {
		summary.UpcomingBills = append(summary.UpcomingBills, UpcomingBill{
			Payee:    b.Payee,
			Amount:   b.Amount.InexactFloat64(),
			NextDate: b.NextDate.Format("2006-01-02"),
		})
	}
	for _, w := range series {
		summary.Charts.WeeklySeries26 = append(summary.Charts.WeeklySeries26, WeekPoint{
			WeekStart: w.WeekStart.Format("2006-01-02"),
			Amount:    w.Amount.InexactFloat64(),
		})
	}
	for _, p := range engine.UnmappedPayees(txs, mappings, unmappedPayeesN) {
		summary.UnmappedPayees = append(summary.UnmappedPayees, UnmappedPayee{Payee: p.Payee, Count: p.Count})
	}

	return summary
}

func toScenario(p engine.ScenarioProjection) Scenario {
	return Scenario{
		WeeklyAmount: p.WeeklyAmount.InexactFloat64(),
		Weeks12:      p.Weeks12.InexactFloat64(),
		Weeks26:      p.Weeks26.InexactFloat64(),
	}
}
