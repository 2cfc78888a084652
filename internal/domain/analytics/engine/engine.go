// Package engine computes dashboard aggregates from canonical
// transactions: balance tiles, weekly spend series, top groups, recurring
// payment detection, and savings projections. All functions are pure over
// their inputs; the reference time is always passed in explicitly.
package engine

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-pilot/internal/domain/analytics/repository"
)

// Frequency classification for recurring candidates
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyUnknown = "unknown"
)

// DefaultWeeks is the trailing window used by the weekly spend series
const DefaultWeeks = 26

// Thresholds are the recurring-detection heuristics. Monthly bills show
// ~28-31 day gaps with weekend-shift jitter; weekly and biweekly
// subscriptions cluster under ten days. Tunable configuration, not fixed
// law.
type Thresholds struct {
	LookbackDays    int
	MinOccurrences  int
	MinIntervalDays float64
	MaxIntervalDays float64
	MaxIntervalSD   float64
	WeeklyMaxDays   float64
}

// DefaultThresholds returns the observed defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		LookbackDays:    90,
		MinOccurrences:  3,
		MinIntervalDays: 6,
		MaxIntervalDays: 40,
		MaxIntervalSD:   15,
		WeeklyMaxDays:   10,
	}
}

// Tiles are the headline dashboard numbers
type Tiles struct {
	CurrentBalance decimal.Decimal
	// WeeklyAvgSpend is the mean, over the trailing 26 Monday-anchored
	// weeks, of per-week summed absolute outflow.
	WeeklyAvgSpend decimal.Decimal
	// MonthlyNetFlow sums amounts over a rolling 30-day window ending at
	// the reference time (not a calendar month).
	MonthlyNetFlow decimal.Decimal
}

// WeekSpend is one bucket of the weekly spend series
type WeekSpend struct {
	WeekStart time.Time
	Amount    decimal.Decimal
}

// GroupAmount is a signed amount summed per grouping key
type GroupAmount struct {
	Key    string
	Amount decimal.Decimal
}

// RecurringCandidate summarizes a payee group statistically consistent
// with a repeating bill or subscription.
type RecurringCandidate struct {
	Payee            string
	AvgAmount        decimal.Decimal
	Frequency        string
	LastDate         time.Time
	NextExpectedDate time.Time
	Occurrences      int
}

// UpcomingBill projects the next expected charge of a recurring candidate
type UpcomingBill struct {
	Payee    string
	Amount   decimal.Decimal
	NextDate time.Time
}

// ScenarioProjection is one suggested weekly savings amount with linear
// projections (simple multiplication, no compounding).
type ScenarioProjection struct {
	WeeklyAmount decimal.Decimal
	Weeks12      decimal.Decimal
	Weeks26      decimal.Decimal
}

// ScenarioSet holds the three fixed savings scenarios
type ScenarioSet struct {
	BaselineWeekly decimal.Decimal
	Conservative   ScenarioProjection // 5%
	Moderate       ScenarioProjection // 10%
	Aggressive     ScenarioProjection // 15%
}

// PayeeCount is a payee with its raw occurrence frequency
type PayeeCount struct {
	Payee string
	Count int
}

// ComputeTiles computes the headline dashboard numbers
func ComputeTiles(txs []repository.Transaction, now time.Time) Tiles {
	balance := decimal.Zero
	for _, tx := range txs {
		balance = balance.Add(tx.Amount)
	}

	series := WeeklySeries(txs, DefaultWeeks, now)
	spendTotal := decimal.Zero
	for _, w := range series {
		spendTotal = spendTotal.Add(w.Amount)
	}
	weeklyAvg := spendTotal.Div(decimal.NewFromInt(DefaultWeeks)).Round(2)

	cutoff := now.AddDate(0, 0, -30)
	monthly := decimal.Zero
	for _, tx := range txs {
		if tx.Date.Before(cutoff) || tx.Date.After(now) {
			continue
		}
		monthly = monthly.Add(tx.Amount)
	}

	return Tiles{
		CurrentBalance: balance,
		WeeklyAvgSpend: weeklyAvg,
		MonthlyNetFlow: monthly,
	}
}

// WeeklySeries partitions spend (absolute outflow) into `weeks`
// consecutive Monday-to-Sunday buckets ending at the current week. The
// series always has exactly `weeks` entries, oldest to newest; empty
// weeks report zero.
func WeeklySeries(txs []repository.Transaction, weeks int, now time.Time) []WeekSpend {
	firstStart := weekStart(now).AddDate(0, 0, -7*(weeks-1))

	series := make([]WeekSpend, weeks)
	for i := range series {
		series[i] = WeekSpend{
			WeekStart: firstStart.AddDate(0, 0, 7*i),
			Amount:    decimal.Zero,
		}
	}

	for _, tx := range txs {
		if tx.Amount.Sign() >= 0 {
			continue
		}
		idx := int(weekStart(tx.Date).Sub(firstStart).Hours() / (24 * 7))
		if idx < 0 || idx >= weeks {
			continue
		}
		series[idx].Amount = series[idx].Amount.Add(tx.Amount.Abs())
	}

	return series
}

// TopBy groups transactions by key, sums signed amounts, and returns the
// top n groups by absolute sum so large expenses and large inflows both
// surface. Ties keep first-encountered order.
func TopBy(txs []repository.Transaction, keyFn func(repository.Transaction) string, n int) []GroupAmount {
	index := make(map[string]int)
	var groups []GroupAmount
	for _, tx := range txs {
		key := keyFn(tx)
		if i, ok := index[key]; ok {
			groups[i].Amount = groups[i].Amount.Add(tx.Amount)
		} else {
			index[key] = len(groups)
			groups = append(groups, GroupAmount{Key: key, Amount: tx.Amount})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Amount.Abs().GreaterThan(groups[j].Amount.Abs())
	})

	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

// DetectRecurring finds payee groups inside the lookback window whose
// consecutive day-gaps are regular enough to look like a bill: at least
// MinOccurrences members, mean interval within [MinIntervalDays,
// MaxIntervalDays], and population standard deviation at most
// MaxIntervalSD.
func DetectRecurring(txs []repository.Transaction, th Thresholds, now time.Time) []RecurringCandidate {
	cutoff := now.AddDate(0, 0, -th.LookbackDays)

	index := make(map[string]int)
	var groups [][]repository.Transaction
	for _, tx := range txs {
		if tx.Date.Before(cutoff) || tx.PayeeNorm == "" {
			continue
		}
		if i, ok := index[tx.PayeeNorm]; ok {
			groups[i] = append(groups[i], tx)
		} else {
			index[tx.PayeeNorm] = len(groups)
			groups = append(groups, []repository.Transaction{tx})
		}
	}

	var candidates []RecurringCandidate
	for _, group := range groups {
		if len(group) < th.MinOccurrences {
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date.Before(group[j].Date)
		})

		gaps := make([]float64, 0, len(group)-1)
		for i := 1; i < len(group); i++ {
			gaps = append(gaps, group[i].Date.Sub(group[i-1].Date).Hours()/24)
		}

		avgInterval := mean(gaps)
		sd := populationStdDev(gaps, avgInterval)
		if avgInterval < th.MinIntervalDays || avgInterval > th.MaxIntervalDays || sd > th.MaxIntervalSD {
			continue
		}

		frequency := FrequencyMonthly
		if avgInterval <= th.WeeklyMaxDays {
			frequency = FrequencyWeekly
		}

		total := decimal.Zero
		for _, tx := range group {
			total = total.Add(tx.Amount)
		}

		last := group[len(group)-1]
		candidates = append(candidates, RecurringCandidate{
			Payee:            last.PayeeClean,
			AvgAmount:        total.Div(decimal.NewFromInt(int64(len(group)))).Round(2),
			Frequency:        frequency,
			LastDate:         last.Date,
			NextExpectedDate: last.Date.AddDate(0, 0, int(math.Round(avgInterval))),
			Occurrences:      len(group),
		})
	}

	return candidates
}

// UpcomingBills projects each recurring candidate's next expected charge
func UpcomingBills(candidates []RecurringCandidate) []UpcomingBill {
	bills := make([]UpcomingBill, 0, len(candidates))
	for _, c := range candidates {
		bills = append(bills, UpcomingBill{
			Payee:    c.Payee,
			Amount:   c.AvgAmount,
			NextDate: c.NextExpectedDate,
		})
	}
	return bills
}

// SavingsScenarios suggests weekly savings amounts at 5/10/15% of a
// baseline weekly figure: the trailing 7-day net flow when non-zero,
// otherwise the negated 26-week average spend.
func SavingsScenarios(txs []repository.Transaction, now time.Time) ScenarioSet {
	cutoff := now.AddDate(0, 0, -7)
	baseline := decimal.Zero
	for _, tx := range txs {
		if tx.Date.Before(cutoff) || tx.Date.After(now) {
			continue
		}
		baseline = baseline.Add(tx.Amount)
	}

	if baseline.IsZero() {
		baseline = ComputeTiles(txs, now).WeeklyAvgSpend.Neg()
	}

	base := baseline.Abs()
	return ScenarioSet{
		BaselineWeekly: baseline,
		Conservative:   project(base, decimal.NewFromFloat(0.05)),
		Moderate:       project(base, decimal.NewFromFloat(0.10)),
		Aggressive:     project(base, decimal.NewFromFloat(0.15)),
	}
}

// UnmappedPayees returns the n most frequent raw payees not already
// covered by a mapping's normalized name. A suggestion list for a human
// to turn into new rules, never an automatic classification.
func UnmappedPayees(txs []repository.Transaction, mappings []repository.PayeeMapping, n int) []PayeeCount {
	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.Normalized != "" {
			mapped[strings.ToLower(m.Normalized)] = true
		}
	}

	index := make(map[string]int)
	var counts []PayeeCount
	for _, tx := range txs {
		if tx.PayeeClean == "" || mapped[strings.ToLower(tx.PayeeClean)] {
			continue
		}
		if i, ok := index[tx.PayeeClean]; ok {
			counts[i].Count++
		} else {
			index[tx.PayeeClean] = len(counts)
			counts = append(counts, PayeeCount{Payee: tx.PayeeClean, Count: 1})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func project(base, pct decimal.Decimal) ScenarioProjection {
	weekly := base.Mul(pct).Round(2)
	return ScenarioProjection{
		WeeklyAmount: weekly,
		Weeks12:      weekly.Mul(decimal.NewFromInt(12)),
		Weeks26:      weekly.Mul(decimal.NewFromInt(26)),
	}
}

// weekStart returns the Monday of the week containing t, at midnight UTC
func weekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStdDev(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - avg
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
