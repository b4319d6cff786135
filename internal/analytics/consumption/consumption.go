// Package consumption mines the closed-ticket archive for ingredient usage
// patterns and turns them into stockout predictions, low-stock warnings, and
// short-range forecasts.
package consumption

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/inventory"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/orders"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

// Severity buckets a warning by hours until stockout.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// stockoutBuffer pads every prediction for demand variability.
const stockoutBuffer = 2 * time.Hour

// IngredientPattern is the usage profile of one ingredient.
type IngredientPattern struct {
	TotalUsage       float64        `json:"total_usage"`
	AvgUsagePerOrder float64        `json:"avg_usage_per_order"`
	UsageVolatility  float64        `json:"usage_volatility"`
	AvgDailyUsage    float64        `json:"avg_daily_usage"`
	AvgHourlyUsage   float64        `json:"avg_hourly_usage"`
	PeakHours        []int          `json:"peak_hours"`
	PeakDays         []time.Weekday `json:"peak_days"`
	MenuItems        []string       `json:"menu_items"`
	EventCount       int            `json:"usage_events_count"`
	TimeSpanDays     int            `json:"time_span_days"`
}

// PatternReport is the full consumption analysis for a tenant.
type PatternReport struct {
	PerIngredient      map[string]IngredientPattern `json:"per_ingredient"`
	TicketsAnalyzed    int                          `json:"total_tickets_analyzed"`
	AnalysisPeriodDays int                          `json:"analysis_period_days"`
}

// StockWarning flags an ingredient predicted to run out soon.
type StockWarning struct {
	IngredientID      string    `json:"ingredient_id"`
	IngredientName    string    `json:"ingredient_name"`
	CurrentQuantity   float64   `json:"current_quantity"`
	Unit              string    `json:"unit"`
	Severity          Severity  `json:"severity"`
	PredictedRunout   time.Time `json:"predicted_runout"`
	ConsumptionRate   float64   `json:"consumption_rate"`
	DaysRemaining     float64   `json:"days_remaining"`
	Supplier          string    `json:"supplier,omitempty"`
	CostPerUnit       string    `json:"cost_per_unit"`
	UsageVolatility   float64   `json:"usage_volatility"`
	MenuItemsAffected []string  `json:"menu_items_affected"`
}

// Forecast projects near-term usage for one ingredient.
type Forecast struct {
	IngredientID     string  `json:"ingredient_id"`
	PredictedUsage24 float64 `json:"predicted_usage_24h"`
	PredictedUsage48 float64 `json:"predicted_usage_48h"`
	PredictedUsage   float64 `json:"predicted_usage"`
	HoursAhead       int     `json:"hours_ahead"`
	ConfidenceLevel  float64 `json:"confidence_level"`
	PeakUsageHours   []int   `json:"peak_usage_hours"`
	AvgHourlyUsage   float64 `json:"avg_hourly_usage"`
	UsageVolatility  float64 `json:"usage_volatility"`
	DataPoints       int     `json:"data_points"`
	TimeSpanDays     int     `json:"time_span_days"`
}

// Analyzer derives consumption reports from the event archive. Nothing it
// produces is persisted.
type Analyzer struct {
	store store.Store
	logg  *logger.Logger

	now func() time.Time
}

func NewAnalyzer(st store.Store, logg *logger.Logger) (*Analyzer, error) {
	if st == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "consumption: store is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "consumption: logger is required")
	}
	return &Analyzer{store: st, logg: logg, now: time.Now}, nil
}

type usageEvent struct {
	quantity float64
	at       time.Time
	menuItem string
}

// AnalyzePatterns scans every closed ticket and profiles each ingredient any
// order line consumed. A tenant with no closed tickets is NO_DATA.
func (a *Analyzer) AnalyzePatterns(ctx context.Context, tenantKey string) (PatternReport, error) {
	events, err := a.store.GetEvents(ctx, tenantKey, "closed_ticket")
	if err != nil {
		return PatternReport{}, err
	}
	if len(events) == 0 {
		return PatternReport{}, pkgerrors.Newf(pkgerrors.CodeNoData,
			"no closed tickets for tenant %s", tenantKey)
	}

	usage := map[string][]usageEvent{}
	for _, ev := range events {
		var ticket orders.Ticket
		if err := ev.Decode(&ticket); err != nil {
			return PatternReport{}, err
		}
		for _, order := range ticket.Orders {
			for _, line := range order.Items {
				for _, ing := range line.Ingredients {
					usage[ing.ID] = append(usage[ing.ID], usageEvent{
						quantity: ing.Quantity,
						at:       ev.CreatedAt,
						menuItem: line.Name,
					})
				}
			}
		}
	}

	report := PatternReport{
		PerIngredient:   make(map[string]IngredientPattern, len(usage)),
		TicketsAnalyzed: len(events),
	}
	for id, ingredientEvents := range usage {
		pattern := buildPattern(ingredientEvents)
		report.PerIngredient[id] = pattern
		if pattern.TimeSpanDays > report.AnalysisPeriodDays {
			report.AnalysisPeriodDays = pattern.TimeSpanDays
		}
	}
	return report, nil
}

func buildPattern(events []usageEvent) IngredientPattern {
	total := 0.0
	first, last := events[0].at, events[0].at
	hourly := map[int]float64{}
	daily := map[time.Weekday]float64{}
	menuItems := map[string]bool{}
	quantities := make([]float64, 0, len(events))

	for _, ev := range events {
		total += ev.quantity
		quantities = append(quantities, ev.quantity)
		if ev.at.Before(first) {
			first = ev.at
		}
		if ev.at.After(last) {
			last = ev.at
		}
		hourly[ev.at.Hour()] += ev.quantity
		daily[ev.at.Weekday()] += ev.quantity
		menuItems[ev.menuItem] = true
	}

	daysSpan := int(last.Sub(first).Hours() / 24)
	if daysSpan < 1 {
		daysSpan = 1
	}

	items := make([]string, 0, len(menuItems))
	for item := range menuItems {
		items = append(items, item)
	}
	sort.Strings(items)

	return IngredientPattern{
		TotalUsage:       total,
		AvgUsagePerOrder: total / float64(len(events)),
		UsageVolatility:  stdev(quantities),
		AvgDailyUsage:    total / float64(daysSpan),
		AvgHourlyUsage:   total / float64(daysSpan*24),
		PeakHours:        peakHours(hourly, 3),
		PeakDays:         peakDays(daily, 2),
		MenuItems:        items,
		EventCount:       len(events),
		TimeSpanDays:     daysSpan,
	}
}

// PredictStockoutTime projects the stockout moment from the current quantity
// and an hourly consumption rate. A non-positive rate reads as "never",
// represented as a year out.
func (a *Analyzer) PredictStockoutTime(currentQuantity, hourlyRate float64) time.Time {
	now := a.now()
	if hourlyRate <= 0 {
		return now.Add(365 * 24 * time.Hour)
	}
	hours := currentQuantity / hourlyRate
	return now.Add(time.Duration(hours*float64(time.Hour)) + stockoutBuffer)
}

// LowStockWarnings flags every stocked ingredient with consumption history
// that is predicted to run out before the end of tomorrow, most urgent
// first. A tenant with no history is NO_DATA.
func (a *Analyzer) LowStockWarnings(ctx context.Context, tenantKey string) ([]StockWarning, error) {
	inv, err := inventory.NewManager(ctx, a.store, a.logg, tenantKey)
	if err != nil {
		return nil, err
	}
	report, err := a.AnalyzePatterns(ctx, tenantKey)
	if err != nil {
		return nil, err
	}

	now := a.now()
	horizon := now.Add(24*time.Hour + 23*time.Hour + 59*time.Minute)

	var warnings []StockWarning
	for _, ing := range inv.Inventory() {
		pattern, ok := report.PerIngredient[ing.ID]
		if !ok || pattern.AvgHourlyUsage <= 0 {
			continue
		}

		predicted := a.PredictStockoutTime(ing.Quantity, pattern.AvgHourlyUsage)
		if predicted.After(horizon) {
			continue
		}

		hoursLeft := predicted.Sub(now).Hours()
		warnings = append(warnings, StockWarning{
			IngredientID:      ing.ID,
			IngredientName:    ing.Name,
			CurrentQuantity:   ing.Quantity,
			Unit:              ing.Unit,
			Severity:          severityFor(hoursLeft),
			PredictedRunout:   predicted,
			ConsumptionRate:   pattern.AvgHourlyUsage,
			DaysRemaining:     hoursLeft / 24,
			Supplier:          ing.Supplier,
			CostPerUnit:       ing.Cost.String(),
			UsageVolatility:   pattern.UsageVolatility,
			MenuItemsAffected: pattern.MenuItems,
		})
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if severityRank[warnings[i].Severity] != severityRank[warnings[j].Severity] {
			return severityRank[warnings[i].Severity] < severityRank[warnings[j].Severity]
		}
		return warnings[i].PredictedRunout.Before(warnings[j].PredictedRunout)
	})
	return warnings, nil
}

// ConsumptionForecast projects usage for one ingredient hoursAhead into the
// future, with a confidence level from data volume, span, and volatility.
// An ingredient with no usage history is NO_DATA.
func (a *Analyzer) ConsumptionForecast(ctx context.Context, tenantKey, ingredientID string, hoursAhead int) (Forecast, error) {
	if hoursAhead <= 0 {
		hoursAhead = 48
	}
	report, err := a.AnalyzePatterns(ctx, tenantKey)
	if err != nil {
		return Forecast{}, err
	}
	pattern, ok := report.PerIngredient[ingredientID]
	if !ok {
		return Forecast{}, pkgerrors.Newf(pkgerrors.CodeNoData,
			"no consumption history for ingredient %s", ingredientID)
	}

	dataConfidence := (float64(pattern.EventCount) / 50) * (float64(pattern.TimeSpanDays) / 30)
	if dataConfidence > 1 {
		dataConfidence = 1
	}
	volatilityFactor := 0.1
	if pattern.AvgHourlyUsage > 0 {
		volatilityFactor = 1 - pattern.UsageVolatility/pattern.AvgHourlyUsage
		if volatilityFactor < 0.1 {
			volatilityFactor = 0.1
		}
	}

	return Forecast{
		IngredientID:     ingredientID,
		PredictedUsage24: pattern.AvgHourlyUsage * 24,
		PredictedUsage48: pattern.AvgHourlyUsage * 48,
		PredictedUsage:   pattern.AvgHourlyUsage * float64(hoursAhead),
		HoursAhead:       hoursAhead,
		ConfidenceLevel:  dataConfidence * volatilityFactor,
		PeakUsageHours:   pattern.PeakHours,
		AvgHourlyUsage:   pattern.AvgHourlyUsage,
		UsageVolatility:  pattern.UsageVolatility,
		DataPoints:       pattern.EventCount,
		TimeSpanDays:     pattern.TimeSpanDays,
	}, nil
}

func severityFor(hoursLeft float64) Severity {
	switch {
	case hoursLeft <= 6:
		return SeverityCritical
	case hoursLeft <= 12:
		return SeverityHigh
	case hoursLeft <= 24:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// stdev is the sample standard deviation; 0 under two samples.
func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// peakHours returns the top-n hours by summed usage, usage descending and
// hour ascending on ties.
func peakHours(usage map[int]float64, n int) []int {
	type pair struct {
		hour  int
		total float64
	}
	pairs := make([]pair, 0, len(usage))
	for hour, total := range usage {
		pairs = append(pairs, pair{hour, total})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].total != pairs[j].total {
			return pairs[i].total > pairs[j].total
		}
		return pairs[i].hour < pairs[j].hour
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]int, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.hour)
	}
	return out
}

func peakDays(usage map[time.Weekday]float64, n int) []time.Weekday {
	type pair struct {
		day   time.Weekday
		total float64
	}
	pairs := make([]pair, 0, len(usage))
	for day, total := range usage {
		pairs = append(pairs, pair{day, total})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].total != pairs[j].total {
			return pairs[i].total > pairs[j].total
		}
		return pairs[i].day < pairs[j].day
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]time.Weekday, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.day)
	}
	return out
}
