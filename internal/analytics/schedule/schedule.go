// Package schedule scores staffing adequacy: slot coverage against a static
// demand table, individual utilization patterns, and ranked replacement
// suggestions when someone calls in absent.
package schedule

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/staff"
	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

// timeSlots are the five fixed analysis windows. The last one runs past
// midnight.
var timeSlots = [][2]string{
	{"06:00", "10:00"},
	{"10:00", "14:00"},
	{"14:00", "18:00"},
	{"18:00", "22:00"},
	{"22:00", "02:00"},
}

// roleDemands is the expected headcount per role per slot.
var roleDemands = map[staff.RoleType]map[string]int{
	staff.RoleChef:      {"06:00-10:00": 1, "10:00-14:00": 2, "14:00-18:00": 1, "18:00-22:00": 2, "22:00-02:00": 1},
	staff.RoleCook:      {"06:00-10:00": 1, "10:00-14:00": 2, "14:00-18:00": 1, "18:00-22:00": 2, "22:00-02:00": 1},
	staff.RoleWaiter:    {"06:00-10:00": 1, "10:00-14:00": 3, "14:00-18:00": 1, "18:00-22:00": 4, "22:00-02:00": 2},
	staff.RoleHost:      {"06:00-10:00": 0, "10:00-14:00": 1, "14:00-18:00": 0, "18:00-22:00": 1, "22:00-02:00": 0},
	staff.RoleBartender: {"06:00-10:00": 0, "10:00-14:00": 1, "14:00-18:00": 0, "18:00-22:00": 2, "22:00-02:00": 1},
	staff.RoleManager:   {"06:00-10:00": 0, "10:00-14:00": 1, "14:00-18:00": 0, "18:00-22:00": 1, "22:00-02:00": 0},
}

// compatibility scores role pairs for absence replacement. Same role type is
// always 1.0; unlisted pairs default to 0.1.
var compatibility = map[staff.RoleType]map[staff.RoleType]float64{
	staff.RoleChef:      {staff.RoleCook: 0.8, staff.RoleManager: 0.3},
	staff.RoleCook:      {staff.RoleChef: 0.8, staff.RoleManager: 0.3},
	staff.RoleWaiter:    {staff.RoleHost: 0.6, staff.RoleBartender: 0.4},
	staff.RoleHost:      {staff.RoleWaiter: 0.6, staff.RoleManager: 0.5},
	staff.RoleBartender: {staff.RoleWaiter: 0.4},
	staff.RoleManager:   {staff.RoleChef: 0.3, staff.RoleCook: 0.3, staff.RoleHost: 0.5},
}

// CoverageMetric is the staffing picture for one day/slot combination.
type CoverageMetric struct {
	DayOfWeek      string           `json:"day_of_week"`
	TimeSlot       string           `json:"time_slot"`
	TotalStaff     int              `json:"total_staff"`
	RolesCovered   []staff.RoleType `json:"roles_covered"`
	CoverageScore  float64          `json:"coverage_score"`
	IsUnderstaffed bool             `json:"is_understaffed"`
	IsOverstaffed  bool             `json:"is_overstaffed"`
}

// UtilizationMetric describes one member's weekly work pattern.
type UtilizationMetric struct {
	StaffID          string  `json:"staff_id"`
	StaffName        string  `json:"staff_name"`
	Role             string  `json:"role"`
	WeeklyHours      float64 `json:"total_hours_per_week"`
	ConsecutiveDays  int     `json:"consecutive_days"`
	IsOverworked     bool    `json:"is_overworked"`
	IsUnderutilized  bool    `json:"is_underutilized"`
	WorkPatternScore float64 `json:"work_pattern_score"`
}

// ReplacementSuggestion is one ranked candidate to cover an absence.
type ReplacementSuggestion struct {
	StaffID       string  `json:"staff_id"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Compatibility float64 `json:"compatibility_score"`
	IsAvailable   bool    `json:"is_available"`
	Priority      float64 `json:"priority"`
}

// WeaknessReport aggregates coverage and utilization problems.
type WeaknessReport struct {
	OverallCoverageScore float64             `json:"overall_coverage_score"`
	UnderstaffedSlots    []CoverageMetric    `json:"understaffed_slots"`
	OverstaffedSlots     []CoverageMetric    `json:"overstaffed_slots"`
	OverworkedStaff      []UtilizationMetric `json:"overworked_staff"`
	UnderutilizedStaff   []UtilizationMetric `json:"underutilized_staff"`
	TotalWeaknesses      int                 `json:"total_weaknesses"`
}

// Analyzer computes schedule reports. It builds a fresh staff view per call
// so results always reflect persisted state.
type Analyzer struct {
	store store.Store
	logg  *logger.Logger
}

func NewAnalyzer(st store.Store, logg *logger.Logger) (*Analyzer, error) {
	if st == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "schedule: store is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "schedule: logger is required")
	}
	return &Analyzer{store: st, logg: logg}, nil
}

// AnalyzeCoverage scores every day/slot combination of the week.
func (a *Analyzer) AnalyzeCoverage(ctx context.Context, tenantKey string) ([]CoverageMetric, error) {
	mgr, err := staff.NewManager(ctx, a.store, a.logg, tenantKey)
	if err != nil {
		return nil, err
	}

	metrics := make([]CoverageMetric, 0, len(staff.WeekdayNames)*len(timeSlots))
	for _, day := range staff.WeekdayNames {
		for _, slot := range timeSlots {
			slotName := slot[0] + "-" + slot[1]

			available, err := mgr.AvailableStaff(day, slot[0])
			if err != nil {
				return nil, err
			}

			roleCounts := map[staff.RoleType]int{}
			for _, member := range available {
				roleCounts[member.RoleType()]++
			}

			totalDemand := 0
			for role := range roleCounts {
				totalDemand += roleDemands[role][slotName]
			}

			metrics = append(metrics, CoverageMetric{
				DayOfWeek:      day,
				TimeSlot:       slotName,
				TotalStaff:     len(available),
				RolesCovered:   sortedRoles(roleCounts),
				CoverageScore:  coverageScore(roleCounts, slotName),
				IsUnderstaffed: float64(len(available)) < float64(totalDemand)*0.8,
				IsOverstaffed:  float64(len(available)) > float64(totalDemand)*1.3,
			})
		}
	}
	return metrics, nil
}

// coverageScore averages min(observed/demand, 1) over the observed roles
// with nonzero demand in the slot. Roles without demand are excluded; with
// none qualifying the score is 0.
func coverageScore(roleCounts map[staff.RoleType]int, slotName string) float64 {
	total := 0.0
	scored := 0
	for role, count := range roleCounts {
		demands, ok := roleDemands[role]
		if !ok {
			continue
		}
		demand := demands[slotName]
		if demand <= 0 {
			continue
		}
		ratio := float64(count) / float64(demand)
		if ratio > 1 {
			ratio = 1
		}
		total += ratio
		scored++
	}
	if scored == 0 {
		return 0
	}
	return total / float64(scored)
}

// AnalyzeUtilization reports each active member's weekly work pattern.
// An empty active roster is NO_DATA.
func (a *Analyzer) AnalyzeUtilization(ctx context.Context, tenantKey string) ([]UtilizationMetric, error) {
	mgr, err := staff.NewManager(ctx, a.store, a.logg, tenantKey)
	if err != nil {
		return nil, err
	}

	var metrics []UtilizationMetric
	for _, member := range mgr.All() {
		if member.Status != staff.StatusActive {
			continue
		}
		hours := weeklyHours(member.Shifts)
		consecutive := consecutiveDays(member.Shifts)
		metrics = append(metrics, UtilizationMetric{
			StaffID:          member.ID,
			StaffName:        member.Name,
			Role:             member.Role,
			WeeklyHours:      hours,
			ConsecutiveDays:  consecutive,
			IsOverworked:     hours > 50 || consecutive > 5,
			IsUnderutilized:  hours < 20,
			WorkPatternScore: workPatternScore(hours, consecutive),
		})
	}
	if len(metrics) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeNoData, "no active staff for tenant %s", tenantKey)
	}
	return metrics, nil
}

// SuggestAbsenceReplacements ranks active staff to cover the absentee on the
// given ISO date. Unknown absentees are NOT_FOUND.
func (a *Analyzer) SuggestAbsenceReplacements(ctx context.Context, tenantKey, absentID, date string) ([]ReplacementSuggestion, error) {
	mgr, err := staff.NewManager(ctx, a.store, a.logg, tenantKey)
	if err != nil {
		return nil, err
	}

	absent := mgr.Get(absentID)
	if absent == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "staff member %q not found", absentID)
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid date %q, want YYYY-MM-DD", date)
	}
	absenceDay := parsed.Weekday().String()

	roster := mgr.All()
	candidates := 0
	var suggestions []ReplacementSuggestion
	for _, member := range roster {
		if member.ID == absentID || member.Status != staff.StatusActive {
			continue
		}
		candidates++

		worksThatDay := false
		for _, shift := range member.Shifts {
			if strings.EqualFold(shift.DayOfWeek, absenceDay) {
				worksThatDay = true
				break
			}
		}
		available := !worksThatDay

		compat := compatibilityScore(absent.RoleType(), member.RoleType())
		priority := compat
		if !available {
			priority = compat * 0.3
		}
		suggestions = append(suggestions, ReplacementSuggestion{
			StaffID:       member.ID,
			Name:          member.Name,
			Role:          member.Role,
			Compatibility: compat,
			IsAvailable:   available,
			Priority:      priority,
		})
	}
	if candidates == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeNoData, "no replacement candidates for tenant %s", tenantKey)
	}

	// ties keep roster order
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Priority > suggestions[j].Priority
	})
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions, nil
}

// IdentifyWeaknesses aggregates the coverage and utilization reports.
func (a *Analyzer) IdentifyWeaknesses(ctx context.Context, tenantKey string) (WeaknessReport, error) {
	coverage, err := a.AnalyzeCoverage(ctx, tenantKey)
	if err != nil {
		return WeaknessReport{}, err
	}
	utilization, err := a.AnalyzeUtilization(ctx, tenantKey)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNoData) {
		return WeaknessReport{}, err
	}

	report := WeaknessReport{}
	total := 0.0
	for _, metric := range coverage {
		total += metric.CoverageScore
		if metric.IsUnderstaffed {
			report.UnderstaffedSlots = append(report.UnderstaffedSlots, metric)
		}
		if metric.IsOverstaffed {
			report.OverstaffedSlots = append(report.OverstaffedSlots, metric)
		}
	}
	if len(coverage) > 0 {
		report.OverallCoverageScore = total / float64(len(coverage))
	}
	for _, metric := range utilization {
		if metric.IsOverworked {
			report.OverworkedStaff = append(report.OverworkedStaff, metric)
		}
		if metric.IsUnderutilized {
			report.UnderutilizedStaff = append(report.UnderutilizedStaff, metric)
		}
	}
	report.TotalWeaknesses = len(report.UnderstaffedSlots) +
		len(report.OverworkedStaff) + len(report.UnderutilizedStaff)
	return report, nil
}

func compatibilityScore(absent, candidate staff.RoleType) float64 {
	if absent == candidate {
		return 1.0
	}
	if score, ok := compatibility[absent][candidate]; ok {
		return score
	}
	return 0.1
}

// weeklyHours sums shift durations; an end before the start means the shift
// crosses midnight and gains 24h.
func weeklyHours(shifts []staff.Shift) float64 {
	total := 0.0
	for _, shift := range shifts {
		start := minutesOfDay(shift.StartTime)
		end := minutesOfDay(shift.EndTime)
		if end < start {
			end += 24 * 60
		}
		total += float64(end-start) / 60.0
	}
	return total
}

// consecutiveDays finds the longest run of scheduled days scanning Monday
// through Sunday, without wrapping across the week boundary.
func consecutiveDays(shifts []staff.Shift) int {
	scheduled := map[string]bool{}
	for _, shift := range shifts {
		scheduled[strings.ToLower(strings.TrimSpace(shift.DayOfWeek))] = true
	}
	longest, current := 0, 0
	for _, day := range staff.WeekdayNames {
		if scheduled[strings.ToLower(day)] {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

func workPatternScore(hours float64, consecutive int) float64 {
	hoursScore := 1.0 - abs(hours-40)/40
	daysScore := 1.0 - maxf(0, float64(consecutive)-5)/7
	score := (hoursScore + daysScore) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func minutesOfDay(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func sortedRoles(counts map[staff.RoleType]int) []staff.RoleType {
	out := make([]staff.RoleType, 0, len(counts))
	for role := range counts {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
