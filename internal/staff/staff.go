// Package staff manages one tenant's roster: members, weekly shifts, and the
// absence calendar the scheduler and analytics read from.
package staff

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/ahmostafa147/RestaurAI-sub000/internal/store"
	pkgerrors "github.com/ahmostafa147/RestaurAI-sub000/pkg/errors"
	"github.com/ahmostafa147/RestaurAI-sub000/pkg/logger"
)

const (
	// Category is the document category the roster persists under.
	Category = "staff"
	// AbsencesCategory holds the absence calendar.
	AbsencesCategory = "absences"

	eventStaffUpdate  = "staff_update"
	eventStaffAbsence = "staff_absence"

	dateLayout = "2006-01-02"
)

// StaffStatus is a member's employment state.
type StaffStatus string

const (
	StatusActive  StaffStatus = "active"
	StatusAbsent  StaffStatus = "absent"
	StatusOnLeave StaffStatus = "on_leave"
)

// Shift is one recurring weekly work window. Times are "HH:MM" strings;
// EndTime lexically before StartTime means the shift runs past midnight.
type Shift struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
}

// StaffMember is one roster entry. Role is free text; analytics classify it
// through ClassifyRole.
type StaffMember struct {
	ID          string      `json:"id" validate:"required"`
	Name        string      `json:"name" validate:"required"`
	Role        string      `json:"role" validate:"required"`
	Shifts      []Shift     `json:"shifts"`
	Status      StaffStatus `json:"status"`
	ContactInfo string      `json:"contact_info,omitempty"`
}

// RoleType returns the member's coarse role bucket.
func (s StaffMember) RoleType() RoleType {
	return ClassifyRole(s.Role)
}

// ScheduledShift pairs a shift with the member working it.
type ScheduledShift struct {
	StaffID string   `json:"staff_id"`
	Name    string   `json:"name"`
	Role    string   `json:"role"`
	Type    RoleType `json:"role_type"`
	Shift   Shift    `json:"shift"`
}

// RosterUtilization is a roster-level summary.
type RosterUtilization struct {
	TotalStaff         int              `json:"total_staff"`
	ActiveStaff        int              `json:"active_staff"`
	RoleDistribution   map[RoleType]int `json:"role_distribution"`
	AvgShiftsPerMember float64          `json:"avg_shifts_per_member"`
}

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// registration only fails for an empty tag
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	return v
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

func parseWeekday(day string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(day))]
	if !ok {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown weekday %q", day)
	}
	return wd, nil
}

// NextOccurrence returns the date of the next occurrence of the named
// weekday, counting from itself when it falls on that weekday.
func NextOccurrence(from time.Time, day string) (time.Time, error) {
	wd, err := parseWeekday(day)
	if err != nil {
		return time.Time{}, err
	}
	offset := (int(wd) - int(from.Weekday()) + 7) % 7
	date := from.AddDate(0, 0, offset)
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Manager owns one tenant's roster and absence calendar.
type Manager struct {
	store     store.Store
	logg      *logger.Logger
	tenantKey string

	staff    map[string]*StaffMember
	absences map[string][]string

	now func() time.Time
}

// NewManager loads the tenant's roster and absence calendar.
func NewManager(ctx context.Context, st store.Store, logg *logger.Logger, tenantKey string) (*Manager, error) {
	if st == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "staff: store is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "staff: logger is required")
	}
	if tenantKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff: tenant key is required")
	}

	m := &Manager{
		store:     st,
		logg:      logg,
		tenantKey: tenantKey,
		staff:     map[string]*StaffMember{},
		absences:  map[string][]string{},
		now:       time.Now,
	}

	var roster map[string]StaffMember
	if _, err := st.GetData(ctx, tenantKey, Category, &roster); err != nil {
		return nil, err
	}
	for id, member := range roster {
		entry := member
		entry.ID = id
		m.staff[id] = &entry
	}

	if _, err := st.GetData(ctx, tenantKey, AbsencesCategory, &m.absences); err != nil {
		return nil, err
	}
	if m.absences == nil {
		m.absences = map[string][]string{}
	}
	return m, nil
}

func validateMember(member StaffMember) error {
	err := validate.Struct(member)
	for i, shift := range member.Shifts {
		if shiftErr := validate.Struct(shift); shiftErr != nil {
			err = multierr.Append(err, fmt.Errorf("shift %d: %w", i, shiftErr))
			continue
		}
		if _, dayErr := parseWeekday(shift.DayOfWeek); dayErr != nil {
			err = multierr.Append(err, fmt.Errorf("shift %d: %w", i, dayErr))
		}
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid staff member")
	}
	return nil
}

// Add registers a new member. Duplicate ids conflict; an empty status
// defaults to active.
func (m *Manager) Add(ctx context.Context, member StaffMember) error {
	if err := validateMember(member); err != nil {
		return err
	}
	if _, ok := m.staff[member.ID]; ok {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "staff member %q already exists", member.ID)
	}
	if member.Status == "" {
		member.Status = StatusActive
	}
	entry := member
	m.staff[entry.ID] = &entry
	return m.persistRoster(ctx, "add", entry.ID)
}

// Update replaces an existing member's record.
func (m *Manager) Update(ctx context.Context, member StaffMember) error {
	if err := validateMember(member); err != nil {
		return err
	}
	if _, ok := m.staff[member.ID]; !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "staff member %q not found", member.ID)
	}
	entry := member
	if entry.Status == "" {
		entry.Status = StatusActive
	}
	m.staff[entry.ID] = &entry
	return m.persistRoster(ctx, "update", entry.ID)
}

// Remove drops the member from the roster.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if _, ok := m.staff[id]; !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "staff member %q not found", id)
	}
	delete(m.staff, id)
	return m.persistRoster(ctx, "remove", id)
}

// Get returns the member by id, nil when unknown.
func (m *Manager) Get(id string) *StaffMember {
	entry, ok := m.staff[id]
	if !ok {
		return nil
	}
	copied := *entry
	copied.Shifts = append([]Shift(nil), entry.Shifts...)
	return &copied
}

// GetByName returns the first member with a matching name, nil when none.
func (m *Manager) GetByName(name string) *StaffMember {
	var match *StaffMember
	for _, member := range m.All() {
		if member.Name == name {
			found := member
			match = &found
			break
		}
	}
	return match
}

// ByRole returns members whose role classifies into the given bucket.
func (m *Manager) ByRole(role RoleType) []StaffMember {
	var out []StaffMember
	for _, member := range m.All() {
		if member.RoleType() == role {
			out = append(out, member)
		}
	}
	return out
}

// All snapshots the roster, sorted by name then id.
func (m *Manager) All() []StaffMember {
	out := make([]StaffMember, 0, len(m.staff))
	for _, entry := range m.staff {
		copied := *entry
		copied.Shifts = append([]Shift(nil), entry.Shifts...)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AvailableStaff returns active members scheduled on the given weekday,
// optionally narrowed to those whose shift covers timeOfDay ("HH:MM", empty
// to skip). The time filter compares strings lexically over [start,end), so
// overnight shifts match by day membership only. Members absent on the next
// calendar occurrence of the weekday are excluded.
func (m *Manager) AvailableStaff(day, timeOfDay string) ([]StaffMember, error) {
	if _, err := parseWeekday(day); err != nil {
		return nil, err
	}
	if timeOfDay != "" && !hhmmPattern.MatchString(timeOfDay) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid time of day %q", timeOfDay)
	}

	occurrence, err := NextOccurrence(m.now(), day)
	if err != nil {
		return nil, err
	}
	absent := map[string]bool{}
	for _, id := range m.absences[occurrence.Format(dateLayout)] {
		absent[id] = true
	}

	var out []StaffMember
	for _, member := range m.All() {
		if member.Status != StatusActive || absent[member.ID] {
			continue
		}
		for _, shift := range member.Shifts {
			if !sameWeekday(shift.DayOfWeek, day) {
				continue
			}
			if timeOfDay != "" && shift.EndTime > shift.StartTime {
				if timeOfDay < shift.StartTime || timeOfDay >= shift.EndTime {
					continue
				}
			}
			out = append(out, member)
			break
		}
	}
	return out, nil
}

// MarkAbsent records the member absent on the ISO date. Repeat calls are
// no-ops; the staff_absence event fires only on first insertion.
func (m *Manager) MarkAbsent(ctx context.Context, id, date string) error {
	member, ok := m.staff[id]
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "staff member %q not found", id)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid date %q, want YYYY-MM-DD", date)
	}

	for _, existing := range m.absences[date] {
		if existing == id {
			return nil
		}
	}
	m.absences[date] = append(m.absences[date], id)
	sort.Strings(m.absences[date])

	if err := m.store.SetData(ctx, m.tenantKey, AbsencesCategory, m.absences); err != nil {
		return err
	}
	return m.store.LogEvent(ctx, m.tenantKey, eventStaffAbsence, map[string]any{
		"staff_id":   id,
		"staff_name": member.Name,
		"date":       date,
	})
}

// ClearAbsence removes the member from the date's absence set. Clearing an
// entry that is not there is a no-op.
func (m *Manager) ClearAbsence(ctx context.Context, id, date string) error {
	ids := m.absences[date]
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(ids) {
		return nil
	}
	if len(filtered) == 0 {
		delete(m.absences, date)
	} else {
		m.absences[date] = filtered
	}
	return m.store.SetData(ctx, m.tenantKey, AbsencesCategory, m.absences)
}

// AbsencesForDate returns the staff ids absent on the ISO date, sorted.
func (m *Manager) AbsencesForDate(date string) []string {
	return append([]string(nil), m.absences[date]...)
}

// ScheduleForDay lists every shift worked on the weekday, ordered by start
// time then member name.
func (m *Manager) ScheduleForDay(day string) ([]ScheduledShift, error) {
	if _, err := parseWeekday(day); err != nil {
		return nil, err
	}
	var out []ScheduledShift
	for _, member := range m.All() {
		for _, shift := range member.Shifts {
			if sameWeekday(shift.DayOfWeek, day) {
				out = append(out, ScheduledShift{
					StaffID: member.ID,
					Name:    member.Name,
					Role:    member.Role,
					Type:    member.RoleType(),
					Shift:   shift,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Shift.StartTime != out[j].Shift.StartTime {
			return out[i].Shift.StartTime < out[j].Shift.StartTime
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ScheduleForWeek maps each weekday, Monday first, to its day schedule.
func (m *Manager) ScheduleForWeek() (map[string][]ScheduledShift, error) {
	out := make(map[string][]ScheduledShift, len(WeekdayNames))
	for _, day := range WeekdayNames {
		schedule, err := m.ScheduleForDay(day)
		if err != nil {
			return nil, err
		}
		out[day] = schedule
	}
	return out, nil
}

// Utilization summarizes the roster's shape.
func (m *Manager) Utilization() RosterUtilization {
	summary := RosterUtilization{RoleDistribution: map[RoleType]int{}}
	totalShifts := 0
	for _, member := range m.staff {
		summary.TotalStaff++
		if member.Status == StatusActive {
			summary.ActiveStaff++
		}
		summary.RoleDistribution[member.RoleType()]++
		totalShifts += len(member.Shifts)
	}
	if summary.TotalStaff > 0 {
		summary.AvgShiftsPerMember = float64(totalShifts) / float64(summary.TotalStaff)
	}
	return summary
}

// WeekdayNames is the scheduling week in fixed Monday-first order.
var WeekdayNames = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

func sameWeekday(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (m *Manager) persistRoster(ctx context.Context, action, id string) error {
	snapshot := make(map[string]StaffMember, len(m.staff))
	for memberID, entry := range m.staff {
		snapshot[memberID] = *entry
	}
	if err := m.store.SetData(ctx, m.tenantKey, Category, snapshot); err != nil {
		return err
	}
	if err := m.store.LogEvent(ctx, m.tenantKey, eventStaffUpdate, map[string]any{
		"action":   action,
		"staff_id": id,
	}); err != nil {
		return err
	}
	m.logg.Debug(m.logg.WithTenantKey(ctx, m.tenantKey),
		fmt.Sprintf("staff %s: %s", action, id))
	return nil
}
