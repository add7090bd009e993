package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
)

var ErrInvalidStaffing = errors.New("invalid staffing request")

const (
	defaultShiftHours    = 8
	defaultServiceLevel  = 0.9
	defaultStaffCapacity = 20
	defaultMaxHours      = 40
)

// StaffMember is one schedulable person. Capacity is the number of covers
// they can serve per shift; MaxHours bounds their hours over the horizon.
type StaffMember struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Skills     []string `json:"skills"`
	HourlyRate float64  `json:"hourly_rate"`
	MaxHours   float64  `json:"max_hours"`
	Capacity   float64  `json:"capacity"`
}

type StaffingRequest struct {
	Days            int             `json:"days"`
	Staff           []StaffMember   `json:"staff"`
	RequiredSkills  []string        `json:"required_skills"`
	ShiftHours      float64         `json:"shift_hours"`
	MinServiceLevel float64         `json:"min_service_level"`
	Forecast        *DemandForecast `json:"forecast,omitempty"`
}

type Assignment struct {
	StaffID string  `json:"staff_id"`
	Name    string  `json:"name,omitempty"`
	Hours   float64 `json:"hours"`
	Cost    float64 `json:"cost"`
}

type DaySchedule struct {
	Date           time.Time    `json:"date"`
	ExpectedCovers float64      `json:"expected_covers"`
	Assignments    []Assignment `json:"assignments"`
	Cost           float64      `json:"cost"`
	ServiceLevel   float64      `json:"service_level"`
	UnmetSkills    []string     `json:"unmet_skills,omitempty"`
}

type StaffingPlan struct {
	Schedule        []DaySchedule `json:"schedule"`
	Cost            float64       `json:"cost"`
	ServiceLevel    float64       `json:"service_level"`
	Recommendations []string      `json:"recommendations"`
}

func (r *StaffingRequest) normalize() error {
	if len(r.Staff) == 0 {
		return fmt.Errorf("%w: no staff", ErrInvalidStaffing)
	}
	if r.Days <= 0 {
		r.Days = defaultForecastDays
	}
	if r.ShiftHours <= 0 {
		r.ShiftHours = defaultShiftHours
	}
	if r.MinServiceLevel <= 0 || r.MinServiceLevel > 1 {
		r.MinServiceLevel = defaultServiceLevel
	}
	seen := make(map[string]bool)
	for i := range r.Staff {
		m := &r.Staff[i]
		if m.ID == "" {
			return fmt.Errorf("%w: staff member %d has no id", ErrInvalidStaffing, i)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate staff id %q", ErrInvalidStaffing, m.ID)
		}
		seen[m.ID] = true
		if m.HourlyRate < 0 {
			return fmt.Errorf("%w: negative rate for %q", ErrInvalidStaffing, m.ID)
		}
		if m.MaxHours <= 0 {
			m.MaxHours = defaultMaxHours
		}
		if m.Capacity <= 0 {
			m.Capacity = defaultStaffCapacity
		}
	}
	return nil
}

// OptimizeStaffing assigns shifts per forecast day. Each day first covers the
// required skills with the cheapest qualified member, then adds the member
// with the lowest cost per cover until the service level is met. Members
// never exceed their max hours over the whole horizon.
func (e *Engine) OptimizeStaffing(ctx context.Context, req StaffingRequest) (*StaffingPlan, error) {
	defer observe(string(domain.PredictionStaffing))()

	if err := req.normalize(); err != nil {
		return nil, err
	}
	forecast := req.Forecast
	if forecast == nil {
		var err error
		if forecast, err = e.ForecastDemand(ctx, req.Days); err != nil {
			return nil, err
		}
	}
	return planStaffing(req, forecast.Daily), nil
}

func planStaffing(req StaffingRequest, days []DailyDemand) *StaffingPlan {
	plan := &StaffingPlan{Schedule: []DaySchedule{}, Recommendations: []string{}}
	used := make(map[string]float64, len(req.Staff))
	skills := slices.Clone(req.RequiredSkills)
	sort.Strings(skills)

	shiftCost := func(m StaffMember) float64 { return m.HourlyRate * req.ShiftHours }
	available := func(m StaffMember, assigned map[string]bool) bool {
		return !assigned[m.ID] && used[m.ID]+req.ShiftHours <= m.MaxHours
	}

	shortDays := 0
	unmet := make(map[string]bool)
	var serviceSum float64

	for _, day := range days {
		sched := DaySchedule{Date: day.Date, ExpectedCovers: day.ExpectedCovers, Assignments: []Assignment{}}
		assigned := make(map[string]bool)
		var capacity float64

		assign := func(m StaffMember) {
			assigned[m.ID] = true
			used[m.ID] += req.ShiftHours
			capacity += m.Capacity
			cost := round2(shiftCost(m))
			sched.Assignments = append(sched.Assignments, Assignment{StaffID: m.ID, Name: m.Name, Hours: req.ShiftHours, Cost: cost})
			sched.Cost += cost
		}

		for _, skill := range skills {
			covered := false
			for _, a := range sched.Assignments {
				if hasSkill(req.Staff, a.StaffID, skill) {
					covered = true
					break
				}
			}
			if covered {
				continue
			}
			best := -1
			for i, m := range req.Staff {
				if !available(m, assigned) || !slices.Contains(m.Skills, skill) {
					continue
				}
				if best < 0 || shiftCost(m) < shiftCost(req.Staff[best]) {
					best = i
				}
			}
			if best < 0 {
				sched.UnmetSkills = append(sched.UnmetSkills, skill)
				unmet[skill] = true
				continue
			}
			assign(req.Staff[best])
		}

		for serviceLevel(capacity, day.ExpectedCovers) < req.MinServiceLevel {
			best := -1
			for i, m := range req.Staff {
				if !available(m, assigned) {
					continue
				}
				if best < 0 || shiftCost(m)/m.Capacity < shiftCost(req.Staff[best])/req.Staff[best].Capacity {
					best = i
				}
			}
			if best < 0 {
				break
			}
			assign(req.Staff[best])
		}

		sched.Cost = round2(sched.Cost)
		sched.ServiceLevel = round2(serviceLevel(capacity, day.ExpectedCovers))
		if sched.ServiceLevel < req.MinServiceLevel {
			shortDays++
		}
		serviceSum += sched.ServiceLevel
		plan.Cost += sched.Cost
		plan.Schedule = append(plan.Schedule, sched)
	}

	plan.Cost = round2(plan.Cost)
	if len(plan.Schedule) > 0 {
		plan.ServiceLevel = round2(serviceSum / float64(len(plan.Schedule)))
	}

	if shortDays > 0 {
		plan.Recommendations = append(plan.Recommendations,
			fmt.Sprintf("%d of %d days fall below the %.0f%% service level; add staff or extend max hours", shortDays, len(plan.Schedule), req.MinServiceLevel*100))
	}
	missing := make([]string, 0, len(unmet))
	for s := range unmet {
		missing = append(missing, s)
	}
	sort.Strings(missing)
	for _, s := range missing {
		plan.Recommendations = append(plan.Recommendations, fmt.Sprintf("no available staff covers %q on some days", s))
	}
	for _, m := range req.Staff {
		if used[m.ID] == 0 {
			plan.Recommendations = append(plan.Recommendations, fmt.Sprintf("%s is not scheduled in this horizon", m.ID))
		}
	}
	return plan
}

func serviceLevel(capacity, expected float64) float64 {
	if expected <= 0 {
		return 1
	}
	return math.Min(1, capacity/expected)
}

func hasSkill(staff []StaffMember, id, skill string) bool {
	for _, m := range staff {
		if m.ID == id {
			return slices.Contains(m.Skills, skill)
		}
	}
	return false
}
