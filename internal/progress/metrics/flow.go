package metrics

import (
	"math"
	"strings"
	"time"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

const (
	// StreakMinMinutes is the practice needed for a day to count toward a streak.
	StreakMinMinutes = 3
	// StreakLookbackDays bounds the streak window.
	StreakLookbackDays = 30
	// ConsistencyDays is the trailing window of ConsistencyIndex.
	ConsistencyDays = 14
)

// Days are calendar days in now's location.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func addDays(day time.Time, n int) time.Time { return day.AddDate(0, 0, n) }

func sessionMinutes(s progress.PracticeSession) float64 {
	return math.Max(0, math.Round(float64(s.DurationSec)/60))
}

// ConsistencyIndexOver scores the share of distinct days with activity in the
// trailing window ending today.
func ConsistencyIndexOver(dates []time.Time, now time.Time, days int) float64 {
	if days <= 0 {
		return 0
	}
	loc := now.Location()
	end := startOfDay(now, loc)
	start := addDays(end, -(days - 1))
	seen := map[time.Time]struct{}{}
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		day := startOfDay(d, loc)
		if day.Before(start) || day.After(end) {
			continue
		}
		seen[day] = struct{}{}
	}
	return pct(float64(len(seen)) / float64(days) * 100)
}

// ConsistencyIndex is ConsistencyIndexOver the trailing 14 days.
func ConsistencyIndex(dates []time.Time, now time.Time) float64 {
	return ConsistencyIndexOver(dates, now, ConsistencyDays)
}

type Streak struct {
	Current int `json:"current"`
	Best    int `json:"best"`
}

// ComputeStreak counts days with at least minMinutes of practice over the
// lookback window ending at ref's day. Best is the longest run inside the
// window, Current the run ending at ref's day.
func ComputeStreak(sessions []progress.PracticeSession, ref time.Time, minMinutes float64, lookback int) Streak {
	if lookback <= 0 {
		lookback = StreakLookbackDays
	}
	loc := ref.Location()
	end := startOfDay(ref, loc)
	start := addDays(end, -(lookback - 1))
	perDay := map[time.Time]float64{}
	for _, s := range sessions {
		if s.StartedAt.IsZero() {
			continue
		}
		day := startOfDay(s.StartedAt.Time, loc)
		if day.Before(start) || day.After(end) {
			continue
		}
		perDay[day] += sessionMinutes(s)
	}
	var st Streak
	run := 0
	for i := 0; i < lookback; i++ {
		if perDay[addDays(start, i)] >= minMinutes {
			run++
			if run > st.Best {
				st.Best = run
			}
		} else {
			run = 0
		}
	}
	for i := 0; i < lookback; i++ {
		if perDay[addDays(end, -i)] < minMinutes {
			break
		}
		st.Current++
	}
	return st
}

// Distribution is minutes per practice type.
type Distribution struct {
	Reflection float64 `json:"reflection"`
	Breathing  float64 `json:"breathing"`
	Drill      float64 `json:"drill"`
	Total      float64 `json:"total"`
}

func ComputeDistribution(sessions []progress.PracticeSession) Distribution {
	var d Distribution
	for _, s := range sessions {
		m := sessionMinutes(s)
		switch s.Type {
		case progress.PracticeReflection:
			d.Reflection += m
		case progress.PracticeBreathing:
			d.Breathing += m
		case progress.PracticeDrill:
			d.Drill += m
		default:
			continue
		}
	}
	d.Total = d.Reflection + d.Breathing + d.Drill
	return d
}

// Balance is the Shannon entropy of the distribution normalized to 0-100.
// No data counts as a single activity type.
func (d Distribution) Balance() float64 {
	shares := []float64{1, 0, 0}
	if d.Total > 0 {
		shares = []float64{d.Reflection / d.Total, d.Breathing / d.Total, d.Drill / d.Total}
	}
	entropy := 0.0
	for _, p := range shares {
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return pct(entropy / math.Log2(3) * 100)
}

// RecencyScore steps down with the time since the latest date: 100 within a
// day, 80 within three, 60 within seven and 30 after. No dates score 0.
func RecencyScore(dates []time.Time, now time.Time) float64 {
	var last time.Time
	for _, d := range dates {
		if d.After(last) {
			last = d
		}
	}
	if last.IsZero() {
		return 0
	}
	diff := now.Sub(last)
	day := 24 * time.Hour
	switch {
	case diff <= day:
		return 100
	case diff <= 3*day:
		return 80
	case diff <= 7*day:
		return 60
	default:
		return 30
	}
}

type Flow struct {
	FlowIndex     float64 `json:"flowIndex"`
	StreakCurrent int     `json:"streakCurrent"`
	StreakBest    int     `json:"streakBest"`
}

// FlowIndex blends 14-day consistency 0.4, the current streak 0.3 (14 days
// reach 100), recency 0.2 and practice balance 0.1. ref anchors the streak
// window; recency is measured from now.
func FlowIndex(sessions []progress.PracticeSession, ref, now time.Time) Flow {
	dates := sessionDates(sessions)
	consistency := ConsistencyIndex(dates, now)
	streak := ComputeStreak(sessions, ref, StreakMinMinutes, StreakLookbackDays)
	balance := ComputeDistribution(sessions).Balance()
	recency := RecencyScore(dates, now)
	flow := 0.4*consistency + 0.3*float64(streak.Current)*(100.0/14) + 0.2*recency + 0.1*balance
	return Flow{
		FlowIndex:     pct(flow),
		StreakCurrent: streak.Current,
		StreakBest:    streak.Best,
	}
}

func sessionDates(sessions []progress.PracticeSession) []time.Time {
	out := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		if !s.StartedAt.IsZero() {
			out = append(out, s.StartedAt.Time)
		}
	}
	return out
}

// DayBucket is one day of a trend chart. For ActionTrend TotalMin holds the
// 0-100 action score rather than minutes.
type DayBucket struct {
	Day      time.Time `json:"day"`
	TotalMin float64   `json:"totalMin"`
	Label    string    `json:"label"`
}

var (
	weekdaysRO = [7]string{"Dum", "Lun", "Mar", "Mie", "Joi", "Vin", "Sâm"}
	weekdaysEN = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

func isEnglish(lang string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en")
}

// WeeklyBuckets sums practice minutes over the 7 days ending at ref's day.
func WeeklyBuckets(sessions []progress.PracticeSession, ref time.Time, lang string) []DayBucket {
	loc := ref.Location()
	start := startOfDay(ref, loc).AddDate(0, 0, -6)
	names := weekdaysRO
	if isEnglish(lang) {
		names = weekdaysEN
	}
	out := make([]DayBucket, 7)
	for i := range out {
		day := addDays(start, i)
		out[i] = DayBucket{Day: day, Label: names[day.Weekday()]}
	}
	for _, s := range sessions {
		if s.StartedAt.IsZero() {
			continue
		}
		day := startOfDay(s.StartedAt.Time, loc)
		for i := range out {
			if out[i].Day.Equal(day) {
				out[i].TotalMin += sessionMinutes(s)
				break
			}
		}
	}
	return out
}

// Per-unit minutes and weights used when an activity carries no duration.
var (
	minutesPerUnit = map[progress.ActivityCategory]float64{
		progress.ActivityKnowledge:  6,
		progress.ActivityPractice:   8,
		progress.ActivityReflection: 4,
	}
	categoryWeights = map[progress.ActivityCategory]float64{
		progress.ActivityKnowledge:  0.8,
		progress.ActivityPractice:   1.5,
		progress.ActivityReflection: 1.1,
	}
)

// ActionDailyTarget is the weighted minutes that score 100 in ActionTrend.
const ActionDailyTarget = 30.0

func focusWeight(ev progress.ActivityEvent, focusTag string) float64 {
	if focusTag == "" || ev.FocusTag == "" {
		return 1
	}
	if ev.FocusTag == focusTag {
		return 1
	}
	return 0.5
}

// ActionTrend scores each of the last days (ending at ref's day) from the
// weighted activity minutes. Events off the current focus count half.
func ActionTrend(events []progress.ActivityEvent, ref time.Time, days int, focusTag string) []DayBucket {
	if days <= 0 {
		return nil
	}
	loc := ref.Location()
	start := startOfDay(ref, loc).AddDate(0, 0, -(days - 1))
	weighted := make([]float64, days)
	for _, ev := range events {
		if ev.StartedAt.IsZero() {
			continue
		}
		w, ok := categoryWeights[ev.Category]
		if !ok {
			continue
		}
		idx := -1
		day := startOfDay(ev.StartedAt.Time, loc)
		for i := 0; i < days; i++ {
			if addDays(start, i).Equal(day) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		var base float64
		if ev.DurationMin != nil {
			base = math.Max(0, float64(*ev.DurationMin))
		} else {
			units := ev.Units
			if units == 0 {
				units = 1
			}
			base = math.Max(0, float64(units)*minutesPerUnit[ev.Category])
		}
		weighted[idx] += base * w * focusWeight(ev, focusTag)
	}
	out := make([]DayBucket, days)
	for i := range out {
		day := addDays(start, i)
		out[i] = DayBucket{
			Day:      day,
			TotalMin: round(clamp01(weighted[i]/ActionDailyTarget) * 100),
			Label:    day.Format("2"),
		}
	}
	return out
}
