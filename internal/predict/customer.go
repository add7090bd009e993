package predict

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
)

// Feature weights for next-order scoring.
const (
	weightFrequency  = 0.4
	weightRecency    = 0.2
	weightDaypart    = 0.2
	weightDayOfWeek  = 0.1
	weightContextual = 0.1

	orderRecencyDecay   = 0.8
	arrivalRecencyDecay = 0.9
	fullHistory         = 5
)

type ItemScore struct {
	Item  string  `json:"item"`
	Score float64 `json:"score"`
}

type NextOrderPrediction struct {
	Item         string      `json:"item,omitempty"`
	Confidence   float64     `json:"confidence"`
	Alternatives []ItemScore `json:"alternatives,omitempty"`
	Reasoning    []string    `json:"reasoning"`
}

func (p NextOrderPrediction) Prediction(subject string, at time.Time) domain.Prediction {
	return domain.Prediction{
		Subject:     subject,
		Kind:        domain.PredictionNextOrder,
		Value:       p,
		Confidence:  p.Confidence,
		Reasoning:   p.Reasoning,
		GeneratedAt: at,
	}
}

type featureScores struct {
	frequency, recency, daypart, dow, contextual float64
}

func (f featureScores) total() float64 {
	return weightFrequency*f.frequency + weightRecency*f.recency + weightDaypart*f.daypart +
		weightDayOfWeek*f.dow + weightContextual*f.contextual
}

// PredictNextOrder ranks previously ordered items by behavioral and contextual features.
func PredictNextOrder(profile *domain.CustomerProfile, pctx PredictionContext) NextOrderPrediction {
	if profile == nil || len(profile.Interactions) < MinCustomerHistory {
		return NextOrderPrediction{Reasoning: []string{"insufficient history"}}
	}

	var orders []domain.CustomerInteraction
	for _, in := range profile.Interactions {
		if len(in.Items) > 0 {
			orders = append(orders, in)
		}
	}
	if len(orders) == 0 {
		return NextOrderPrediction{Reasoning: []string{"no recorded orders"}}
	}

	daypart := DaypartOf(pctx.At)
	weekday := pctx.At.Weekday()
	season := SeasonOf(pctx.At)
	weather := strings.ToLower(pctx.Weather)

	var totalRecency float64
	for i := range orders {
		totalRecency += recencyWeight(i, len(orders), orderRecencyDecay)
	}

	type tally struct {
		count, recency                                float64
		daypartHits, dowHits, seasonHits, weatherHits float64
	}
	var daypartVisits, dowVisits, seasonVisits, weatherVisits float64
	tallies := make(map[string]*tally)

	for i, in := range orders {
		inDaypart := DaypartOf(in.OccurredAt) == daypart
		inDow := in.OccurredAt.Weekday() == weekday
		inSeason := SeasonOf(in.OccurredAt) == season
		inWeather := weather != "" && contextString(in.Context, "weather") == weather
		if inDaypart {
			daypartVisits++
		}
		if inDow {
			dowVisits++
		}
		if inSeason {
			seasonVisits++
		}
		if inWeather {
			weatherVisits++
		}

		seen := make(map[string]bool)
		for _, item := range in.Items {
			if seen[item] {
				continue
			}
			seen[item] = true
			t, ok := tallies[item]
			if !ok {
				t = &tally{}
				tallies[item] = t
			}
			t.count++
			t.recency += recencyWeight(i, len(orders), orderRecencyDecay)
			if inDaypart {
				t.daypartHits++
			}
			if inDow {
				t.dowHits++
			}
			if inSeason {
				t.seasonHits++
			}
			if inWeather {
				t.weatherHits++
			}
		}
	}

	ratio := func(hits, visits float64) float64 {
		if visits == 0 {
			return 0
		}
		return hits / visits
	}

	type ranked struct {
		item     string
		features featureScores
		score    float64
		count    int
	}
	var candidates []ranked
	for item, t := range tallies {
		f := featureScores{
			frequency:  t.count / float64(len(orders)),
			recency:    t.recency / totalRecency,
			daypart:    ratio(t.daypartHits, daypartVisits),
			dow:        ratio(t.dowHits, dowVisits),
			contextual: ratio(t.seasonHits, seasonVisits),
		}
		if weatherVisits > 0 {
			f.contextual = (f.contextual + ratio(t.weatherHits, weatherVisits)) / 2
		}
		candidates = append(candidates, ranked{item: item, features: f, score: domain.Clamp01(f.total()), count: int(t.count)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].item < candidates[j].item
	})

	top := candidates[0]
	pred := NextOrderPrediction{
		Item:       top.item,
		Confidence: round2(top.score * historyScale(len(orders), fullHistory)),
		Reasoning:  explainOrder(top.item, top.features, top.count, len(orders), daypart),
	}
	for _, c := range candidates[1:] {
		if len(pred.Alternatives) == 3 {
			break
		}
		pred.Alternatives = append(pred.Alternatives, ItemScore{Item: c.item, Score: round2(c.score)})
	}
	return pred
}

// explainOrder names the two features that contributed most to the score.
func explainOrder(item string, f featureScores, count, visits int, daypart Daypart) []string {
	type contribution struct {
		value  float64
		reason string
	}
	contributions := []contribution{
		{weightFrequency * f.frequency, fmt.Sprintf("ordered %s on %d of %d visits", item, count, visits)},
		{weightRecency * f.recency, fmt.Sprintf("%s was ordered recently", item)},
		{weightDaypart * f.daypart, fmt.Sprintf("usual %s choice", daypart)},
		{weightDayOfWeek * f.dow, "matches this day of the week"},
		{weightContextual * f.contextual, "fits the season and conditions"},
	}
	sort.SliceStable(contributions, func(i, j int) bool { return contributions[i].value > contributions[j].value })
	var out []string
	for _, c := range contributions[:2] {
		if c.value > 0 {
			out = append(out, c.reason)
		}
	}
	return out
}

type SlotProbability struct {
	Hour        int     `json:"hour"`
	Probability float64 `json:"probability"`
}

type ArrivalPrediction struct {
	ExpectedAt   *time.Time        `json:"expected_at,omitempty"`
	Slot         *SlotProbability  `json:"slot,omitempty"`
	Alternatives []SlotProbability `json:"alternatives,omitempty"`
	Confidence   float64           `json:"confidence"`
	Reasoning    []string          `json:"reasoning"`
}

func (p ArrivalPrediction) Prediction(subject string, at time.Time) domain.Prediction {
	return domain.Prediction{
		Subject:     subject,
		Kind:        domain.PredictionArrival,
		Value:       p,
		Confidence:  p.Confidence,
		Reasoning:   p.Reasoning,
		GeneratedAt: at,
	}
}

// PredictArrival builds an hourly arrival distribution. Visits on the same
// weekday as the prediction count double; newer visits weigh more.
func PredictArrival(profile *domain.CustomerProfile, pctx PredictionContext) ArrivalPrediction {
	if profile == nil || len(profile.Interactions) < MinCustomerHistory {
		return ArrivalPrediction{Reasoning: []string{"insufficient history"}}
	}

	visits := profile.Interactions
	var slots [24]float64
	var total float64
	sameDay := 0
	for i, in := range visits {
		w := recencyWeight(i, len(visits), arrivalRecencyDecay)
		if in.OccurredAt.Weekday() == pctx.At.Weekday() {
			w *= 2
			sameDay++
		}
		slots[in.OccurredAt.Hour()] += w
		total += w
	}

	dist := make([]SlotProbability, 0, 24)
	for h, w := range slots {
		if w > 0 {
			dist = append(dist, SlotProbability{Hour: h, Probability: w / total})
		}
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Probability != dist[j].Probability {
			return dist[i].Probability > dist[j].Probability
		}
		return dist[i].Hour < dist[j].Hour
	})

	mode := dist[0]
	mode.Probability = round2(mode.Probability)
	expected := nextOccurrence(pctx.At, mode.Hour)
	pred := ArrivalPrediction{
		ExpectedAt: &expected,
		Slot:       &mode,
		Confidence: round2(mode.Probability * historyScale(len(visits), fullHistory)),
		Reasoning:  []string{fmt.Sprintf("%d:00 is the most frequent arrival hour", mode.Hour)},
	}
	if sameDay > 0 {
		pred.Reasoning = append(pred.Reasoning, fmt.Sprintf("%d previous visits on a %s", sameDay, pctx.At.Weekday()))
	}
	for _, s := range dist[1:] {
		if len(pred.Alternatives) == 3 {
			break
		}
		s.Probability = round2(s.Probability)
		pred.Alternatives = append(pred.Alternatives, s)
	}
	return pred
}

func nextOccurrence(from time.Time, hour int) time.Time {
	t := time.Date(from.Year(), from.Month(), from.Day(), hour, 0, 0, 0, from.Location())
	if t.Before(from) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

type SpecialRequest struct {
	Type       string   `json:"type"`
	Detail     string   `json:"detail"`
	Items      []string `json:"items,omitempty"`
	DaysUntil  *int     `json:"days_until,omitempty"`
	Confidence float64  `json:"confidence"`
}

func (r SpecialRequest) Prediction(subject string, at time.Time) domain.Prediction {
	return domain.Prediction{
		Subject:     subject,
		Kind:        domain.PredictionSpecialRequest,
		Value:       r,
		Confidence:  r.Confidence,
		Reasoning:   []string{r.Detail},
		GeneratedAt: at,
	}
}

const occasionWindowDays = 7

// PredictSpecialRequests runs independent rules; any number may fire.
func PredictSpecialRequests(profile *domain.CustomerProfile, pctx PredictionContext) []SpecialRequest {
	if profile == nil {
		return nil
	}
	var out []SpecialRequest

	for _, occasion := range []struct{ kind, date string }{
		{"birthday", profile.Birthday},
		{"anniversary", profile.Anniversary},
	} {
		days, ok := daysUntilAnniversary(occasion.date, pctx.At)
		if !ok || days > occasionWindowDays {
			continue
		}
		d := days
		out = append(out, SpecialRequest{
			Type:       occasion.kind + "_celebration",
			Detail:     fmt.Sprintf("%s in %d days", occasion.kind, days),
			DaysUntil:  &d,
			Confidence: round2(0.95 - 0.05*float64(days)),
		})
	}

	if len(profile.Allergies) > 0 {
		out = append(out, SpecialRequest{
			Type:       "allergy_accommodation",
			Detail:     "known allergies: " + strings.Join(profile.Allergies, ", "),
			Items:      profile.Allergies,
			Confidence: 0.95,
		})
	}

	if len(profile.Interactions) >= MinCustomerHistory {
		counts := make(map[string]int)
		for _, in := range profile.Interactions {
			seen := make(map[string]bool)
			for _, tag := range contextStrings(in.Context, "dietary", "requests", "preferences") {
				if !seen[tag] {
					seen[tag] = true
					counts[tag]++
				}
			}
		}
		tags := make([]string, 0, len(counts))
		for tag := range counts {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			n := counts[tag]
			if n < 2 {
				continue
			}
			out = append(out, SpecialRequest{
				Type:       "dietary_preference",
				Detail:     fmt.Sprintf("requested %s on %d of %d visits", tag, n, len(profile.Interactions)),
				Items:      []string{tag},
				Confidence: round2(0.9 * float64(n) / float64(len(profile.Interactions))),
			})
		}
	}
	return out
}

// daysUntilAnniversary accepts YYYY-MM-DD or MM-DD dates.
func daysUntilAnniversary(date string, now time.Time) (int, bool) {
	if date == "" {
		return 0, false
	}
	var month time.Month
	var day int
	if t, err := time.Parse("2006-01-02", date); err == nil {
		month, day = t.Month(), t.Day()
	} else if t, err := time.Parse("01-02", date); err == nil {
		month, day = t.Month(), t.Day()
	} else {
		return 0, false
	}
	today := domain.Day(now)
	next := time.Date(today.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return int(next.Sub(today).Hours() / 24), true
}

type ChurnRisk struct {
	Risk               float64 `json:"risk"`
	DaysSinceLastVisit float64 `json:"days_since_last_visit"`
	AverageGapDays     float64 `json:"average_gap_days"`
	SentimentTrend     float64 `json:"sentiment_trend"`
}

// Prediction reports the risk itself as the prediction's confidence, so a
// retention rule fires on how likely the customer is to lapse.
func (c ChurnRisk) Prediction(subject string, at time.Time) domain.Prediction {
	p := domain.Prediction{
		Subject:     subject,
		Kind:        domain.PredictionChurn,
		Value:       c,
		Confidence:  c.Risk,
		GeneratedAt: at,
	}
	if c.Risk == 0 && c.AverageGapDays == 0 {
		p.Reasoning = []string{"insufficient history"}
		return p
	}
	p.Reasoning = []string{fmt.Sprintf("%.0f days since last visit against a usual gap of %.0f", c.DaysSinceLastVisit, c.AverageGapDays)}
	if c.SentimentTrend < 0 {
		p.Reasoning = append(p.Reasoning, "sentiment is declining")
	}
	return p
}

// PredictChurn combines how overdue the customer is with their sentiment trend.
func PredictChurn(profile *domain.CustomerProfile, now time.Time) ChurnRisk {
	if profile == nil || len(profile.Interactions) < MinCustomerHistory {
		return ChurnRisk{}
	}
	in := profile.Interactions

	var gaps []float64
	for i := 1; i < len(in); i++ {
		gap := in[i].OccurredAt.Sub(in[i-1].OccurredAt).Hours() / 24
		if gap > 0 {
			gaps = append(gaps, gap)
		}
	}
	avgGap := mean(gaps)
	since := now.Sub(profile.LastSeen).Hours() / 24
	if since < 0 {
		since = 0
	}

	var gapScore float64
	if avgGap > 0 {
		gapScore = domain.Clamp01((since/avgGap - 1) / 2)
	}

	recentN := int(math.Min(3, float64(len(in)/2)))
	var older, recent []float64
	for i, x := range in {
		if i >= len(in)-recentN {
			recent = append(recent, x.Sentiment)
		} else {
			older = append(older, x.Sentiment)
		}
	}
	trend := mean(recent) - mean(older)
	decline := domain.Clamp01(-trend * 2)

	return ChurnRisk{
		Risk:               round2(domain.Clamp01(0.7*gapScore + 0.3*decline)),
		DaysSinceLastVisit: round2(since),
		AverageGapDays:     round2(avgGap),
		SentimentTrend:     round2(trend),
	}
}
