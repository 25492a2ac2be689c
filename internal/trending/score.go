// Package trending computes recency-decayed popularity scores and uses them
// to rank and sample content.
package trending

import (
	"math"
	"time"
)

// FlyerScale lifts persisted flyer trendiness out of the tiny range produced
// by dividing clicks by milliseconds.
const FlyerScale = 1e7

// Score returns endorsements per millisecond of age. Items with no
// endorsements score 0; a non-positive age with endorsements gets the
// maximum finite score.
func Score(endorsements int64, age time.Duration) float64 {
	if endorsements <= 0 {
		return 0
	}
	ms := float64(age) / float64(time.Millisecond)
	if ms <= 0 {
		return math.MaxFloat64
	}
	return float64(endorsements) / ms
}

// ArticleScore decays with time since publication.
func ArticleScore(shoutouts int64, published, now time.Time) float64 {
	return Score(shoutouts, now.Sub(published))
}

// FlyerScore grows as the event start approaches. Events already under way
// score as if starting now.
func FlyerScore(clicks int64, start, now time.Time) float64 {
	return Score(clicks, start.Sub(now))
}

// PersistedFlyerScore is the value stored alongside a flyer's click counter.
func PersistedFlyerScore(clicks int64, start, now time.Time) float64 {
	s := FlyerScore(clicks, start, now)
	if s == math.MaxFloat64 {
		return s
	}
	return s * FlyerScale
}
