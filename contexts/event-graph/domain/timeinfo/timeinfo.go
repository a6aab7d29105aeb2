// Package timeinfo resolves exact and fuzzy hangout times into canonical
// UTC timestamps while preserving the caller's original time description for
// display.
package timeinfo

import (
	"strings"
	"time"

	domainerrors "inviter/contexts/event-graph/domain/errors"
)

// Granularity is a fuzzy period length anchored at periodStart.
type Granularity string

const (
	GranularityMorning   Granularity = "morning"
	GranularityAfternoon Granularity = "afternoon"
	GranularityEvening   Granularity = "evening"
	GranularityNight     Granularity = "night"
	GranularityDay       Granularity = "day"
	GranularityWeekend   Granularity = "weekend"
)

var granularityDuration = map[Granularity]time.Duration{
	GranularityMorning:   4 * time.Hour,
	GranularityAfternoon: 4 * time.Hour,
	GranularityEvening:   4 * time.Hour,
	GranularityNight:     8 * time.Hour,
	GranularityDay:       12 * time.Hour,
	GranularityWeekend:   48 * time.Hour,
}

// Input is either an exact window or a fuzzy period. Exactly one form must
// be present.
type Input struct {
	StartTime         string // ISO-8601 with offset
	EndTime           string
	PeriodGranularity string
	PeriodStart       string // ISO-8601 with offset
}

// Resolved carries the canonical UTC window plus the original description.
// TimeInfo is stored verbatim on canonical records and pointers so clients
// can render "Saturday evening" instead of a raw timestamp.
type Resolved struct {
	StartTimestamp int64 // unix seconds, UTC
	EndTimestamp   int64
	TimeInfo       map[string]string
}

// Resolve converts an Input into its canonical window. Re-resolving the
// stored TimeInfo yields the identical window (round-trip stability).
func Resolve(in Input) (Resolved, error) {
	exact := strings.TrimSpace(in.StartTime) != ""
	fuzzy := strings.TrimSpace(in.PeriodGranularity) != "" || strings.TrimSpace(in.PeriodStart) != ""
	switch {
	case exact && fuzzy:
		return Resolved{}, domainerrors.Invalid("time", "provide either exact times or a fuzzy period, not both")
	case exact:
		return resolveExact(in.StartTime, in.EndTime)
	case fuzzy:
		return resolveFuzzy(in.PeriodGranularity, in.PeriodStart)
	default:
		return Resolved{}, domainerrors.Invalid("time", "a start time or fuzzy period is required")
	}
}

// FromStored rebuilds a Resolved from a persisted timeInfo map, re-running
// the same resolution so derived timestamps stay consistent with the map.
func FromStored(info map[string]string) (Resolved, error) {
	if info == nil {
		return Resolved{}, domainerrors.Invalid("timeInfo", "time info is missing")
	}
	return Resolve(Input{
		StartTime:         info["startTime"],
		EndTime:           info["endTime"],
		PeriodGranularity: info["periodGranularity"],
		PeriodStart:       info["periodStart"],
	})
}

func resolveExact(startRaw, endRaw string) (Resolved, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(startRaw))
	if err != nil {
		return Resolved{}, domainerrors.Invalid("startTime", "not an ISO-8601 timestamp with offset")
	}
	end := start.Add(2 * time.Hour)
	info := map[string]string{
		"type":      "exact",
		"startTime": strings.TrimSpace(startRaw),
	}
	if strings.TrimSpace(endRaw) != "" {
		end, err = time.Parse(time.RFC3339, strings.TrimSpace(endRaw))
		if err != nil {
			return Resolved{}, domainerrors.Invalid("endTime", "not an ISO-8601 timestamp with offset")
		}
		info["endTime"] = strings.TrimSpace(endRaw)
	}
	if !end.After(start) {
		return Resolved{}, domainerrors.Invalid("endTime", "end must be after start")
	}
	return Resolved{
		StartTimestamp: start.UTC().Unix(),
		EndTimestamp:   end.UTC().Unix(),
		TimeInfo:       info,
	}, nil
}

func resolveFuzzy(granularityRaw, periodStartRaw string) (Resolved, error) {
	granularity := Granularity(strings.ToLower(strings.TrimSpace(granularityRaw)))
	duration, ok := granularityDuration[granularity]
	if !ok {
		return Resolved{}, domainerrors.Invalid("periodGranularity", "unknown granularity")
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(periodStartRaw))
	if err != nil {
		return Resolved{}, domainerrors.Invalid("periodStart", "not an ISO-8601 timestamp with offset")
	}
	return Resolved{
		StartTimestamp: start.UTC().Unix(),
		EndTimestamp:   start.Add(duration).UTC().Unix(),
		TimeInfo: map[string]string{
			"type":              "fuzzy",
			"periodGranularity": string(granularity),
			"periodStart":       strings.TrimSpace(periodStartRaw),
		},
	}, nil
}
