package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/forecastlab/forecastd/internal/calendar"
	"github.com/forecastlab/forecastd/internal/domain"
)

const seedSystemPrompt = `You are a forecasting analyst. You pose falsifiable,
binary forecasting questions and assign each a calibrated probability.
Reply with JSON only, no prose, in this exact shape:
{"forecasts":[{"question":"...","resolutionCriteria":"...","horizonTs":"RFC3339 timestamp","probability":0.0,"rationale":"...","methodologyTags":["..."]}]}`

func seedUserPrompt(topic string, count, horizonDays int, evidenceBlock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Propose exactly %d forecasting questions that resolve within %d days.\n", count, horizonDays)
	b.WriteString("Each question must be answerable yes/no from public information at its horizon.\n")
	if evidenceBlock != "" {
		b.WriteString("\nCurrent evidence:\n")
		b.WriteString(evidenceBlock)
		b.WriteString("\n")
	}
	return b.String()
}

const verdictSystemPrompt = `You are settling a forecasting question. Based on
the question, its resolution criteria, and the evidence provided, decide the
outcome. Reply with JSON only, no prose:
{"outcome":"yes|no|unknown","confidence":0.0,"notes":"short justification"}`

func verdictUserPrompt(f domain.Forecast, evidenceBlock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", f.Question)
	if f.ResolutionCriteria != "" {
		fmt.Fprintf(&b, "Resolution criteria: %s\n", f.ResolutionCriteria)
	}
	fmt.Fprintf(&b, "Horizon: %s\n", f.HorizonTS.UTC().Format(time.RFC3339))
	if evidenceBlock != "" {
		b.WriteString("\nEvidence:\n")
		b.WriteString(evidenceBlock)
		b.WriteString("\n")
	}
	b.WriteString("\nIf the evidence is insufficient to decide, answer \"unknown\".\n")
	return b.String()
}

func backtestUserPrompt(ev calendar.Event, count int, latestHorizon time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Upcoming event: %s\n", ev.Summary)
	if ev.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", ev.Description)
	}
	if ev.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", ev.Location)
	}
	fmt.Fprintf(&b, "Event date: %s\n", ev.Start.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Propose exactly %d falsifiable yes/no forecasts about this event.\n", count)
	fmt.Fprintf(&b, "Every horizonTs must be on or before %s.\n", latestHorizon.UTC().Format(time.RFC3339))
	return b.String()
}
