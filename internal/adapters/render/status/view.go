package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const defaultHoldTarget = 24 * time.Hour

type RenderOptions struct {
	Now time.Time
	// StaleAfter flags logged-in sessions whose last live check is older.
	StaleAfter time.Duration
	// HoldTarget is the session age that fills the hold bar.
	HoldTarget time.Duration
	// Names maps platform ids to display names.
	Names map[domain.PlatformID]string
	// Probes adds the open-tab view of each platform when present.
	Probes map[domain.PlatformID]application.ProbeResult
}

func renderView(reports []application.StatusReport, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("QR Login Sessions"),
		s.header.Render(fmt.Sprintf("platforms: %d  logged in: %d", len(reports), countLoggedIn(reports))),
	}

	if len(reports) == 0 {
		lines = append(lines, s.empty.Render("No platforms configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, report := range reports {
		lines = append(lines, s.section.Render(renderPlatform(report, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderPlatform(report application.StatusReport, opts RenderOptions, s styles) string {
	parts := []string{
		s.platform.Render(platformTitle(report.Platform, opts.Names[report.Platform])),
		statusLine(report, s),
	}

	if report.Status == domain.StatusLoggedIn {
		parts = append(parts, holdLine(report, opts, s))
		parts = append(parts, s.detail.Render(fmt.Sprintf("cookies: %d saved", report.CookiesCount)))
	}

	parts = append(parts, timelineLine(report, opts, s))

	if probe, ok := opts.Probes[report.Platform]; ok {
		parts = append(parts, probeLine(probe, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func platformTitle(id domain.PlatformID, name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == string(id) {
		return string(id)
	}

	return fmt.Sprintf("%s (%s)", trimmed, id)
}

func statusLine(report application.StatusReport, s styles) string {
	badge := statusStyle(report.Status, s).Render(statusLabel(report.Status))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("status:"),
		" ",
		badge,
		" ",
		s.meta.Render(report.Message),
	)
}

func statusStyle(status domain.SessionStatus, s styles) lipgloss.Style {
	switch status {
	case domain.StatusLoggedIn:
		return s.loggedIn
	case domain.StatusPending:
		return s.pending
	case domain.StatusExpired, domain.StatusError:
		return s.lost
	default:
		return s.idle
	}
}

func statusLabel(status domain.SessionStatus) string {
	if status == "" {
		return "not started"
	}

	return strings.ReplaceAll(string(status), "_", " ")
}

func holdLine(report application.StatusReport, opts RenderOptions, s styles) string {
	target := opts.HoldTarget
	if target <= 0 {
		target = defaultHoldTarget
	}

	fraction := report.ContinuousDuration.Seconds() / target.Seconds()
	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("held:"),
		" ",
		renderProgressBar(fraction, 24, s),
		" ",
		s.detail.Render(formatDuration(report.ContinuousDuration)),
	)

	if opts.Now.IsZero() || opts.StaleAfter <= 0 {
		return line
	}

	checkedAt := report.LastCheckedAt
	if checkedAt.IsZero() {
		checkedAt = report.LoggedInAt
	}
	if !checkedAt.IsZero() && opts.Now.Sub(checkedAt) > opts.StaleAfter {
		line += " " + s.warning.Render("[unverified]")
	}

	return line
}

func timelineLine(report application.StatusReport, opts RenderOptions, s styles) string {
	stamps := make([]string, 0, 3)
	if !report.ChallengeIssuedAt.IsZero() {
		stamps = append(stamps, "qr issued "+formatAgo(report.ChallengeIssuedAt, opts.Now))
	}
	if !report.LoggedInAt.IsZero() {
		stamps = append(stamps, "logged in "+formatAgo(report.LoggedInAt, opts.Now))
	}
	if !report.LastCheckedAt.IsZero() {
		checked := "checked " + formatAgo(report.LastCheckedAt, opts.Now)
		stamps = append(stamps, lipgloss.NewStyle().Foreground(ageColor(report.LastCheckedAt, opts.Now)).Render(checked))
	}

	if len(stamps) == 0 {
		return s.empty.Render("no activity yet")
	}

	return s.meta.Render(strings.Join(stamps, " · "))
}

func probeLine(probe application.ProbeResult, s styles) string {
	state := s.idle
	switch probe.State {
	case application.PageOnline:
		state = s.loggedIn
	case application.PageOffline:
		state = s.lost
	}

	detail := probe.Title
	if detail == "" {
		detail = probe.Message
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("page:"),
		" ",
		state.Render(string(probe.State)),
		" ",
		s.meta.Render(detail),
	)
}

func countLoggedIn(reports []application.StatusReport) int {
	count := 0
	for _, report := range reports {
		if report.Status == domain.StatusLoggedIn {
			count++
		}
	}

	return count
}

func renderProgressBar(fraction float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampFraction(fraction)))
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", width-filled))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func clampFraction(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// formatDuration prints whole hours and minutes, e.g. "5h 12m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}

	d = d.Truncate(time.Minute)
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}

	return fmt.Sprintf("%dh %02dm", hours, minutes)
}

func formatAgo(at, now time.Time) string {
	if now.IsZero() {
		return "at " + at.Format(time.RFC3339)
	}

	if at.After(now) {
		return "just now"
	}

	elapsed := now.Sub(at)
	if elapsed < 24*time.Hour {
		if elapsed < time.Minute {
			return "just now"
		}
		return fmt.Sprintf("%s ago (%s)", formatDuration(elapsed), at.Format("15:04"))
	}

	days := int(elapsed.Hours() / 24)
	suffix := "days"
	if days == 1 {
		suffix = "day"
	}

	return fmt.Sprintf("%d %s ago (%s)", days, suffix, at.Format("15:04 on 02 Jan"))
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 faded to 255 bright.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}

// ageColor fades a timestamp from bright (now) to grey (a day old).
func ageColor(at, now time.Time) lipgloss.Color {
	if now.IsZero() || at.After(now) {
		return lipgloss.Color("255")
	}

	window := 24 * time.Hour
	return interpolateColor(window.Seconds()-now.Sub(at).Seconds(), 0, window.Seconds())
}
