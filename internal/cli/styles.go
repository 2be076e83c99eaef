// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/docket/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#4C6EF5") // Indigo
	// SuccessColor indicates successful operations and approvals.
	SuccessColor = lipgloss.Color("#4ECDC4") // Teal
	// WarningColor indicates warnings and escalations.
	WarningColor = lipgloss.Color("#FFE66D") // Yellow
	// ErrorColor indicates errors and rejections.
	ErrorColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// AccentColor indicates elevated but not critical states.
	AccentColor = lipgloss.Color("#FFA94D") // Orange
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SubtitleStyle is used for secondary headings.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))

	// TableCellStyle formats table cells with appropriate padding.
	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)
)

// recommendationStyles maps each verdict to its display style.
var recommendationStyles = map[model.Recommendation]lipgloss.Style{
	model.RecommendApprove:  lipgloss.NewStyle().Bold(true).Foreground(SuccessColor),
	model.RecommendEscalate: lipgloss.NewStyle().Bold(true).Foreground(WarningColor),
	model.RecommendReject:   lipgloss.NewStyle().Bold(true).Foreground(ErrorColor),
}

// riskLevelStyles maps each risk level to its display style.
var riskLevelStyles = map[model.RiskLevel]lipgloss.Style{
	model.RiskLow:      lipgloss.NewStyle().Foreground(SuccessColor),
	model.RiskMedium:   lipgloss.NewStyle().Foreground(WarningColor),
	model.RiskHigh:     lipgloss.NewStyle().Foreground(AccentColor),
	model.RiskCritical: lipgloss.NewStyle().Bold(true).Foreground(ErrorColor),
}

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	DocketIcon  = "⚖️"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the docket icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(DocketIcon + " " + title)
}

// FormatRecommendation renders a verdict in its signature color.
func FormatRecommendation(rec model.Recommendation) string {
	style, ok := recommendationStyles[rec]
	if !ok {
		return string(rec)
	}
	return style.Render(string(rec))
}

// FormatRiskLevel renders a risk level in its signature color.
func FormatRiskLevel(level model.RiskLevel) string {
	style, ok := riskLevelStyles[level]
	if !ok {
		return string(level)
	}
	return style.Render(string(level))
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	boxContent := lipgloss.JoinVertical(
		lipgloss.Left,
		boxTitle,
		content,
	)

	return BoxStyle.Render(boxContent)
}
