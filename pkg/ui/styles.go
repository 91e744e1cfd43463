// Package ui provides styled CLI output for stepmerger using lipgloss.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	colorPrimary   = lipgloss.Color("#56C3F4") // Cyan
	colorSecondary = lipgloss.Color("#7D56F4") // Purple
	colorSuccess   = lipgloss.Color("#5AF78E") // Green
	colorWarning   = lipgloss.Color("#F7DC6F") // Yellow
	colorError     = lipgloss.Color("#FF6B9D") // Pink/Red
	colorMuted     = lipgloss.Color("#6C7086") // Gray

	colorText      = lipgloss.Color("#CDD6F4")
	colorSubtle    = lipgloss.Color("#7F849C")
	colorBorder    = lipgloss.Color("#45475A")
	colorHighlight = lipgloss.Color("#F5E0DC")
	colorNormal    = lipgloss.Color("#FFFFFF")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 2).
			MarginBottom(1)

	styleVersion = lipgloss.NewStyle().
			Foreground(colorSubtle).
			Italic(true)

	styleSection = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary).
			MarginTop(1)

	styleFilePath = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true)

	styleFileInput = lipgloss.NewStyle().
			Foreground(colorText)

	styleFileOutput = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	styleStepLabel = lipgloss.NewStyle().
			Foreground(colorText).
			Width(16).
			Align(lipgloss.Left)

	styleStepStatus = lipgloss.NewStyle().
			Bold(true)

	styleStepTime = lipgloss.NewStyle().
			Foreground(colorSubtle).
			Italic(true)

	styleSummary = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorBorder).
			MarginTop(1).
			PaddingTop(1)

	styleIndent = lipgloss.NewStyle().
			PaddingLeft(2)

	styleNormalText = lipgloss.NewStyle().
			Foreground(colorNormal)
)

// MergeOutput manages the terminal display of a `stepmerger merge` run.
type MergeOutput struct {
	startTime   time.Time
	nodeCount   int
	currentNode string
}

// NewMergeOutput creates a new merge output manager.
func NewMergeOutput() *MergeOutput {
	return &MergeOutput{startTime: time.Now()}
}

// PrintHeader prints the program banner.
func (b *MergeOutput) PrintHeader(version string) {
	header := styleHeader.Render("stepmerger")
	versionBadge := styleVersion.Render("v" + version)
	fmt.Println(header + " " + versionBadge)
}

// PrintMergeStart announces the size of the assembly tree about to be merged.
func (b *MergeOutput) PrintMergeStart(nodeCount int) {
	b.nodeCount = nodeCount

	var msg string
	if nodeCount == 1 {
		msg = "Merging 1 node"
	} else {
		msg = fmt.Sprintf("Merging %d nodes", nodeCount)
	}

	fmt.Println(styleSection.Render(msg))
	fmt.Println()
}

// PrintFiles prints the assembly-tree input path and merged output path.
func (b *MergeOutput) PrintFiles(assemblyPath, outputPath string) {
	input := styleFileInput.Render(assemblyPath)
	arrow := styleMuted.Render("→")
	output := styleFileOutput.Render(outputPath)

	fmt.Printf("  %s %s %s\n", input, arrow, output)
	fmt.Println()
}

// Step represents a single phase of a merge run.
type Step struct {
	Name     string
	Status   StepStatus
	Duration time.Duration
	Message  string
}

// StepStatus is the outcome of a Step.
type StepStatus int

const (
	StepSuccess StepStatus = iota
	StepSkipped
	StepWarning
	StepError
)

// PrintStep prints a single merge phase and its outcome.
func (b *MergeOutput) PrintStep(step Step) {
	var icon, status, statusStyle string

	switch step.Status {
	case StepSuccess:
		icon = "✓"
		status = "Done"
		statusStyle = styleSuccess.Render(status)
	case StepSkipped:
		icon = "○"
		status = "Skipped"
		statusStyle = styleMuted.Render(status)
	case StepWarning:
		icon = "⚠"
		status = "Warning"
		statusStyle = styleWarning.Render(status)
	case StepError:
		icon = "✗"
		status = "Failed"
		statusStyle = styleError.Render(status)
	}

	label := styleStepLabel.Render(step.Name)
	line := fmt.Sprintf("  %s %s", icon, label)
	line += styleStepStatus.Render(statusStyle)

	if step.Duration > 0 {
		line += " " + styleStepTime.Render("("+formatDuration(step.Duration)+")")
	}

	fmt.Println(line)

	if step.Message != "" {
		fmt.Println(styleMuted.Render("    " + step.Message))
	}
}

// PrintSummary prints the final outcome of a merge run.
func (b *MergeOutput) PrintSummary(success bool, errorMsg string) {
	elapsed := time.Since(b.startTime)

	fmt.Println()

	var summaryLine string
	if success {
		summaryLine = fmt.Sprintf("%s Merged in %s",
			styleSuccess.Render("Success!"),
			styleStepTime.Render(formatDuration(elapsed)),
		)
	} else {
		summaryLine = styleError.Render("Merge failed")
		if errorMsg != "" {
			summaryLine += "\n" + styleError.Render("   Error: ") + errorMsg
		}
	}

	fmt.Println(styleSummary.Render(summaryLine))
}

// PrintError prints an error message.
func (b *MergeOutput) PrintError(msg string) {
	fmt.Println(styleIndent.Render(styleError.Render("✗ Error: ") + msg))
}

// PrintWarning prints a warning message.
func (b *MergeOutput) PrintWarning(msg string) {
	fmt.Println(styleIndent.Render(styleWarning.Render("⚠ Warning: ") + msg))
}

// PrintInfo prints an informational message.
func (b *MergeOutput) PrintInfo(msg string) {
	fmt.Println(styleIndent.Render(styleMuted.Render("ℹ " + msg)))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// PrintVersionInfo prints version information.
func PrintVersionInfo(version string) {
	fmt.Println(styleHeader.Render("stepmerger"))
	fmt.Println()
	fmt.Printf("  %s %s\n", styleMuted.Render("Version:"), styleSuccess.Render(version))
	fmt.Printf("  %s %s\n", styleMuted.Render("Schema:"), styleNormalText.Render("AP203 CONFIG_CONTROL_DESIGN"))
	fmt.Println()
}

// Box creates a bordered box around content.
func Box(title, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPrimary).
		Padding(1, 2).
		Width(60)

	if title != "" {
		titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
		content = titleStyle.Render(title) + "\n\n" + content
	}

	return boxStyle.Render(content)
}

// Table renders a simple two-column table, e.g. a merge's root-entry summary.
func Table(rows [][]string) string {
	var lines []string

	maxWidth := 0
	for _, row := range rows {
		if len(row) > 0 && len(row[0]) > maxWidth {
			maxWidth = len(row[0])
		}
	}

	for _, row := range rows {
		if len(row) >= 2 {
			label := styleMuted.Render(fmt.Sprintf("%-*s", maxWidth, row[0]))
			value := styleNormalText.Render(row[1])
			lines = append(lines, fmt.Sprintf("  %s  %s", label, value))
		}
	}

	return strings.Join(lines, "\n")
}

// ProgressBar renders a simple progress bar showing current out of total.
func ProgressBar(current, total int, width int) string {
	if width <= 0 {
		width = 40
	}

	percentage := float64(current) / float64(total)
	filled := int(percentage * float64(width))

	barStyle := lipgloss.NewStyle().Foreground(colorSuccess)
	emptyStyle := lipgloss.NewStyle().Foreground(colorMuted)

	filledBar := barStyle.Render(strings.Repeat("█", filled))
	emptyBar := emptyStyle.Render(strings.Repeat("░", width-filled))
	percentText := styleNormalText.Render(fmt.Sprintf(" %3d%%", int(percentage*100)))

	return filledBar + emptyBar + percentText
}

// Divider renders a horizontal divider.
func Divider() string {
	return styleMuted.Render(strings.Repeat("─", 60))
}

// PrintHelp prints stepmerger's colorful top-level help output.
func PrintHelp(version string) {
	header := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	muted := lipgloss.NewStyle().Foreground(colorMuted)
	desc := lipgloss.NewStyle().Foreground(colorText)
	section := lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	command := lipgloss.NewStyle().Foreground(colorSuccess)
	flag := lipgloss.NewStyle().Foreground(colorHighlight)

	fmt.Println()
	fmt.Println(header.Render("stepmerger") + " " + muted.Render("- merge STEP assemblies into one file"))
	fmt.Println(muted.Render("  v" + version))
	fmt.Println()

	fmt.Println(desc.Render("Flattens an assembly tree of STEP (ISO 10303-21) part files into a"))
	fmt.Println(desc.Render("single AP203 exchange file, rewriting entity ids to stay unique."))
	fmt.Println()

	fmt.Println(section.Render("Usage:"))
	fmt.Println("  stepmerger [command] [flags]")
	fmt.Println()

	fmt.Println(section.Render("Available Commands:"))
	commands := []struct{ name, desc string }{
		{"merge", "Merge an assembly tree into a single STEP file"},
		{"validate", "Check an assembly tree's child indices and links"},
		{"map", "Inspect a merge's source map"},
		{"version", "Print the version number of stepmerger"},
		{"help", "Help about any command"},
	}

	for _, cmd := range commands {
		fmt.Printf("  %s  %s\n", command.Render(fmt.Sprintf("%-12s", cmd.name)), cmd.desc)
	}
	fmt.Println()

	fmt.Println(section.Render("Flags:"))
	fmt.Printf("  %s      help for stepmerger\n", flag.Render("-h, --help"))
	fmt.Printf("  %s   version for stepmerger\n", flag.Render("-v, --version"))
	fmt.Println()

	fmt.Println(muted.Render("Use \"stepmerger [command] --help\" for more information about a command."))
	fmt.Println()
}
