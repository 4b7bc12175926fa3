// pkg/ui/manifest.go - Execution manifest display for pre-run info
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Manifest text styles. lipgloss degrades these to plain text when
// stdout is not a color terminal, so piped output stays ANSI-free.
var (
	manifestTitleStyle = lipgloss.NewStyle().Bold(true)
	manifestDescStyle  = lipgloss.NewStyle().Faint(true)
	manifestValueStyle = lipgloss.NewStyle().Bold(true).Foreground(Secondary)
)

// ManifestItem represents a single item in the execution manifest
type ManifestItem struct {
	Label    string
	Value    interface{}
	Icon     string
	Emphasis bool // If true, highlight this item
}

// ExecutionManifest displays what will be executed before a run starts
type ExecutionManifest struct {
	Title       string
	Description string
	Items       []ManifestItem
	Writer      io.Writer
	BoxStyle    bool // If true, draw a box around the manifest
}

// NewExecutionManifest creates a new manifest with default settings
func NewExecutionManifest(title string) *ExecutionManifest {
	return &ExecutionManifest{
		Title:    title,
		Items:    make([]ManifestItem, 0),
		Writer:   os.Stdout,
		BoxStyle: true,
	}
}

// SetDescription sets a description line under the title
func (m *ExecutionManifest) SetDescription(desc string) *ExecutionManifest {
	m.Description = desc
	return m
}

// Add adds an item to the manifest
func (m *ExecutionManifest) Add(label string, value interface{}) *ExecutionManifest {
	m.Items = append(m.Items, ManifestItem{Label: label, Value: value})
	return m
}

// AddWithIcon adds an item with an icon. The icon is sanitized for the
// current terminal so legacy consoles never see raw emoji bytes.
func (m *ExecutionManifest) AddWithIcon(icon, label string, value interface{}) *ExecutionManifest {
	m.Items = append(m.Items, ManifestItem{Icon: SanitizeString(icon), Label: label, Value: value})
	return m
}

// AddEmphasis adds an emphasized item (highlighted)
func (m *ExecutionManifest) AddEmphasis(icon, label string, value interface{}) *ExecutionManifest {
	m.Items = append(m.Items, ManifestItem{Icon: SanitizeString(icon), Label: label, Value: value, Emphasis: true})
	return m
}

// AddCheckInfo adds check count information (common pattern)
func (m *ExecutionManifest) AddCheckInfo(count int, categories []string) *ExecutionManifest {
	m.AddEmphasis("📦", "Checks", fmt.Sprintf("%d checks selected", count))
	if len(categories) > 0 {
		m.AddWithIcon("🏷️", "Categories", strings.Join(categories, ", "))
	}
	return m
}

// AddTargetInfo adds target count information
func (m *ExecutionManifest) AddTargetInfo(count int, sample string) *ExecutionManifest {
	if count == 1 {
		m.AddWithIcon("🎯", "Target", sample)
	} else {
		m.AddEmphasis("🎯", "Targets", fmt.Sprintf("%d targets", count))
		if sample != "" {
			m.AddWithIcon("", "First", sample)
		}
	}
	return m
}

// AddEstimate adds a floor estimate for a throttled sequential run.
// Only the inter-check delay is knowable up front, so this is a
// minimum, not a prediction.
func (m *ExecutionManifest) AddEstimate(checks int, throttleMs int) *ExecutionManifest {
	if throttleMs > 0 && checks > 0 {
		estimatedSecs := float64(checks*throttleMs) / 1000
		var estimate string
		if estimatedSecs < 60 {
			estimate = fmt.Sprintf("~%.0fs", estimatedSecs)
		} else if estimatedSecs < 3600 {
			estimate = fmt.Sprintf("~%.1f min", estimatedSecs/60)
		} else {
			estimate = fmt.Sprintf("~%.1f hrs", estimatedSecs/3600)
		}
		m.AddWithIcon("⏱️", "Estimate", fmt.Sprintf("%s minimum @ %dms between checks", estimate, throttleMs))
	}
	return m
}

// Print displays the manifest. The boxed layout needs Unicode box
// drawing, so legacy consoles get the simple layout regardless of
// BoxStyle.
func (m *ExecutionManifest) Print() {
	if m.BoxStyle && UnicodeTerminal() {
		m.printBoxed()
	} else {
		m.printSimple()
	}
}

// printBoxed displays manifest in a Unicode box
func (m *ExecutionManifest) printBoxed() {
	w := m.Writer

	// Calculate max width
	maxWidth := len(m.Title) + 4
	for _, item := range m.Items {
		width := len(item.Label) + len(fmt.Sprintf("%v", item.Value)) + 10
		if width > maxWidth {
			maxWidth = width
		}
	}
	if maxWidth > 70 {
		maxWidth = 70
	}
	if maxWidth < 50 {
		maxWidth = 50
	}

	// Box characters
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  ╔%s╗\n", strings.Repeat("═", maxWidth))

	// Title
	titlePadding := (maxWidth - len(m.Title)) / 2
	fmt.Fprintf(w, "  ║%s%s%s║\n",
		strings.Repeat(" ", titlePadding),
		manifestTitleStyle.Render(m.Title),
		strings.Repeat(" ", maxWidth-titlePadding-len(m.Title)))

	// Description
	if m.Description != "" {
		descPadding := (maxWidth - len(m.Description)) / 2
		fmt.Fprintf(w, "  ║%s%s%s║\n",
			strings.Repeat(" ", descPadding),
			manifestDescStyle.Render(m.Description),
			strings.Repeat(" ", maxWidth-descPadding-len(m.Description)))
	}

	fmt.Fprintf(w, "  ╠%s╣\n", strings.Repeat("═", maxWidth))

	// Items
	for _, item := range m.Items {
		icon := item.Icon
		if icon != "" {
			icon = icon + " "
		}

		valueStr := fmt.Sprintf("%v", item.Value)

		// Apply emphasis styling
		if item.Emphasis {
			valueStr = manifestValueStyle.Render(valueStr)
		}

		// Calculate padding from the unstyled value width
		labelPart := fmt.Sprintf("%s%s:", icon, item.Label)
		displayLen := len(icon) + len(item.Label) + 1 + len(fmt.Sprintf("%v", item.Value))
		padding := maxWidth - displayLen - 4
		if padding < 1 {
			padding = 1
		}

		fmt.Fprintf(w, "  ║  %s%s%s  ║\n", labelPart, strings.Repeat(" ", padding), valueStr)
	}

	fmt.Fprintf(w, "  ╚%s╝\n", strings.Repeat("═", maxWidth))
	fmt.Fprintln(w)
}

// printSimple displays manifest as simple key-value pairs
func (m *ExecutionManifest) printSimple() {
	w := m.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", manifestTitleStyle.Render(m.Title))
	if m.Description != "" {
		fmt.Fprintf(w, "  %s\n", manifestDescStyle.Render(m.Description))
	}
	fmt.Fprintln(w)

	for _, item := range m.Items {
		icon := item.Icon
		if icon != "" {
			icon = icon + " "
		}

		valueStr := fmt.Sprintf("%v", item.Value)
		if item.Emphasis {
			valueStr = manifestValueStyle.Render(valueStr)
		}

		fmt.Fprintf(w, "    %s%s: %s\n", icon, item.Label, valueStr)
	}
	fmt.Fprintln(w)
}

// === Pre-built Manifest Templates ===

// RunManifest creates a manifest for a conformance run
func RunManifest(target, transport, revision string, checks int, categories []string, throttleMs int) *ExecutionManifest {
	m := NewExecutionManifest("CONFORMANCE MANIFEST")
	m.SetDescription("Target and check selection")
	m.AddTargetInfo(1, target)
	m.AddWithIcon("🔌", "Transport", transport)
	if revision == "" {
		revision = "negotiated"
	}
	m.AddWithIcon("📋", "Revision", revision)
	m.AddCheckInfo(checks, categories)
	m.AddEstimate(checks, throttleMs)
	return m
}

// ServeManifest creates a manifest for the built-in reference server
func ServeManifest(addr string, revisions []string) *ExecutionManifest {
	m := NewExecutionManifest("REFERENCE SERVER")
	m.SetDescription("Built-in conformance target")
	if addr == "" {
		m.AddWithIcon("🔌", "Transport", "stdio")
	} else {
		m.AddWithIcon("🔌", "Listen", addr)
	}
	m.AddEmphasis("📋", "Revisions", strings.Join(revisions, ", "))
	return m
}
