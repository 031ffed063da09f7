// Package report renders run summaries and the network catalog as boxed text tables.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gov-monitoring/internal/collector"
	"gov-monitoring/internal/config"
	"gov-monitoring/internal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// maxCellWidth caps a column; longer cells are cut with "...".
const maxCellWidth = 48

var titleStyle = lipgloss.NewStyle().Bold(true)

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	truncated := ""
	for _, r := range s {
		if runewidth.StringWidth(truncated+string(r)) > width-3 {
			break
		}
		truncated += string(r)
	}
	return truncated + "..."
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + padToWidth(truncate(text, width-2), width-2) + "│"
}

// table draws headers and rows in a box with an optional footer line.
func table(headers []string, rows [][]string, footer string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) {
				widths[i] = max(widths[i], min(runewidth.StringWidth(row[i]), maxCellWidth))
			}
		}
	}

	border := func(left, mid, right string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		return left + strings.Join(parts, mid) + right
	}
	formatRow := func(cells []string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = truncate(cells[i], w)
			}
			parts[i] = " " + padToWidth(cell, w) + " "
		}
		return "│" + strings.Join(parts, "│") + "│"
	}

	lines := []string{border("┌", "┬", "┐"), formatRow(headers), border("├", "┼", "┤")}
	for _, row := range rows {
		lines = append(lines, formatRow(row))
	}
	if footer != "" {
		width := runewidth.StringWidth(lines[0])
		lines = append(lines, border("├", "┴", "┤"), formatInfoLine(" "+footer, width))
		lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")
	} else {
		lines = append(lines, border("└", "┴", "┘"))
	}
	return strings.Join(lines, "\n")
}

// Summary renders the per-network counters of a run.
func Summary(sum *collector.Summary) string {
	headers := []string{"NETWORK", "FAMILY", "LISTED", "VOTED", "PENDING", "NEW", "DUP", "UNRESOLVED", "STATUS"}
	rows := make([][]string, 0, len(sum.Networks))
	for _, ns := range sum.Networks {
		status := "ok"
		if ns.ListErr != nil {
			status = "error: " + ns.ListErr.Error()
		}
		rows = append(rows, []string{
			ns.Name,
			string(ns.Family),
			strconv.Itoa(ns.Listed),
			strconv.Itoa(ns.Voted),
			strconv.Itoa(ns.Pending),
			strconv.Itoa(ns.Inserted),
			strconv.Itoa(ns.Duplicates),
			strconv.Itoa(ns.Unresolved),
			status,
		})
	}
	t := sum.Totals()
	footer := fmt.Sprintf("%d new, %d already stored, %d voted, %d failed networks, took %s",
		t.Inserted, t.Duplicates, t.Voted, sum.FailedNetworks(), sum.Finished.Sub(sum.Started).Round(time.Millisecond))
	title := titleStyle.Render("Run " + sum.Started.UTC().Format(time.RFC3339))
	return lipgloss.JoinVertical(lipgloss.Left, title, table(headers, rows, footer))
}

// Networks renders the catalog. monikers, keyed by network name, may be nil.
func Networks(c *config.Catalog, monikers map[string]string) string {
	headers := []string{"NETWORK", "FAMILY", "GOV", "VALIDATOR", "MONIKER", "ENDPOINTS", "EXPLORER"}
	networks := c.Networks()
	rows := make([][]string, 0, len(networks))
	for _, d := range networks {
		gov := d.GovPrefix
		if d.Family == config.FamilyNamada {
			gov = "-"
		}
		moniker := monikers[d.Name]
		if moniker == "" {
			moniker = "-"
		}
		rows = append(rows, []string{
			d.Name,
			string(d.Family),
			gov,
			d.Validator,
			moniker,
			strconv.Itoa(len(d.Endpoints)),
			d.Explorer,
		})
	}
	title := titleStyle.Render("Networks")
	return lipgloss.JoinVertical(lipgloss.Left, title, table(headers, rows, fmt.Sprintf("%d networks", len(networks))))
}

// Proposals renders stored proposals, used after a dry run.
func Proposals(props []models.Proposal) string {
	headers := []string{"NETWORK", "ID", "TITLE", "VOTING ENDS", "VOTED"}
	rows := make([][]string, 0, len(props))
	for _, p := range props {
		voted := "no"
		if p.Voted {
			voted = "yes"
		}
		rows = append(rows, []string{
			p.Network,
			strconv.FormatUint(p.ProposalID, 10),
			p.Title,
			time.Unix(p.VotingEndTime, 0).UTC().Format("2006-01-02 15:04"),
			voted,
		})
	}
	title := titleStyle.Render("Proposals")
	return lipgloss.JoinVertical(lipgloss.Left, title, table(headers, rows, ""))
}
