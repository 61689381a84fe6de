package presentation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	authStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// table renders rows as left-aligned columns sized to their widest cell.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = cellStyle.Width(widths[i] + 2).Render(style.Render(c))
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	lines := []string{line(header, headerStyle)}
	for _, row := range rows {
		lines = append(lines, line(row, lipgloss.NewStyle()))
	}
	return strings.Join(lines, "\n")
}

// RenderFormats renders the format table.
func RenderFormats(formats []FormatDTO) string {
	rows := make([][]string, len(formats))
	for i, f := range formats {
		rows[i] = []string{
			f.Name,
			f.Class,
			strconv.Itoa(f.Components),
			strconv.Itoa(f.Bits),
			strconv.Itoa(f.Size),
			strconv.FormatFloat(f.Min, 'g', 6, 64) + " .. " + strconv.FormatFloat(f.Max, 'g', 6, 64),
		}
	}
	return table([]string{"NAME", "CLASS", "COMP", "BITS", "BYTES", "RANGE"}, rows)
}

// RenderFamilies renders each family as a titled block of its rules.
func RenderFamilies(families []FamilyDTO) string {
	if len(families) == 0 {
		return mutedStyle.Render("no families registered")
	}

	blocks := make([]string, 0, len(families))
	for _, fam := range families {
		var b strings.Builder
		b.WriteString(titleStyle.Render(fam.Family))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("creators: " + joinOrDash(fam.Creators)))
		b.WriteString("\n")
		if len(fam.Rules) == 0 {
			b.WriteString(mutedStyle.Render("no rules"))
		} else {
			rows := make([][]string, len(fam.Rules))
			for i, r := range fam.Rules {
				mode := "convert"
				if r.Updates {
					mode = "convert+update"
				}
				rows[i] = []string{r.From, r.To, mode}
			}
			b.WriteString(table([]string{"FROM", "TO", "MODE"}, rows))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// RenderPath renders the hop chain or a no-path notice.
func RenderPath(p PathDTO) string {
	head := p.Family + ": " + joinOrDash(p.Available) + " => " + p.Target
	if !p.Found {
		return head + "\n" + errorStyle.Render("no path")
	}
	if len(p.Hops) == 0 {
		return head + "\n" + mutedStyle.Render("already available")
	}
	return head + "\n" + strings.Join(p.Hops, "  ")
}

// RenderVolume renders a volume header and its per-kind state.
func RenderVolume(v VolumeDTO) string {
	dims := make([]string, len(v.Dims))
	for i, d := range v.Dims {
		dims[i] = strconv.Itoa(d)
	}
	head := titleStyle.Render(v.Format + " " + strings.Join(dims, "x"))
	if v.Location != "" {
		head += " " + mutedStyle.Render(v.Location)
	}

	rows := make([][]string, len(v.Kinds))
	for i, k := range v.Kinds {
		state := "current"
		switch {
		case k.Authoritative:
			state = authStyle.Render("authoritative")
		case k.Stale:
			state = staleStyle.Render("stale")
		}
		rows[i] = []string{k.Kind, state}
	}
	out := head + "\n" + table([]string{"KIND", "STATE"}, rows)
	if v.Values != nil {
		out += "\n" + mutedStyle.Render(fmt.Sprintf("%d values  min %g  max %g  mean %g",
			v.Values.Count, v.Values.Min, v.Values.Max, v.Values.Mean))
	}
	return out
}

// RenderBlobs renders the store listing.
func RenderBlobs(blobs []BlobDTO) string {
	if len(blobs) == 0 {
		return mutedStyle.Render("store is empty")
	}
	rows := make([][]string, len(blobs))
	for i, b := range blobs {
		dims := make([]string, len(b.Dims))
		for j, d := range b.Dims {
			dims[j] = strconv.Itoa(d)
		}
		rows[i] = []string{b.Key, b.Format, strings.Join(dims, "x"), strconv.Itoa(b.Size), strconv.FormatInt(b.Version, 10), b.UpdatedAt}
	}
	return table([]string{"KEY", "FORMAT", "DIMS", "BYTES", "VERSION", "UPDATED"}, rows)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
