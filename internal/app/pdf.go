package app

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`) // [text](url)

// writeReportPDF renders the Markdown run report to PDF. Headings, bullet
// lines and pipe tables are laid out; links become clickable.
func writeReportPDF(markdown string, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		switch {
		case s == "":
			pdf.Ln(4)
		case strings.HasPrefix(s, "#"):
			i := 0
			for i < len(s) && s[i] == '#' {
				i++
			}
			text := strings.TrimSpace(s[i:])
			if text == "" {
				continue
			}
			size := 14.0
			if i >= 2 {
				size = 12.0
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.CellFormat(0, 8, tr(text), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
		case strings.HasPrefix(s, "|"):
			cells := splitTableRow(s)
			if isSeparatorRow(cells) || len(cells) == 0 {
				continue
			}
			w := usable / float64(len(cells))
			for _, c := range cells {
				c = linkRe.ReplaceAllString(c, "$1")
				pdf.CellFormat(w, 6, tr(fitText(pdf, c, w-1)), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		default:
			writeLine(pdf, tr, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return pdf.OutputFileAndClose(outPath)
}

func writeLine(pdf *gofpdf.Fpdf, tr func(string) string, s string) {
	parts := linkRe.FindAllStringSubmatchIndex(s, -1)
	if len(parts) == 0 {
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
		return
	}
	pos := 0
	for _, m := range parts {
		// m: [fullStart, fullEnd, textStart, textEnd, urlStart, urlEnd]
		if m[0] > pos {
			pdf.Write(5, tr(s[pos:m[0]]))
		}
		pdf.WriteLinkString(5, tr(s[m[2]:m[3]]), s[m[4]:m[5]])
		pos = m[1]
	}
	if pos < len(s) {
		pdf.Write(5, tr(s[pos:]))
	}
	pdf.Ln(6)
}

func splitTableRow(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "|")
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

// fitText shortens s until it fits width w in the current font.
func fitText(pdf *gofpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	r := []rune(s)
	for len(r) > 1 && pdf.GetStringWidth(string(r)+"...") > w {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
