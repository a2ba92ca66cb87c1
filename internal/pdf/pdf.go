// Package pdf turns uploaded PDF files into plain text.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strings"

	rscpdf "rsc.io/pdf"
)

// ErrNoText is returned when neither extractor produced any text.
var ErrNoText = errors.New("pdf: no extractable text")

// DefaultTitle is used when GuessTitle finds nothing.
const DefaultTitle = "Unspecified Position"

var (
	pageBreakRe  = regexp.MustCompile(`\n[-]+Page\s*\(\d+\)\s*Break[-]+`)
	pageOfRe     = regexp.MustCompile(`Page\s*\d+\s*of\s*\d+`)
	headerRe     = regexp.MustCompile(`\[PDF\s*Header\]|\[PDF\s*Footer\]`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(`\s{2,}`)
	titleRe      = regexp.MustCompile(`(?i)(?:senior|junior|lead)?\s*(?:software|frontend|backend|fullstack|web)\s*(?:developer|engineer|architect)`)
)

// ExtractText reads the text layer of the PDF at path. The in-process reader is
// tried first; pdftotext is used when it fails or yields nothing.
func ExtractText(path string) (string, error) {
	text, err := readText(path)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if err != nil {
		log.Printf("pdf reader failed for %s: %v, trying pdftotext", path, err)
	}

	out, xerr := pdftotext(path)
	if xerr != nil {
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", path, errors.Join(err, xerr))
		}
		return "", fmt.Errorf("extract %s: %w", path, xerr)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrNoText
	}
	return out, nil
}

func pdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-enc", "UTF-8", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readText walks every page with rsc.io/pdf. The library panics on some
// malformed files, so panics are turned into errors.
func readText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	r, err := rscpdf.NewReader(f, fi.Size())
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		lastY := math.NaN()
		for _, t := range p.Content().Text {
			if !math.IsNaN(lastY) && math.Abs(t.Y-lastY) > 1 {
				buf.WriteByte('\n')
			}
			buf.WriteString(t.S)
			lastY = t.Y
		}
		buf.WriteString("\n\n")
	}
	return buf.String(), nil
}

// Clean strips page-break markers and header/footer artifacts and collapses whitespace.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r", "\n")
	s = pageBreakRe.ReplaceAllString(s, " ")
	s = pageOfRe.ReplaceAllString(s, " ")
	s = headerRe.ReplaceAllString(s, " ")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// GuessTitle looks for a job-title phrase in the first ten lines of text.
func GuessTitle(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	if m := titleRe.FindString(strings.Join(lines, " ")); strings.TrimSpace(m) != "" {
		return strings.TrimSpace(m)
	}
	return DefaultTitle
}
