package textbook

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// DetectedChapter is the outcome of chapter-heading detection: the chapter
// number (0 when only a title was found) and the title text.
type DetectedChapter struct {
	Number int
	Title  string
}

// Chapter numbers outside this range are treated as page numbers or noise.
const (
	minChapterNumber = 1
	maxChapterNumber = 40
)

var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bChapter\s+(\d+)\s*[:\-–—.]?\s*(.+)`),
	regexp.MustCompile(`(?i)\bLesson\s+(\d+)\s*[:\-–—.]?\s*(.+)`),
	regexp.MustCompile(`(?i)\bUnit\s+(\d+)\s*[:\-–—.]?\s*(.+)`),
	regexp.MustCompile(`(?i)\bCh\.?\s*(\d+)\s*[:\-–—.]?\s*(.+)`),
}

// Some books spell the heading out, "CHAPTER NINE".
var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8,
	"nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"thirteen": 13, "fourteen": 14, "fifteen": 15, "sixteen": 16,
}

var chapterWordPattern = regexp.MustCompile(
	`(?i)\bChapter\s+(one|two|three|four|five|six|seven|eight|nine|ten|` +
		`eleven|twelve|thirteen|fourteen|fifteen|sixteen)\b\s*(.*)`)

var (
	invalidFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	multiSpace           = regexp.MustCompile(`\s+`)
	digitsOnly           = regexp.MustCompile(`^\d+$`)
	hasLetter            = regexp.MustCompile(`[A-Za-z]`)

	// Front-matter tokens that never begin a chapter title.
	skipTitleTokens = regexp.MustCompile(
		`(?i)^(contents|index|copyright|ncert|government of|acknowledg|` +
			`preface|foreword)\b`)
)

// NormalizeText applies NFKC normalization, strips soft hyphens and
// collapses whitespace runs to single spaces.
func NormalizeText(text string) string {
	normalized := norm.NFKC.String(text)
	normalized = strings.ReplaceAll(normalized, "­", "")
	normalized = multiSpace.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// SanitizeFilenameComponent makes a string safe for use as part of a file
// name, trimming it to maxLen runes.
func SanitizeFilenameComponent(name string, maxLen int) string {
	name = NormalizeText(name)
	name = invalidFilenameChars.ReplaceAllString(name, " ")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxLen {
		name = strings.TrimRight(string(runes[:maxLen]), " ")
	}
	return name
}

func inRange(num int) bool {
	return num >= minChapterNumber && num <= maxChapterNumber
}

// detectUppercaseTitle probes the first hundred lines for a strong title
// candidate: all caps, or most words with uppercase initials.
func detectUppercaseTitle(lines []string) string {
	limit := len(lines)
	if limit > 100 {
		limit = 100
	}
	for _, line := range lines[:limit] {
		if len(line) < 5 || len(line) > 100 {
			continue
		}
		if skipTitleTokens.MatchString(line) {
			continue
		}
		if !hasLetter.MatchString(line) {
			continue
		}
		if line == strings.ToUpper(line) {
			return line
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		upperInitials := 0
		for _, w := range words {
			if r := []rune(w); len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
				upperInitials++
			}
		}
		required := int(0.6 * float64(len(words)))
		if required < 2 {
			required = 2
		}
		if upperInitials >= required {
			return line
		}
	}
	return ""
}

// DetectChapter runs the heading heuristics over normalized text lines:
// numbered headings with an inline title, numbered headings with the title
// on a following line, spelled-out numbers, and finally a bare title probe.
func DetectChapter(lines []string) (DetectedChapter, error) {
	// Pass 1: heading and title on the same line.
	for _, line := range lines {
		for _, pattern := range chapterPatterns {
			match := pattern.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			number := atoiSafe(match[1])
			if number == 0 {
				continue
			}
			title := strings.TrimSpace(match[2])
			if len(title) < 3 {
				continue
			}
			return DetectedChapter{Number: number, Title: title}, nil
		}
	}

	// Pass 2: heading alone, title on one of the next few lines.
	for idx, line := range lines {
		for _, pattern := range chapterPatterns {
			match := pattern.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			number := atoiSafe(match[1])
			if number == 0 {
				continue
			}
			if title := lookAheadTitle(lines, idx, true); title != "" {
				return DetectedChapter{Number: number, Title: title}, nil
			}
		}
	}

	// Pass 3: spelled-out chapter number.
	for idx, line := range lines {
		match := chapterWordPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		number := wordNumbers[strings.ToLower(match[1])]
		if number == 0 {
			continue
		}
		remainder := strings.TrimSpace(match[2])
		if len(remainder) > 3 {
			return DetectedChapter{Number: number, Title: remainder}, nil
		}
		if title := lookAheadTitle(lines, idx, false); title != "" {
			return DetectedChapter{Number: number, Title: title}, nil
		}
	}

	// Pass 4: a strong-looking title with no detectable number.
	if title := detectUppercaseTitle(lines); title != "" {
		return DetectedChapter{Number: 0, Title: title}, nil
	}

	return DetectedChapter{}, ErrNoChapter
}

// lookAheadTitle scans up to four lines past idx for a plausible title.
func lookAheadTitle(lines []string, idx int, filterTokens bool) string {
	for ahead := 1; ahead <= 4; ahead++ {
		if idx+ahead >= len(lines) {
			break
		}
		candidate := strings.TrimSpace(lines[idx+ahead])
		if len(candidate) < 5 {
			continue
		}
		if filterTokens && skipTitleTokens.MatchString(candidate) {
			continue
		}
		if digitsOnly.MatchString(candidate) {
			continue
		}
		return candidate
	}
	return ""
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
		if n > maxChapterNumber*100 {
			return 0
		}
	}
	if !inRange(n) {
		return 0
	}
	return n
}

// DeriveSubject resolves the subject component from the PDF's location:
// the first directory under baseDir, falling back to the parent directory
// name when the file sits directly in baseDir or outside it.
func DeriveSubject(pdfPath, baseDir string) string {
	subject := filepath.Base(filepath.Dir(pdfPath))
	if rel, err := filepath.Rel(baseDir, pdfPath); err == nil &&
		!strings.HasPrefix(rel, "..") {
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) >= 2 {
			subject = parts[0]
		}
	}
	return SanitizeFilenameComponent(subject, 80)
}

// ShouldSkip reports whether a path is excluded from renaming. Mathematics
// volumes keep their original names.
func ShouldSkip(pdfPath string) bool {
	for _, part := range strings.Split(pdfPath, string(filepath.Separator)) {
		if strings.Contains(part, "Mathematics") {
			return true
		}
	}
	return false
}

// BuildFilename produces the canonical "Subject - Ch NN - Title.pdf" name.
func BuildFilename(pdfPath, baseDir string, detected DetectedChapter) string {
	subject := DeriveSubject(pdfPath, baseDir)
	title := SanitizeFilenameComponent(detected.Title, 80)
	number := "00"
	if detected.Number > 0 {
		number = fmt.Sprintf("%02d", detected.Number)
	}
	return fmt.Sprintf("%s - Ch %s - %s.pdf", subject, number, title)
}

// EnsureUniquePath returns a path in targetDir that does not collide with
// an existing file, suffixing " (2)", " (3)" and so on as needed.
func EnsureUniquePath(targetDir, proposedName string) string {
	candidate := filepath.Join(targetDir, proposedName)
	if !pathExists(candidate) {
		return candidate
	}
	ext := filepath.Ext(proposedName)
	stem := strings.TrimSuffix(proposedName, ext)
	for counter := 2; ; counter++ {
		alt := filepath.Join(targetDir, fmt.Sprintf("%s (%d)%s", stem, counter, ext))
		if !pathExists(alt) {
			return alt
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TextExtractor supplies normalized text lines for the leading pages of a
// PDF. Extraction itself is delegated to the environment.
type TextExtractor interface {
	ExtractLines(pdfPath string, maxPages int) ([]string, error)
}

// SidecarExtractor reads a .txt file stored next to the PDF, one that an
// external extraction step has already produced.
type SidecarExtractor struct{}

// ExtractLines reads the sidecar text file for pdfPath and returns its
// non-empty normalized lines. A missing sidecar yields no lines, not an
// error, so detection can simply report no chapter.
func (SidecarExtractor) ExtractLines(pdfPath string, maxPages int) ([]string, error) {
	sidecar := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
	data, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sidecar text: %w", err)
	}
	var lines []string
	for _, raw := range strings.Split(string(data), "\n") {
		if line := NormalizeText(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// RenameSummary reports the outcome counts of a renamer run.
type RenameSummary struct {
	Processed int
	Renamed   int
	Skipped   int
}

// Renamer walks a directory tree of textbook PDFs and renames files whose
// chapter can be detected. With Apply false it only reports what it would
// do.
type Renamer struct {
	Extractor TextExtractor
	Apply     bool
	Max       int // 0 means no limit
}

// ProposeRename returns the canonical filename for a PDF, or ErrNoChapter
// when detection fails.
func (r *Renamer) ProposeRename(pdfPath, baseDir string) (string, error) {
	if ShouldSkip(pdfPath) {
		return "", ErrNoChapter
	}
	extractor := r.Extractor
	if extractor == nil {
		extractor = SidecarExtractor{}
	}
	lines, err := extractor.ExtractLines(pdfPath, 10)
	if err != nil {
		return "", err
	}
	detected, err := DetectChapter(lines)
	if err != nil {
		return "", err
	}
	return BuildFilename(pdfPath, baseDir, detected), nil
}

// Run processes every PDF under baseDir in sorted order.
func (r *Renamer) Run(baseDir string) (RenameSummary, error) {
	var summary RenameSummary

	var pdfs []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("failed to walk %s: %w", baseDir, err)
	}
	sort.Strings(pdfs)

	for _, pdfPath := range pdfs {
		if r.Max > 0 && summary.Processed >= r.Max {
			break
		}
		summary.Processed++

		if ShouldSkip(pdfPath) {
			logrus.WithFields(logrus.Fields{
				"function": "Renamer.Run",
				"path":     pdfPath,
			}).Info("Skipping excluded subject")
			summary.Skipped++
			continue
		}

		proposed, err := r.ProposeRename(pdfPath, baseDir)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Renamer.Run",
				"path":     pdfPath,
				"error":    err.Error(),
			}).Debug("No rename proposed")
			summary.Skipped++
			continue
		}

		target := EnsureUniquePath(filepath.Dir(pdfPath), proposed)
		if filepath.Base(target) == filepath.Base(pdfPath) {
			logrus.WithFields(logrus.Fields{
				"function": "Renamer.Run",
				"path":     pdfPath,
			}).Debug("Already named")
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function": "Renamer.Run",
			"from":     filepath.Base(pdfPath),
			"to":       filepath.Base(target),
			"apply":    r.Apply,
		}).Info("Rename proposed")

		if !r.Apply {
			continue
		}
		if err := os.Rename(pdfPath, target); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Renamer.Run",
				"path":     pdfPath,
				"error":    err.Error(),
			}).Error("Rename failed")
			continue
		}
		summary.Renamed++
	}

	return summary, nil
}
