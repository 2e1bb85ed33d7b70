package textbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectChapterInlineTitle(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		number int
		title  string
	}{
		{
			name:   "chapter heading",
			lines:  []string{"Chapter 4: The Water Cycle", "some body text"},
			number: 4,
			title:  "The Water Cycle",
		},
		{
			name:   "lesson heading",
			lines:  []string{"Lesson 12 - Photosynthesis"},
			number: 12,
			title:  "Photosynthesis",
		},
		{
			name:   "unit heading",
			lines:  []string{"UNIT 2. Forces and Motion"},
			number: 2,
			title:  "Forces and Motion",
		},
		{
			name:   "abbreviated heading",
			lines:  []string{"Ch. 7 The Mughal Empire"},
			number: 7,
			title:  "The Mughal Empire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected, err := DetectChapter(tt.lines)
			require.NoError(t, err)
			assert.Equal(t, tt.number, detected.Number)
			assert.Equal(t, tt.title, detected.Title)
		})
	}
}

func TestDetectChapterTitleOnFollowingLine(t *testing.T) {
	lines := []string{
		"Chapter 9 .",
		"contents",
		"42",
		"Nationalism in India",
	}
	detected, err := DetectChapter(lines)
	require.NoError(t, err)
	assert.Equal(t, 9, detected.Number)
	assert.Equal(t, "Nationalism in India", detected.Title)
}

func TestDetectChapterSpelledOutNumber(t *testing.T) {
	detected, err := DetectChapter([]string{"CHAPTER NINE", "The Making of a Scientist"})
	require.NoError(t, err)
	assert.Equal(t, 9, detected.Number)
	assert.Equal(t, "The Making of a Scientist", detected.Title)
}

func TestDetectChapterTitleOnlyFallback(t *testing.T) {
	detected, err := DetectChapter([]string{
		"page 1",
		"THE FUNDAMENTAL UNIT OF LIFE",
		"body text follows here in lowercase sentences",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, detected.Number)
	assert.Equal(t, "THE FUNDAMENTAL UNIT OF LIFE", detected.Title)
}

func TestDetectChapterRejectsFrontMatterAndNoise(t *testing.T) {
	_, err := DetectChapter([]string{
		"contents of this book",
		"ncert catalogue",
		"123",
		"ok",
	})
	assert.ErrorIs(t, err, ErrNoChapter)

	// Out-of-range numbers look like page numbers, not chapters.
	_, err = DetectChapter([]string{"chapter 97: impossible things"})
	assert.ErrorIs(t, err, ErrNoChapter)
}

func TestSanitizeFilenameComponent(t *testing.T) {
	assert.Equal(t, "A B C", SanitizeFilenameComponent("A/B:C", 100))
	assert.Equal(t, "spaced out", SanitizeFilenameComponent("  spaced \t out \n", 100))
	assert.Equal(t, "abcd", SanitizeFilenameComponent("abcdef", 4))
	// Soft hyphens vanish under normalization.
	assert.Equal(t, "photosynthesis", SanitizeFilenameComponent("photo­synthesis", 100))
}

func TestBuildFilename(t *testing.T) {
	base := filepath.Join("library")
	path := filepath.Join("library", "Science", "book1.pdf")

	name := BuildFilename(path, base, DetectedChapter{Number: 3, Title: "Atoms and Molecules"})
	assert.Equal(t, "Science - Ch 03 - Atoms and Molecules.pdf", name)

	name = BuildFilename(path, base, DetectedChapter{Number: 0, Title: "Untitled"})
	assert.Equal(t, "Science - Ch 00 - Untitled.pdf", name)
}

func TestDeriveSubjectFallsBackToParent(t *testing.T) {
	assert.Equal(t, "History",
		DeriveSubject(filepath.Join("other", "History", "b.pdf"), filepath.Join("library")))
}

func TestShouldSkipMathematics(t *testing.T) {
	assert.True(t, ShouldSkip(filepath.Join("library", "Mathematics I", "b.pdf")))
	assert.False(t, ShouldSkip(filepath.Join("library", "Science", "b.pdf")))
}

func TestEnsureUniquePath(t *testing.T) {
	dir := t.TempDir()
	name := "Science - Ch 01 - Matter.pdf"

	assert.Equal(t, filepath.Join(dir, name), EnsureUniquePath(dir, name))

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "Science - Ch 01 - Matter (2).pdf"),
		EnsureUniquePath(dir, name))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Science - Ch 01 - Matter (2).pdf"), []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "Science - Ch 01 - Matter (3).pdf"),
		EnsureUniquePath(dir, name))
}

func TestSidecarExtractor(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "book.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.txt"),
		[]byte("Chapter 2: Tissues\n\n  body   text \n"), 0o644))

	lines, err := SidecarExtractor{}.ExtractLines(pdf, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chapter 2: Tissues", "body text"}, lines)

	// Missing sidecar is not an error.
	lines, err = SidecarExtractor{}.ExtractLines(filepath.Join(dir, "other.pdf"), 10)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRenamerDryRunAndApply(t *testing.T) {
	base := t.TempDir()
	sciDir := filepath.Join(base, "Science")
	mathDir := filepath.Join(base, "Mathematics")
	require.NoError(t, os.MkdirAll(sciDir, 0o755))
	require.NoError(t, os.MkdirAll(mathDir, 0o755))

	writeBook := func(dir, stem, text string) string {
		t.Helper()
		pdf := filepath.Join(dir, stem+".pdf")
		require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
		if text != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, stem+".txt"), []byte(text), 0o644))
		}
		return pdf
	}

	original := writeBook(sciDir, "scan-001", "Chapter 5: Sound Waves\n")
	writeBook(sciDir, "scan-002", "no heading here at all\n")
	writeBook(mathDir, "scan-003", "Chapter 1: Numbers\n")

	renamer := &Renamer{}

	summary, err := renamer.Run(base)
	require.NoError(t, err)
	assert.Equal(t, RenameSummary{Processed: 3, Renamed: 0, Skipped: 2}, summary)
	assert.FileExists(t, original, "dry run must not touch files")

	renamer.Apply = true
	summary, err = renamer.Run(base)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Renamed)
	assert.NoFileExists(t, original)
	assert.FileExists(t, filepath.Join(sciDir, "Science - Ch 05 - Sound Waves.pdf"))
}

func TestRenamerMaxLimit(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "Science")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, stem := range []string{"a", "b", "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, stem+".pdf"), []byte("%PDF"), 0o644))
	}

	renamer := &Renamer{Max: 2}
	summary, err := renamer.Run(base)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
}
