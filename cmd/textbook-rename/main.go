// textbook-rename scans a directory tree of textbook PDFs, detects chapter
// headings from sidecar text files and renames the PDFs to a uniform
// "Subject - Ch NN - Title.pdf" scheme. Without --apply it only reports
// what it would do.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/vtutor/voicesession/textbook"
)

func main() {
	var (
		apply   = pflag.Bool("apply", false, "apply renames (default is dry-run)")
		max     = pflag.Int("max", 0, "limit number of files to process (0 = no limit)")
		verbose = pflag.Bool("verbose", false, "log per-file decisions")
	)
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: textbook-rename [flags] <base-dir>")
		pflag.PrintDefaults()
		os.Exit(2)
	}
	baseDir := pflag.Arg(0)

	logrus.SetLevel(logrus.InfoLevel)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	info, err := os.Stat(baseDir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "textbook-rename: base directory not found: %s\n", baseDir)
		os.Exit(2)
	}

	renamer := &textbook.Renamer{
		Extractor: textbook.SidecarExtractor{},
		Apply:     *apply,
		Max:       *max,
	}

	summary, err := renamer.Run(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "textbook-rename: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Summary: processed=%d renamed=%d skipped=%d apply=%v\n",
		summary.Processed, summary.Renamed, summary.Skipped, *apply)
}
