// Package textbook holds the courseware maintenance tooling that ships
// alongside the voice session manager: a heuristic PDF chapter renamer
// and a small upload/processing service for textbook records.
//
// The renamer works on pre-extracted text lines. PDF text extraction is
// an external concern; callers plug in a TextExtractor (the default one
// reads a sidecar .txt file next to the PDF).
package textbook
