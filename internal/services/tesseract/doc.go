// Package tesseract drives the tesseract command line OCR engine.
//
// The engine is configured with one language at a time. Reinitialize tears
// down the current configuration and verifies the new language is installed
// before any further Recognize call. Tests inject an Executor to avoid the
// real binary.
package tesseract
