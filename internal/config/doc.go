// Package config loads, normalizes, and validates VisionRecall configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and OLLAMA_HOST. The Config type centralizes every knob the
// daemon and CLI need so the intake, storage, and note directories plus the
// LLM and OCR settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
