// Package language holds the table of OCR languages understood by the
// tesseract engine together with the per-language character allow-lists used
// to clean OCR output and the prompt modifier that asks the LLM to answer in
// the configured language.
//
// Codes are tesseract codes ("eng", "chi_sim", "aze_cyrl"). Lookup also
// accepts ISO 639-1 and BCP 47 tags such as "de" or "zh-Hant" and resolves them
// to the matching tesseract code.
package language
