package language

import (
	"regexp"
	"sort"
	"strings"

	xlang "golang.org/x/text/language"
)

// Default is the OCR language used when translation is disabled.
const Default = "eng"

// All selects the permissive multi-script allow-list.
const All = "all"

// Language describes a tesseract OCR language.
type Language struct {
	Code       string
	Name       string
	NativeName string
}

type entry struct {
	Language
	allowed *regexp.Regexp // matches runs of disallowed characters
}

const basePunct = `0-9.,!?'"()\-:;`

// class builds an allow-list character class from script letters and extra
// punctuation. Spaces are allowed unless the script is written without them.
func class(letters, extra string, spaces bool) string {
	c := letters + basePunct + extra
	if spaces {
		c += " "
	}
	return c
}

var table = []struct {
	code, name, native string
	class              string
}{
	{"afr", "Afrikaans", "Afrikaans", class(`a-zA-ZÀ-ÿ`, "", true)},
	{"amh", "Amharic", "አማርኛ", class(`\p{Ethiopic}`, "", true)},
	{"ara", "Arabic", "العربية", class(`\p{Arabic}`, "،؛", true)},
	{"asm", "Assamese", "অসমীয়া", class(`\p{Bengali}`, "", true)},
	{"aze", "Azerbaijani", "Azərbaycanca", class(`a-zA-ZƏəĞğİıÖöŞşÜüÇç`, "", true)},
	{"aze_cyrl", "Azerbaijani - Cyrillic", "Азәрбајҹан", class(`\p{Cyrillic}`, "", true)},
	{"bel", "Belarusian", "Беларуская", class(`\p{Cyrillic}`, "«»", true)},
	{"ben", "Bengali", "বাংলা", class(`\p{Bengali}`, "", true)},
	{"bod", "Tibetan", "བོད་སྐད་", class(`\p{Tibetan}`, "", true)},
	{"bos", "Bosnian", "Bosanski", class(`a-zA-ZČčĆćĐđŠšŽž`, "", true)},
	{"bul", "Bulgarian", "Български", class(`\p{Cyrillic}`, "«»", true)},
	{"cat", "Catalan", "Català", class(`a-zA-ZÀ-ÿ`, "«»", true)},
	{"ceb", "Cebuano", "Cebuano", class(`a-zA-ZÑñ`, "", true)},
	{"ces", "Czech", "Čeština", class(`a-zA-ZÁČĎÉĚÍŇÓŘŠŤÚŮÝŽáčďéěíňóřšťúůýž`, "", true)},
	{"chi_sim", "Chinese - Simplified", "简体中文", class(`\p{Han}`, "、。《》", false)},
	{"chi_tra", "Chinese - Traditional", "繁體中文", class(`\p{Han}`, "、。《》", false)},
	{"chr", "Cherokee", "ᏣᎳᎩ", class(`\p{Cherokee}`, "", true)},
	{"cym", "Welsh", "Cymraeg", class(`a-zA-Zŵŷáéíóúàèìòùâêîôû`, "", true)},
	{"dan", "Danish", "Dansk", class(`a-zA-ZÆØÅæøå`, "", true)},
	{"deu", "German", "Deutsch", class(`a-zA-ZÄÖÜäöüß`, "„“–", true)},
	{"ell", "Greek", "Ελληνικά", class(`\p{Greek}`, "«»", true)},
	{"eng", "English", "English", class(`a-zA-Z`, "", true)},
	{"epo", "Esperanto", "Esperanto", class(`a-zA-ZĈĉĜĝĤĥĴĵŜŝŬŭ`, "", true)},
	{"est", "Estonian", "Eesti", class(`a-zA-ZÄÖÜäöüÕõŠšŽž`, "", true)},
	{"fas", "Persian", "فارسی", class(`\p{Arabic}`, "،؛", true)},
	{"fin", "Finnish", "Suomi", class(`a-zA-ZÄÖäöÅå`, "", true)},
	{"fra", "French", "Français", class(`a-zA-ZÀ-ÿ`, "«»", true)},
	{"glg", "Galician", "Galego", class(`a-zA-ZÁÉÍÓÚÜÑáéíóúüñ`, "", true)},
	{"heb", "Hebrew", "עברית", class(`\p{Hebrew}`, "״", true)},
	{"hin", "Hindi", "हिन्दी", class(`\p{Devanagari}`, "", true)},
	{"hrv", "Croatian", "Hrvatski", class(`a-zA-ZČčĆćĐđŠšŽž`, "", true)},
	{"hun", "Hungarian", "Magyar", class(`a-zA-ZÁÉÍÓÖŐÚÜŰáéíóöőúüű`, "", true)},
	{"ind", "Indonesian", "Bahasa Indonesia", class(`a-zA-Z`, "", true)},
	{"isl", "Icelandic", "Íslenska", class(`a-zA-ZÁÉÍÓÚÝÞÆÐÖáéíóúýþæðö`, "", true)},
	{"ita", "Italian", "Italiano", class(`a-zA-ZÀ-ÿ`, "«»", true)},
	{"jpn", "Japanese", "日本語", class(`\p{Hiragana}\p{Katakana}\p{Han}`, "「」『』", false)},
	{"kor", "Korean", "한국어", class(`\p{Hangul}`, "", true)},
	{"lav", "Latvian", "Latviešu", class(`a-zA-ZĀČĒĢĪĶĻŅŌŖŠŪŽāčēģīķļņōŗšūž`, "", true)},
	{"lit", "Lithuanian", "Lietuvių", class(`a-zA-ZĄČĘĖĮŠŲŪŽąčęėįšųūž`, "", true)},
	{"mal", "Malayalam", "മലയാളം", class(`\p{Malayalam}`, "", true)},
	{"mar", "Marathi", "मराठी", class(`\p{Devanagari}`, "", true)},
	{"mkd", "Macedonian", "Македонски", class(`\p{Cyrillic}`, "«»", true)},
	{"msa", "Malay", "Bahasa Melayu", class(`a-zA-Z`, "", true)},
	{"mya", "Burmese", "မြန်မာစာ", class(`\p{Myanmar}`, "", true)},
	{"nld", "Dutch", "Nederlands", class(`a-zA-ZÀ-ÿ`, "", true)},
	{"nor", "Norwegian", "Norsk", class(`a-zA-ZÆØÅæøå`, "", true)},
	{"pol", "Polish", "Polski", class(`a-zA-ZĄĆĘŁŃÓŚŹŻąćęłńóśźż`, "", true)},
	{"por", "Portuguese", "Português", class(`a-zA-ZÀ-ÿ`, "«»", true)},
	{"ron", "Romanian", "Română", class(`a-zA-ZĂÂÎȘȚăâîșț`, "", true)},
	{"rus", "Russian", "Русский", class(`\p{Cyrillic}`, "«»", true)},
	{"slk", "Slovak", "Slovenčina", class(`a-zA-ZÁÄČĎÉÍĹĽŇÓÔŔŠŤÚÝŽáäčďéíĺľňóôŕšťúýž`, "", true)},
	{"slv", "Slovenian", "Slovenščina", class(`a-zA-ZČŠŽčšž`, "", true)},
	{"spa", "Spanish", "Español", class(`a-zA-ZÁÉÍÓÚÑÜáéíóúñü`, "«»¡¿", true)},
	{"swe", "Swedish", "Svenska", class(`a-zA-ZÅÄÖåäö`, "", true)},
	{"tur", "Turkish", "Türkçe", class(`a-zA-ZÇĞİÖŞÜçğıöşü`, "", true)},
	{"ukr", "Ukrainian", "Українська", class(`\p{Cyrillic}`, "«»", true)},
	{"urd", "Urdu", "اردو", class(`\p{Arabic}`, "،؛", true)},
	{"vie", "Vietnamese", "Tiếng Việt", class(`a-zA-ZÀ-ỹ`, "", true)},
	{"yid", "Yiddish", "ייִדיש", class(`\p{Hebrew}`, "״", true)},
}

var allClass = class(`\p{L}\p{N}`, "«»„“‘’「」『』¡¿،؛《》", true)

var (
	byCode   map[string]*entry
	fallback *entry
)

func init() {
	byCode = make(map[string]*entry, len(table))
	for _, row := range table {
		byCode[row.code] = &entry{
			Language: Language{Code: row.code, Name: row.name, NativeName: row.native},
			allowed:  regexp.MustCompile(`[^` + row.class + `\n]+`),
		}
	}
	fallback = &entry{
		Language: Language{Code: All, Name: "All scripts", NativeName: "All scripts"},
		allowed:  regexp.MustCompile(`[^` + allClass + `\n]+`),
	}
}

// Lookup resolves a tesseract code, ISO 639-1 code or BCP 47 tag to a
// supported OCR language.
func Lookup(code string) (Language, bool) {
	if e := lookup(code); e != nil {
		return e.Language, true
	}
	return Language{}, false
}

// Supported reports whether code names a tesseract language in the table.
func Supported(code string) bool {
	_, ok := byCode[normalize(code)]
	return ok
}

// List returns every supported language ordered by code.
func List() []Language {
	out := make([]Language, 0, len(byCode))
	for _, e := range byCode {
		out = append(out, e.Language)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Label formats a language for display, e.g. "German (Deutsch)".
func (l Language) Label() string {
	if l.NativeName == "" || l.NativeName == l.Name {
		return l.Name
	}
	return l.Name + " (" + l.NativeName + ")"
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func lookup(code string) *entry {
	code = normalize(code)
	if code == "" {
		return nil
	}
	if e, ok := byCode[code]; ok {
		return e
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return nil
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return nil
	}
	iso3 := base.ISO3()
	if iso3 == "zho" {
		if script, _ := tag.Script(); script.String() == "Hant" {
			return byCode["chi_tra"]
		}
		return byCode["chi_sim"]
	}
	return byCode[iso3]
}

// OCRLanguage returns the tesseract language to run. The configured language
// only applies when translation is enabled; otherwise English is used.
func OCRLanguage(configured string, translate bool) string {
	if !translate {
		return Default
	}
	if e := lookup(configured); e != nil {
		return e.Code
	}
	return Default
}

// PromptModifier returns the instruction appended to LLM prompts asking for a
// response in the configured language. It is empty when translation is off
// or the language is English. Extended includes the native name.
func PromptModifier(code string, translate, extended bool) string {
	if !translate {
		return ""
	}
	e := lookup(code)
	if e == nil || e.Code == Default {
		return ""
	}
	name := e.Name
	if extended {
		name += " (" + e.NativeName + ")"
	}
	return "\n\nGenerate the response in the following language: " + name + "\n\n"
}
