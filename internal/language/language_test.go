package language

import (
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"eng", "eng", true},
		{" DEU ", "deu", true},
		{"chi_sim", "chi_sim", true},
		{"aze_cyrl", "aze_cyrl", true},
		{"de", "deu", true},
		{"fr", "fra", true},
		{"zh-Hant", "chi_tra", true},
		{"zh", "chi_sim", true},
		{"xx_unknown", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Lookup(tt.input)
			if ok != tt.ok || got.Code != tt.want {
				t.Fatalf("Lookup(%q) = %q,%v want %q,%v", tt.input, got.Code, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestListCoversTable(t *testing.T) {
	langs := List()
	if len(langs) != len(table) {
		t.Fatalf("expected %d languages, got %d", len(table), len(langs))
	}
	for i := 1; i < len(langs); i++ {
		if langs[i-1].Code >= langs[i].Code {
			t.Fatalf("list not sorted at %d: %s >= %s", i, langs[i-1].Code, langs[i].Code)
		}
	}
	if !Supported("jpn") || Supported("klingon") {
		t.Fatal("unexpected Supported result")
	}
}

func TestLabel(t *testing.T) {
	de, _ := Lookup("deu")
	if de.Label() != "German (Deutsch)" {
		t.Fatalf("unexpected label %q", de.Label())
	}
	en, _ := Lookup("eng")
	if en.Label() != "English" {
		t.Fatalf("unexpected label %q", en.Label())
	}
}

func TestOCRLanguage(t *testing.T) {
	if got := OCRLanguage("deu", false); got != "eng" {
		t.Fatalf("translation off should force eng, got %q", got)
	}
	if got := OCRLanguage("deu", true); got != "deu" {
		t.Fatalf("expected deu, got %q", got)
	}
	if got := OCRLanguage("nope", true); got != "eng" {
		t.Fatalf("unknown language should fall back to eng, got %q", got)
	}
}

func TestPromptModifier(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		translate bool
		extended  bool
		want      string
	}{
		{"disabled", "deu", false, false, ""},
		{"english", "eng", true, true, ""},
		{"unknown", "zzz", true, false, ""},
		{"plain", "deu", true, false, "\n\nGenerate the response in the following language: German\n\n"},
		{"extended", "deu", true, true, "\n\nGenerate the response in the following language: German (Deutsch)\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PromptModifier(tt.code, tt.translate, tt.extended); got != tt.want {
				t.Fatalf("PromptModifier = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanOCR(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		code  string
		want  string
	}{
		{"english strips symbols", "Hello © World™\nLine #2", "eng", "Hello  World\nLine 2"},
		{"english strips accents", "café", "eng", "caf"},
		{"german keeps umlauts", "Größe „gut“", "deu", "Größe „gut“"},
		{"russian keeps cyrillic", "Привет, мир! abc", "rus", "Привет, мир! "},
		{"japanese drops spaces", "日本語 テキスト", "jpn", "日本語テキスト"},
		{"unknown uses all scripts", "Ωmega 東京 ©", "klingon", "Ωmega 東京 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanOCR(tt.text, tt.code); got != tt.want {
				t.Fatalf("CleanOCR(%q, %q) = %q, want %q", tt.text, tt.code, got, tt.want)
			}
		})
	}
}

func TestValidateOCR(t *testing.T) {
	tests := []struct {
		name string
		text string
		ok   bool
	}{
		{"too short", "abc", false},
		{"exactly five", "abcde", false},
		{"normal", "This is a perfectly fine sentence.", true},
		{"too long", strings.Repeat("a", 5000), false},
		{"noisy", "a@#$%^&*+=<>|~", false},
		{"unicode letters", "Привет мир, как дела?", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateOCR(tt.text)
			if (got != "") != tt.ok {
				t.Fatalf("ValidateOCR(%q) = %q, want ok=%v", tt.text, got, tt.ok)
			}
		})
	}
}
