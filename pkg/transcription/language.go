package transcription

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// whisperLanguages are the languages the speech service may report, which it
// does either as ISO codes or as lower-case English names.
var whisperLanguages = []language.Tag{
	language.Afrikaans, language.Arabic, language.Armenian, language.Azerbaijani,
	language.Bulgarian, language.Catalan, language.Chinese, language.Croatian,
	language.Czech, language.Danish, language.Dutch, language.English,
	language.Estonian, language.Finnish, language.French, language.German,
	language.Greek, language.Hebrew, language.Hindi, language.Hungarian,
	language.Icelandic, language.Indonesian, language.Italian, language.Japanese,
	language.Kannada, language.Kazakh, language.Korean, language.Latvian,
	language.Lithuanian, language.Macedonian, language.Malay, language.Marathi,
	language.Nepali, language.Norwegian, language.Persian, language.Polish,
	language.Portuguese, language.Romanian, language.Russian, language.Serbian,
	language.Slovak, language.Slovenian, language.Spanish, language.Swahili,
	language.Swedish, language.Tamil, language.Thai, language.Turkish,
	language.Ukrainian, language.Urdu, language.Vietnamese,
	language.Make("bn"), language.Make("gu"), language.Make("pa"), language.Make("te"),
	language.Make("ml"), language.Make("cy"), language.Make("tl"),
}

var namesToTags = func() map[string]language.Tag {
	namer := display.English.Languages()
	m := make(map[string]language.Tag, len(whisperLanguages))
	for _, tag := range whisperLanguages {
		m[strings.ToLower(namer.Name(tag))] = tag
	}
	return m
}()

// ParseLanguage maps a reported language ("hi", "hindi", "Hindi", "en-US") to a
// base-language tag. Unknown or empty input yields language.Und.
func ParseLanguage(s string) language.Tag {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und
	}
	if tag, ok := namesToTags[strings.ToLower(s)]; ok {
		return tag
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und
	}
	base, conf := tag.Base()
	if conf == language.No {
		return language.Und
	}
	return language.Make(base.String())
}

// LanguageName returns the English display name for tag, e.g. "Hindi".
func LanguageName(tag language.Tag) string {
	if tag == language.Und {
		return "Unknown"
	}
	return display.English.Languages().Name(tag)
}

// SameLanguage reports whether a and b share a base language.
func SameLanguage(a, b language.Tag) bool {
	ba, _ := a.Base()
	bb, _ := b.Base()
	return ba == bb
}
