// Package language guesses which supported language a chat message is written in.
package language

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// minDetectLength is the shortest cleaned text handed to the statistical guesser.
const minDetectLength = 10

var (
	codeFencePattern  = regexp.MustCompile("(?s)```.*?```")
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s]`)
	sentenceSeparator = regexp.MustCompile(`[.!?]+`)
)

// isoNames maps ISO 639-3 codes to supported language names. Some languages
// appear under both their macrolanguage and individual codes.
var isoNames = map[string]string{
	"eng": "English",
	"hin": "Hindi",
	"urd": "Urdu",
	"mar": "Marathi",
	"tam": "Tamil",
	"ben": "Bengali",
	"fra": "French",
	"spa": "Spanish",
	"deu": "German",
	"ita": "Italian",
	"por": "Portuguese",
	"rus": "Russian",
	"jpn": "Japanese",
	"kor": "Korean",
	"zho": "Chinese",
	"cmn": "Chinese",
	"ara": "Arabic",
	"arb": "Arabic",
	"tur": "Turkish",
	"vie": "Vietnamese",
	"tha": "Thai",
	"nld": "Dutch",
	"pol": "Polish",
	"ukr": "Ukrainian",
	"ell": "Greek",
	"heb": "Hebrew",
	"ind": "Indonesian",
	"id":  "Indonesian",
	"msa": "Malay",
	"zsm": "Malay",
	"fil": "Filipino",
	"tgl": "Filipino",
}

// Detect returns the supported language name for text, defaulting to English.
//
// Fenced code and punctuation are stripped first. Anything shorter than ten
// characters after cleaning is English. Any Devanagari character makes it Hindi.
// Otherwise the trigram guesser decides and unmapped results fall back to English.
func Detect(text string) string {
	clean := cleanText(text)
	if utf8.RuneCountInString(clean) < minDetectLength {
		return English
	}
	if containsDevanagari(clean) {
		return "Hindi"
	}
	info := whatlanggo.Detect(clean)
	if name, ok := isoNames[info.Lang.Iso6393()]; ok {
		return name
	}
	return English
}

// HasMultipleLanguages reports whether the sentences of text resolve to more
// than one language. A single sentence is never mixed.
func HasMultipleLanguages(text string) bool {
	var sentences []string
	for _, part := range sentenceSeparator.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			sentences = append(sentences, part)
		}
	}
	if len(sentences) < 2 {
		return false
	}

	seen := make(map[string]struct{})
	for _, sentence := range sentences {
		seen[detectSentence(sentence)] = struct{}{}
	}
	return len(seen) > 1
}

// detectSentence labels every sentence: by script, then by greeting words
// for short ones, then by Detect.
func detectSentence(sentence string) string {
	clean := cleanText(sentence)
	if name, ok := scriptLanguage(whatlanggo.DetectScript(clean)); ok {
		return name
	}
	if utf8.RuneCountInString(clean) < minDetectLength {
		for _, word := range strings.Fields(strings.ToLower(clean)) {
			if name, ok := shortWords[word]; ok {
				return name
			}
		}
	}
	return Detect(sentence)
}

// scriptLanguage maps scripts used by exactly one supported language.
func scriptLanguage(script *unicode.RangeTable) (string, bool) {
	switch script {
	case unicode.Han:
		return "Chinese", true
	case unicode.Hiragana, unicode.Katakana:
		return "Japanese", true
	case unicode.Hangul:
		return "Korean", true
	case unicode.Cyrillic:
		return "Russian", true
	case unicode.Arabic:
		return "Arabic", true
	case unicode.Hebrew:
		return "Hebrew", true
	case unicode.Greek:
		return "Greek", true
	case unicode.Thai:
		return "Thai", true
	case unicode.Devanagari:
		return "Hindi", true
	case unicode.Bengali:
		return "Bengali", true
	case unicode.Tamil:
		return "Tamil", true
	default:
		return "", false
	}
}

// shortWords labels greetings and courtesies too short for the trigram guesser.
var shortWords = map[string]string{
	"hello":       "English",
	"hi":          "English",
	"hey":         "English",
	"there":       "English",
	"thanks":      "English",
	"please":      "English",
	"bonjour":     "French",
	"salut":       "French",
	"merci":       "French",
	"oui":         "French",
	"hola":        "Spanish",
	"gracias":     "Spanish",
	"adiós":       "Spanish",
	"hallo":       "German",
	"danke":       "German",
	"tschüss":     "German",
	"ciao":        "Italian",
	"grazie":      "Italian",
	"olá":         "Portuguese",
	"obrigado":    "Portuguese",
	"obrigada":    "Portuguese",
	"hoi":         "Dutch",
	"dank":        "Dutch",
	"cześć":       "Polish",
	"dziękuję":    "Polish",
	"merhaba":     "Turkish",
	"teşekkürler": "Turkish",
	"xin":         "Vietnamese",
	"halo":        "Indonesian",
	"salamat":     "Filipino",
}

func cleanText(text string) string {
	text = codeFencePattern.ReplaceAllString(text, "")
	text = nonWordPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func containsDevanagari(text string) bool {
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			return true
		}
	}
	return false
}
