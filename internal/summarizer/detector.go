package summarizer

import (
	"github.com/pemistahl/lingua-go"
)

// English is the language assumed when detection is inconclusive.
const English = "English"

// detectSampleChars bounds how much text is handed to the detector.
const detectSampleChars = 1000

// Detector guesses the natural language of a text and returns its English
// name, such as "German".
type Detector interface {
	Detect(text string) string
}

// LinguaDetector detects languages with lingua's n-gram models.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector restricted to languages common in
// technical feeds. Models are loaded lazily on first use.
func NewLinguaDetector() *LinguaDetector {
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English, lingua.German, lingua.French, lingua.Spanish,
				lingua.Chinese, lingua.Japanese, lingua.Korean, lingua.Russian,
				lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Vietnamese,
			).
			Build(),
	}
}

// Detect inspects the first 1000 characters of text. Detection failure
// yields English.
func (d *LinguaDetector) Detect(text string) string {
	sample := []rune(text)
	if len(sample) > detectSampleChars {
		sample = sample[:detectSampleChars]
	}
	lang, ok := d.detector.DetectLanguageOf(string(sample))
	if !ok {
		return English
	}
	return lang.String()
}
