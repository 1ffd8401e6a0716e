// Package heuristics is a rule-based field extractor used when the analyzer
// is unavailable. It is deliberately low precision.
package heuristics

import (
	"regexp"
	"strconv"
	"strings"

	"medscribe/internal/domain"
)

const (
	genderFemale = "Female"
	genderMale   = "Male"
)

// Candidate spans must be 2..49 characters long.
const (
	minNameLength = 2
	maxNameLength = 49
)

const nameWords = `([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+){0,3})`

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:\bpatient(?:'s)?(?:\s+name)?(?:\s+is)?|\bmy\s+name\s+is|\bI'm|\bI\s+am|\bthis\s+is)\s+` + nameWords),
	regexp.MustCompile(`(?i:\bname(?:\s+is)?|\bcalled)\s*:?\s+` + nameWords),
}

// Spoken transcripts are often lowercase. These anchors are specific enough
// to accept lowercase words; the captured span ends at the first stop word.
var lowercaseNamePattern = regexp.MustCompile(
	`(?i)(?:\bmy\s+name\s+is|\bname(?:\s+is)?\s*:|\bname\s+is|\bcalled)\s+([a-z][a-z'\-]*(?:\s+[a-z][a-z'\-]*){0,3})`)

var nameStopWords = map[string]bool{
	"a": true, "and": true, "am": true, "an": true, "aged": true, "but": true, "from": true,
	"here": true, "i": true, "i'm": true, "im": true, "is": true, "my": true, "of": true,
	"so": true, "the": true, "today": true, "was": true, "who": true, "with": true,
}

var agePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:-\s*)?(?:years?\s*-?\s*old|years?|yrs?)\b`),
	regexp.MustCompile(`(?i)(?:\bI'm|\bI\s+am|\bage(?:d)?)\s*(?:is\s*)?:?\s*(\d{1,3})\b`),
}

var (
	femalePattern = regexp.MustCompile(`(?i)\b(?:female|woman|she|her)\b`)
	malePattern   = regexp.MustCompile(`(?i)\b(?:male|man|he|him)\b`)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
)

type category struct {
	field    domain.Field
	keywords []string
}

var categories = []category{
	{
		field: domain.FieldSymptoms,
		keywords: []string{
			"pain", "ache", "headache", "fever", "cough", "nausea", "vomit", "dizz",
			"fatigue", "tired", "sore", "swelling", "rash", "bleeding", "shortness of breath",
			"chills", "hurt", "itch", "cramp", "weak",
		},
	},
	{
		field: domain.FieldMedicalHistory,
		keywords: []string{
			"history", "previously", "diagnosed with", "surgery", "chronic", "allerg",
			"medication", "taking", "diabetes", "hypertension", "asthma", "family", "in the past",
		},
	},
	{
		field: domain.FieldDiagnosis,
		keywords: []string{
			"diagnosis", "diagnosed", "likely", "suspect", "appears to be", "consistent with",
			"infection", "condition", "assessment", "impression",
		},
	},
	{
		field: domain.FieldTreatmentPlan,
		keywords: []string{
			"prescribe", "treatment", "recommend", "take ", "mg", "tablet", "follow up",
			"follow-up", "rest", "therapy", "refer", "schedule", "plan",
		},
	},
}

// Extract pulls whatever it can recognise out of free text. It is
// deterministic and has no side effects.
func Extract(text string) domain.ExtractionResult {
	var result domain.ExtractionResult
	result.PatientName = extractName(text)
	result.Age = extractAge(text)
	result.Gender = extractGender(text)

	sentences := splitSentences(text)
	for _, cat := range categories {
		result.Set(cat.field, collect(sentences, cat.keywords))
	}
	return result
}

func extractName(text string) string {
	for _, re := range namePatterns {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if name := acceptName(match[1]); name != "" {
			return name
		}
	}
	if match := lowercaseNamePattern.FindStringSubmatch(text); match != nil {
		return acceptName(capitalizeWords(trimAtStopWord(match[1])))
	}
	return ""
}

func acceptName(candidate string) string {
	name := strings.TrimSpace(candidate)
	if len(name) >= minNameLength && len(name) <= maxNameLength {
		return name
	}
	return ""
}

func trimAtStopWord(span string) string {
	words := strings.Fields(span)
	for i, word := range words {
		if nameStopWords[strings.ToLower(word)] {
			return strings.Join(words[:i], " ")
		}
	}
	return strings.Join(words, " ")
}

func capitalizeWords(span string) string {
	words := strings.Fields(span)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// extractAge takes the earliest valid age in the text across all patterns.
func extractAge(text string) string {
	best, bestAt := "", -1
	for _, re := range agePatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if bestAt >= 0 && loc[0] >= bestAt {
				break
			}
			age, err := strconv.Atoi(text[loc[2]:loc[3]])
			if err == nil && age > 0 && age < 150 {
				best, bestAt = strconv.Itoa(age), loc[0]
				break
			}
		}
	}
	return best
}

// Female cues are checked first; conflicting cues are not disambiguated.
func extractGender(text string) string {
	if femalePattern.MatchString(text) {
		return genderFemale
	}
	if malePattern.MatchString(text) {
		return genderMale
	}
	return ""
}

func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func collect(sentences []string, keywords []string) string {
	var matched []string
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				matched = append(matched, sentence)
				break
			}
		}
	}
	return strings.Join(matched, ". ")
}
