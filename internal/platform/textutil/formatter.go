package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tables configures the capitalisation rules applied by a Formatter. The
// tables are plain data so deployments can extend them without code changes.
type Tables struct {
	// Abbreviations are technical tokens kept fully uppercase.
	Abbreviations []string
	// Brands receive title case regardless of the stopword table.
	Brands []string
	// Stopwords stay lowercase unless they open the text.
	Stopwords []string
}

// DefaultTables returns the rule set used for marketplace listings.
func DefaultTables() Tables {
	return Tables{
		Abbreviations: []string{
			"SUV", "MPV", "LPG", "CNG", "ABS", "ESP", "GPS", "DVD", "CD", "USB", "HD", "4WD", "AWD", "RWD",
			"V6", "V8", "V12", "TDI", "TSI", "GTI", "RS", "AMG", "M3", "M5", "X5", "X6", "Q7", "Q8",
			"HP", "KW", "NM", "RPM", "CC", "KM/H", "MPH", "KG", "LBS", "MM", "CM", "FT", "IN",
			"A/C", "AC", "TV", "PC", "CPU", "BMW",
		},
		Brands: []string{
			"Audi", "Mercedes", "Volkswagen", "Toyota", "Honda", "Nissan", "Mazda", "Ford",
			"Chevrolet", "Hyundai", "Kia", "Volvo", "Jaguar", "Jeep", "Dodge",
		},
		Stopwords: []string{
			"a", "an", "and", "as", "at", "but", "by", "for", "if", "in", "is", "it", "no", "not", "of",
			"on", "or", "so", "the", "to", "up", "yet", "with", "from", "into", "through", "during",
			"before", "after", "above", "below", "between", "among", "within", "without", "against",
			"toward", "towards", "upon", "over", "under", "beneath", "behind", "beside", "beyond",
		},
	}
}

// Formatter applies word-wise capitalisation driven by lookup tables.
type Formatter struct {
	abbreviations map[string]struct{}
	brands        map[string]string
	stopwords     map[string]struct{}
	caser         cases.Caser
}

// NewFormatter builds a Formatter from the supplied tables.
func NewFormatter(tables Tables) *Formatter {
	f := &Formatter{
		abbreviations: make(map[string]struct{}, len(tables.Abbreviations)),
		brands:        make(map[string]string, len(tables.Brands)),
		stopwords:     make(map[string]struct{}, len(tables.Stopwords)),
		caser:         cases.Title(language.English),
	}
	for _, abbr := range tables.Abbreviations {
		f.abbreviations[strings.ToUpper(abbr)] = struct{}{}
	}
	for _, brand := range tables.Brands {
		f.brands[strings.ToLower(brand)] = brand
	}
	for _, word := range tables.Stopwords {
		f.stopwords[strings.ToLower(word)] = struct{}{}
	}
	return f
}

// Format normalises capitalisation across the text word by word. Known
// abbreviations stay uppercase, brands take their canonical casing, stopwords
// stay lowercase except in the leading position, everything else is
// title-cased.
func (f *Formatter) Format(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}

	words := strings.Fields(trimmed)
	for i, word := range words {
		words[i] = f.formatWord(word, i == 0)
	}
	return strings.Join(words, " ")
}

func (f *Formatter) formatWord(word string, leading bool) string {
	upper := strings.ToUpper(word)
	if _, ok := f.abbreviations[upper]; ok {
		return upper
	}
	if canonical, ok := f.brands[strings.ToLower(word)]; ok {
		return canonical
	}
	if strings.ContainsAny(word, "0123456789") {
		if f.matchesAbbreviation(upper) {
			return upper
		}
		return f.caser.String(word)
	}
	if !leading {
		if _, ok := f.stopwords[strings.ToLower(word)]; ok {
			return strings.ToLower(word)
		}
	}
	return f.caser.String(word)
}

// matchesAbbreviation handles digit-bearing tokens such as "4wd" written as
// part of a larger word, e.g. "4WDLOCK".
func (f *Formatter) matchesAbbreviation(upper string) bool {
	for abbr := range f.abbreviations {
		if strings.Contains(upper, abbr) || strings.Contains(abbr, upper) {
			return true
		}
	}
	return false
}
