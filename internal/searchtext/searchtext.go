// Package searchtext turns free-text product names into compact search
// names and scores how similar two names are.
package searchtext

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	baseDisallowed  = regexp.MustCompile(`[^a-z0-9а-я%*xх.,\s]+`)
	queryDisallowed = regexp.MustCompile(`[^0-9a-zа-я\s]`)
	spaces          = regexp.MustCompile(`\s+`)
	tokenSeparators = regexp.MustCompile(`[-/\\]+`)
	numberOnly      = regexp.MustCompile(`^[\d.,]+$`)

	packUnit      = `(?:кг|гр|г|литров|литр|л|мл|ml)`
	packAmount    = regexp.MustCompile(`^\d+(?:[.,]\d+)?` + packUnit + `$`)
	packMultiple  = regexp.MustCompile(`^\d+\s*[xх*]\s*\d+(?:[.,]\d+)?` + packUnit + `$`)
	packCount     = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	packCountMult = regexp.MustCompile(`^\d+[xх*]\d+(?:[.,]\d+)?$`)
	packUnitOnly  = regexp.MustCompile(`^` + packUnit + `$`)
)

const tokenTrimChars = ".,;:!?\"'()[]{}<>/\\|"

// Dictionary holds synonym and stopword lists applied to tokens.
type Dictionary struct {
	TokenMap  map[string]string `json:"token_map"`
	Stopwords []string          `json:"stopwords"`
}

// LoadDictionary reads a JSON dictionary. A missing file yields an empty one.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Dictionary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	var d Dictionary
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}
	lowered := make(map[string]string, len(d.TokenMap))
	for k, v := range d.TokenMap {
		lowered[strings.ToLower(k)] = strings.ToLower(v)
	}
	d.TokenMap = lowered
	for i, w := range d.Stopwords {
		d.Stopwords[i] = strings.ToLower(w)
	}
	return &d, nil
}

// Normalizer builds search names using a dictionary.
type Normalizer struct {
	dict      *Dictionary
	stopwords map[string]struct{}
}

// NewNormalizer returns a Normalizer; a nil dictionary means no synonyms or stopwords.
func NewNormalizer(d *Dictionary) *Normalizer {
	if d == nil {
		d = &Dictionary{}
	}
	n := &Normalizer{dict: d, stopwords: make(map[string]struct{}, len(d.Stopwords))}
	for _, w := range d.Stopwords {
		n.stopwords[w] = struct{}{}
	}
	return n
}

var defaultNormalizer = NewNormalizer(nil)

func fold(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "ё", "е")
}

// NormalizeBase lower-cases s, folds ё to е and keeps only letters, digits
// and the punctuation that matters for pack sizes.
func NormalizeBase(s string) string {
	s = fold(s)
	s = baseDisallowed.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// NormalizeQuery is the stricter normalization used for trigram matching.
func NormalizeQuery(s string) string {
	s = fold(s)
	s = queryDisallowed.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// StripPackaging removes pack sizes such as "1кг", "900 мл" or "10x1л".
func StripPackaging(s string) string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if packAmount.MatchString(tok) || packMultiple.MatchString(tok) {
			continue
		}
		if (packCount.MatchString(tok) || packCountMult.MatchString(tok)) &&
			i+1 < len(fields) && packUnitOnly.MatchString(strings.TrimRight(fields[i+1], tokenTrimChars)) {
			i++
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// Tokenize splits on spaces, trims punctuation and breaks tokens on dashes and slashes.
func Tokenize(s string) []string {
	var tokens []string
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, tokenTrimChars)
		tok = tokenSeparators.ReplaceAllString(tok, " ")
		tokens = append(tokens, strings.Fields(tok)...)
	}
	return tokens
}

func (n *Normalizer) applySynonyms(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		key := strings.ToLower(t)
		if v, ok := n.dict.TokenMap[key]; ok {
			out[i] = v
			continue
		}
		out[i] = key
	}
	return out
}

// DropNoise removes stopwords, bare numbers and one-letter tokens.
// Percentages survive.
func (n *Normalizer) DropNoise(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, stop := n.stopwords[t]; stop {
			continue
		}
		if strings.HasSuffix(t, "%") {
			out = append(out, t)
			continue
		}
		if numberOnly.MatchString(t) {
			continue
		}
		if len([]rune(t)) < 2 {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (n *Normalizer) tokens(s string) []string {
	base := NormalizeBase(s)
	if base == "" {
		return nil
	}
	toks := Tokenize(StripPackaging(base))
	return n.DropNoise(n.applySynonyms(toks))
}

// SearchName builds the compact name used to match catalog items: at most
// six meaningful tokens. An empty result means nothing searchable remained.
func (n *Normalizer) SearchName(s string) string {
	toks := n.tokens(s)
	if len(toks) > 6 {
		toks = toks[:6]
	}
	return strings.Join(toks, " ")
}

// PinnedSearchName keeps up to twenty tokens, for names typed by the user.
func (n *Normalizer) PinnedSearchName(s string) string {
	toks := n.tokens(s)
	if len(toks) > 20 {
		toks = toks[:20]
	}
	return strings.Join(toks, " ")
}

// SupplierSearchName builds the search name of a catalog line from its name and unit.
func (n *Normalizer) SupplierSearchName(name, unit string) string {
	return n.SearchName(strings.TrimSpace(name + " " + unit))
}

// GenerateSearchName uses the default, dictionary-free normalizer.
func GenerateSearchName(s string) string {
	return defaultNormalizer.SearchName(s)
}
