package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"tenderbench/internal/offer"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// RequireField checks a required string field is non-empty.
func RequireField(ve *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateNonNegativeFloat checks an optional field is >= 0 when present.
func ValidateNonNegativeFloat(ve *ValidationErrors, field string, value *float64) {
	if value != nil && *value < 0 {
		ve.Add(field, "must be non-negative")
	}
}

// ValidateFloatRange checks a field is within a specified range.
func ValidateFloatRange(ve *ValidationErrors, field string, value, min, max float64) {
	if value < min || value > max {
		ve.Add(field, fmt.Sprintf("must be between %.2f and %.2f", min, max))
	}
}

// Maximum value constants to prevent overflow and ensure reasonable limits.
const (
	MaxQuantity     = 1000000.0
	MaxPrice        = 100000000.0
	MaxStringLength = 1000
	MaxOfferLimit   = 200
)

// ValidateMaxQuantity checks quantity doesn't exceed reasonable maximum.
func ValidateMaxQuantity(ve *ValidationErrors, field string, value *float64) {
	if value != nil && *value > MaxQuantity {
		ve.Add(field, fmt.Sprintf("exceeds maximum allowed quantity of %.0f", MaxQuantity))
	}
}

// ValidateMaxPrice checks price doesn't exceed reasonable maximum.
func ValidateMaxPrice(ve *ValidationErrors, field string, value *float64) {
	if value != nil && *value > MaxPrice {
		ve.Add(field, fmt.Sprintf("exceeds maximum allowed price of %.0f", MaxPrice))
	}
}

// ValidateMaxLength checks string doesn't exceed max length in characters.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len([]rune(value)) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// ParseOptionalFloat reads a JSON value that may hold a number. Null and
// blank strings are missing (nil, nil); anything non-numeric is an error.
// Strings may use a decimal comma.
func ParseOptionalFloat(v any) (*float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", t.String())
		}
		f = n
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		n, err := offer.ParseNumber(t)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", t)
		}
		f = n
	default:
		return nil, fmt.Errorf("not a number: %v", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number")
	}
	return &f, nil
}

// FloatParam reads an optional float query parameter, returning def when absent.
func FloatParam(q url.Values, key string, def float64) (float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := offer.ParseNumber(raw)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

// IntParam reads an optional integer query parameter, returning def when absent.
func IntParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// ParseIDList parses a comma-separated id list such as "3,1,2". Blank
// entries are skipped.
func ParseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// File upload validation constants.
const (
	MaxUploadSize = 20 * 1024 * 1024
	MinFileSize   = 1
)

// ValidateSpreadsheetUpload checks an uploaded tender sheet's size and name.
func ValidateSpreadsheetUpload(ve *ValidationErrors, filename string, size int64) {
	validateUpload(ve, filename, size, ValidSheetExtensions)
}

// ValidatePriceListUpload is ValidateSpreadsheetUpload that also takes CSV.
func ValidatePriceListUpload(ve *ValidationErrors, filename string, size int64) {
	validateUpload(ve, filename, size, ValidPriceListExtensions)
}

func validateUpload(ve *ValidationErrors, filename string, size int64, exts []string) {
	if size < MinFileSize {
		ve.Add("file", "cannot be empty (0 bytes)")
		return
	}
	if size > MaxUploadSize {
		ve.Add("file", fmt.Sprintf("exceeds maximum size of %d MB", MaxUploadSize/(1024*1024)))
		return
	}
	ValidateFilename(ve, filename)
	ValidateEnum(ve, "filename", strings.ToLower(filepath.Ext(filename)), exts)
}

// ValidateFilename checks for path traversal and malicious characters.
func ValidateFilename(ve *ValidationErrors, filename string) {
	if filename == "" {
		ve.Add("filename", "is required")
		return
	}
	if strings.Contains(filename, "..") {
		ve.Add("filename", "contains invalid path traversal sequence (..)")
	}
	if strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\") {
		ve.Add("filename", "cannot be an absolute path")
	}
	if strings.Contains(filename, "\x00") {
		ve.Add("filename", "contains null bytes")
	}
	if strings.ContainsAny(filename, "\r\n") {
		ve.Add("filename", "contains line breaks")
	}
}

// SanitizeFilename reduces a label to something safe in a download name.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == '"' || r < 0x20:
			b.WriteRune('_')
		case strings.ContainsRune("|&;$`<>*?", r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if r := []rune(out); len(r) > 100 {
		out = string(r[:100])
	}
	if out == "" || out == "." {
		return "export"
	}
	return out
}
