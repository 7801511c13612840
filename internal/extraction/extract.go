package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Field names in the extracted map. A missing key means "not found",
// never an error.
const (
	FieldTotalAmount  = "total_amount"
	FieldSubtotal     = "subtotal"
	FieldTax          = "tax"
	FieldDate         = "date"
	FieldMerchantName = "merchant_name"
)

// Fields maps field names to the string values recovered from receipt
// text
type Fields map[string]string

// Totals outside this range are treated as OCR noise (stray item codes,
// phone numbers) and rejected.
const (
	minTotal = 0.01
	maxTotal = 999999.99
)

// amountPattern is one keyword family in a fallback chain. Families run
// in priority order and the first one that yields an accepted match
// wins; on receipts with several numbers (subtotal, tax, total) keyword
// specificity is the best proxy for correctness.
type amountPattern struct {
	name string
	re   *regexp.Regexp
}

// amount is the numeric tail shared by every money pattern: digits, one
// comma-or-period decimal separator, two decimals
const amount = `([0-9]+[,.][0-9]{2})`

var totalPatterns = []amountPattern{
	{"grand total", regexp.MustCompile(`(?im)\b(?:Grand\s+Total|Total\s+Due)\s*[:$€£¥]?\s*` + amount)},
	{"total", regexp.MustCompile(`(?im)\bTotal\s*[:$€£¥]?\s*` + amount)},
	{"amount due", regexp.MustCompile(`(?im)\bAmount\s+Due\s*[:$€£¥]?\s*` + amount)},
	{"balance", regexp.MustCompile(`(?im)\b(?:Balance|Due)\s*[:$€£¥]?\s*` + amount)},
	{"total es/pt", regexp.MustCompile(`(?im)\b(?:Total|Importe)\s*[:$€£¥]?\s*` + amount)},
	{"pagar", regexp.MustCompile(`(?im)\bPagar\s*[:$€£¥]?\s*` + amount)},
	{"currency symbol", regexp.MustCompile(`(?im)[:\s][$€£¥]\s*` + amount + `\s*(?:$|\n)`)},
	{"trailing amount", regexp.MustCompile(`(?im)` + amount + `\s*$`)},
}

var subtotalPatterns = []amountPattern{
	{"subtotal", regexp.MustCompile(`(?im)\b(?:Subtotal|Sub\s+Total)\s*[:$€£¥]?\s*` + amount)},
}

var taxPatterns = []amountPattern{
	{"tax", regexp.MustCompile(`(?im)\b(?:Sales\s+Tax|Tax)\s*[:$€£¥]?\s*` + amount)},
	{"gst/vat", regexp.MustCompile(`(?im)\b(?:GST|VAT|IVA|Taxes)\s*[:$€£¥]?\s*` + amount)},
}

// Date families, most to least common on receipts. No calendar
// validation: a syntactically-shaped date from garbled OCR output beats
// no date at all.
var datePatterns = []*regexp.Regexp{
	// MM/DD/YYYY or DD/MM/YYYY
	regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	// YYYY/MM/DD or YYYY-MM-DD
	regexp.MustCompile(`(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
	// Month names (English)
	regexp.MustCompile(`(?i)(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}`),
	// Date followed by a clock time; the time is discarded. The first
	// family already matches the date portion of this shape, so this
	// entry is only reached if the families above it change.
	regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\s+\d{1,2}:\d{2}`),
}

// Merchant-line filters. Lines matching these are headers, barcodes, or
// receipt IDs, never the store name.
var (
	symbolsOnly = regexp.MustCompile(`^[\d\s\-*]+$`)
	bareCode    = regexp.MustCompile(`^[A-Z0-9]{15,}$`)
)

// Keywords that mark a line as transactional rather than a merchant
// name
var stopKeywords = []string{
	"total", "amount", "payment", "cash", "credit", "change",
	"date", "time", "order", "check", "receipt", "invoice",
	"subtotal", "tax", "gratuity", "tip", "void", "quantity",
	"price", "each", "qty", "items", "thank", "welcome",
}

// Extract parses recognized receipt text into structured fields. It is
// a pure function of its input and never fails; fields that cannot be
// found are simply absent from the result.
func Extract(text string) Fields {
	fields := Fields{}

	if v, ok := extractTotal(text); ok {
		fields[FieldTotalAmount] = v
	}
	if v, ok := extractDate(text); ok {
		fields[FieldDate] = v
	}
	if v, ok := extractMerchant(text); ok {
		fields[FieldMerchantName] = v
	}
	if v, ok := firstAmount(subtotalPatterns, text); ok {
		fields[FieldSubtotal] = v
	}
	if v, ok := firstAmount(taxPatterns, text); ok {
		fields[FieldTax] = v
	}

	return fields
}

// extractTotal walks the total pattern families in priority order. A
// match is accepted only when its numeric value is plausible for a
// receipt total; the first family with an accepted match short-circuits
// the chain.
func extractTotal(text string) (string, bool) {
	for _, p := range totalPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			raw := m[1]
			v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err == nil && v >= minTotal && v <= maxTotal {
				return raw, true
			}
		}
	}
	return "", false
}

// firstAmount returns the first match of the first matching family,
// with no range filter. Subtotals and taxes sit close to totals in
// magnitude, so the plausibility check buys nothing there.
func firstAmount(patterns []amountPattern, text string) (string, bool) {
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func extractDate(text string) (string, bool) {
	for _, re := range datePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		// The month-name family has no capture group; fall back to the
		// whole match.
		if len(m) > 1 && m[1] != "" {
			return strings.TrimSpace(m[1]), true
		}
		return strings.TrimSpace(m[0]), true
	}
	return "", false
}

// extractMerchant picks the first plausible line near the top of the
// receipt. Merchant names reliably appear before any transactional
// keywords do, so the first non-empty line that survives the filters
// wins.
func extractMerchant(text string) (string, bool) {
	examined := 0
	for _, line := range strings.Split(text, "\n") {
		cleaned := strings.TrimSpace(line)
		if cleaned == "" {
			continue
		}
		examined++
		if examined > 10 {
			break
		}
		if isMerchantCandidate(cleaned) {
			return cleaned, true
		}
	}
	return "", false
}

func isMerchantCandidate(line string) bool {
	if symbolsOnly.MatchString(line) {
		return false
	}
	if n := utf8.RuneCountInString(line); n < 3 || n > 150 {
		return false
	}
	lower := strings.ToLower(line)
	for _, keyword := range stopKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}
	return !bareCode.MatchString(line)
}
