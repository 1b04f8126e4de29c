package clickup

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedOrder holds the order facts encoded in a task name. Nil pointer
// fields and empty strings mean the fact could not be extracted.
type ParsedOrder struct {
	OrderNumber   *int64
	OrderType     string
	Domain        string
	AmountUSD     *float64
	CustomerEmail string
}

// Task names follow "ORDER_NUM, TYPE, DOMAIN, $AMOUNT, EMAIL", with an
// optional "ACTION REQUIRED!" prefix. Older tasks use "ID NUM, DOMAIN,
// $AMOUNT, EMAIL". Anything else gets best-effort field extraction.
var (
	fullPattern   = regexp.MustCompile(`^(?:ACTION REQUIRED!\s*)?(\d+),\s*([^,]+),\s*([^,]+),\s*\$?([\d.]+),\s*(.+?)"?$`)
	legacyPattern = regexp.MustCompile(`^ID\s*(\d+),?\s*([^,$]+),?\s*\$?([\d.]+),?\s*(.+?)"?$`)

	orderNumPattern = regexp.MustCompile(`^(?:ACTION REQUIRED!\s*)?(?:ID\s*)?(\d+)`)
	domainPattern   = regexp.MustCompile(`([a-zA-Z0-9][-a-zA-Z0-9]*\.[a-zA-Z]{2,}(?:\.[a-zA-Z]{2,})?)`)
	amountPattern   = regexp.MustCompile(`\$([\d]+\.?\d*)`)
	emailPattern    = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// ParseTaskName extracts order details from a task name.
func ParseTaskName(name string) ParsedOrder {
	if m := fullPattern.FindStringSubmatch(name); m != nil {
		if parsed, ok := buildOrder(m[1], m[2], m[3], m[4], m[5]); ok {
			return parsed
		}
	}

	if m := legacyPattern.FindStringSubmatch(name); m != nil {
		if parsed, ok := buildOrder(m[1], "", m[2], m[3], m[4]); ok {
			return parsed
		}
	}

	// Structured parse failed; pull out whatever fields are recognizable.
	var parsed ParsedOrder
	if m := orderNumPattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			parsed.OrderNumber = &n
		}
	}
	if m := domainPattern.FindStringSubmatch(name); m != nil {
		parsed.Domain = m[1]
	}
	if m := amountPattern.FindStringSubmatch(name); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			parsed.AmountUSD = &f
		}
	}
	if m := emailPattern.FindStringSubmatch(name); m != nil {
		parsed.CustomerEmail = m[1]
	}
	return parsed
}

func buildOrder(num, orderType, domain, amount, email string) (ParsedOrder, bool) {
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return ParsedOrder{}, false
	}

	parsed := ParsedOrder{
		OrderNumber:   &n,
		OrderType:     strings.TrimSpace(orderType),
		Domain:        strings.TrimSpace(domain),
		CustomerEmail: strings.TrimSuffix(strings.TrimSpace(email), `"`),
	}

	if amount != "" && amount != "." {
		f, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return ParsedOrder{}, false
		}
		parsed.AmountUSD = &f
	}
	return parsed, true
}
