// Package cache holds the aggregated-usage caches used by the usage service.
package cache

import (
	"strconv"
	"strings"

	billingapp "github.com/squill/backend/internal/application/billing"
)

const usageKeyPrefix = "squill:usage:"

// usageKey builds "squill:usage:<customer>:<start>:<end>:<daily>".
// Open window bounds are written as "-".
func usageKey(key billingapp.UsageCacheKey) string {
	return customerPrefix(key.CustomerID) +
		orDash(key.Start) + ":" + orDash(key.End) + ":" + strconv.FormatBool(key.Daily)
}

func customerPrefix(customerID string) string {
	return usageKeyPrefix + customerID + ":"
}

// customerPattern is the SCAN match for every key of one customer
func customerPattern(customerID string) string {
	return globEscaper.Replace(customerPrefix(customerID)) + "*"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
