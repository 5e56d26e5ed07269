// Package lead holds pure helpers for lead identity and deduplication.
package lead

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const minPhoneDigits = 7

// DedupeKey derives a stable identity for a lead from its strongest
// available field: website domain, then phone, then instagram handle.
// Returns false when none of the fields yield a usable key.
func DedupeKey(website, phone, instagramHandle string) (string, bool) {
	if key, ok := WebsiteKey(website); ok {
		return key, true
	}
	if key, ok := PhoneKey(phone); ok {
		return key, true
	}
	if key, ok := HandleKey(instagramHandle); ok {
		return key, true
	}
	return "", false
}

// WebsiteKey reduces a website URL to its registrable domain (eTLD+1), so
// http://www.cafe-luna.de/menu and https://cafe-luna.de compare equal.
func WebsiteKey(raw string) (string, bool) {
	host := hostOf(raw)
	if host == "" {
		return "", false
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	return "domain:" + etld1, true
}

// PhoneKey strips a phone number to its digits.
func PhoneKey(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < minPhoneDigits {
		return "", false
	}
	return "phone:" + digits.String(), true
}

// HandleKey normalizes an instagram handle.
func HandleKey(raw string) (string, bool) {
	handle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	if handle == "" {
		return "", false
	}
	return "ig:" + handle, true
}

// CacheKey scopes a dedupe key to a tenant. Tenantless jobs share one global
// scope, mirroring the partial unique indexes on the leads table.
func CacheKey(tenantID *string, key string) string {
	if tenantID == nil || *tenantID == "" {
		return "g:" + key
	}
	return "t:" + *tenantID + ":" + key
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
