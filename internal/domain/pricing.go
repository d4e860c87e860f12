package domain

// Fixed fallback prices in minor units, used when no tier row matches a
// partner's pricing class. Kept deliberately above every seeded tier so a
// missing tier never undercharges.
const (
	defaultPriceDVSingle   = 4900
	defaultPriceDVWildcard = 14900
	defaultPriceOVSingle   = 9900
	defaultPriceOVWildcard = 24900
)

// DefaultPrice returns the fixed fallback price for a certificate type and
// coverage. Pricing is resolved once per domain at submission time; an
// in-flight batch never sees a tier change.
func DefaultPrice(certType CertificateType, wildcard bool) int64 {
	switch {
	case certType == CertOV && wildcard:
		return defaultPriceOVWildcard
	case certType == CertOV:
		return defaultPriceOVSingle
	case wildcard:
		return defaultPriceDVWildcard
	default:
		return defaultPriceDVSingle
	}
}
