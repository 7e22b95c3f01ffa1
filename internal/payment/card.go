package payment

import (
	"regexp"
	"strings"

	"github.com/printcraft/orderapi/pkg/errors"
)

var (
	cardNumberRe = regexp.MustCompile(`^\d{12,19}$`)
	expiryRe     = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	cvcRe        = regexp.MustCompile(`^\d{3,4}$`)
)

// ValidateCard checks card-schema fields locally before any provider call:
// number digits, expiry in YYYY-MM, 3-4 digit security code, and a complete
// billing address.
func ValidateCard(card *Card) error {
	if card == nil {
		return &errors.ErrValidation{Message: "card details are required"}
	}

	fields := map[string]string{}

	number := strings.ReplaceAll(card.Number, " ", "")
	if !cardNumberRe.MatchString(number) {
		fields["number"] = "card number must be 12-19 digits"
	}
	if !expiryRe.MatchString(card.Expiry) {
		fields["expiry"] = "expiry must be in YYYY-MM format"
	}
	if !cvcRe.MatchString(card.SecurityCode) {
		fields["security_code"] = "security code must be 3 or 4 digits"
	}
	if strings.TrimSpace(card.Name) == "" {
		fields["name"] = "cardholder name is required"
	}

	addr := card.BillingAddress
	if strings.TrimSpace(addr.AddressLine1) == "" {
		fields["billing_address.address_line_1"] = "address line is required"
	}
	if strings.TrimSpace(addr.City) == "" {
		fields["billing_address.city"] = "city is required"
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		fields["billing_address.postal_code"] = "postal code is required"
	}
	if strings.TrimSpace(addr.CountryCode) == "" {
		fields["billing_address.country_code"] = "country code is required"
	}

	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "invalid card details", Fields: fields}
	}
	return nil
}
