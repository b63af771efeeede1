package constants

import "strings"

// Field is one column of an extracted company record.
type Field string

const (
	FieldCompany      Field = "Company"
	FieldProductGroup Field = "Product Group"
	FieldCountry      Field = "Country"
	FieldAddress      Field = "Address"
	FieldPhone        Field = "Phone"
	FieldEmail        Field = "Email"
	FieldWebsite      Field = "Website"
	FieldBrands       Field = "Brands"
)

// NotAvailable replaces any missing, empty or null-like value.
const NotAvailable = "N/A"

var allFields = []Field{
	FieldCompany,
	FieldProductGroup,
	FieldCountry,
	FieldAddress,
	FieldPhone,
	FieldEmail,
	FieldWebsite,
	FieldBrands,
}

// Fields returns the fixed field set in export order.
func Fields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

func FieldNames() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

// IsNullLike reports whether a trimmed string should collapse to NotAvailable.
func IsNullLike(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none")
}
