package entity

import (
	"github.com/joseph-ayodele/company-extractor/constants"
)

// Company is one normalized record extracted from a document chunk.
// Every field is a trimmed string; missing values hold constants.NotAvailable.
type Company struct {
	Company      string `json:"Company"`
	ProductGroup string `json:"Product Group"`
	Country      string `json:"Country"`
	Address      string `json:"Address"`
	Phone        string `json:"Phone"`
	Email        string `json:"Email"`
	Website      string `json:"Website"`
	Brands       string `json:"Brands"`
}

// NewCompany returns a record with every field set to constants.NotAvailable.
func NewCompany() Company {
	na := constants.NotAvailable
	return Company{
		Company:      na,
		ProductGroup: na,
		Country:      na,
		Address:      na,
		Phone:        na,
		Email:        na,
		Website:      na,
		Brands:       na,
	}
}

// Get returns the value stored under f.
func (c Company) Get(f constants.Field) string {
	switch f {
	case constants.FieldCompany:
		return c.Company
	case constants.FieldProductGroup:
		return c.ProductGroup
	case constants.FieldCountry:
		return c.Country
	case constants.FieldAddress:
		return c.Address
	case constants.FieldPhone:
		return c.Phone
	case constants.FieldEmail:
		return c.Email
	case constants.FieldWebsite:
		return c.Website
	case constants.FieldBrands:
		return c.Brands
	}
	return ""
}

// With returns a copy of c with f set to v.
func (c Company) With(f constants.Field, v string) Company {
	switch f {
	case constants.FieldCompany:
		c.Company = v
	case constants.FieldProductGroup:
		c.ProductGroup = v
	case constants.FieldCountry:
		c.Country = v
	case constants.FieldAddress:
		c.Address = v
	case constants.FieldPhone:
		c.Phone = v
	case constants.FieldEmail:
		c.Email = v
	case constants.FieldWebsite:
		c.Website = v
	case constants.FieldBrands:
		c.Brands = v
	}
	return c
}

// Values returns the field values in export order.
func (c Company) Values() []string {
	fields := constants.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = c.Get(f)
	}
	return out
}
