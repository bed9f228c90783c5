package provider

import (
	"strings"
	"time"

	"github.com/jmehdipour/stocksync/internal/model"
)

// Profile is one element of the upstream company profile response.
type Profile struct {
	Symbol           string  `json:"symbol"`
	CompanyName      string  `json:"companyName"`
	Price            float64 `json:"price"`
	MarketCap        float64 `json:"marketCap"`
	Currency         string  `json:"currency"`
	ExchangeFullName string  `json:"exchangeFullName"`
	Exchange         string  `json:"exchange"`
	Industry         string  `json:"industry"`
	Website          string  `json:"website"`
	Description      string  `json:"description"`
	Sector           string  `json:"sector"`
	Country          string  `json:"country"`
	Phone            string  `json:"phone"`
	Address          string  `json:"address"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Zip              string  `json:"zip"`
	Image            string  `json:"image"`
	IPODate          string  `json:"ipoDate"`
}

const ipoDateLayout = "2006-01-02"

// Company maps the profile onto the persisted entity. Blank optional fields
// become NULL; an unparsable ipoDate is dropped.
func (p Profile) Company() model.Company {
	c := model.Company{
		Symbol:           strings.ToUpper(strings.TrimSpace(p.Symbol)),
		CompanyName:      p.CompanyName,
		MarketCap:        p.MarketCap,
		Currency:         p.Currency,
		ExchangeFullName: p.ExchangeFullName,
		Exchange:         p.Exchange,
		Industry:         optional(p.Industry),
		Sector:           optional(p.Sector),
		Country:          optional(p.Country),
		Website:          optional(p.Website),
		Description:      optional(p.Description),
		Image:            optional(p.Image),
		Phone:            optional(p.Phone),
		Address:          optional(p.Address),
		City:             optional(p.City),
		State:            optional(p.State),
		Zip:              optional(p.Zip),
	}
	if t, err := time.Parse(ipoDateLayout, p.IPODate); err == nil {
		c.IPODate = &t
	}
	return c
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
