package model

import "time"

// Company is the DB entity persisted in the companies table. The symbol is the
// roster identity key and the upsert key.
type Company struct {
	ID               int64      `db:"id"                 json:"id"`
	Symbol           string     `db:"symbol"             json:"symbol"`
	CompanyName      string     `db:"company_name"       json:"company_name"`
	MarketCap        float64    `db:"market_cap"         json:"market_cap"`
	Currency         string     `db:"currency"           json:"currency"`
	ExchangeFullName string     `db:"exchange_full_name" json:"exchange_full_name"`
	Exchange         string     `db:"exchange"           json:"exchange"`
	Industry         *string    `db:"industry"           json:"industry,omitempty"`
	Sector           *string    `db:"sector"             json:"sector,omitempty"`
	Country          *string    `db:"country"            json:"country,omitempty"`
	Website          *string    `db:"website"            json:"website,omitempty"`
	Description      *string    `db:"description"        json:"description,omitempty"`
	Image            *string    `db:"image"              json:"image,omitempty"`
	Phone            *string    `db:"phone"              json:"phone,omitempty"`
	Address          *string    `db:"address"            json:"address,omitempty"`
	City             *string    `db:"city"               json:"city,omitempty"`
	State            *string    `db:"state"              json:"state,omitempty"`
	Zip              *string    `db:"zip"                json:"zip,omitempty"`
	IPODate          *time.Time `db:"ipo_date"           json:"ipo_date,omitempty"`
	CreatedAt        time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"         json:"updated_at"`
}
