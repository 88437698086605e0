package model

import "time"

// Credentials are the four secret fields the booking flow needs, keyed by a
// service identifier so one install can hold credentials per reservation site.
type Credentials struct {
	Service        string    `json:"service"`
	Email          string    `json:"email"`
	Password       string    `json:"password,omitempty"`
	SeasonPassCode string    `json:"seasonPassCode,omitempty"`
	LicensePlate   string    `json:"licensePlate"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
