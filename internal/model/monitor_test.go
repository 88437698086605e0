package model

import (
	"errors"
	"testing"
	"time"
)

func TestMonitorConfigValidate(t *testing.T) {
	valid := MonitorConfig{
		Email:          "rider@example.com",
		Password:       "secret",
		SeasonPassCode: "PASS-1",
		LicensePlate:   "UT 123AB",
		Date:           "2026-03-01",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*MonitorConfig)
		wantErr error
	}{
		{"empty email", func(c *MonitorConfig) { c.Email = "" }, ErrMissingEmail},
		{"whitespace email", func(c *MonitorConfig) { c.Email = "  " }, ErrMissingEmail},
		{"empty password", func(c *MonitorConfig) { c.Password = "" }, ErrMissingPassword},
		{"empty pass code", func(c *MonitorConfig) { c.SeasonPassCode = "" }, ErrMissingPassCode},
		{"empty plate", func(c *MonitorConfig) { c.LicensePlate = "" }, ErrMissingPlate},
		{"empty date", func(c *MonitorConfig) { c.Date = "" }, ErrMissingDate},
		{"us format date", func(c *MonitorConfig) { c.Date = "03/01/2026" }, ErrBadDate},
		{"date with time", func(c *MonitorConfig) { c.Date = "2026-03-01T00:00:00Z" }, ErrBadDate},
		{"impossible date", func(c *MonitorConfig) { c.Date = "2026-02-30" }, ErrBadDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			if err := c.Validate(); !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTargetDate(t *testing.T) {
	c := MonitorConfig{Date: " 2026-03-01 "}
	got, err := c.TargetDate()
	if err != nil {
		t.Fatalf("TargetDate: %v", err)
	}
	want := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("TargetDate = %v, want %v", got, want)
	}
}
