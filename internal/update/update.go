// Package update checks a small hosted manifest for a newer release of the
// app. It only reports; it never installs anything.
package update

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/clawdshartavenger/alta-parking-app/internal/config"
)

// Release is the hosted release descriptor.
type Release struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Result is the outcome of one update check.
type Result struct {
	Current string  `json:"current"`
	Latest  Release `json:"latest"`
	Newer   bool    `json:"newer"`
}

type Checker struct {
	client      *resty.Client
	manifestURL string
}

func New(cfg config.UpdateConfig) *Checker {
	client := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json")
	return &Checker{client: client, manifestURL: cfg.ManifestURL}
}

// Check fetches the release manifest and compares it with current.
func (c *Checker) Check(ctx context.Context, current string) (Result, error) {
	if c.manifestURL == "" {
		return Result{}, errors.New("update manifest URL not configured")
	}

	var latest Release
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&latest).
		Get(c.manifestURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch update manifest: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("fetch update manifest: status %d", resp.StatusCode())
	}
	if strings.TrimSpace(latest.Version) == "" {
		return Result{}, errors.New("update manifest has no version")
	}

	return Result{
		Current: current,
		Latest:  latest,
		Newer:   CompareVersions(latest.Version, current) > 0,
	}, nil
}

// CompareVersions compares two dotted version strings numerically, ignoring a
// leading "v". Returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	as := splitVersion(a)
	bs := splitVersion(b)
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func splitVersion(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	// Pre-release suffixes compare as the base version.
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}
