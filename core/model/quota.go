package model

import (
	"errors"
	"fmt"
	"math"
)

// QuotaPolicy decides how weekly hours that do not convert to a whole number
// of units are handled.
type QuotaPolicy string

const (
	// QuotaReject drops the need entry.
	QuotaReject QuotaPolicy = "reject"
	// QuotaTruncate rounds the unit count down.
	QuotaTruncate QuotaPolicy = "truncate"
	// QuotaRound rounds the unit count to the nearest integer, halves up.
	QuotaRound QuotaPolicy = "round"
)

// ErrFractionalQuota is returned under QuotaReject.
var ErrFractionalQuota = errors.New("quota is not a whole number of units")

const quotaEpsilon = 1e-9

// ParseQuotaPolicy maps a config string to a policy; empty means reject.
func ParseQuotaPolicy(s string) (QuotaPolicy, error) {
	switch p := QuotaPolicy(s); p {
	case "":
		return QuotaReject, nil
	case QuotaReject, QuotaTruncate, QuotaRound:
		return p, nil
	default:
		return "", fmt.Errorf("unknown quota policy %q", s)
	}
}

// Units converts weekly hours into a unit count.
func (p QuotaPolicy) Units(hours float64, perHour int) (int, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0, fmt.Errorf("invalid weekly hours %v", hours)
	}
	exact := hours * float64(perHour)
	whole := math.Round(exact)
	if math.Abs(exact-whole) < quotaEpsilon {
		return int(whole), nil
	}
	switch p {
	case QuotaTruncate:
		return int(math.Floor(exact)), nil
	case QuotaRound:
		return int(math.Floor(exact + 0.5)), nil
	default:
		return 0, fmt.Errorf("%v hours at %d units per hour: %w", hours, perHour, ErrFractionalQuota)
	}
}
