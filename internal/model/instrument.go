package model

import (
	"fmt"
	"time"
)

// Instrument is the canonical representation of a tradable derivative
// contract, produced once by a normalizer at discovery time and immutable
// thereafter.
//
// Invariant: every option (CallOption/PutOption) has Strike, ExpirationDatetimeMs
// and ExpirationDateMs set; every dated Future has the two expiration fields
// set; PerpetualFuture and Spot may have none of the three.
type Instrument struct {
	Symbol   string
	Base     Currency
	Quote    Currency
	Exchange Exchange

	ContractType ContractType

	// Strike is the option strike price, truncated from the venue's
	// possibly-floating value. Nil for non-option instruments.
	Strike *uint64

	// ExpirationDatetimeMs is the venue-reported settlement moment, in
	// milliseconds since the Unix epoch, UTC. Nil for perpetuals/spot.
	ExpirationDatetimeMs *int64

	// ExpirationDateMs is ExpirationDatetimeMs truncated to 00:00:00 UTC of
	// its calendar day. Nil iff ExpirationDatetimeMs is nil.
	ExpirationDateMs *int64
}

// TruncateToUTCDate truncates a millisecond UTC timestamp to midnight UTC of
// its calendar day. It is the single place the expiration_date derivation
// rule lives, shared by every normalizer.
func TruncateToUTCDate(ms int64) int64 {
	t := time.UnixMilli(ms).UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.UnixMilli()
}

// Fingerprint is the deterministic cross-venue identity string over
// (contract_type, base, expiration_date, strike). Quote currency is
// intentionally excluded: two venues quoting the same economic contract in
// different quote currencies are still "the same contract".
func (i Instrument) Fingerprint() string {
	exp := "None"
	if i.ExpirationDateMs != nil {
		exp = fmt.Sprintf("%d", *i.ExpirationDateMs)
	}
	strike := "None"
	if i.Strike != nil {
		strike = fmt.Sprintf("%d", *i.Strike)
	}
	return fmt.Sprintf("%s_%s_%s_%s", i.ContractType, i.Base, exp, strike)
}

// Uint64Ptr is a small constructor helper so normalizers don't litter local
// variables just to take an address.
func Uint64Ptr(v uint64) *uint64 { return &v }

// Int64Ptr mirrors Uint64Ptr for the millisecond timestamp fields.
func Int64Ptr(v int64) *int64 { return &v }
