// Package fees computes platform and gateway fees for a purchase.
//
// All amounts are integer minor units (paise for INR). The calculation is
// pure and deterministic so a fee breakdown stored on a transaction can be
// re-derived and verified at audit time.
package fees

import (
	"errors"
	"fmt"
)

var ErrInvalidAmount = errors.New("fees: amount must be positive")

// PaymentMethod identifies how the buyer pays. The gateway surcharge
// depends on it.
type PaymentMethod string

const (
	MethodCard       PaymentMethod = "card"
	MethodUPI        PaymentMethod = "upi"
	MethodNetbanking PaymentMethod = "netbanking"
	MethodWallet     PaymentMethod = "wallet"
)

// Policy constants, in basis points of the base amount.
const (
	PlatformFeeBPS         = 250 // 2.5% platform commission
	GatewayBaseBPS         = 200 // 2.0% gateway processing
	CardSurchargeBPS       = 100
	UPISurchargeBPS        = 0
	NetbankingSurchargeBPS = 50
	WalletSurchargeBPS     = 150
)

// Breakdown is the fee split for a single charge.
type Breakdown struct {
	PlatformFee int64 `json:"platformFee"` // minor units
	GatewayFee  int64 `json:"gatewayFee"`  // minor units
	Total       int64 `json:"total"`       // PlatformFee + GatewayFee
}

// Compute returns the fee breakdown for a base amount in minor units.
// Each fee is rounded half-up to the nearest minor unit independently,
// so PlatformFee + GatewayFee == Total always holds exactly.
func Compute(baseAmount int64, method PaymentMethod) (Breakdown, error) {
	if baseAmount <= 0 {
		return Breakdown{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, baseAmount)
	}

	surcharge, err := surchargeBPS(method)
	if err != nil {
		return Breakdown{}, err
	}

	platform := roundHalfUpBPS(baseAmount, PlatformFeeBPS)
	gateway := roundHalfUpBPS(baseAmount, GatewayBaseBPS+surcharge)

	return Breakdown{
		PlatformFee: platform,
		GatewayFee:  gateway,
		Total:       platform + gateway,
	}, nil
}

// ChargeAmount is the amount actually captured from the buyer:
// the negotiated price plus all fees.
func ChargeAmount(baseAmount int64, b Breakdown) int64 {
	return baseAmount + b.Total
}

func surchargeBPS(method PaymentMethod) (int64, error) {
	switch method {
	case MethodCard:
		return CardSurchargeBPS, nil
	case MethodUPI:
		return UPISurchargeBPS, nil
	case MethodNetbanking:
		return NetbankingSurchargeBPS, nil
	case MethodWallet:
		return WalletSurchargeBPS, nil
	}
	return 0, fmt.Errorf("fees: unknown payment method %q", method)
}

// roundHalfUpBPS computes amount * bps / 10000 rounded half-up.
// amount is positive and far below the int64 overflow bound for any
// realistic listing price (overflow needs amount > ~1.8e15 minor units).
func roundHalfUpBPS(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}
