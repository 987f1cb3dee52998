package fees

import (
	"errors"
	"testing"
)

func TestCompute_CardScenario(t *testing.T) {
	// 10000 paise (INR 100) by card: platform 2.5% = 250,
	// gateway 2.0% + 1.0% card surcharge = 300.
	b, err := Compute(10000, MethodCard)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if b.PlatformFee != 250 {
		t.Errorf("expected platform fee 250, got %d", b.PlatformFee)
	}
	if b.GatewayFee != 300 {
		t.Errorf("expected gateway fee 300, got %d", b.GatewayFee)
	}
	if b.Total != 550 {
		t.Errorf("expected total fees 550, got %d", b.Total)
	}
	if got := ChargeAmount(10000, b); got != 10550 {
		t.Errorf("expected charge amount 10550, got %d", got)
	}
}

func TestCompute_MethodSurcharges(t *testing.T) {
	cases := []struct {
		method  PaymentMethod
		gateway int64
	}{
		{MethodCard, 300},
		{MethodUPI, 200},
		{MethodNetbanking, 250},
		{MethodWallet, 350},
	}
	for _, tc := range cases {
		b, err := Compute(10000, tc.method)
		if err != nil {
			t.Fatalf("Compute(%s) failed: %v", tc.method, err)
		}
		if b.GatewayFee != tc.gateway {
			t.Errorf("%s: expected gateway fee %d, got %d", tc.method, tc.gateway, b.GatewayFee)
		}
	}
}

func TestCompute_RoundHalfUp(t *testing.T) {
	// 101 * 250 / 10000 = 2.525 → rounds up to 3.
	b, err := Compute(101, MethodUPI)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if b.PlatformFee != 3 {
		t.Errorf("expected platform fee 3 (half-up), got %d", b.PlatformFee)
	}
	// 199 * 250 / 10000 = 4.975 → rounds up to 5.
	b, _ = Compute(199, MethodUPI)
	if b.PlatformFee != 5 {
		t.Errorf("expected platform fee 5, got %d", b.PlatformFee)
	}
	// 100 * 250 / 10000 = 2.5 exactly → half-up to 3.
	b, _ = Compute(100, MethodUPI)
	if b.PlatformFee != 3 {
		t.Errorf("expected platform fee 3 on exact half, got %d", b.PlatformFee)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	first, err := Compute(123457, MethodWallet)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, _ := Compute(123457, MethodWallet)
		if again != first {
			t.Fatalf("Compute not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestCompute_BreakdownSumsExactly(t *testing.T) {
	for _, amount := range []int64{1, 99, 100, 101, 9999, 10000, 123456789} {
		b, err := Compute(amount, MethodCard)
		if err != nil {
			t.Fatalf("Compute(%d) failed: %v", amount, err)
		}
		if b.PlatformFee+b.GatewayFee != b.Total {
			t.Errorf("amount %d: parts %d+%d != total %d",
				amount, b.PlatformFee, b.GatewayFee, b.Total)
		}
		if ChargeAmount(amount, b) != amount+b.Total {
			t.Errorf("amount %d: charge amount drifted", amount)
		}
	}
}

func TestCompute_InvalidAmount(t *testing.T) {
	for _, amount := range []int64{0, -1, -10000} {
		_, err := Compute(amount, MethodCard)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Compute(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestCompute_UnknownMethod(t *testing.T) {
	if _, err := Compute(1000, PaymentMethod("crypto")); err == nil {
		t.Error("expected error for unknown payment method")
	}
}
