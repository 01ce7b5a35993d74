package utils

import (
	"strings"
	"testing"
)

func TestGenerateAccountNumber(t *testing.T) {
	number, err := GenerateAccountNumber("IB", 16)
	if err != nil {
		t.Fatalf("GenerateAccountNumber: %v", err)
	}
	if len(number) != 16 {
		t.Errorf("length = %d, want 16", len(number))
	}
	if !strings.HasPrefix(number, "IB") {
		t.Errorf("number %q missing prefix", number)
	}
	for _, r := range number[2:] {
		if r < '0' || r > '9' {
			t.Errorf("non-digit %q in %q", r, number)
		}
	}
}

func TestGenerateAccountNumberInvalidLength(t *testing.T) {
	if _, err := GenerateAccountNumber("IB", 1); err == nil {
		t.Error("expected error for length shorter than prefix")
	}
	if _, err := GenerateAccountNumber("IB", 30); err == nil {
		t.Error("expected error for oversized length")
	}
}

func TestHMACRoundTrip(t *testing.T) {
	tag := GenerateHMAC("hero_1", "IB12345678", "secret")
	if !VerifyHMAC("hero_1", "IB12345678", "secret", tag) {
		t.Error("tag did not verify")
	}
	if VerifyHMAC("hero_2", "IB12345678", "secret", tag) {
		t.Error("tag verified for a different owner")
	}
	if VerifyHMAC("hero_1", "IB12345678", "other", tag) {
		t.Error("tag verified with a different secret")
	}
}
