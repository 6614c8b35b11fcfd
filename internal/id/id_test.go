package id

import (
	"strings"
	"testing"
)

func TestValidateAddress(t *testing.T) {
	got, err := ValidateAddress("0x00000000000000000000000000000000000000aa")
	if err != nil {
		t.Fatalf("ValidateAddress failed: %v", err)
	}
	if !strings.HasPrefix(got, "0x") || len(got) != 42 {
		t.Fatalf("unexpected normalized address: %s", got)
	}

	for _, bad := range []string{"", "0x1234", "not-an-address", "0xZZ000000000000000000000000000000000000aa"} {
		if _, err := ValidateAddress(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNormalizeTxHash(t *testing.T) {
	valid := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	if _, ok := NormalizeTxHash(valid); !ok {
		t.Fatal("expected valid tx hash to normalize")
	}
	if _, ok := NormalizeTxHash("0x1234"); ok {
		t.Fatal("expected short tx hash to fail")
	}
	if _, ok := NormalizeTxHash(""); ok {
		t.Fatal("expected empty tx hash to fail")
	}
}

func TestNewIDsAreUniqueAndPrefixed(t *testing.T) {
	a, b := NewPlanID(), NewPlanID()
	if a == b {
		t.Fatal("expected distinct plan ids")
	}
	if !strings.HasPrefix(a, "plan_") {
		t.Fatalf("unexpected plan id format: %s", a)
	}
	if !strings.HasPrefix(NewStepID(), "step_") {
		t.Fatal("unexpected step id format")
	}
	if !strings.HasPrefix(NewRequestID(), "req_") {
		t.Fatal("unexpected request id format")
	}
}
