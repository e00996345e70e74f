package idgen

import (
	"strings"
	"testing"
)

func TestNextIDMonotonic(t *testing.T) {
	seen := make(map[int64]bool, 1000)
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		id := NextID()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		prev = id
	}
}

func TestGenerateTransactionNo(t *testing.T) {
	no := GenerateTransactionNo()
	if !strings.HasPrefix(no, "PTX") {
		t.Errorf("transaction no %q missing PTX prefix", no)
	}
	if len(no) != len("PTX")+14+8 {
		t.Errorf("transaction no %q has length %d, want %d", no, len(no), len("PTX")+22)
	}
}

func TestGenerateVoucherCode(t *testing.T) {
	code := GenerateVoucherCode("mpr")
	if !strings.HasPrefix(code, "MPR") {
		t.Errorf("voucher code %q not uppercased with prefix", code)
	}
	if code != strings.ToUpper(code) {
		t.Errorf("voucher code %q contains lowercase characters", code)
	}
	if len(code) != len("MPR")+14+4 {
		t.Errorf("voucher code %q has length %d, want %d", code, len(code), len("MPR")+18)
	}
}
