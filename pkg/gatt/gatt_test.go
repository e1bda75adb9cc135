package gatt

import (
	"testing"

	"github.com/google/uuid"
)

func TestCharacteristicUUIDs(t *testing.T) {
	tests := []struct {
		c    Characteristic
		want string
	}{
		{Status, "00010203-0405-0607-0809-0a0b0c0d1911"},
		{Command, "00010203-0405-0607-0809-0a0b0c0d1912"},
		{OTA, "00010203-0405-0607-0809-0a0b0c0d1913"},
		{Pair, "00010203-0405-0607-0809-0a0b0c0d1914"},
	}

	for _, tt := range tests {
		if got := tt.c.UUID().String(); got != tt.want {
			t.Errorf("%s UUID = %s, want %s", tt.c, got, tt.want)
		}
		c, ok := Lookup(uuid.MustParse(tt.want))
		if !ok || c != tt.c {
			t.Errorf("Lookup(%s) = %s, %t", tt.want, c, ok)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup(ServiceUUID); ok {
		t.Error("service UUID resolved to a characteristic")
	}
	if Characteristic(0).Valid() {
		t.Error("zero characteristic is valid")
	}
}
