package parking

import "testing"

func TestNewVehicle(t *testing.T) {
	vehicle := NewVehicle("  KA01HH1234 ", true)

	if vehicle.Plate != "KA01HH1234" {
		t.Errorf("Expected plate %s, got %q", "KA01HH1234", vehicle.Plate)
	}

	if !vehicle.VIP {
		t.Error("Expected vehicle to be VIP")
	}
}

func TestNormalizePlateKeepsCase(t *testing.T) {
	if got := NormalizePlate("ka01hh1234"); got != "ka01hh1234" {
		t.Errorf("Expected plate to keep its case, got %q", got)
	}
}
