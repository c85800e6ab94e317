package parking

import "strings"

type Vehicle struct {
	Plate string
	VIP   bool
}

func NewVehicle(plate string, vip bool) *Vehicle {
	return &Vehicle{
		Plate: NormalizePlate(plate),
		VIP:   vip,
	}
}

// NormalizePlate trims surrounding whitespace. Plates are otherwise
// compared exactly as given.
func NormalizePlate(plate string) string {
	return strings.TrimSpace(plate)
}
