package parking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	usageCreate   = "Usage: create_parking_lot <capacity>"
	usageArrive   = "Usage: arrive <plate> [vip]"
	usageDepart   = "Usage: depart <plate>"
	usageRelease  = "Usage: release <slot_number>"
	usageEnqueue  = "Usage: enqueue <plate> [vip]"
	usageFindSlot = "Usage: slot_number_for_registration_number <plate>"
)

// parsePlateArgs reads "<plate> [vip]" from the arguments following a
// command. The flag accepts vip/regular or anything strconv.ParseBool does.
func parsePlateArgs(args []string) (string, bool, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", false, errors.New("wrong number of arguments")
	}
	if len(args) == 1 {
		return args[0], false, nil
	}

	switch strings.ToLower(args[1]) {
	case "vip":
		return args[0], true, nil
	case "regular", "standard":
		return args[0], false, nil
	}

	vip, err := strconv.ParseBool(args[1])
	if err != nil {
		return "", false, fmt.Errorf("invalid vip flag %q", args[1])
	}
	return args[0], vip, nil
}

func formatArrival(a Arrival) string {
	if a.Queued {
		return fmt.Sprintf("Sorry, parking lot is full. Queued at position %d", a.Position)
	}
	return fmt.Sprintf("Allocated slot number: %d", a.Slot)
}

func formatDeparture(d *Departure, precision int32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vehicle %s departed from slot %d. Arrival: %s Departure: %s Hours: %d Amount due: %s",
		d.Plate,
		d.Slot,
		d.ArrivalTime.Format(TimestampLayout),
		d.DepartureTime.Format(TimestampLayout),
		d.Hours,
		d.AmountDue.StringFixed(precision),
	)
	if d.Promoted != nil {
		b.WriteString("\n")
		b.WriteString(formatPromotion(d.Promoted))
	}
	return b.String()
}

func formatRelease(r *SlotRelease) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Slot number %d is free", r.Slot)
	if r.Evicted != nil {
		fmt.Fprintf(&b, " (removed %s)", r.Evicted.Plate)
	}
	if r.Promoted != nil {
		b.WriteString("\n")
		b.WriteString(formatPromotion(r.Promoted))
	}
	return b.String()
}

func formatPromotion(r *OccupancyRecord) string {
	return fmt.Sprintf("Slot %d assigned to waiting vehicle %s", r.Slot, r.Plate)
}

func formatVIP(vip bool) string {
	if vip {
		return "VIP"
	}
	return "-"
}

// shellMessage renders err the way an operator should read it.
func shellMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnknownClient):
		return "Not found"
	case errors.Is(err, ErrAlreadyActive), errors.Is(err, ErrDuplicateClient):
		return "Vehicle is already parked or waiting"
	case errors.Is(err, ErrDuplicateWaiting):
		return "Vehicle is already waiting"
	case errors.Is(err, ErrDoubleRelease):
		return "Slot is already free"
	case errors.Is(err, ErrInvalidSlot):
		return "Invalid slot number"
	case errors.Is(err, ErrInvalidPlate):
		return "Invalid plate"
	case errors.Is(err, ErrInvalidCapacity):
		return "Invalid capacity"
	}
	return fmt.Sprintf("Error: %s", err)
}
