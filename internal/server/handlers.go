package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"parking-lot/internal/parking"
)

type Handler struct {
	serviceName string
	telemetry   *parking.TelemetryProvider
	lotOptions  []parking.Option

	mu         sync.RWMutex
	parkingLot *parking.InstrumentedParkingLot
}

// NewHandler serves lot, which may be nil until a client creates one.
// lotOptions apply when the handler has to create the lot itself.
func NewHandler(serviceName string, telemetry *parking.TelemetryProvider, lot *parking.InstrumentedParkingLot, lotOptions ...parking.Option) *Handler {
	return &Handler{
		serviceName: serviceName,
		telemetry:   telemetry,
		lotOptions:  lotOptions,
		parkingLot:  lot,
	}
}

func (h *Handler) lot() *parking.InstrumentedParkingLot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.parkingLot
}

// StatusSource feeds the Prometheus collector. It returns a nil interface,
// not a typed nil, while no lot exists.
func (h *Handler) StatusSource() parking.StatusSource {
	lot := h.lot()
	if lot == nil {
		return nil
	}
	return lot.ParkingLot
}

func (h *Handler) requireLot(w http.ResponseWriter, r *http.Request) *parking.InstrumentedParkingLot {
	lot := h.lot()
	if lot == nil {
		WriteError(r.Context(), w, http.StatusBadRequest, "Parking lot not created. Create parking lot first")
	}
	return lot
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) CreateParkingLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ParkingLotCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Capacity <= 0 || req.Capacity > parking.MaxCapacity {
		WriteParkingError(ctx, w, parking.ErrInvalidCapacity)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.parkingLot != nil {
		if err := h.parkingLot.Initialize(ctx, req.Capacity); err != nil {
			WriteParkingError(ctx, w, err)
			return
		}
	} else {
		parkingLot, err := parking.NewInstrumentedParkingLot(req.Capacity, h.telemetry, h.lotOptions...)
		if err != nil {
			WriteParkingError(ctx, w, err)
			return
		}
		h.parkingLot = parkingLot
	}

	WriteSuccess(ctx, w, "Parking lot created successfully", map[string]any{
		"capacity": req.Capacity,
	})
}

func (h *Handler) Arrive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(w, r)
	if lot == nil {
		return
	}

	var req ArriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	arrival, err := lot.Arrive(ctx, req.Plate, req.VIP)
	if err != nil {
		WriteParkingError(ctx, w, err)
		return
	}

	resp := ArriveResponse{
		Plate:      arrival.Plate,
		VIP:        req.VIP,
		SlotNumber: arrival.Slot,
		Queued:     arrival.Queued,
		Position:   arrival.Position,
		Time:       arrival.Time.Format(parking.TimestampLayout),
	}

	if arrival.Queued {
		WriteSuccessStatus(ctx, w, http.StatusAccepted, "Parking lot is full, vehicle added to waiting list", resp)
		return
	}
	WriteSuccess(ctx, w, "Vehicle parked successfully", resp)
}

func (h *Handler) Depart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(w, r)
	if lot == nil {
		return
	}

	var req DepartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	departure, err := lot.Depart(ctx, req.Plate)
	if err != nil {
		WriteParkingError(ctx, w, err)
		return
	}

	WriteSuccess(ctx, w, "Vehicle departed successfully", DepartureResponse{
		Plate:           departure.Plate,
		SlotNumber:      departure.Slot,
		VIP:             departure.VIP,
		ArrivalTime:     departure.ArrivalTime.Format(parking.TimestampLayout),
		DepartureTime:   departure.DepartureTime.Format(parking.TimestampLayout),
		DurationSeconds: int64(departure.Duration.Seconds()),
		BilledHours:     departure.Hours,
		AmountDue:       departure.AmountDue.StringFixed(lot.Rates().Precision),
		Promoted:        newVehicleResponse(departure.Promoted),
	})
}

func (h *Handler) ReleaseSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(w, r)
	if lot == nil {
		return
	}

	var req ReleaseSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	release, err := lot.Release(ctx, req.SlotNumber)
	if err != nil {
		WriteParkingError(ctx, w, err)
		return
	}

	WriteSuccess(ctx, w, "Slot vacated successfully", ReleaseResponse{
		SlotNumber: release.Slot,
		Evicted:    newVehicleResponse(release.Evicted),
		Promoted:   newVehicleResponse(release.Promoted),
	})
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(w, r)
	if lot == nil {
		return
	}

	var req ArriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	enqueued, err := lot.EnqueueOnly(ctx, req.Plate, req.VIP)
	if err != nil {
		WriteParkingError(ctx, w, err)
		return
	}

	if enqueued.Promoted != nil {
		WriteSuccess(ctx, w, "Slot was free, vehicle parked", newVehicleResponse(enqueued.Promoted))
		return
	}
	WriteSuccessStatus(ctx, w, http.StatusAccepted, "Vehicle added to waiting list", newWaitingResponses([]parking.WaitingRequest{enqueued.WaitingRequest})[0])
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(w, r)
	if lot == nil {
		return
	}

	status := lot.Status(ctx)

	byslot := make(map[int]parking.OccupancyRecord, len(status.Occupied))
	for _, record := range status.Occupied {
		byslot[record.Slot] = record
	}

	slots := make([]SlotStatus, 0, status.Capacity)
	for i := 1; i <= status.Capacity; i++ {
		slot := SlotStatus{SlotNumber: i}
		if record, ok := byslot[i]; ok {
			slot.Occupied = true
			slot.Plate = record.Plate
			slot.VIP = record.VIP
			slot.ArrivalTime = record.ArrivalTime.Format(parking.TimestampLayout)
		}
		slots = append(slots, slot)
	}

	WriteSuccess(ctx, w, "Status retrieved successfully", StatusResponse{
		Capacity:  status.Capacity,
		Occupied:  len(status.Occupied),
		Available: len(status.Free),
		Waiting:   len(status.Waiting),
		Slots:     slots,
		Queue:     newWaitingResponses(status.Waiting),
	})
}

func (h *Handler) GetWaiting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(w, r)
	if lot == nil {
		return
	}

	WriteSuccess(ctx, w, "Waiting list retrieved successfully", newWaitingResponses(lot.Status(ctx).Waiting))
}

func (h *Handler) FindByPlate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot := h.requireLot(w, r)
	if lot == nil {
		return
	}

	plate := chi.URLParam(r, "plate")
	if plate == "" {
		WriteParkingError(ctx, w, parking.ErrInvalidPlate)
		return
	}

	record, ok := lot.Lookup(ctx, plate)
	if !ok {
		if position, waiting := lot.WaitingPosition(ctx, plate); waiting {
			WriteSuccess(ctx, w, "Vehicle is waiting", WaitingPositionResponse{
				Plate:    parking.NormalizePlate(plate),
				Waiting:  true,
				Position: position,
			})
			return
		}
		WriteParkingError(ctx, w, parking.ErrUnknownClient)
		return
	}

	WriteSuccess(ctx, w, "Vehicle found", newVehicleResponse(&record))
}
