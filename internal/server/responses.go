package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"parking-lot/internal/logging"
	"parking-lot/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type ParkingLotCreateRequest struct {
	Capacity int `json:"capacity"`
}

type ArriveRequest struct {
	Plate string `json:"plate"`
	VIP   bool   `json:"vip"`
}

type DepartRequest struct {
	Plate string `json:"plate"`
}

type ReleaseSlotRequest struct {
	SlotNumber int `json:"slot_number"`
}

type ArriveResponse struct {
	Plate      string `json:"plate"`
	VIP        bool   `json:"vip"`
	SlotNumber int    `json:"slot_number,omitempty"`
	Queued     bool   `json:"queued"`
	Position   int    `json:"position,omitempty"`
	Time       string `json:"time"`
}

type VehicleResponse struct {
	SlotNumber  int    `json:"slot_number"`
	Plate       string `json:"plate"`
	VIP         bool   `json:"vip"`
	ArrivalTime string `json:"arrival_time"`
}

type DepartureResponse struct {
	Plate           string           `json:"plate"`
	SlotNumber      int              `json:"slot_number"`
	VIP             bool             `json:"vip"`
	ArrivalTime     string           `json:"arrival_time"`
	DepartureTime   string           `json:"departure_time"`
	DurationSeconds int64            `json:"duration_seconds"`
	BilledHours     int64            `json:"billed_hours"`
	AmountDue       string           `json:"amount_due"`
	Promoted        *VehicleResponse `json:"promoted,omitempty"`
}

type ReleaseResponse struct {
	SlotNumber int              `json:"slot_number"`
	Evicted    *VehicleResponse `json:"evicted,omitempty"`
	Promoted   *VehicleResponse `json:"promoted,omitempty"`
}

type WaitingResponse struct {
	Position   int    `json:"position"`
	Plate      string `json:"plate"`
	VIP        bool   `json:"vip"`
	EnqueuedAt string `json:"enqueued_at"`
}

type WaitingPositionResponse struct {
	Plate    string `json:"plate"`
	Waiting  bool   `json:"waiting"`
	Position int    `json:"position"`
}

type SlotStatus struct {
	SlotNumber  int    `json:"slot_number"`
	Plate       string `json:"plate,omitempty"`
	VIP         bool   `json:"vip,omitempty"`
	ArrivalTime string `json:"arrival_time,omitempty"`
	Occupied    bool   `json:"occupied"`
}

type StatusResponse struct {
	Capacity  int               `json:"capacity"`
	Occupied  int               `json:"occupied"`
	Available int               `json:"available"`
	Waiting   int               `json:"waiting"`
	Slots     []SlotStatus      `json:"slots"`
	Queue     []WaitingResponse `json:"queue"`
}

func newVehicleResponse(r *parking.OccupancyRecord) *VehicleResponse {
	if r == nil {
		return nil
	}
	return &VehicleResponse{
		SlotNumber:  r.Slot,
		Plate:       r.Plate,
		VIP:         r.VIP,
		ArrivalTime: r.ArrivalTime.Format(parking.TimestampLayout),
	}
}

func newWaitingResponses(reqs []parking.WaitingRequest) []WaitingResponse {
	out := make([]WaitingResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, WaitingResponse{
			Position:   req.Position,
			Plate:      req.Plate,
			VIP:        req.VIP,
			EnqueuedAt: req.EnqueuedAt.Format(parking.TimestampLayout),
		})
	}
	return out
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteSuccessStatus(ctx, w, http.StatusOK, message, data)
}

func WriteSuccessStatus(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}

// WriteParkingError maps an engine error to an HTTP status and a stable
// error code.
func WriteParkingError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, parking.ErrInvalidPlate),
		errors.Is(err, parking.ErrInvalidSlot),
		errors.Is(err, parking.ErrInvalidCapacity),
		errors.Is(err, parking.ErrInvalidRates):
		status = http.StatusBadRequest
	case errors.Is(err, parking.ErrUnknownClient):
		status = http.StatusNotFound
	case errors.Is(err, parking.ErrAlreadyActive),
		errors.Is(err, parking.ErrDuplicateClient),
		errors.Is(err, parking.ErrDuplicateWaiting),
		errors.Is(err, parking.ErrDoubleRelease):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logging.Error(ctx, "unexpected parking error", "error", err)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error:   err.Error(),
		Code:    parking.ErrorCode(err),
		Meta:    extractMeta(ctx),
	})
}
