package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/ingest/service"
)

type IngestService interface {
	Ingest(ctx context.Context, userID, rawText string) (*service.Result, error)
}

type IngestHandler struct {
	resp        *response.Handler
	svc         IngestService
	defaultUser string
}

func NewIngestHandler(resp *response.Handler, svc IngestService, defaultUser string) *IngestHandler {
	return &IngestHandler{resp: resp, svc: svc, defaultUser: defaultUser}
}

type ingestRequest struct {
	UserID string `json:"user_id"`
	SMS    string `json:"sms"`
	// Text is accepted as an alias for SMS.
	Text string `json:"text"`
}

type ingestResponse struct {
	Inserted bool  `json:"inserted"`
	ID       int64 `json:"id"`
	Record   any   `json:"record,omitempty"`
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.resp.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = h.defaultUser
	}
	text := req.SMS
	if text == "" {
		text = req.Text
	}

	res, err := h.svc.Ingest(r.Context(), userID, text)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Inserted {
		status = http.StatusCreated
	}
	h.resp.WriteJSON(w, status, ingestResponse{
		Inserted: res.Inserted,
		ID:       res.RecordID,
		Record:   res.Record,
	})
}
