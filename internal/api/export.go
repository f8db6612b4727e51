package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/FACorreiaa/sms-finance-tracker/internal/api/response"
	"github.com/FACorreiaa/sms-finance-tracker/internal/domain/export"
)

const exportLimit = 500

type ExportHandler struct {
	resp        *response.Handler
	store       ExpenseStore
	defaultUser string
}

func NewExportHandler(resp *response.Handler, store ExpenseStore, defaultUser string) *ExportHandler {
	return &ExportHandler{resp: resp, store: store, defaultUser: defaultUser}
}

func (h *ExportHandler) userID(r *http.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	return h.defaultUser
}

func exportFilename(ext string) string {
	return fmt.Sprintf("expenses-%s.%s", time.Now().UTC().Format("2006-01-02"), ext)
}

func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.List(r.Context(), h.userID(r), exportLimit)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename("csv")))
	if err := export.WriteCSV(w, txs); err != nil {
		// Headers are already out; nothing useful to send the client.
		h.resp.HandleError(w, r, err)
	}
}

func (h *ExportHandler) XLSX(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.List(r.Context(), h.userID(r), exportLimit)
	if err != nil {
		h.resp.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename("xlsx")))
	if err := export.WriteXLSX(w, txs); err != nil {
		h.resp.HandleError(w, r, err)
	}
}
