package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/zoff-tech/go-clearing/pkg/adapter"
	"github.com/zoff-tech/go-clearing/pkg/resilience"
)

// registerClearingRoutes mounts the payment entry points next to the admin
// endpoints. The sidecar serves both on one listener.
func registerClearingRoutes(mux *http.ServeMux, accounts *adapter.AccountAdapter, bankserv *adapter.BankservAdapter, samos *adapter.SamosAdapter) {
	mux.HandleFunc("POST /v1/credit-transfers", func(w http.ResponseWriter, r *http.Request) {
		message, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := bankserv.SubmitCreditTransfer(r.Context(), message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, result)
	})

	mux.HandleFunc("POST /v1/status-reports", func(w http.ResponseWriter, r *http.Request) {
		message, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := bankserv.HandleStatusReport(r.Context(), message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("POST /v1/settlements", func(w http.ResponseWriter, r *http.Request) {
		message, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := samos.SubmitSettlement(r.Context(), message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, result)
	})

	mux.HandleFunc("GET /v1/settlements/{uetr}/status", func(w http.ResponseWriter, r *http.Request) {
		result, err := samos.SettlementStatus(r.Context(), r.PathValue("uetr"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("POST /v1/accounts/validate", func(w http.ResponseWriter, r *http.Request) {
		var refs []adapter.AccountRef
		if err := json.NewDecoder(r.Body).Decode(&refs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, accounts.ValidateAccounts(r.Context(), refs))
	})

	mux.HandleFunc("POST /v1/accounts/enquiry", func(w http.ResponseWriter, r *http.Request) {
		var ref adapter.AccountRef
		if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		report, result := accounts.AccountEnquiry(r.Context(), ref)
		if result.Err != nil {
			writeError(w, result.Err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var adapterErr *resilience.AdapterError
	if errors.As(err, &adapterErr) {
		switch adapterErr.Kind {
		case resilience.KindValidation:
			status = http.StatusBadRequest
		case resilience.KindUpstreamBusiness:
			status = http.StatusUnprocessableEntity
		case resilience.KindAuth:
			status = http.StatusBadGateway
		case resilience.KindCircuitOpen:
			status = http.StatusServiceUnavailable
		case resilience.KindTimeout:
			status = http.StatusGatewayTimeout
		case resilience.KindNetwork:
			status = http.StatusBadGateway
		}
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
