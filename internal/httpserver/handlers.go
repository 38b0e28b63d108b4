package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"campaignd/internal/domain"
	"campaignd/internal/service"
	"campaignd/internal/util"
)

type API struct {
	Svc *service.CampaignService
}

func (a *API) Register(router *mux.Router) {
	router.HandleFunc("/v1/segments", a.handleCreateSegment).Methods(http.MethodPost)
	router.HandleFunc("/v1/segments/{id}", a.handleGetSegment).Methods(http.MethodGet)
	router.HandleFunc("/v1/campaigns", a.handleCreateCampaign).Methods(http.MethodPost)
	router.HandleFunc("/v1/campaigns/{id}", a.handleGetCampaign).Methods(http.MethodGet)
	router.HandleFunc("/v1/campaigns/{id}/send", a.handleScheduleSend).Methods(http.MethodPost)
}

func (a *API) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	seg, err := a.Svc.CreateSegment(r.Context(), req, util.NowUTC())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrMissingFields) || isValidationError(err) {
			status = http.StatusBadRequest
		}
		slog.Error("create segment failed", "err", err, "store_id", req.StoreID, "name", req.Name)
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

func (a *API) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	seg, err := a.Svc.GetSegment(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSegmentNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("get segment failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func (a *API) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	c, err := a.Svc.CreateCampaign(r.Context(), req, util.NowUTC())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrMissingFields) || isValidationError(err) {
			status = http.StatusBadRequest
		}
		slog.Error("create campaign failed", "err", err, "store_id", req.StoreID, "name", req.Name)
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := a.Svc.GetCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCampaignNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("get campaign failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleScheduleSend(w http.ResponseWriter, r *http.Request) {
	var req domain.ScheduleSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	req.CampaignID = mux.Vars(r)["id"]

	resp, err := a.Svc.ScheduleSend(r.Context(), req, util.NowUTC())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingFields):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrCampaignNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		default:
			slog.Error("schedule send failed", "err", err, "campaign_id", req.CampaignID)
			http.Error(w, ErrDependency, http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidCampaign) ||
		errors.Is(err, domain.ErrUnknownFieldType) ||
		errors.Is(err, domain.ErrUnknownOperator) ||
		errors.Is(err, domain.ErrMissingValue) ||
		errors.Is(err, domain.ErrMissingValueTo) ||
		errors.Is(err, domain.ErrBadCombinator)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
