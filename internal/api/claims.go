package api

import (
	"context"
	"net/http"
	"time"

	"github.com/erazemk/najdeno/internal/handoff"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
)

// ClaimsHandler handles the claim, handoff and report endpoints.
type ClaimsHandler struct {
	Svc *service.Service
}

type claimRequest struct {
	Description      string `json:"description"`
	IdentifyingMarks string `json:"identifying_marks"`
	Answer           string `json:"answer"`
}

type redeemRequest struct {
	Payload string `json:"payload"`
}

type reportRequest struct {
	Reason string `json:"reason"`
}

type handoffResponse struct {
	handoff.Token
	ExpiresAt   time.Time `json:"expires_at"`
	SecondsLeft int       `json:"seconds_left"`
}

// Claim handles POST /api/items/{id}/claim.
func (h *ClaimsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Svc.InitiateClaim(r.Context(), r.PathValue("id"), actor(r), model.ClaimProof{
		Description:      req.Description,
		IdentifyingMarks: req.IdentifyingMarks,
	}, req.Answer)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Approve handles POST /api/items/{id}/approve.
func (h *ClaimsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.Svc.ApproveClaim)
}

// Reject handles POST /api/items/{id}/reject.
func (h *ClaimsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.Svc.RejectClaim)
}

// Verify handles POST /api/items/{id}/verify.
func (h *ClaimsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.Svc.VerifyClaim)
}

type ownerFunc func(ctx context.Context, itemID, actorID string) (*model.Item, error)

func (h *ClaimsHandler) ownerAction(w http.ResponseWriter, r *http.Request, fn ownerFunc) {
	item, err := fn(r.Context(), r.PathValue("id"), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Handoff handles POST /api/items/{id}/handoff. Every call issues a new
// code with a full validity window.
func (h *ClaimsHandler) Handoff(w http.ResponseWriter, r *http.Request) {
	t, err := h.Svc.IssueHandoffToken(r.Context(), r.PathValue("id"), actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	left := handoff.NewCountdown(t).Remaining(h.Svc.Now())
	jsonResponse(w, http.StatusCreated, handoffResponse{
		Token:       t,
		ExpiresAt:   t.ExpiresAt(),
		SecondsLeft: int(left / time.Second),
	})
}

// Redeem handles POST /api/handoff/redeem with the scanned payload.
func (h *ClaimsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ret, err := h.Svc.RedeemHandoffToken(r.Context(), req.Payload, actor(r).ID)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, ret)
}

// Report handles POST /api/items/{id}/report.
func (h *ClaimsHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hidden, err := h.Svc.Report(r.Context(), r.PathValue("id"), actor(r).ID, req.Reason)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]any{"result": "recorded", "hidden": hidden})
}

// ReportReasons handles GET /api/reports/reasons.
func (h *ClaimsHandler) ReportReasons(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, model.ReportReasons)
}

// ListReports handles GET /api/reports (admin), optionally ?item_id=.
func (h *ClaimsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Svc.ListReports(r.Context(), r.URL.Query().Get("item_id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	jsonResponse(w, http.StatusOK, reports)
}
