package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/api/validators"
	"github.com/sparrowretail/shelfline-backend/internal/policy"
	"github.com/sparrowretail/shelfline-backend/pkg/db/models"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

type createPolicyRequest struct {
	EventType  string             `json:"eventType" validate:"required"`
	Conditions []policy.Condition `json:"conditions,omitempty"`
	Actions    []policy.Action    `json:"actions" validate:"required,min=1"`
	Enabled    *bool              `json:"enabled,omitempty"`
}

// CreatePolicy registers an automation rule for the caller's shop.
func CreatePolicy(repo *policy.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		var req createPolicyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventType, err := enums.ParseMutationEventType(req.EventType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event type"))
			return
		}
		for _, cond := range req.Conditions {
			if !cond.Operator.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown condition operator").WithDetails(map[string]any{"operator": cond.Operator}))
				return
			}
		}
		for _, action := range req.Actions {
			if !action.Type.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown action type").WithDetails(map[string]any{"type": action.Type}))
				return
			}
		}

		conditions, err := json.Marshal(req.Conditions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encoding conditions"))
			return
		}
		actions, err := json.Marshal(req.Actions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encoding actions"))
			return
		}

		record := models.Policy{
			ShopID:     tc.ShopID,
			EventType:  eventType,
			Conditions: conditions,
			Actions:    actions,
			Enabled:    req.Enabled == nil || *req.Enabled,
		}
		if err := repo.Create(r.Context(), &record); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// ListPolicies returns every policy registered for the caller's shop.
func ListPolicies(repo *policy.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		policies, err := repo.ListByShop(r.Context(), tc.ShopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policies)
	}
}

// ListPolicyRuns returns recent evaluation outcomes for the caller's shop.
func ListPolicyRuns(engine *policy.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		runs, err := engine.Runs(r.Context(), tc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, runs)
	}
}
