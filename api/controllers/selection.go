package controllers

import (
	"net/http"

	"cloud.google.com/go/civil"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	"github.com/angelmondragon/tourbook-backend/api/validators"
	"github.com/angelmondragon/tourbook-backend/internal/storefront"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

type selectDateRequest struct {
	Date string `json:"date" validate:"required"`
}

type adjustQuantityRequest struct {
	TicketTypeID string `json:"ticket_type_id" validate:"required,max=128"`
	Direction    string `json:"direction" validate:"required,oneof=increase decrease"`
}

type availableDatesResponse struct {
	TourID string       `json:"tour_id"`
	Dates  []civil.Date `json:"dates"`
}

// tourRequest resolves the session id and tour id shared by every selection route.
func tourRequest(r *http.Request) (string, string, error) {
	sessionID, err := sessionIDFromContext(r)
	if err != nil {
		return "", "", err
	}
	tourID, err := validators.PathParam(r, "tourId")
	if err != nil {
		return "", "", err
	}
	return sessionID, tourID, nil
}

func TourDates(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		sessionID, tourID, err := tourRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dates, err := svc.AvailableDates(r.Context(), sessionID, tourID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if dates == nil {
			dates = []civil.Date{}
		}
		responses.WriteSuccess(w, availableDatesResponse{TourID: tourID, Dates: dates})
	}
}

func SelectionFetch(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		sessionID, tourID, err := tourRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Selection(r.Context(), sessionID, tourID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// SelectionDate chooses the day and loads its ticket options. A rejected or
// stale outcome is still a 200; the outcome field tells the client what happened.
func SelectionDate(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		sessionID, tourID, err := tourRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload selectDateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		day, err := validators.ParseDay("date", payload.Date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SelectDate(r.Context(), sessionID, tourID, day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SelectionQuantity(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		sessionID, tourID, err := tourRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		direction, err := validators.ParseDirection("direction", payload.Direction)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		change, err := svc.AdjustQuantity(r.Context(), sessionID, tourID, validators.SanitizeString(payload.TicketTypeID, 128), direction)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

func SelectionPackage(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		sessionID, tourID, err := tourRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		change, err := svc.TogglePackage(r.Context(), sessionID, tourID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

// SelectionCommit moves the current selection into the cart.
func SelectionCommit(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		sessionID, tourID, err := tourRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Commit(r.Context(), sessionID, tourID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func SelectionClear(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		sessionID, tourID, err := tourRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ClearSelection(r.Context(), sessionID, tourID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
