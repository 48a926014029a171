package handler

import (
	"net/http"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/request"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/validator"
)

type driverHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
}

func NewDriverHandler(db repository.Database, errHandler *errHandler.ErrorRepository) *driverHandler {
	return &driverHandler{
		db:         db,
		errHandler: errHandler,
	}
}

func (h *driverHandler) HandleDriverProfile(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	data := map[string]any{
		"id":           driver.ID,
		"first_name":   driver.FirstName,
		"last_name":    driver.LastName,
		"email":        driver.Email,
		"phone_number": driver.PhoneNumber,
		"plate_number": driver.PlateNumber.String,
		"vin":          driver.Vin.String,
		"status":       driver.Status,
		"created_at":   driver.CreatedAt,
	}

	err := response.JSONOkResponse(w, data, "Profile fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// Vehicle details let us match a driver to Smartcar telemetry and let
// merchants spot the car on arrival.
func (h *driverHandler) HandleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	var input struct {
		PlateNumber string              `json:"plate_number"`
		Vin         string              `json:"vin"`
		Validator   validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.PlateNumber), "Plate number is required")
	input.Validator.Check(validator.MaxRunes(input.PlateNumber, 20), "Plate number is too long")
	input.Validator.Check(validator.MaxRunes(input.Vin, 17), "VIN must not be more than 17 characters")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	err = h.db.Driver().UpdateVehicle(driver.ID, input.PlateNumber, input.Vin)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, nil, "Vehicle details updated", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}
