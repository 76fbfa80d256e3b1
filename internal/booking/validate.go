package booking

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const maxStayNights = 30

var validate = validator.New()

// ruleFromValidation turns the first failed struct tag into the rule it enforces.
func ruleFromValidation(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err
	}

	switch fieldErrors[0].Field() {
	case "GuestCount":
		return newRuleError(ReasonGuestCountOutOfRange)
	case "Currency":
		return newRuleError(ReasonInvalidCurrency)
	case "RoomID":
		return newRuleError(ReasonRoomIDRequired)
	case "ClientID":
		return newRuleError(ReasonClientIDRequired)
	case "Number":
		return newRuleError(ReasonRoomNumberRequired)
	case "Capacity":
		return newRuleError(ReasonInvalidCapacity)
	}

	return newRuleError(fieldErrors[0].Error())
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// validateStay checks the date rules shared by create and update and returns the stay
// normalized to calendar days.
func validateStay(now, checkIn, checkOut time.Time) (time.Time, time.Time, error) {
	checkIn, checkOut = truncateDay(checkIn), truncateDay(checkOut)

	if checkIn.Before(truncateDay(now)) {
		return checkIn, checkOut, newRuleError(ReasonCheckInInPast)
	}

	if !checkOut.After(checkIn) {
		return checkIn, checkOut, newRuleError(ReasonCheckOutBeforeCheckIn)
	}

	if nightsBetween(checkIn, checkOut) > maxStayNights {
		return checkIn, checkOut, newRuleError(ReasonStayTooLong)
	}

	return checkIn, checkOut, nil
}

func (in *CreateInput) validate(now time.Time) error {
	in.RoomID = strings.TrimSpace(in.RoomID)
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.Currency = normalizeCurrency(in.Currency)

	var err error

	if in.CheckIn, in.CheckOut, err = validateStay(now, in.CheckIn, in.CheckOut); err != nil {
		return err
	}

	if err := validate.Struct(in); err != nil {
		return ruleFromValidation(err)
	}

	return nil
}

func (in *UpdateInput) validate(now time.Time) error {
	in.Currency = normalizeCurrency(in.Currency)

	var err error

	if in.CheckIn, in.CheckOut, err = validateStay(now, in.CheckIn, in.CheckOut); err != nil {
		return err
	}

	if err := validate.Struct(in); err != nil {
		return ruleFromValidation(err)
	}

	return nil
}

func (in *RoomInput) validate() error {
	in.Number = strings.TrimSpace(in.Number)
	in.Currency = normalizeCurrency(in.Currency)
	in.Type = RoomType(strings.ToUpper(strings.TrimSpace(string(in.Type))))

	if err := validate.Struct(in); err != nil {
		return ruleFromValidation(err)
	}

	if !in.Type.Valid() {
		return newRuleError(ReasonInvalidRoomType)
	}

	if !in.NightlyRate.IsPositive() {
		return newRuleError(ReasonInvalidRate)
	}

	// Storage keeps rates as numeric(12,2).
	if !in.NightlyRate.Equal(in.NightlyRate.Round(2)) { //nolint:gomnd
		return newRuleError(ReasonInvalidRateScale)
	}

	return nil
}
