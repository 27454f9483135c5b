package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rail-reservation/config"
	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/go-playground/validator/v10"
)

const seniorAge = 60

// requestValidator checks everything about a booking request that does not
// need the catalog or the ledger.
type requestValidator struct {
	validate *validator.Validate
	cfg      config.AllocationConfig
}

func newRequestValidator(cfg config.AllocationConfig) *requestValidator {
	return &requestValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
	}
}

// normalize fills defaults: general quota, and a booking type that follows the quota.
func normalize(req *model.BookingRequest) {
	if req.Quota == "" {
		req.Quota = model.QuotaGeneral
	}
	if req.BookingType == "" {
		req.BookingType = model.BookingTypeGeneral
		if req.Quota == model.QuotaTatkal {
			req.BookingType = model.BookingTypeTatkal
		}
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
}

// check returns the journey date as a UTC day.
func (v *requestValidator) check(req *model.BookingRequest, now time.Time) (time.Time, error) {
	if err := v.validate.Struct(req); err != nil {
		return time.Time{}, apperrors.InvalidRequest("%s", describe(err))
	}

	journey, err := time.Parse(model.DateLayout, req.JourneyDate)
	if err != nil {
		return time.Time{}, apperrors.InvalidRequest("journey_date %q is not a date", req.JourneyDate)
	}
	journey = model.TruncateDate(journey)
	today := model.TruncateDate(now)

	if !journey.After(today) {
		return time.Time{}, apperrors.InvalidRequest("journey_date %s is not in the future", req.JourneyDate)
	}
	if last := today.AddDate(0, 0, v.cfg.AdvanceBookingDays); journey.After(last) {
		return time.Time{}, apperrors.InvalidRequest("journey_date %s is beyond the %d day booking window",
			req.JourneyDate, v.cfg.AdvanceBookingDays)
	}

	tatkalQuota := req.Quota == model.QuotaTatkal
	tatkalType := req.BookingType == model.BookingTypeTatkal
	if tatkalQuota != tatkalType {
		return time.Time{}, apperrors.InvalidRequest("booking_type %s does not match quota %s", req.BookingType, req.Quota)
	}
	if tatkalQuota {
		if opens := journey.AddDate(0, 0, -v.cfg.TatkalOpenDays); today.Before(opens) {
			return time.Time{}, apperrors.InvalidRequest("tatkal booking for %s opens on %s",
				req.JourneyDate, opens.Format(model.DateLayout))
		}
	}

	if err := checkPassengers(req); err != nil {
		return time.Time{}, err
	}
	return journey, nil
}

func checkPassengers(req *model.BookingRequest) error {
	if len(req.Passengers) == 0 {
		if req.Quota == model.QuotaLadies || req.Quota == model.QuotaSenior {
			return apperrors.InvalidRequest("passenger details are required for the %s quota", req.Quota)
		}
		return nil
	}
	if len(req.Passengers) != req.PassengerCount {
		return apperrors.InvalidRequest("%d passengers listed for passenger_count %d", len(req.Passengers), req.PassengerCount)
	}

	for i, p := range req.Passengers {
		switch req.Quota {
		case model.QuotaLadies:
			if p.Gender != model.GenderFemale {
				return apperrors.InvalidRequest("passenger %d is not eligible for the ladies quota", i+1)
			}
		case model.QuotaSenior:
			if p.Age < seniorAge {
				return apperrors.InvalidRequest("passenger %d is under %d and not eligible for the senior quota", i+1, seniorAge)
			}
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
