package handlers

import (
	"errors"

	"payfesa/internal/models"
)

var (
	errInvalidAmount     = errors.New("invalid amount")
	errInvalidFrequency  = errors.New("frequency must be weekly, biweekly or monthly")
	errInvalidMaxMembers = errors.New("max_members must be between 2 and 50")
	errInvalidGroupName  = errors.New("group name must be 3 to 60 characters")
)

func validateFrequency(frequency string) error {
	switch frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly, models.FrequencyMonthly:
		return nil
	}
	return errInvalidFrequency
}

func validateMaxMembers(maxMembers int) error {
	if maxMembers < 2 || maxMembers > 50 {
		return errInvalidMaxMembers
	}
	return nil
}

func validateGroupName(name string) error {
	if len(name) < 3 || len(name) > 60 {
		return errInvalidGroupName
	}
	return nil
}
