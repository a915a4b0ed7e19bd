package domain

import (
	"errors"

	"github.com/Hollow93/social-casino/pkg/service"
)

var (
	ErrTooLate           = errors.New("too late to bet")
	ErrSlotTaken         = errors.New("bet for this panel already placed")
	ErrInvalidPanel      = errors.New("invalid panel")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidAutoCash   = errors.New("auto cash-out must be at least 1.00")
	ErrBetNotFound       = errors.New("bet not found")
	ErrInsufficientFunds = service.ErrInsufficientFunds
)

// UserMessage is the text shown to the player for a bet error
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrTooLate):
		return "Too late to bet."
	case errors.Is(err, ErrSlotTaken):
		return "Bet for this panel already placed."
	case errors.Is(err, ErrInsufficientFunds):
		return "Not enough crystals."
	case errors.Is(err, ErrInvalidPanel):
		return "Invalid panel."
	case errors.Is(err, ErrInvalidAmount):
		return "Invalid bet amount."
	case errors.Is(err, ErrInvalidAutoCash):
		return "Auto cash-out must be at least 1.00x."
	default:
		return "Bet failed, please try again."
	}
}
