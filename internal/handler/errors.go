package handler

import "errors"

var (
	ErrMerchantNotFound = errors.New("merchant not found")

	ErrInvalidToken = errors.New("this link is invalid or has expired")

	ErrAccountNotActive      = errors.New("your account cannot perform this action at this time")
	ErrActiveSessionExists   = errors.New("you already have an arrival session in progress")
	ErrSessionExpired        = errors.New("this arrival session has expired")
	ErrSessionNotConfirmable = errors.New("this arrival session is not awaiting confirmation")
	ErrPerkNotRedeemable     = errors.New("this perk cannot be redeemed right now")
	ErrOutsideServiceArea    = errors.New("no charger found near this location")
)
