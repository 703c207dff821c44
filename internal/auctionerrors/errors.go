package auctionerrors

import "errors"

// Storage-level errors
var (
	ErrNotFound = errors.New("not found")
	ErrNoBids   = errors.New("no bids placed yet")
)

// Business-rule errors
var (
	ErrValidation    = errors.New("invalid input")
	ErrAuctionClosed = errors.New("auction closed")
	ErrBidTooLow     = errors.New("bid below minimum increment")
	ErrConflict      = errors.New("bid no longer valid, please retry")
)

// Account errors
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
