package services

import "errors"

var (
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientReserve    = errors.New("insufficient reserve")
	ErrEscrowLocked           = errors.New("group escrow locked pending reconciliation")
	ErrGroupNotActive         = errors.New("group is not active")
	ErrGroupNotJoinable       = errors.New("group is not accepting members")
	ErrGroupFull              = errors.New("group is full")
	ErrAlreadyMember          = errors.New("user is already a member")
	ErrNotMember              = errors.New("user is not a member of this group")
	ErrWrongAmount            = errors.New("contribution amount does not match the group amount")
	ErrAlreadyContributed     = errors.New("member has already contributed this cycle")
	ErrContributionNotPending = errors.New("contribution is not pending")
	ErrContributionStale      = errors.New("contribution is from a previous cycle")
	ErrNotContributionOwner   = errors.New("contribution belongs to another user")
)
