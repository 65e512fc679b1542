package raffle

import "errors"

var (
	ErrNotFound           = errors.New("raffle: not found")
	ErrUnauthorized       = errors.New("raffle: unauthorized")
	ErrInvalidState       = errors.New("raffle: operation not allowed in current state")
	ErrSoldOut            = errors.New("raffle: tickets sold out")
	ErrExpired            = errors.New("raffle: raffle has ended")
	ErrNotYetExpired      = errors.New("raffle: raffle is still running")
	ErrDuplicateTicket    = errors.New("raffle: account already holds a ticket")
	ErrTransferFailed     = errors.New("raffle: transfer failed")
	ErrAlreadyProcessed   = errors.New("raffle: already processed")
	ErrZeroTickets        = errors.New("raffle: no tickets sold")
	ErrInvalidParameters  = errors.New("raffle: invalid parameters")
	ErrPaused             = errors.New("raffle: contract is paused")
	ErrNotInitialized     = errors.New("raffle: contract not initialized")
	ErrAlreadyInitialized = errors.New("raffle: contract already initialized")
	ErrOverflow           = errors.New("raffle: arithmetic overflow")
	ErrInvariant          = errors.New("raffle: invariant violated")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidState, "invalid_state"},
	{ErrSoldOut, "sold_out"},
	{ErrExpired, "expired"},
	{ErrNotYetExpired, "not_yet_expired"},
	{ErrDuplicateTicket, "duplicate_ticket"},
	{ErrTransferFailed, "transfer_failed"},
	{ErrAlreadyProcessed, "already_processed"},
	{ErrZeroTickets, "zero_tickets"},
	{ErrInvalidParameters, "invalid_parameters"},
	{ErrPaused, "paused"},
	{ErrNotInitialized, "not_initialized"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrOverflow, "overflow"},
	{ErrInvariant, "invariant"},
}

// KindOf names the error kind of err: "ok" for nil, "internal" for errors
// that do not wrap one of the package sentinels.
func KindOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
