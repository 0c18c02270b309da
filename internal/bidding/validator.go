package bidding

import (
	"auction-core/internal/domain"
)

// Validate decides accept/reject for a proposed bid against a committed lot
// snapshot. Pure: no side effects, no clock, no I/O. Same inputs always
// produce the same decision.
//
// Rules, in order:
//  1. lot must be open or closing
//  2. amount must be >= current bid + increment (exact equality accepted)
//  3. the current highest bidder may not outbid themselves
func Validate(lot *domain.Lot, bidderID string, amount float64) domain.RejectReason {
	if !lot.Status.AcceptingBids() {
		return domain.RejectLotNotAcceptingBids
	}
	if amount < lot.MinimumBid() {
		return domain.RejectBidTooLow
	}
	if lot.HighestBidder() == bidderID {
		return domain.RejectAlreadyHighestBidder
	}
	return domain.RejectNone
}
