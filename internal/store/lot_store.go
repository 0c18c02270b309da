package store

import (
	"fmt"
	"sync"

	"auction-core/internal/domain"
)

// LotStore is the authoritative in-memory state for auctions and lots.
// Readers always get deep-copied snapshots stamped with the commit version;
// writers replace a lot's state wholesale via Commit, so no reader can ever
// observe a half-applied mutation. Writes flow exclusively through the bid
// acceptance coordinator's serialized path.
type LotStore struct {
	mu       sync.RWMutex
	lots     map[string]*domain.Lot
	auctions map[string]*domain.Auction
}

func NewLotStore() *LotStore {
	return &LotStore{
		lots:     make(map[string]*domain.Lot),
		auctions: make(map[string]*domain.Auction),
	}
}

func (s *LotStore) PutAuction(auction *domain.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[auction.ID] = auction.Clone()
}

func (s *LotStore) Auction(auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return auction.Clone(), nil
}

// PutLot registers a lot's initial state. Subsequent mutations must go
// through Commit.
func (s *LotStore) PutLot(lot *domain.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lots[lot.ID] = lot.Clone()
	if auction, ok := s.auctions[lot.AuctionID]; ok {
		auction.LotIDs = append(auction.LotIDs, lot.ID)
	}
}

// Snapshot returns a fully-committed, deep-copied view of the lot.
func (s *LotStore) Snapshot(lotID string) (*domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[lotID]
	if !ok {
		return nil, domain.ErrLotNotFound
	}
	return lot.Clone(), nil
}

// Commit installs the mutated copy as the new authoritative state in a
// single step and bumps the version. It refuses commits that would violate
// the store invariants: stale base versions (lost-update guard) and end
// times moving backward.
func (s *LotStore) Commit(lot *domain.Lot) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.lots[lot.ID]
	if !ok {
		return 0, domain.ErrLotNotFound
	}
	if lot.Version != current.Version {
		return 0, fmt.Errorf("stale commit for lot %s: base version %d, current %d",
			lot.ID, lot.Version, current.Version)
	}
	if lot.EndTime.Before(current.EndTime) {
		return 0, fmt.Errorf("end time regression for lot %s", lot.ID)
	}

	committed := lot.Clone()
	committed.Version = current.Version + 1
	s.lots[lot.ID] = committed
	return committed.Version, nil
}

func (s *LotStore) LotsForAuction(auctionID string) []*domain.Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lots []*domain.Lot
	for _, lot := range s.lots {
		if lot.AuctionID == auctionID {
			lots = append(lots, lot.Clone())
		}
	}
	return lots
}

// AllLotsClosed reports whether every lot of the auction is terminal; an
// auction cannot be complete before that.
func (s *LotStore) AllLotsClosed(auctionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := false
	for _, lot := range s.lots {
		if lot.AuctionID != auctionID {
			continue
		}
		found = true
		if lot.Status != domain.LotClosed {
			return false
		}
	}
	return found
}

func (s *LotStore) LotIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.lots))
	for id := range s.lots {
		ids = append(ids, id)
	}
	return ids
}
