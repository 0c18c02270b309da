package store

import (
	"testing"
	"time"

	"auction-core/internal/domain"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedLot(s *LotStore) *domain.Lot {
	lot := &domain.Lot{
		ID:            "lot-1",
		AuctionID:     "auction-1",
		StartingPrice: 100,
		Increment:     10,
		CurrentBid:    100,
		Status:        domain.LotOpen,
		EndTime:       baseTime.Add(time.Hour),
	}
	s.PutLot(lot)
	return lot
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewLotStore()
	seedLot(s)

	snap, err := s.Snapshot("lot-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Mutating the snapshot must not leak into the store
	snap.CurrentBid = 999
	snap.Bids = append(snap.Bids, domain.Bid{BidderID: "x", Amount: 999})

	again, err := s.Snapshot("lot-1")
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if again.CurrentBid != 100 {
		t.Errorf("store current bid = %.2f, mutation leaked", again.CurrentBid)
	}
	if len(again.Bids) != 0 {
		t.Errorf("store bid history length = %d, mutation leaked", len(again.Bids))
	}
}

func TestSnapshotUnknownLot(t *testing.T) {
	s := NewLotStore()
	if _, err := s.Snapshot("nope"); err != domain.ErrLotNotFound {
		t.Errorf("got %v, want ErrLotNotFound", err)
	}
}

func TestCommitBumpsVersion(t *testing.T) {
	s := NewLotStore()
	seedLot(s)

	snap, _ := s.Snapshot("lot-1")
	snap.CurrentBid = 110
	snap.Bids = append(snap.Bids, domain.Bid{BidderID: "bidder-a", Amount: 110})

	version, err := s.Commit(snap)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	committed, _ := s.Snapshot("lot-1")
	if committed.Version != 1 {
		t.Errorf("committed version = %d, want 1", committed.Version)
	}
	if committed.CurrentBid != 110 {
		t.Errorf("committed current bid = %.2f, want 110", committed.CurrentBid)
	}
	if len(committed.Bids) != 1 {
		t.Errorf("committed bid history length = %d, want 1", len(committed.Bids))
	}
}

func TestCommitRejectsStaleVersion(t *testing.T) {
	s := NewLotStore()
	seedLot(s)

	first, _ := s.Snapshot("lot-1")
	second, _ := s.Snapshot("lot-1")

	first.CurrentBid = 110
	if _, err := s.Commit(first); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// Second snapshot was taken at version 0; its commit must lose
	second.CurrentBid = 120
	if _, err := s.Commit(second); err == nil {
		t.Fatal("stale commit accepted")
	}

	committed, _ := s.Snapshot("lot-1")
	if committed.CurrentBid != 110 {
		t.Errorf("current bid = %.2f, stale commit overwrote state", committed.CurrentBid)
	}
}

func TestCommitRejectsEndTimeRegression(t *testing.T) {
	s := NewLotStore()
	lot := seedLot(s)

	snap, _ := s.Snapshot("lot-1")
	snap.EndTime = lot.EndTime.Add(-time.Minute)

	if _, err := s.Commit(snap); err == nil {
		t.Fatal("end time regression accepted")
	}

	// Forward movement is fine
	snap, _ = s.Snapshot("lot-1")
	snap.EndTime = lot.EndTime.Add(time.Minute)
	if _, err := s.Commit(snap); err != nil {
		t.Errorf("forward end time rejected: %v", err)
	}
}

func TestCommitUnknownLot(t *testing.T) {
	s := NewLotStore()
	if _, err := s.Commit(&domain.Lot{ID: "nope"}); err != domain.ErrLotNotFound {
		t.Errorf("got %v, want ErrLotNotFound", err)
	}
}

func TestPutLotLinksAuction(t *testing.T) {
	s := NewLotStore()
	s.PutAuction(&domain.Auction{ID: "auction-1", Status: domain.AuctionPending})
	seedLot(s)

	auction, err := s.Auction("auction-1")
	if err != nil {
		t.Fatalf("auction: %v", err)
	}
	if len(auction.LotIDs) != 1 || auction.LotIDs[0] != "lot-1" {
		t.Errorf("auction lot ids = %v, want [lot-1]", auction.LotIDs)
	}
}

func TestAllLotsClosed(t *testing.T) {
	s := NewLotStore()
	s.PutAuction(&domain.Auction{ID: "auction-1"})

	if s.AllLotsClosed("auction-1") {
		t.Error("auction with no lots reported all closed")
	}

	seedLot(s)
	if s.AllLotsClosed("auction-1") {
		t.Error("open lot reported closed")
	}

	snap, _ := s.Snapshot("lot-1")
	snap.Status = domain.LotClosed
	if _, err := s.Commit(snap); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !s.AllLotsClosed("auction-1") {
		t.Error("closed lot not reported closed")
	}
}
