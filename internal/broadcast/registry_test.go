package broadcast

import (
	"sort"
	"testing"
)

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestInterestedInUnionsLotAndAuction(t *testing.T) {
	r := NewRegistry()
	r.SubscribeLot("conn-1", "lot-1")
	r.SubscribeAuction("conn-2", "auction-1")
	r.SubscribeLot("conn-3", "lot-2")

	got := sorted(r.InterestedIn("lot-1", "auction-1"))
	want := []string{"conn-1", "conn-2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("interested = %v, want %v", got, want)
	}
}

func TestInterestedInDeduplicates(t *testing.T) {
	r := NewRegistry()
	// Watching both the lot and its auction still yields one delivery
	r.SubscribeLot("conn-1", "lot-1")
	r.SubscribeAuction("conn-1", "auction-1")

	got := r.InterestedIn("lot-1", "auction-1")
	if len(got) != 1 || got[0] != "conn-1" {
		t.Errorf("interested = %v, want [conn-1]", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	r := NewRegistry()
	r.SubscribeLot("conn-1", "lot-1")
	r.SubscribeAuction("conn-1", "auction-1")

	r.UnsubscribeLot("conn-1", "lot-1")
	if got := r.InterestedIn("lot-1", ""); len(got) != 0 {
		t.Errorf("still interested after lot unsubscribe: %v", got)
	}
	if got := r.InterestedIn("", "auction-1"); len(got) != 1 {
		t.Errorf("auction interest lost: %v", got)
	}

	r.UnsubscribeAuction("conn-1", "auction-1")
	if got := r.InterestedIn("lot-1", "auction-1"); len(got) != 0 {
		t.Errorf("still interested after full unsubscribe: %v", got)
	}
}

func TestDropRemovesAllSubscriptions(t *testing.T) {
	r := NewRegistry()
	r.SubscribeLot("conn-1", "lot-1")
	r.SubscribeLot("conn-1", "lot-2")
	r.SubscribeAuction("conn-1", "auction-1")
	r.SubscribeLot("conn-2", "lot-1")

	r.Drop("conn-1")

	if got := r.InterestedIn("lot-1", "auction-1"); len(got) != 1 || got[0] != "conn-2" {
		t.Errorf("interested = %v, want [conn-2]", got)
	}
	if got := r.InterestedIn("lot-2", ""); len(got) != 0 {
		t.Errorf("dropped connection still interested: %v", got)
	}
}

func TestDropUnknownConnection(t *testing.T) {
	r := NewRegistry()
	r.Drop("nope") // must not panic
}
