package broadcast

import (
	"strings"
	"sync"
)

// Registry maps connections to the lots and auctions they watch. Pure
// bookkeeping under its own lock; it holds no business invariants and never
// keeps a connection alive. All subscriptions for a connection disappear on
// Drop.
type Registry struct {
	mu        sync.RWMutex
	byConn    map[string]map[string]struct{} // connID -> interest keys
	byLot     map[string]map[string]struct{} // lotID -> connIDs
	byAuction map[string]map[string]struct{} // auctionID -> connIDs
}

func NewRegistry() *Registry {
	return &Registry{
		byConn:    make(map[string]map[string]struct{}),
		byLot:     make(map[string]map[string]struct{}),
		byAuction: make(map[string]map[string]struct{}),
	}
}

func (r *Registry) SubscribeLot(connID, lotID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(r.byLot, lotID, connID)
	r.addInterest(connID, "lot:"+lotID)
}

func (r *Registry) SubscribeAuction(connID, auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(r.byAuction, auctionID, connID)
	r.addInterest(connID, "auction:"+auctionID)
}

func (r *Registry) UnsubscribeLot(connID, lotID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(r.byLot, lotID, connID)
	r.removeInterest(connID, "lot:"+lotID)
}

func (r *Registry) UnsubscribeAuction(connID, auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(r.byAuction, auctionID, connID)
	r.removeInterest(connID, "auction:"+auctionID)
}

// Drop removes every subscription held by the connection.
func (r *Registry) Drop(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.byConn[connID] {
		if id, ok := strings.CutPrefix(key, "lot:"); ok {
			r.remove(r.byLot, id, connID)
		} else if id, ok := strings.CutPrefix(key, "auction:"); ok {
			r.remove(r.byAuction, id, connID)
		}
	}
	delete(r.byConn, connID)
}

// InterestedIn returns the connections watching the lot directly or via its
// owning auction.
func (r *Registry) InterestedIn(lotID, auctionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for connID := range r.byLot[lotID] {
		seen[connID] = struct{}{}
	}
	for connID := range r.byAuction[auctionID] {
		seen[connID] = struct{}{}
	}

	conns := make([]string, 0, len(seen))
	for connID := range seen {
		conns = append(conns, connID)
	}
	return conns
}

func (r *Registry) add(index map[string]map[string]struct{}, key, connID string) {
	if index[key] == nil {
		index[key] = make(map[string]struct{})
	}
	index[key][connID] = struct{}{}
}

func (r *Registry) remove(index map[string]map[string]struct{}, key, connID string) {
	if conns, ok := index[key]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(index, key)
		}
	}
}

func (r *Registry) addInterest(connID, key string) {
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][key] = struct{}{}
}

func (r *Registry) removeInterest(connID, key string) {
	if interests, ok := r.byConn[connID]; ok {
		delete(interests, key)
		if len(interests) == 0 {
			delete(r.byConn, connID)
		}
	}
}
