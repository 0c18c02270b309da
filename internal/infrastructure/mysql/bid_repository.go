package mysql

import (
	"context"
	"database/sql"
	"time"

	"auction-core/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) SaveBid(ctx context.Context, lotID string, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (lot_id, bidder_id, amount, accepted_at, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		lotID, bid.BidderID, bid.Amount, bid.AcceptedAt, time.Now())
	return err
}

func (r *MySQLBidRepository) GetBidHistory(ctx context.Context, lotID string) ([]*domain.Bid, error) {
	query := `
        SELECT bidder_id, amount, accepted_at
        FROM bids
        WHERE lot_id = ?
        ORDER BY accepted_at ASC, amount ASC
    `

	rows, err := r.db.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.BidderID, &bid.Amount, &bid.AcceptedAt); err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
