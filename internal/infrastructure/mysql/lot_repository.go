package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auction-core/internal/domain"
)

type MySQLLotRepository struct {
	db *sql.DB
}

func NewMySQLLotRepository(db *sql.DB) *MySQLLotRepository {
	return &MySQLLotRepository{db: db}
}

func (r *MySQLLotRepository) CreateLot(ctx context.Context, lot *domain.Lot) error {
	query := `
        INSERT INTO lots (id, auction_id, sequence, starting_price, increment_amount,
                          reserve_price, current_bid, end_time, status, version, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		lot.ID, lot.AuctionID, lot.Sequence, lot.StartingPrice, lot.Increment,
		lot.ReservePrice, lot.CurrentBid, lot.EndTime, int(lot.Status),
		lot.Version, lot.CreatedAt, lot.UpdatedAt)
	return err
}

func (r *MySQLLotRepository) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	query := `
        SELECT id, auction_id, sequence, starting_price, increment_amount, reserve_price,
               current_bid, end_time, status, version, created_at, updated_at
        FROM lots WHERE id = ?
    `

	var lot domain.Lot
	var status int

	err := r.db.QueryRowContext(ctx, query, lotID).Scan(
		&lot.ID, &lot.AuctionID, &lot.Sequence, &lot.StartingPrice, &lot.Increment,
		&lot.ReservePrice, &lot.CurrentBid, &lot.EndTime, &status,
		&lot.Version, &lot.CreatedAt, &lot.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLotNotFound
		}
		return nil, err
	}

	lot.Status = domain.LotStatus(status)
	return &lot, nil
}

func (r *MySQLLotRepository) GetLotsForAuction(ctx context.Context, auctionID string) ([]*domain.Lot, error) {
	query := `
        SELECT id, auction_id, sequence, starting_price, increment_amount, reserve_price,
               current_bid, end_time, status, version, created_at, updated_at
        FROM lots WHERE auction_id = ? ORDER BY sequence ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []*domain.Lot
	for rows.Next() {
		var lot domain.Lot
		var status int

		err := rows.Scan(&lot.ID, &lot.AuctionID, &lot.Sequence, &lot.StartingPrice,
			&lot.Increment, &lot.ReservePrice, &lot.CurrentBid, &lot.EndTime,
			&status, &lot.Version, &lot.CreatedAt, &lot.UpdatedAt)
		if err != nil {
			return nil, err
		}

		lot.Status = domain.LotStatus(status)
		lots = append(lots, &lot)
	}

	return lots, rows.Err()
}

// UpdateLotState persists only the fields the coordinator mutates.
func (r *MySQLLotRepository) UpdateLotState(ctx context.Context, lot *domain.Lot) error {
	query := `
        UPDATE lots SET current_bid = ?, end_time = ?, status = ?, version = ?, updated_at = ?
        WHERE id = ?
    `
	_, err := r.db.ExecContext(ctx, query,
		lot.CurrentBid, lot.EndTime, int(lot.Status), lot.Version, time.Now(), lot.ID)
	return err
}
