package pg

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/denizrest/selforder/internal/domain"
)

// GetBonusCard looks the card up by number. An unknown card maps to
// ErrCardInvalid rather than ErrNotFound so the client shows the dedicated
// "card invalid" message.
func (r *Repository) GetBonusCard(ctx context.Context, cardNumber string) (*domain.BonusCard, error) {
	var card domain.BonusCard
	err := r.pool.QueryRow(ctx, `
		SELECT card_number, discount_percent, is_active, expires_at
		FROM bonus_cards WHERE card_number = $1
	`, cardNumber).Scan(&card.CardNumber, &card.DiscountPercent, &card.IsActive, &card.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrCardInvalid
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}
