package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/repository"
)

type subscriberRepositoryImpl struct {
	db querier
}

// NewSubscriberRepository creates a new subscriber repository implementation
func NewSubscriberRepository(pool *pgxpool.Pool) repository.SubscriberRepository {
	return &subscriberRepositoryImpl{db: pool}
}

func (r *subscriberRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscriber, error) {
	query := `
		SELECT id, academy_id, name, email, locale, created_at, deleted_at
		FROM subscribers
		WHERE id = $1
	`
	var s entity.Subscriber
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.AcademyID, &s.Name, &s.Email, &s.Locale, &s.CreatedAt, &s.DeletedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, &domainErrors.NotFoundError{Entity: "subscriber", ID: id.String(), Err: domainErrors.ErrSubscriberNotFound}
		}
		return nil, domainErrors.NewDatabaseError("get subscriber", err)
	}
	return &s, nil
}
