package repository

import (
	"context"
	"fmt"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// IdentityRepository handles identity data access
type IdentityRepository struct {
	db database.Database
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db database.Database) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Create creates a new identity linked to a user
func (r *IdentityRepository) Create(ctx context.Context, identity *model.Identity) error {
	query := `
		CREATE identity CONTENT {
			user: type::record($user_id),
			provider: $provider,
			provider_user_id: $provider_user_id,
			provider_email: $provider_email,
			email_verified_by_provider: $email_verified,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"user_id":          identity.UserID,
		"provider":         identity.Provider,
		"provider_user_id": identity.ProviderUserID,
		"provider_email":   ptrToNone(identity.ProviderEmail),
		"email_verified":   identity.EmailVerifiedByProvider,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: identity already exists", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	identity.ID = created.ID
	identity.CreatedOn = created.CreatedOn
	identity.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByProviderID retrieves an identity by provider and provider user ID
func (r *IdentityRepository) GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	query := `
		SELECT *, user AS user_id FROM identity
		WHERE provider = $provider AND provider_user_id = $provider_user_id
		LIMIT 1
	`
	vars := map[string]interface{}{
		"provider":         provider,
		"provider_user_id": providerUserID,
	}

	return decodeOne[model.Identity](r.db.QueryOne(ctx, query, vars))
}

// GetByUserID retrieves all identities for a user
func (r *IdentityRepository) GetByUserID(ctx context.Context, userID string) ([]*model.Identity, error) {
	query := `SELECT *, user AS user_id FROM identity WHERE user = type::record($user_id)`
	vars := map[string]interface{}{"user_id": userID}

	results, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return decodeRows[model.Identity](results)
}
