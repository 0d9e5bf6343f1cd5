package repository

import (
	"context"
	"fmt"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
)

// UserRepository handles user data access
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		CREATE user CONTENT {
			email: $email,
			name: $name,
			nickname: $nickname,
			phone: IF $phone != "" THEN $phone ELSE NONE END,
			hash: IF $hash IS NOT NULL THEN $hash ELSE NONE END,
			user_img: IF $user_img != "" THEN $user_img ELSE NONE END,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"email":    user.Email,
		"name":     user.Name,
		"nickname": user.Nickname,
		"phone":    user.Phone,
		"hash":     ptrToNone(user.Hash),
		"user_img": user.UserImg,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email or nickname already exists", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	user.ID = created.ID
	user.CreatedOn = created.CreatedOn
	user.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT * FROM type::record($id)`
	vars := map[string]interface{}{"id": id}

	return parseUserResult(r.db.QueryOne(ctx, query, vars))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT * FROM user WHERE email = $email LIMIT 1`
	vars := map[string]interface{}{"email": email}

	return parseUserResult(r.db.QueryOne(ctx, query, vars))
}

// GetByNickname retrieves a user by nickname
func (r *UserRepository) GetByNickname(ctx context.Context, nickname string) (*model.User, error) {
	query := `SELECT * FROM user WHERE nickname = $nickname LIMIT 1`
	vars := map[string]interface{}{"nickname": nickname}

	return parseUserResult(r.db.QueryOne(ctx, query, vars))
}

// GetByNameAndPhone retrieves the account registered with a name and phone
func (r *UserRepository) GetByNameAndPhone(ctx context.Context, name, phone string) (*model.User, error) {
	query := `SELECT * FROM user WHERE name = $name AND phone = $phone LIMIT 1`
	vars := map[string]interface{}{
		"name":  name,
		"phone": phone,
	}

	return parseUserResult(r.db.QueryOne(ctx, query, vars))
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	query := `UPDATE type::record($id) SET hash = $hash, updated_on = time::now()`
	vars := map[string]interface{}{
		"id":   userID,
		"hash": hash,
	}

	return r.db.Execute(ctx, query, vars)
}

// TouchLogin records the time of a successful login
func (r *UserRepository) TouchLogin(ctx context.Context, userID string) error {
	query := `UPDATE type::record($id) SET login_on = time::now()`
	vars := map[string]interface{}{"id": userID}

	return r.db.Execute(ctx, query, vars)
}

func parseUserResult(result interface{}, err error) (*model.User, error) {
	user, err := decodeOne[model.User](result, err)
	if err != nil || user == nil {
		return user, err
	}

	// Hash is skipped by json:"-", read it from the raw record
	if data, err := unwrapRecord(result); err == nil {
		if h, ok := data["hash"].(string); ok && h != "" {
			user.Hash = &h
		}
	}
	return user, nil
}
