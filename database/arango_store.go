package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cognio-so/agt-tester/model"
	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/arangodb/shared"
)

// ArangoStore implements Store on top of an initialized DBConnection.
type ArangoStore struct {
	db DBConnection
}

var _ Store = (*ArangoStore)(nil)

// NewArangoStore wraps db
func NewArangoStore(db DBConnection) *ArangoStore {
	return &ArangoStore{db: db}
}

func (s *ArangoStore) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	meta, err := s.db.Collections[model.CollectionUsers].CreateDocument(ctx, u)
	if err != nil {
		if shared.IsConflict(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.Key = meta.Key
	return nil
}

func (s *ArangoStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `RETURN DOCUMENT("users", @key)`
	u, err := s.queryUser(ctx, query, map[string]interface{}{"key": id})
	if err != nil {
		return nil, err
	}
	if u.Key == "" {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *ArangoStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		FOR u IN users
			FILTER u.email == @email
			LIMIT 1
			RETURN u
	`
	return s.queryUser(ctx, query, map[string]interface{}{"email": strings.ToLower(email)})
}

func (s *ArangoStore) FindUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	query := `
		FOR u IN users
			FILTER u.google_id == @googleId
			LIMIT 1
			RETURN u
	`
	return s.queryUser(ctx, query, map[string]interface{}{"googleId": googleID})
}

func (s *ArangoStore) FindUserByVerificationCode(ctx context.Context, code string, now time.Time) (*model.User, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	query := `
		FOR u IN users
			FILTER u.verification_token == @code
			   AND DATE_TIMESTAMP(u.verification_token_expires_at) > @now
			LIMIT 1
			RETURN u
	`
	return s.queryUser(ctx, query, map[string]interface{}{
		"code": code,
		"now":  now.UnixMilli(),
	})
}

func (s *ArangoStore) FindUserByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	query := `
		FOR u IN users
			FILTER u.reset_password_token == @token
			   AND DATE_TIMESTAMP(u.reset_password_expires_at) > @now
			LIMIT 1
			RETURN u
	`
	return s.queryUser(ctx, query, map[string]interface{}{
		"token": token,
		"now":   now.UnixMilli(),
	})
}

// UpdateUser uses REPLACE so fields cleared on u (tokens, expiries) are
// removed from the stored document.
func (s *ArangoStore) UpdateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(u.Email)
	query := `
		LET doc = DOCUMENT("users", @key)
		FILTER doc != null
		REPLACE doc WITH @user IN users
		RETURN NEW._key
	`
	key, err := s.queryKey(ctx, query, map[string]interface{}{"key": u.Key, "user": u})
	if err != nil {
		if shared.IsConflict(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update user: %w", err)
	}
	if key == "" {
		return ErrNotFound
	}
	return nil
}

func (s *ArangoStore) SetLastActive(ctx context.Context, id string, at *time.Time) error {
	query := `
		LET doc = DOCUMENT("users", @key)
		FILTER doc != null
		UPDATE doc WITH { last_active: @at, updated_at: @updated } IN users OPTIONS { keepNull: true }
		RETURN NEW._key
	`
	updated := time.Now().UTC()
	if at != nil {
		updated = *at
	}
	key, err := s.queryKey(ctx, query, map[string]interface{}{"key": id, "at": at, "updated": updated})
	if err != nil {
		return fmt.Errorf("set last active: %w", err)
	}
	if key == "" {
		return ErrNotFound
	}
	return nil
}

func (s *ArangoStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	query := `
		FOR u IN users
			SORT DATE_TIMESTAMP(u.created_at) DESC
			RETURN u
	`
	return s.queryUsers(ctx, query, nil)
}

func (s *ArangoStore) CountUsers(ctx context.Context, excludeID string) (int, error) {
	query := `
		RETURN LENGTH(
			FOR u IN users
				FILTER u._key != @exclude
				RETURN 1
		)
	`
	var n int
	if err := s.queryOne(ctx, query, map[string]interface{}{"exclude": excludeID}, &n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *ArangoStore) ListUsersPage(ctx context.Context, excludeID string, skip, limit int) ([]*model.User, error) {
	if skip < 0 {
		return []*model.User{}, nil
	}
	query := `
		FOR u IN users
			FILTER u._key != @exclude
			SORT DATE_TIMESTAMP(u.created_at) DESC
			LIMIT @skip, @limit
			RETURN u
	`
	return s.queryUsers(ctx, query, map[string]interface{}{
		"exclude": excludeID,
		"skip":    skip,
		"limit":   limit,
	})
}

func (s *ArangoStore) CountAssignmentsByUser(ctx context.Context, userIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	if len(userIDs) == 0 {
		return counts, nil
	}

	query := `
		FOR a IN user_gpt_assignments
			FILTER a.user_id IN @ids
			COLLECT userId = a.user_id WITH COUNT INTO n
			RETURN { userId, n }
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"ids": userIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	defer cursor.Close()

	for cursor.HasMore() {
		var row struct {
			UserID string `json:"userId"`
			N      int    `json:"n"`
		}
		if _, err := cursor.ReadDocument(ctx, &row); err != nil {
			return nil, fmt.Errorf("read assignment count: %w", err)
		}
		counts[row.UserID] = row.N
	}
	return counts, nil
}

func (s *ArangoStore) CountAssignmentsForUser(ctx context.Context, userID string) (int, error) {
	query := `
		RETURN LENGTH(
			FOR a IN user_gpt_assignments
				FILTER a.user_id == @userId
				RETURN 1
		)
	`
	var n int
	if err := s.queryOne(ctx, query, map[string]interface{}{"userId": userID}, &n); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return n, nil
}

// DeleteUserCascade runs every delete inside one stream transaction; any
// failure aborts the lot.
func (s *ArangoStore) DeleteUserCascade(ctx context.Context, userID string) (model.DeletionResult, error) {
	var res model.DeletionResult

	if _, err := s.FindUserByID(ctx, userID); err != nil {
		return res, err
	}

	cols := arangodb.TransactionCollections{
		Write: []string{
			model.CollectionChatHistories,
			model.CollectionGptAssignments,
			model.CollectionFavorites,
			model.CollectionUsers,
		},
	}

	err := s.db.Database.WithTransaction(ctx, cols, nil, nil, nil, func(ctx context.Context, t arangodb.Transaction) error {
		var err error
		if res.ChatHistory, err = removeOwned(ctx, t, model.CollectionChatHistories, userID); err != nil {
			return err
		}
		if res.GptAssignments, err = removeOwned(ctx, t, model.CollectionGptAssignments, userID); err != nil {
			return err
		}
		if res.Favorites, err = removeOwned(ctx, t, model.CollectionFavorites, userID); err != nil {
			return err
		}

		cursor, err := t.Query(ctx, `REMOVE @key IN users RETURN OLD._key`, &arangodb.QueryOptions{
			BindVars: map[string]interface{}{"key": userID},
		})
		if err != nil {
			return fmt.Errorf("remove user: %w", err)
		}
		defer cursor.Close()
		res.User = cursor.HasMore()
		return nil
	})
	if err != nil {
		return model.DeletionResult{}, fmt.Errorf("cascade delete: %w", err)
	}
	return res, nil
}

func removeOwned(ctx context.Context, t arangodb.Transaction, collection, userID string) (int, error) {
	query := `
		LET removed = (
			FOR d IN @@col
				FILTER d.user_id == @userId
				REMOVE d IN @@col
				RETURN 1
		)
		RETURN LENGTH(removed)
	`
	cursor, err := t.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"@col": collection, "userId": userID},
	})
	if err != nil {
		return 0, fmt.Errorf("remove from %s: %w", collection, err)
	}
	defer cursor.Close()

	var n int
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &n); err != nil {
			return 0, fmt.Errorf("read %s count: %w", collection, err)
		}
	}
	return n, nil
}

func (s *ArangoStore) queryUser(ctx context.Context, query string, bindVars map[string]interface{}) (*model.User, error) {
	var user model.User
	if err := s.queryOne(ctx, query, bindVars, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *ArangoStore) queryUsers(ctx context.Context, query string, bindVars map[string]interface{}) ([]*model.User, error) {
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer cursor.Close()

	users := []*model.User{}
	for cursor.HasMore() {
		var user model.User
		if _, err := cursor.ReadDocument(ctx, &user); err != nil {
			return nil, fmt.Errorf("read user: %w", err)
		}
		users = append(users, &user)
	}
	return users, nil
}

func (s *ArangoStore) queryKey(ctx context.Context, query string, bindVars map[string]interface{}) (string, error) {
	var key string
	err := s.queryOne(ctx, query, bindVars, &key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return key, err
}

// queryOne reads the first result into out, or returns ErrNotFound.
func (s *ArangoStore) queryOne(ctx context.Context, query string, bindVars map[string]interface{}, out interface{}) error {
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return ErrNotFound
	}
	if _, err := cursor.ReadDocument(ctx, out); err != nil {
		return err
	}
	return nil
}
