package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/branchdesk/opshub/internal/core/domain"
)

const usersCollection = "users"

// UserRepository implements ports.UserRepository on the users collection.
type UserRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewUserRepository(db *mongo.Database, timeout time.Duration) *UserRepository {
	return &UserRepository{col: db.Collection(usersCollection), timeout: orDefault(timeout)}
}

type userDocument struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Username            string             `bson:"username"`
	Email               string             `bson:"email"`
	FirstName           string             `bson:"firstName,omitempty"`
	LastName            string             `bson:"lastName,omitempty"`
	PasswordHash        string             `bson:"passwordHash"`
	Branch              string             `bson:"branch"`
	RoleID              primitive.ObjectID `bson:"roleId"`
	Status              string             `bson:"status"`
	LastLogin           *time.Time         `bson:"lastLogin,omitempty"`
	FailedLoginAttempts int                `bson:"failedLoginAttempts"`
	CreatedAt           time.Time          `bson:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt"`
}

func (d *userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:                  d.ID.Hex(),
		Username:            d.Username,
		Email:               d.Email,
		FirstName:           d.FirstName,
		LastName:            d.LastName,
		PasswordHash:        d.PasswordHash,
		Branch:              domain.Branch(d.Branch),
		Status:              domain.UserStatus(d.Status),
		FailedLoginAttempts: d.FailedLoginAttempts,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}
	if !d.RoleID.IsZero() {
		u.RoleID = d.RoleID.Hex()
	}
	if d.LastLogin != nil {
		t := d.LastLogin.UTC()
		u.LastLogin = &t
	}
	return u
}

func newUserDocument(u *domain.User) (*userDocument, error) {
	roleID, err := primitive.ObjectIDFromHex(u.RoleID)
	if err != nil {
		return nil, domain.ValidationError("role_id %q is not a valid id", u.RoleID)
	}
	return &userDocument{
		Username:     strings.ToLower(u.Username),
		Email:        strings.ToLower(u.Email),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		Branch:       string(u.Branch),
		RoleID:       roleID,
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}, nil
}

// FindByIdentifier matches username or email. Both are stored lower-case.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id := strings.ToLower(strings.TrimSpace(identifier))
	filter := bson.M{"$or": bson.A{bson.M{"username": id}, bson.M{"email": id}}}

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err, "find user")
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, notFound(err, "find user")
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc, err := newUserDocument(user)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

// userListFilter narrows by branch inside the query. No branches means no
// results.
func userListFilter(f domain.UserFilter) bson.M {
	filter := bson.M{"branch": bson.M{"$in": branchStrings(f.Branches)}}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	return filter
}

func (r *UserRepository) List(ctx context.Context, f domain.UserFilter) ([]*domain.User, error) {
	if len(f.Branches) == 0 {
		return []*domain.User{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	cur, err := r.col.Find(ctx, userListFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, len(docs))
	for i := range docs {
		users[i] = docs[i].toDomain()
	}
	return users, nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"status": string(status), "updatedAt": time.Now().UTC()}})
}

func (r *UserRepository) UpdateRole(ctx context.Context, id, roleID string, branch domain.Branch) error {
	roleOID, err := primitive.ObjectIDFromHex(roleID)
	if err != nil {
		return domain.ValidationError("role_id %q is not a valid id", roleID)
	}
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"roleId":    roleOID,
		"branch":    string(branch),
		"updatedAt": time.Now().UTC(),
	}})
}

func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"lastLogin":           at.UTC(),
		"failedLoginAttempts": 0,
	}})
}

func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string) error {
	return r.updateByID(ctx, id, bson.M{"$inc": bson.M{"failedLoginAttempts": 1}})
}

func (r *UserRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, oid, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// EnsureIndexes creates the unique identifier indexes and the listing index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "branch", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}
