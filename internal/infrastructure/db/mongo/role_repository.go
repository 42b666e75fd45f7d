package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/branchdesk/opshub/internal/core/domain"
)

const rolesCollection = "roles"

// RoleRepository implements ports.RoleRepository on the roles collection.
type RoleRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewRoleRepository(db *mongo.Database, timeout time.Duration) *RoleRepository {
	return &RoleRepository{col: db.Collection(rolesCollection), timeout: orDefault(timeout)}
}

type roleDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Branch       string             `bson:"branch"`
	Permissions  []string           `bson:"permissions"`
	IsSystemRole bool               `bson:"isSystemRole"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *roleDocument) toDomain() *domain.Role {
	perms := make([]domain.Permission, len(d.Permissions))
	for i, p := range d.Permissions {
		perms[i] = domain.Permission(p)
	}
	return &domain.Role{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Branch:       domain.Branch(d.Branch),
		Permissions:  perms,
		IsSystemRole: d.IsSystemRole,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func newRoleDocument(r *domain.Role) *roleDocument {
	perms := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		perms[i] = string(p)
	}
	return &roleDocument{
		Name:         r.Name,
		Branch:       string(r.Branch),
		Permissions:  perms,
		IsSystemRole: r.IsSystemRole,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r *RoleRepository) FindByID(ctx context.Context, id string) (*domain.Role, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *RoleRepository) FindByName(ctx context.Context, branch domain.Branch, name string) (*domain.Role, error) {
	return r.findOne(ctx, bson.M{"branch": string(branch), "name": name})
}

func (r *RoleRepository) findOne(ctx context.Context, filter bson.M) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc roleDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err, "find role")
	}
	return doc.toDomain(), nil
}

func (r *RoleRepository) List(ctx context.Context, branches []domain.Branch) ([]*domain.Role, error) {
	if len(branches) == 0 {
		return []*domain.Role{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "branch", Value: 1}, {Key: "name", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"branch": bson.M{"$in": branchStrings(branches)}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	var docs []roleDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}

	roles := make([]*domain.Role, len(docs))
	for i := range docs {
		roles[i] = docs[i].toDomain()
	}
	return roles, nil
}

func (r *RoleRepository) Create(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := newRoleDocument(role)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert role: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

// Update replaces the mutable fields of an existing role.
func (r *RoleRepository) Update(ctx context.Context, role *domain.Role) error {
	oid, err := objectID(role.ID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := newRoleDocument(role)
	res, err := r.col.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"name":         doc.Name,
		"permissions":  doc.Permissions,
		"isSystemRole": doc.IsSystemRole,
		"updatedAt":    doc.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("update role: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("role %s: %w", role.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *RoleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "branch", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
