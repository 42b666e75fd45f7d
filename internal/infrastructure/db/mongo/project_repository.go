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

const projectsCollection = "projects"

type ProjectRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewProjectRepository(db *mongo.Database, timeout time.Duration) *ProjectRepository {
	return &ProjectRepository{col: db.Collection(projectsCollection), timeout: orDefault(timeout)}
}

type projectDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	ClientID    string             `bson:"clientId,omitempty"`
	Branch      string             `bson:"branch"`
	Status      string             `bson:"status"`
	Description string             `bson:"description,omitempty"`
	DueDate     *time.Time         `bson:"dueDate,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *projectDocument) toDomain() *domain.Project {
	p := &domain.Project{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		ClientID:    d.ClientID,
		Branch:      domain.Branch(d.Branch),
		Status:      domain.ProjectStatus(d.Status),
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		p.DueDate = &due
	}
	return p
}

func projectPatchUpdate(patch domain.ProjectPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.DueDate != nil {
		set["dueDate"] = patch.DueDate.UTC()
	}
	return bson.M{"$set": set}
}

func (r *ProjectRepository) List(ctx context.Context, f domain.BranchFilter) ([]*domain.Project, error) {
	if len(f.Branches) == 0 {
		return []*domain.Project{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"branch": bson.M{"$in": branchStrings(f.Branches)}}
	cur, err := r.col.Find(ctx, filter, pageOptions(f, "name"))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var docs []projectDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}

	projects := make([]*domain.Project, len(docs))
	for i := range docs {
		projects[i] = docs[i].toDomain()
	}
	return projects, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string, branches []domain.Branch) (*domain.Project, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc projectDocument
	if err := r.col.FindOne(ctx, branchScopedFilter(oid, branches)).Decode(&doc); err != nil {
		return nil, notFound(err, "find project")
	}
	return doc.toDomain(), nil
}

func (r *ProjectRepository) Update(ctx context.Context, id string, patch domain.ProjectPatch) (*domain.Project, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc projectDocument
	err = r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, projectPatchUpdate(patch, time.Now().UTC()), opts).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "update project")
	}
	return doc.toDomain(), nil
}

func (r *ProjectRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "branch", Value: 1}, {Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "clientId", Value: 1}}},
	})
	return err
}
