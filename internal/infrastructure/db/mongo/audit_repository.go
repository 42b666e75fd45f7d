package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/branchdesk/opshub/internal/core/domain"
)

const (
	auditCollection = "audit_events"
	// auditRetention bounds how long audit events are kept.
	auditRetention = 180 * 24 * time.Hour
)

// AuditRepository is an append-only store of audit events keyed by their
// generated uuid.
type AuditRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewAuditRepository(db *mongo.Database, timeout time.Duration) *AuditRepository {
	return &AuditRepository{col: db.Collection(auditCollection), timeout: orDefault(timeout)}
}

type auditDocument struct {
	ID             string    `bson:"_id"`
	Type           string    `bson:"type"`
	At             time.Time `bson:"at"`
	ActorID        string    `bson:"actorId,omitempty"`
	Username       string    `bson:"username,omitempty"`
	Branch         string    `bson:"branch,omitempty"`
	IP             string    `bson:"ip,omitempty"`
	Permission     string    `bson:"permission,omitempty"`
	Resource       string    `bson:"resource,omitempty"`
	ResourceID     string    `bson:"resourceId,omitempty"`
	ResourceBranch string    `bson:"resourceBranch,omitempty"`
	Reason         string    `bson:"reason,omitempty"`
}

func newAuditDocument(e *domain.AuditEvent) *auditDocument {
	return &auditDocument{
		ID:             e.ID,
		Type:           string(e.Type),
		At:             e.At.UTC(),
		ActorID:        e.ActorID,
		Username:       e.Username,
		Branch:         string(e.Branch),
		IP:             e.IP,
		Permission:     string(e.Permission),
		Resource:       e.Resource,
		ResourceID:     e.ResourceID,
		ResourceBranch: string(e.ResourceBranch),
		Reason:         e.Reason,
	}
}

func (d *auditDocument) toDomain() *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:             d.ID,
		Type:           domain.AuditEventType(d.Type),
		At:             d.At.UTC(),
		ActorID:        d.ActorID,
		Username:       d.Username,
		Branch:         domain.Branch(d.Branch),
		IP:             d.IP,
		Permission:     domain.Permission(d.Permission),
		Resource:       d.Resource,
		ResourceID:     d.ResourceID,
		ResourceBranch: domain.Branch(d.ResourceBranch),
		Reason:         d.Reason,
	}
}

// Insert is idempotent on the event id so a redelivered event is not stored
// twice.
func (r *AuditRepository) Insert(ctx context.Context, event *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, newAuditDocument(event)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// auditListFilter mirrors domain.AuditFilter.Matches. A missing
// resourceBranch matches the null entry of $in.
func auditListFilter(f domain.AuditFilter) bson.M {
	filter := bson.M{}
	if f.Type != "" {
		filter["type"] = string(f.Type)
	}
	if f.AllBranches {
		return filter
	}
	resource := bson.A{nil}
	for _, b := range f.Branches {
		resource = append(resource, string(b))
	}
	filter["branch"] = bson.M{"$in": branchStrings(f.Branches)}
	filter["resourceBranch"] = bson.M{"$in": resource}
	return filter
}

// List returns the newest events first.
func (r *AuditRepository) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := r.col.Find(ctx, auditListFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}

	events := make([]*domain.AuditEvent, len(docs))
	for i := range docs {
		events[i] = docs[i].toDomain()
	}
	return events, nil
}

func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "branch", Value: 1}, {Key: "at", Value: -1}}},
	})
	return err
}
