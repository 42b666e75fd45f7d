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

const clientsCollection = "clients"

// ClientRepository implements ports.ClientRepository. Reads always carry the
// caller's branch scope in the query filter.
type ClientRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewClientRepository(db *mongo.Database, timeout time.Duration) *ClientRepository {
	return &ClientRepository{col: db.Collection(clientsCollection), timeout: orDefault(timeout)}
}

type clientDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	ContactName string             `bson:"contactName,omitempty"`
	Email       string             `bson:"email,omitempty"`
	Branch      string             `bson:"branch"`
	AdminData   *adminDataDocument `bson:"adminData,omitempty"`
	WebData     *webDataDocument   `bson:"webData,omitempty"`
	CyberData   *cyberDataDocument `bson:"cyberData,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type adminDataDocument struct {
	BillingContact string  `bson:"billingContact,omitempty"`
	ContractValue  float64 `bson:"contractValue,omitempty"`
	PaymentTerms   string  `bson:"paymentTerms,omitempty"`
	Notes          string  `bson:"notes,omitempty"`
}

type webDataDocument struct {
	Domain          string   `bson:"domain,omitempty"`
	HostingProvider string   `bson:"hostingProvider,omitempty"`
	Stack           []string `bson:"stack,omitempty"`
}

type cyberDataDocument struct {
	RiskLevel      string     `bson:"riskLevel,omitempty"`
	Scope          []string   `bson:"scope,omitempty"`
	LastAssessment *time.Time `bson:"lastAssessment,omitempty"`
}

func (d *clientDocument) toDomain() *domain.Client {
	c := &domain.Client{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		ContactName: d.ContactName,
		Email:       d.Email,
		Branch:      domain.Branch(d.Branch),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if a := d.AdminData; a != nil {
		c.AdminData = &domain.AdminData{
			BillingContact: a.BillingContact,
			ContractValue:  a.ContractValue,
			PaymentTerms:   a.PaymentTerms,
			Notes:          a.Notes,
		}
	}
	if w := d.WebData; w != nil {
		c.WebData = &domain.WebData{Domain: w.Domain, HostingProvider: w.HostingProvider, Stack: w.Stack}
	}
	if cy := d.CyberData; cy != nil {
		c.CyberData = &domain.CyberData{RiskLevel: cy.RiskLevel, Scope: cy.Scope, LastAssessment: cy.LastAssessment}
	}
	return c
}

// branchScopedFilter matches id inside the allowed branches only.
func branchScopedFilter(id primitive.ObjectID, branches []domain.Branch) bson.M {
	return bson.M{"_id": id, "branch": bson.M{"$in": branchStrings(branches)}}
}

// clientPatchUpdate turns a patch into a $set document. Sections are written
// whole.
func clientPatchUpdate(patch domain.ClientPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.ContactName != nil {
		set["contactName"] = *patch.ContactName
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if a := patch.AdminData; a != nil {
		set["adminData"] = adminDataDocument(*a)
	}
	if w := patch.WebData; w != nil {
		set["webData"] = webDataDocument(*w)
	}
	if cy := patch.CyberData; cy != nil {
		set["cyberData"] = cyberDataDocument(*cy)
	}
	return bson.M{"$set": set}
}

func pageOptions(f domain.BranchFilter, sortKey string) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: 1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}
	return opts
}

func (r *ClientRepository) List(ctx context.Context, f domain.BranchFilter) ([]*domain.Client, error) {
	if len(f.Branches) == 0 {
		return []*domain.Client{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"branch": bson.M{"$in": branchStrings(f.Branches)}}
	cur, err := r.col.Find(ctx, filter, pageOptions(f, "name"))
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	var docs []clientDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode clients: %w", err)
	}

	clients := make([]*domain.Client, len(docs))
	for i := range docs {
		clients[i] = docs[i].toDomain()
	}
	return clients, nil
}

func (r *ClientRepository) FindByID(ctx context.Context, id string, branches []domain.Branch) (*domain.Client, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		return nil, fmt.Errorf("client %s: %w", id, domain.ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc clientDocument
	if err := r.col.FindOne(ctx, branchScopedFilter(oid, branches)).Decode(&doc); err != nil {
		return nil, notFound(err, "find client")
	}
	return doc.toDomain(), nil
}

// Update applies patch and returns the stored document after the write.
func (r *ClientRepository) Update(ctx context.Context, id string, patch domain.ClientPatch) (*domain.Client, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc clientDocument
	err = r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, clientPatchUpdate(patch, time.Now().UTC()), opts).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "update client")
	}
	return doc.toDomain(), nil
}

func (r *ClientRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "branch", Value: 1}, {Key: "name", Value: 1}},
	})
	return err
}
