package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/branchdesk/opshub/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second
	indexTimeout   = 30 * time.Second
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// Store bundles the repositories that share one database handle and timeout.
type Store struct {
	Users    *UserRepository
	Roles    *RoleRepository
	Clients  *ClientRepository
	Projects *ProjectRepository
	Audit    *AuditRepository
}

// NewStore builds every repository. timeout bounds each store call.
func NewStore(db *mongo.Database, timeout time.Duration) *Store {
	return &Store{
		Users:    NewUserRepository(db, timeout),
		Roles:    NewRoleRepository(db, timeout),
		Clients:  NewClientRepository(db, timeout),
		Projects: NewProjectRepository(db, timeout),
		Audit:    NewAuditRepository(db, timeout),
	}
}

// EnsureIndexes creates the indexes every collection relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for name, fn := range map[string]func(context.Context) error{
		usersCollection:    s.Users.EnsureIndexes,
		rolesCollection:    s.Roles.EnsureIndexes,
		clientsCollection:  s.Clients.EnsureIndexes,
		projectsCollection: s.Projects.EnsureIndexes,
		auditCollection:    s.Audit.EnsureIndexes,
	} {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return nil
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}

// objectID parses a hex id. Malformed ids cannot match any document, so they
// are reported as not found.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("id %q: %w", id, domain.ErrNotFound)
	}
	return oid, nil
}

func branchStrings(bs []domain.Branch) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
