// Package store — MongoDB-backed Store implementation. Production
// connections, CMDs, CMSes, secrets and event-access records all live in
// one database, one collection per entity, mirroring the document
// layout of the reference unified-API gateway this package generalizes.
package store

import (
	"context"
	"time"

	"github.com/unigate/gateway/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// caseInsensitiveCollation matches values regardless of ASCII case, used
// on platform/action lookups so catalog authors don't have to worry about
// casing drift between a CMD's platform field and a connection's.
var caseInsensitiveCollation = &options.Collation{
	Locale:   "en",
	Strength: 2,
}

// MongoStore implements Store backed by a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to the given MongoDB URI and returns a Store
// backed by the named database.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) connections() *mongo.Collection { return s.db.Collection("connections") }
func (s *MongoStore) definitions() *mongo.Collection { return s.db.Collection("connection_definitions") }
func (s *MongoStore) cmds() *mongo.Collection        { return s.db.Collection("connection_model_definitions") }
func (s *MongoStore) schemas() *mongo.Collection      { return s.db.Collection("connection_model_schemas") }
func (s *MongoStore) secrets() *mongo.Collection      { return s.db.Collection("secrets") }
func (s *MongoStore) eventAccesses() *mongo.Collection { return s.db.Collection("event_accesses") }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Migrate ensures the indexes the query patterns above rely on exist:
// a unique connection key, a case-insensitive platform+action lookup on
// CMDs, and a case-insensitive platform+model lookup on CMSes.
func (s *MongoStore) Migrate(ctx context.Context) error {
	if _, err := s.connections().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.cmds().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "actionName", Value: 1}},
		Options: options.Index().SetCollation(caseInsensitiveCollation),
	}); err != nil {
		return err
	}
	if _, err := s.schemas().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "mapping.commonModelName", Value: 1}},
		Options: options.Index().SetCollation(caseInsensitiveCollation),
	}); err != nil {
		return err
	}
	if _, err := s.eventAccesses().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "accessKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	return nil
}

// ── Connection Store ─────────────────────────────────────────

func (s *MongoStore) ListConnections(ctx context.Context, environment string, ownership Ownership, filter ListFilter) ([]models.Connection, error) {
	q := bson.M{"recordMetadata.active": true}
	if environment != "" {
		q["environment"] = environment
	}
	if ownership.ClientID != "" {
		q["ownership.clientId"] = ownership.ClientID
	}
	if ownership.OrganizationID != "" {
		q["ownership.organizationId"] = ownership.OrganizationID
	}
	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	cur, err := s.connections().Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var result []models.Connection
	if err := cur.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *MongoStore) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	var c models.Connection
	err := s.connections().FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "connection", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) GetConnectionByKey(ctx context.Context, key string) (*models.Connection, error) {
	var c models.Connection
	err := s.connections().FindOne(ctx, bson.M{"key": key}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "connection", Key: key}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) CreateConnection(ctx context.Context, conn *models.Connection) error {
	conn.RecordMetadata.Active = true
	_, err := s.connections().InsertOne(ctx, conn)
	return err
}

func (s *MongoStore) UpdateConnection(ctx context.Context, conn *models.Connection) error {
	res, err := s.connections().ReplaceOne(ctx, bson.M{"_id": conn.ID}, conn)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &ErrNotFound{Entity: "connection", Key: conn.ID}
	}
	return nil
}

func (s *MongoStore) DeleteConnection(ctx context.Context, id string) error {
	res, err := s.connections().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"recordMetadata.active": false}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &ErrNotFound{Entity: "connection", Key: id}
	}
	return nil
}

// ── Connection Definition Store ──────────────────────────────

func (s *MongoStore) ListConnectionDefinitions(ctx context.Context) ([]models.ConnectionDefinition, error) {
	cur, err := s.definitions().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var result []models.ConnectionDefinition
	if err := cur.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *MongoStore) GetConnectionDefinition(ctx context.Context, platform string) (*models.ConnectionDefinition, error) {
	var d models.ConnectionDefinition
	err := s.definitions().FindOne(ctx, bson.M{"platform": platform}, options.FindOne().SetCollation(caseInsensitiveCollation)).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "connection_definition", Key: platform}
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *MongoStore) UpsertConnectionDefinition(ctx context.Context, def *models.ConnectionDefinition) error {
	_, err := s.definitions().ReplaceOne(ctx,
		bson.M{"platform": def.Platform},
		def,
		options.Replace().SetUpsert(true),
	)
	return err
}

// ── CMD Store ─────────────────────────────────────────────────

func (s *MongoStore) ListCMDs(ctx context.Context, platform string) ([]models.ConnectionModelDefinition, error) {
	cur, err := s.cmds().Find(ctx, bson.M{"platform": platform}, options.Find().SetCollation(caseInsensitiveCollation))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var result []models.ConnectionModelDefinition
	if err := cur.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *MongoStore) GetCMD(ctx context.Context, platform, actionName string) (*models.ConnectionModelDefinition, error) {
	var c models.ConnectionModelDefinition
	err := s.cmds().FindOne(ctx,
		bson.M{"platform": platform, "actionName": actionName},
		options.FindOne().SetCollation(caseInsensitiveCollation),
	).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "connection_model_definition", Key: cmdKey(platform, actionName)}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) GetCMDByID(ctx context.Context, id string) (*models.ConnectionModelDefinition, error) {
	var c models.ConnectionModelDefinition
	err := s.cmds().FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "connection_model_definition", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) UpsertCMD(ctx context.Context, cmd *models.ConnectionModelDefinition) error {
	_, err := s.cmds().ReplaceOne(ctx, bson.M{"_id": cmd.ID}, cmd, options.Replace().SetUpsert(true))
	return err
}

// ── CMS Store ─────────────────────────────────────────────────

func (s *MongoStore) GetCMS(ctx context.Context, platform, commonModelName string) (*models.ConnectionModelSchema, error) {
	var cms models.ConnectionModelSchema
	err := s.schemas().FindOne(ctx,
		bson.M{"platform": platform, "mapping.commonModelName": commonModelName},
		options.FindOne().SetCollation(caseInsensitiveCollation),
	).Decode(&cms)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "connection_model_schema", Key: platform + ":" + commonModelName}
	}
	if err != nil {
		return nil, err
	}
	return &cms, nil
}

func (s *MongoStore) UpsertCMS(ctx context.Context, cms *models.ConnectionModelSchema) error {
	_, err := s.schemas().ReplaceOne(ctx, bson.M{"_id": cms.ID}, cms, options.Replace().SetUpsert(true))
	return err
}

// ── Secret Store ──────────────────────────────────────────────

func (s *MongoStore) GetSecret(ctx context.Context, id string) (*models.Secret, error) {
	var sec models.Secret
	err := s.secrets().FindOne(ctx, bson.M{"_id": id}).Decode(&sec)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "secret", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

func (s *MongoStore) PutSecret(ctx context.Context, secret *models.Secret) error {
	_, err := s.secrets().ReplaceOne(ctx, bson.M{"_id": secret.ID}, secret, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) DeleteSecret(ctx context.Context, id string) error {
	_, err := s.secrets().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ── Event Access Store ────────────────────────────────────────

func (s *MongoStore) GetEventAccessByKey(ctx context.Context, accessKey string) (*models.EventAccess, error) {
	var ea models.EventAccess
	err := s.eventAccesses().FindOne(ctx, bson.M{"accessKey": accessKey}).Decode(&ea)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "event_access", Key: accessKey}
	}
	if err != nil {
		return nil, err
	}
	return &ea, nil
}

// Compile-time check that MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
