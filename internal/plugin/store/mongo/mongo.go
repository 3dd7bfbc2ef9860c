package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/model"
	registrymigrate "github.com/chirino/askbox/internal/registry/migrate"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/security"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
)

const (
	colMembers     = "members"
	colScreenNames = "screen_names"
	colMessages    = "messages"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.Store, error) {
			cfg := config.FromContext(ctx)
			opts := options.Client().ApplyURI(cfg.DBURL)
			if cfg.DBMaxOpenConns > 0 {
				opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
			}
			if cfg.DBMaxIdleConns > 0 {
				opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
			}
			client, err := mongo.Connect(opts)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}
			return &MongoStore{
				client:     client,
				db:         client.Database(dbName(cfg)),
				maxRetries: cfg.TxMaxRetries,
			}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Store: "mongo", Order: 100, Migrator: &mongoMigrator{}})
}

func dbName(cfg *config.Config) string {
	if cfg != nil && cfg.DBName != "" {
		return cfg.DBName
	}
	return "askbox"
}

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }
func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(dbName(cfg))

	collections := map[string][]mongo.IndexModel{
		colMembers: nil,
		colScreenNames: {
			{Keys: bson.D{{Key: "uid", Value: 1}}},
		},
		colMessages: {
			{
				Keys:    bson.D{{Key: "uid", Value: 1}, {Key: "message_no", Value: -1}},
				Options: options.Index().SetUnique(true).SetName("unique_message_no_per_user"),
			},
		},
	}

	existing, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("mongo migration: failed to list collections: %w", err)
	}
	present := map[string]bool{}
	for _, name := range existing {
		present[name] = true
	}
	for name, indexes := range collections {
		// Collections must exist before they are written inside a transaction.
		if !present[name] {
			if err := db.CreateCollection(ctx, name); err != nil {
				return fmt.Errorf("mongo migration: failed to create %s: %w", name, err)
			}
		}
		if len(indexes) > 0 {
			if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
				return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
			}
		}
	}

	log.Info("MongoDB schema migration complete")
	return nil
}

// MongoStore implements registrystore.Store using MongoDB multi-document transactions.
type MongoStore struct {
	client     *mongo.Client
	db         *mongo.Database
	maxRetries int
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

type memberDoc struct {
	UID          string    `bson:"_id"`
	Email        string    `bson:"email"`
	DisplayName  string    `bson:"display_name"`
	PhotoURL     string    `bson:"photo_url"`
	MessageCount *int64    `bson:"message_count,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

type screenNameDoc struct {
	ScreenName  string    `bson:"_id"`
	UID         string    `bson:"uid"`
	Email       string    `bson:"email"`
	DisplayName string    `bson:"display_name"`
	PhotoURL    string    `bson:"photo_url"`
	CreatedAt   time.Time `bson:"created_at"`
}

type authorDoc struct {
	DisplayName string `bson:"display_name"`
	PhotoURL    string `bson:"photo_url,omitempty"`
}

type messageDoc struct {
	ID        string     `bson:"_id"`
	UID       string     `bson:"uid"`
	MessageNo int64      `bson:"message_no"`
	Message   string     `bson:"message"`
	CreateAt  time.Time  `bson:"create_at"`
	Author    *authorDoc `bson:"author,omitempty"`
	Reply     *string    `bson:"reply,omitempty"`
	ReplyAt   *time.Time `bson:"reply_at,omitempty"`
	Deny      *bool      `bson:"deny,omitempty"`
}

func (d messageDoc) toModel() model.Message {
	m := model.Message{
		ID:        d.ID,
		OwnerUID:  d.UID,
		Message:   d.Message,
		MessageNo: d.MessageNo,
		CreateAt:  d.CreateAt.UTC(),
		Reply:     d.Reply,
		Deny:      d.Deny,
	}
	if d.ReplyAt != nil {
		at := d.ReplyAt.UTC()
		m.ReplyAt = &at
	}
	if d.Author != nil {
		m.Author = &model.Author{DisplayName: d.Author.DisplayName, PhotoURL: d.Author.PhotoURL}
	}
	return m
}

func (s *MongoStore) members() *mongo.Collection     { return s.db.Collection(colMembers) }
func (s *MongoStore) screenNames() *mongo.Collection { return s.db.Collection(colScreenNames) }
func (s *MongoStore) messages() *mongo.Collection    { return s.db.Collection(colMessages) }

func (s *MongoStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx registrystore.Tx) error) error {
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	for attempt := 0; ; attempt++ {
		err := s.runOnce(ctx, fn, txOpts)
		if err == nil || registrystore.IsDomainError(err) {
			return err
		}
		// WithTransaction already retries transient errors; duplicate keys
		// from a concurrent insert are retried here.
		if attempt >= s.maxRetries || !mongo.IsDuplicateKeyError(err) {
			return err
		}
		if security.TxRetriesTotal != nil {
			security.TxRetriesTotal.WithLabelValues("mongo").Inc()
		}
		log.Debug("Retrying transaction", "store", "mongo", "attempt", attempt+1, "err", err)
	}
}

func (s *MongoStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx registrystore.Tx) error, txOpts *options.TransactionOptionsBuilder) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (interface{}, error) {
		return nil, fn(sc, &mongoTx{store: s, now: time.Now().UTC().Truncate(time.Millisecond)})
	}, txOpts)
	return err
}

func (s *MongoStore) FindHandle(ctx context.Context, screenName string) (*model.Handle, error) {
	var doc screenNameDoc
	err := s.screenNames().FindOne(ctx, bson.D{{Key: "_id", Value: screenName}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find handle: %w", err)
	}
	return &model.Handle{
		ScreenName:  doc.ScreenName,
		UID:         doc.UID,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		PhotoURL:    doc.PhotoURL,
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoTx struct {
	store *MongoStore
	now   time.Time
}

func (t *mongoTx) Now() time.Time { return t.now }

func (t *mongoTx) GetUser(ctx context.Context, uid string) (*model.User, error) {
	var doc memberDoc
	err := t.store.members().FindOne(ctx, bson.D{{Key: "_id", Value: uid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &model.User{
		UID:          doc.UID,
		Email:        doc.Email,
		DisplayName:  doc.DisplayName,
		PhotoURL:     doc.PhotoURL,
		MessageCount: doc.MessageCount,
	}, nil
}

func (t *mongoTx) CreateUser(ctx context.Context, user model.User) error {
	_, err := t.store.members().InsertOne(ctx, memberDoc{
		UID:          user.UID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PhotoURL:     user.PhotoURL,
		MessageCount: user.MessageCount,
		CreatedAt:    t.now,
	})
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (t *mongoTx) CreateHandle(ctx context.Context, handle model.Handle) error {
	var existing screenNameDoc
	err := t.store.screenNames().FindOne(ctx, bson.D{{Key: "_id", Value: handle.ScreenName}}).Decode(&existing)
	switch {
	case err == nil:
		if existing.UID == handle.UID {
			return nil
		}
		return &registrystore.ConflictError{
			Message: "handle already taken",
			Code:    registrystore.ConflictCodeHandleTaken,
			Details: map[string]interface{}{"screenName": handle.ScreenName},
		}
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("get handle: %w", err)
	}

	_, err = t.store.screenNames().InsertOne(ctx, screenNameDoc{
		ScreenName:  handle.ScreenName,
		UID:         handle.UID,
		Email:       handle.Email,
		DisplayName: handle.DisplayName,
		PhotoURL:    handle.PhotoURL,
		CreatedAt:   t.now,
	})
	if err != nil {
		return fmt.Errorf("create handle: %w", err)
	}
	return nil
}

func (t *mongoTx) SetMessageCount(ctx context.Context, uid string, count int64) error {
	res, err := t.store.members().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: uid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "message_count", Value: count}}}},
	)
	if err != nil {
		return fmt.Errorf("set message count: %w", err)
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "user", ID: uid}
	}
	return nil
}

func (t *mongoTx) GetMessage(ctx context.Context, uid string, messageID string) (*model.Message, error) {
	var doc messageDoc
	err := t.store.messages().FindOne(ctx, bson.D{
		{Key: "_id", Value: messageID},
		{Key: "uid", Value: uid},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	m := doc.toModel()
	return &m, nil
}

func (t *mongoTx) InsertMessage(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	doc := messageDoc{
		ID:        msg.ID,
		UID:       msg.OwnerUID,
		MessageNo: msg.MessageNo,
		Message:   msg.Message,
		CreateAt:  msg.CreateAt,
		Reply:     msg.Reply,
		ReplyAt:   msg.ReplyAt,
		Deny:      msg.Deny,
	}
	if msg.Author != nil {
		doc.Author = &authorDoc{DisplayName: msg.Author.DisplayName, PhotoURL: msg.Author.PhotoURL}
	}
	if _, err := t.store.messages().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (t *mongoTx) updateMessage(ctx context.Context, uid, messageID string, set bson.D) error {
	res, err := t.store.messages().UpdateOne(ctx,
		bson.D{{Key: "_id", Value: messageID}, {Key: "uid", Value: uid}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "message", ID: messageID}
	}
	return nil
}

func (t *mongoTx) SetReply(ctx context.Context, uid string, messageID string, reply string, at time.Time) error {
	if err := t.updateMessage(ctx, uid, messageID, bson.D{
		{Key: "reply", Value: reply},
		{Key: "reply_at", Value: at},
	}); err != nil {
		return fmt.Errorf("set reply: %w", err)
	}
	return nil
}

func (t *mongoTx) SetDeny(ctx context.Context, uid string, messageID string, deny bool) error {
	if err := t.updateMessage(ctx, uid, messageID, bson.D{{Key: "deny", Value: deny}}); err != nil {
		return fmt.Errorf("set deny: %w", err)
	}
	return nil
}

func (t *mongoTx) ListMessages(ctx context.Context, uid string, startAt int64, limit int) ([]model.Message, error) {
	cursor, err := t.store.messages().Find(ctx,
		bson.D{
			{Key: "uid", Value: uid},
			{Key: "message_no", Value: bson.D{{Key: "$lte", Value: startAt}}},
		},
		options.Find().
			SetSort(bson.D{{Key: "message_no", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]model.Message, len(docs))
	for i := range docs {
		out[i] = docs[i].toModel()
	}
	return out, nil
}

var _ registrystore.Store = (*MongoStore)(nil)
