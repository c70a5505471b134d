package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/models"
)

// swapDoc is a swap request as stored in MongoDB.
type swapDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	FromUser     string             `bson:"from_user"`
	ToUser       string             `bson:"to_user"`
	SkillOffered string             `bson:"skill_offered"`
	SkillWanted  string             `bson:"skill_wanted"`
	Message      string             `bson:"message"`
	Status       string             `bson:"status"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d *swapDoc) model() models.SwapRequest {
	return models.SwapRequest{
		ID:           models.RequestID(d.ID.Hex()),
		FromUser:     models.UserID(d.FromUser),
		ToUser:       models.UserID(d.ToUser),
		SkillOffered: d.SkillOffered,
		SkillWanted:  d.SkillWanted,
		Message:      d.Message,
		Status:       models.Status(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoLedger stores swap requests in MongoDB.
//
// At most one Pending request per (from_user, to_user) is enforced by a
// partial unique index, so concurrent creates cannot both succeed. Status
// changes are conditional updates on status == Pending.
type MongoLedger struct {
	col   *mongo.Collection
	users ProfileResolver
	now   func() time.Time
}

func NewMongoLedger(db *mongo.Database, users ProfileResolver) *MongoLedger {
	return &MongoLedger{
		col:   db.Collection("swap_requests"),
		users: users,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// EnsureIndexes creates the dedup and listing indexes.
func (l *MongoLedger) EnsureIndexes(ctx context.Context) error {
	_, err := l.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "from_user", Value: 1}, {Key: "to_user", Value: 1}},
			Options: options.Index().
				SetName("one_pending_per_pair").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(models.StatusPending)}),
		},
		{Keys: bson.D{{Key: "from_user", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "to_user", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

func (l *MongoLedger) Create(ctx context.Context, in models.NewSwapRequest) (*models.ResolvedRequest, error) {
	now := l.now()
	doc := swapDoc{
		ID:           primitive.NewObjectID(),
		FromUser:     in.FromUser.String(),
		ToUser:       in.ToUser.String(),
		SkillOffered: in.SkillOffered,
		SkillWanted:  in.SkillWanted,
		Message:      in.Message,
		Status:       string(models.StatusPending),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := l.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.ErrConflict
		}
		return nil, fmt.Errorf("mongo insert: %w", err)
	}
	return resolveCommitted(ctx, l.users, doc.model()), nil
}

func (l *MongoLedger) ListForUser(ctx context.Context, userID models.UserID) ([]models.ResolvedRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	filter := bson.M{"$or": bson.A{
		bson.M{"from_user": userID.String()},
		bson.M{"to_user": userID.String()},
	}}
	cur, err := l.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []swapDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	reqs := make([]models.SwapRequest, 0, len(docs))
	for i := range docs {
		reqs = append(reqs, docs[i].model())
	}
	return resolve(ctx, l.users, reqs)
}

func (l *MongoLedger) SetStatus(ctx context.Context, id models.RequestID, actor models.UserID, status models.Status) (*models.ResolvedRequest, error) {
	oid, err := primitive.ObjectIDFromHex(id.String())
	if err != nil {
		return nil, errs.ErrNotFound
	}

	var cur swapDoc
	if err := l.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&cur); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find request: %w", err)
	}
	if models.UserID(cur.ToUser) != actor {
		return nil, errs.ErrForbidden
	}
	if !models.CanTransition(models.Status(cur.Status), status) {
		return nil, errs.ErrInvalidTransition
	}

	// The filter repeats the preconditions so a concurrent responder cannot
	// overwrite a status that changed after the read above.
	filter := bson.M{"_id": oid, "to_user": actor.String(), "status": string(models.StatusPending)}
	update := bson.M{"$set": bson.M{"status": string(status), "updated_at": l.now()}}
	var updated swapDoc
	err = l.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("mongo update status: %w", err)
	}
	return resolveCommitted(ctx, l.users, updated.model()), nil
}
