package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/mockinterview/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores sessions as documents. Interactions live in their own
// collection and take a per-session sequence number from the counters collection.
type MongoRepository struct {
	sessions     *mongo.Collection
	interactions *mongo.Collection
	reports      *mongo.Collection
	counters     *mongo.Collection
	client       *mongo.Client
}

type reportDocument struct {
	SessionID string        `bson:"_id"`
	Report    models.Report `bson:"report"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	db := client.Database(database)
	return &MongoRepository{
		sessions:     db.Collection("sessions"),
		interactions: db.Collection("interactions"),
		reports:      db.Collection("reports"),
		counters:     db.Collection("counters"),
		client:       client,
	}
}

// EnsureIndexes creates the join code and interaction log indexes
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create session code index: %w", err)
	}

	_, err = r.interactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create interaction index: %w", err)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	if _, err := r.sessions.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		slog.Error("Failed to create session", "error", err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	slog.Info("Session created", "session_id", session.ID, "code", session.Code)
	return nil
}

func (r *MongoRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return r.findSession(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	return r.findSession(ctx, bson.M{"code": code})
}

func (r *MongoRepository) findSession(ctx context.Context, filter bson.M) (*models.Session, error) {
	var session models.Session
	err := r.sessions.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		slog.Error("Failed to find session", "error", err)
		return nil, err
	}
	return &session, nil
}

func (r *MongoRepository) SaveProfile(ctx context.Context, id string, profile models.Profile, status models.SessionStatus) error {
	return r.setFields(ctx, id, bson.M{
		"name":      profile.Name,
		"age":       profile.Age,
		"gender":    profile.Gender,
		"email":     profile.Email,
		"phone":     profile.Phone,
		"education": profile.Education,
		"status":    status,
	})
}

func (r *MongoRepository) SaveInterviewInfo(ctx context.Context, id string, info models.InterviewInfo, status models.SessionStatus) error {
	return r.setFields(ctx, id, bson.M{
		"company":    info.Company,
		"position":   info.Position,
		"self_intro": info.SelfIntro,
		"status":     status,
	})
}

func (r *MongoRepository) SavePersona(ctx context.Context, id string, persona models.Persona, status models.SessionStatus) error {
	return r.setFields(ctx, id, bson.M{"persona": persona, "status": status})
}

func (r *MongoRepository) SaveQuestions(ctx context.Context, id string, questions []models.Question, status models.SessionStatus) error {
	return r.setFields(ctx, id, bson.M{"questions": questions, "status": status})
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return r.setFields(ctx, id, bson.M{"status": status})
}

func (r *MongoRepository) setFields(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = time.Now()
	result, err := r.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		slog.Error("Failed to update session", "error", err, "session_id", id)
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) AppendInteraction(ctx context.Context, interaction *models.Interaction) error {
	seq, err := r.nextSequence(ctx, "interactions:"+interaction.SessionID)
	if err != nil {
		return err
	}
	interaction.ID = seq
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now()
	}

	if _, err := r.interactions.InsertOne(ctx, interaction); err != nil {
		slog.Error("Failed to append interaction", "error", err, "session_id", interaction.SessionID)
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	slog.Info("Interaction saved", "session_id", interaction.SessionID, "turn", interaction.Turn, "followup", interaction.FollowUp)
	return nil
}

func (r *MongoRepository) nextSequence(ctx context.Context, name string) (uint64, error) {
	var counter struct {
		Seq uint64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return counter.Seq, nil
}

func (r *MongoRepository) ListInteractions(ctx context.Context, sessionID string) ([]models.Interaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := r.interactions.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer cursor.Close(ctx)

	var interactions []models.Interaction
	if err := cursor.All(ctx, &interactions); err != nil {
		return nil, fmt.Errorf("failed to decode interactions: %w", err)
	}
	return interactions, nil
}

func (r *MongoRepository) SaveReport(ctx context.Context, sessionID string, report *models.Report) error {
	doc := reportDocument{SessionID: sessionID, Report: *report, UpdatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.reports.ReplaceOne(ctx, bson.M{"_id": sessionID}, doc, opts); err != nil {
		slog.Error("Failed to save report", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetReport(ctx context.Context, sessionID string) (*models.Report, error) {
	var doc reportDocument
	err := r.reports.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &doc.Report, nil
}
