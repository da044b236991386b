package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/erazemk/izposoja/internal/model"
)

// Collection names in the MongoDB database.
const (
	CollectionItems      = "items"
	CollectionLoanEvents = "loan_events"
)

// Mongo stores items and loan events in a MongoDB database.
type Mongo struct {
	items  *mongo.Collection
	events *mongo.Collection
}

type itemDoc struct {
	ID                 string     `bson:"_id"`
	Name               string     `bson:"name"`
	ItemCode           string     `bson:"item_code"`
	Category           string     `bson:"category"`
	Description        string     `bson:"description,omitempty"`
	ImageURL           string     `bson:"image_url"`
	Status             string     `bson:"status"`
	DateAdded          time.Time  `bson:"date_added"`
	RecipientName      string     `bson:"recipient_name,omitempty"`
	RecipientMobile    string     `bson:"recipient_mobile,omitempty"`
	IssuerName         string     `bson:"issuer_name,omitempty"`
	IssueDate          *time.Time `bson:"issue_date,omitempty"`
	ExpectedReturnDate *time.Time `bson:"expected_return_date,omitempty"`
	ActualReturnDate   *time.Time `bson:"actual_return_date,omitempty"`
	CollectedBy        string     `bson:"collected_by,omitempty"`
}

func toItemDoc(id string, it model.Item) itemDoc {
	return itemDoc{
		ID:                 id,
		Name:               it.Name,
		ItemCode:           it.ItemCode,
		Category:           it.Category,
		Description:        it.Description,
		ImageURL:           it.ImageURL,
		Status:             string(it.Status),
		DateAdded:          it.DateAdded.UTC(),
		RecipientName:      it.RecipientName,
		RecipientMobile:    it.RecipientMobile,
		IssuerName:         it.IssuerName,
		IssueDate:          it.IssueDate,
		ExpectedReturnDate: it.ExpectedReturnDate,
		ActualReturnDate:   it.ActualReturnDate,
		CollectedBy:        it.CollectedBy,
	}
}

func (d itemDoc) item() model.Item {
	return model.Item{
		ID:          d.ID,
		Name:        d.Name,
		ItemCode:    d.ItemCode,
		Category:    d.Category,
		Description: d.Description,
		ImageURL:    d.ImageURL,
		Status:      docStatus(d.Status),
		DateAdded:   d.DateAdded,
		Loan: model.Loan{
			RecipientName:      d.RecipientName,
			RecipientMobile:    d.RecipientMobile,
			IssuerName:         d.IssuerName,
			IssueDate:          d.IssueDate,
			ExpectedReturnDate: d.ExpectedReturnDate,
			ActualReturnDate:   d.ActualReturnDate,
			CollectedBy:        d.CollectedBy,
		},
	}
}

// docStatus reads a stored status. Documents written before Returned was
// folded into Available still carry it.
func docStatus(s string) model.Status {
	if status, ok := model.ParseStatus(s); ok {
		return status
	}
	return model.Status(s)
}

type loanEventDoc struct {
	ID                 string     `bson:"_id"`
	ItemID             string     `bson:"item_id"`
	ItemName           string     `bson:"item_name"`
	ItemCode           string     `bson:"item_code"`
	Kind               string     `bson:"kind"`
	RecipientName      string     `bson:"recipient_name,omitempty"`
	RecipientMobile    string     `bson:"recipient_mobile,omitempty"`
	IssuerName         string     `bson:"issuer_name,omitempty"`
	CollectedBy        string     `bson:"collected_by,omitempty"`
	IssueDate          *time.Time `bson:"issue_date,omitempty"`
	ExpectedReturnDate *time.Time `bson:"expected_return_date,omitempty"`
	ReturnDate         *time.Time `bson:"return_date,omitempty"`
	RecordedBy         string     `bson:"recorded_by,omitempty"`
	RecordedAt         time.Time  `bson:"recorded_at"`
}

// ConnectMongo connects to the server at uri and returns a backend on the
// named database. The caller disconnects the returned client on shutdown.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("pinging mongo: %w", err)
	}

	m, err := NewMongo(ctx, client.Database(database))
	if err != nil {
		client.Disconnect(ctx)
		return nil, nil, err
	}
	return m, client, nil
}

// NewMongo returns a backend on db and ensures its indexes exist.
func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	m := &Mongo{
		items:  db.Collection(CollectionItems),
		events: db.Collection(CollectionLoanEvents),
	}

	_, err := m.items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "item_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating item indexes: %w", err)
	}
	_, err = m.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "recorded_at", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating loan event indexes: %w", err)
	}
	return m, nil
}

// List returns all items ordered by name.
func (m *Mongo) List(ctx context.Context) ([]model.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.items.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}

	items := make([]model.Item, len(docs))
	for i, d := range docs {
		items[i] = d.item()
	}
	return items, nil
}

// Get returns an item by ID.
func (m *Mongo) Get(ctx context.Context, id string) (*model.Item, error) {
	var doc itemDoc
	err := m.items.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item := doc.item()
	return &item, nil
}

// Add inserts a new item document.
func (m *Mongo) Add(ctx context.Context, item model.Item) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}

	_, err = m.items.InsertOne(ctx, toItemDoc(id, item))
	if mongo.IsDuplicateKeyError(err) {
		return "", ErrDuplicateCode
	}
	if err != nil {
		return "", fmt.Errorf("adding item: %w", err)
	}
	return id, nil
}

// Update sets only the fields named by the patch.
func (m *Mongo) Update(ctx context.Context, id string, patch model.ItemPatch) error {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.ItemCode != nil {
		set["item_code"] = *patch.ItemCode
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.ImageURL != nil {
		set["image_url"] = *patch.ImageURL
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}

	update := bson.M{}
	unset := bson.M{}
	if l := patch.Loan; l != nil {
		loanFields := map[string]any{
			"recipient_name":       l.RecipientName,
			"recipient_mobile":     l.RecipientMobile,
			"issuer_name":          l.IssuerName,
			"collected_by":         l.CollectedBy,
			"issue_date":           l.IssueDate,
			"expected_return_date": l.ExpectedReturnDate,
			"actual_return_date":   l.ActualReturnDate,
		}
		for k, v := range loanFields {
			switch v := v.(type) {
			case string:
				if v == "" {
					unset[k] = ""
				} else {
					set[k] = v
				}
			case *time.Time:
				if v == nil {
					unset[k] = ""
				} else {
					set[k] = v.UTC()
				}
			}
		}
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	filter := bson.M{"_id": id}
	if patch.IfStatus != nil {
		filter["status"] = string(*patch.IfStatus)
		if *patch.IfStatus == model.StatusAvailable {
			filter["status"] = bson.M{"$in": bson.A{string(model.StatusAvailable), "Returned"}}
		}
	}

	var matched int64
	if len(update) == 0 {
		n, err := m.items.CountDocuments(ctx, filter)
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		matched = n
	} else {
		res, err := m.items.UpdateOne(ctx, filter, update)
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		matched = res.MatchedCount
	}
	if matched == 0 && patch.IfStatus != nil {
		n, err := m.items.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("checking item: %w", err)
		}
		if n > 0 {
			return ErrStatusChanged
		}
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an item document.
func (m *Mongo) Delete(ctx context.Context, id string) error {
	res, err := m.items.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLoanEvent inserts an event into the loan_events collection.
func (m *Mongo) RecordLoanEvent(ctx context.Context, ev model.LoanEvent) error {
	ev, err := prepareEvent(ev)
	if err != nil {
		return err
	}

	_, err = m.events.InsertOne(ctx, loanEventDoc{
		ID:                 ev.ID,
		ItemID:             ev.ItemID,
		ItemName:           ev.ItemName,
		ItemCode:           ev.ItemCode,
		Kind:               ev.Kind,
		RecipientName:      ev.RecipientName,
		RecipientMobile:    ev.RecipientMobile,
		IssuerName:         ev.IssuerName,
		CollectedBy:        ev.CollectedBy,
		IssueDate:          ev.IssueDate,
		ExpectedReturnDate: ev.ExpectedReturnDate,
		ReturnDate:         ev.ReturnDate,
		RecordedBy:         ev.RecordedBy,
		RecordedAt:         ev.RecordedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("recording loan event: %w", err)
	}
	return nil
}

// ItemHistory returns the loan events of an item, newest first.
func (m *Mongo) ItemHistory(ctx context.Context, itemID string) ([]model.LoanEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := m.events.Find(ctx, bson.M{"item_id": itemID}, opts)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}

	var docs []loanEventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding loan events: %w", err)
	}

	events := make([]model.LoanEvent, len(docs))
	for i, d := range docs {
		events[i] = model.LoanEvent{
			ID:                 d.ID,
			ItemID:             d.ItemID,
			ItemName:           d.ItemName,
			ItemCode:           d.ItemCode,
			Kind:               d.Kind,
			RecipientName:      d.RecipientName,
			RecipientMobile:    d.RecipientMobile,
			IssuerName:         d.IssuerName,
			CollectedBy:        d.CollectedBy,
			IssueDate:          d.IssueDate,
			ExpectedReturnDate: d.ExpectedReturnDate,
			ReturnDate:         d.ReturnDate,
			RecordedBy:         d.RecordedBy,
			RecordedAt:         d.RecordedAt,
		}
	}
	return events, nil
}
