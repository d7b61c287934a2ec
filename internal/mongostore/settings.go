package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/imrishuroy/go-storefront-orders/internal/settings"
)

const settingsID = "store"

type settingsDoc struct {
	ID                string `bson:"_id"`
	settings.Settings `bson:",inline"`
}

// Settings keeps the store settings as one document.
type Settings struct {
	coll *mongo.Collection
}

var _ settings.Store = (*Settings)(nil)

func NewSettings(db *mongo.Database) *Settings {
	return &Settings{coll: db.Collection(SettingsCollection)}
}

func (s *Settings) Get(ctx context.Context) (*settings.Settings, error) {
	var doc settingsDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": settingsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find settings: %w", err)
	}
	return &doc.Settings, nil
}

func (s *Settings) Save(ctx context.Context, st settings.Settings) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": settingsID},
		settingsDoc{ID: settingsID, Settings: st},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
