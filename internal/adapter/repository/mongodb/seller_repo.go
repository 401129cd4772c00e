package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

// ErrSellerNotFound is returned when no user document matches the seller id.
var ErrSellerNotFound = errors.New("seller not found")

// SellerRepository reads seller contact details from the users collection shared
// with the user service.
type SellerRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

func NewSellerRepository(db *mongo.Database, log *logger.Logger) *SellerRepository {
	return &SellerRepository{
		collection: db.Collection("users"),
		logger:     log,
	}
}

// GetEmailByID accepts both ObjectID hex ids and plain string ids.
func (r *SellerRepository) GetEmailByID(ctx context.Context, sellerID string) (string, error) {
	var id interface{} = sellerID
	if objID, err := primitive.ObjectIDFromHex(sellerID); err == nil {
		id = objID
	}

	var userDoc struct {
		Email string `bson:"email"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&userDoc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Info("SellerRepository.GetEmailByID: seller not found", "seller_id", sellerID)
			return "", ErrSellerNotFound
		}
		r.logger.Error("SellerRepository.GetEmailByID: failed to find seller", "seller_id", sellerID, "error", err.Error())
		return "", fmt.Errorf("failed to find seller: %w", err)
	}
	return userDoc.Email, nil
}
