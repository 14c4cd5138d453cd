package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/yoockh/staffbook/internal/models"
	"github.com/yoockh/staffbook/internal/repositories"
	"github.com/yoockh/staffbook/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const EmployeesCollection = "employees"

// employeeDoc is the stored layout: ObjectID _id and camelCase field names.
type employeeDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Phone      string             `bson:"phone"`
	Department string             `bson:"department"`
	Type       string             `bson:"type"`
	ProfilePic string             `bson:"profilePic"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

func (d employeeDoc) toModel() models.Employee {
	return models.Employee{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Email:      d.Email,
		Phone:      d.Phone,
		Department: d.Department,
		Type:       models.EmployeeType(d.Type),
		ProfilePic: d.ProfilePic,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

type employeeRepo struct {
	col *mongo.Collection
}

func NewEmployeeRepo(db *mongo.Database) repositories.EmployeeRepository {
	return &employeeRepo{col: db.Collection(EmployeesCollection)}
}

func (r *employeeRepo) List(ctx context.Context) ([]models.Employee, error) {
	return r.find(ctx, bson.M{})
}

func (r *employeeRepo) Search(ctx context.Context, q string) ([]models.Employee, error) {
	// q is matched literally; an empty pattern matches every document
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"type": pattern},
	}})
}

func (r *employeeRepo) find(ctx context.Context, filter bson.M) ([]models.Employee, error) {
	cur, err := r.col.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []employeeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]models.Employee, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	var d employeeDoc
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e := d.toModel()
	return &e, nil
}

func (r *employeeRepo) Insert(ctx context.Context, e *models.Employee) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	d := employeeDoc{
		ID:         primitive.NewObjectID(),
		Name:       e.Name,
		Email:      e.Email,
		Phone:      e.Phone,
		Department: e.Department,
		Type:       string(e.Type),
		ProfilePic: e.ProfilePic,
		CreatedAt:  e.CreatedAt,
	}
	if _, err := r.col.InsertOne(ctx, d); err != nil {
		return err
	}
	e.ID = d.ID.Hex()
	return nil
}

func (r *employeeRepo) Update(ctx context.Context, id string, f models.EmployeeFields, profilePic string) (*models.Employee, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	set := bson.M{
		"name":       f.Name,
		"email":      f.Email,
		"phone":      f.Phone,
		"department": f.Department,
		"type":       string(f.Type),
	}
	if profilePic != "" {
		set["profilePic"] = profilePic
	}

	var d employeeDoc
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e := d.toModel()
	return &e, nil
}

func (r *employeeRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return utils.ErrNotFound
	}

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *employeeRepo) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, readpref.Primary())
}
