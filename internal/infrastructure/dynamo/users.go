package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-eid-verify/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// UpdateIdentity copies verified identity fields onto an existing profile.
// Empty fields are skipped; contact fields are never touched. A missing
// profile yields domain.ErrNotFound rather than creating one.
func (r *UserRepo) UpdateIdentity(ctx context.Context, userID string, p domain.ProfileUpdate) error {
	updates := map[string]interface{}{}
	for field, v := range map[string]string{
		fieldFirstName:   p.FirstName,
		fieldLastName:    p.LastName,
		fieldBirthdate:   p.Birthdate,
		fieldNationality: p.Nationality,
	} {
		if v != "" {
			updates[field] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}
	updates[fieldUpdatedAt] = time.Now().UTC()

	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return err
}
