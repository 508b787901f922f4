package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-eid-verify/internal/domain"
)

// VerificationRepo manages identity verification records.
// PK: account_id. One item per account, written only with UpdateItem.
type VerificationRepo struct {
	client    API
	tableName string
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Get(ctx context.Context, accountID string) (*domain.VerificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification record not found: %w", domain.ErrNotFound)
	}
	var rec domain.VerificationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal verification record: %w", err)
	}
	return &rec, nil
}

// Upsert writes rec with a single UpdateItem so repeated or concurrent calls
// converge: every field is overwritten except created_at, which is only set
// on the first write. A nil NationalIDHash removes any stored hash.
func (r *VerificationRepo) Upsert(ctx context.Context, rec *domain.VerificationRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal verification record: %w", err)
	}
	delete(item, fieldAccountID)

	ifAbsent := map[string]types.AttributeValue{}
	if v, ok := item[fieldCreatedAt]; ok {
		ifAbsent[fieldCreatedAt] = v
		delete(item, fieldCreatedAt)
	}
	var remove []string
	if rec.NationalIDHash == nil {
		remove = append(remove, fieldNationalIDHash)
	}

	ue, err := buildUpsertExpr(item, ifAbsent, remove)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAccountID, rec.AccountID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
