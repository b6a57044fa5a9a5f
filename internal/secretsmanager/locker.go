// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package secretsmanager

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	multierror "github.com/hashicorp/go-multierror"
	uuid "github.com/hashicorp/go-uuid"

	"github.com/opentofu/docker-credential-secretsmanager/internal/credstore"
)

type dynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var newDynamoDBFromConfig = func(cfg aws.Config, endpoint string) dynamoDBClient {
	return dynamodb.NewFromConfig(cfg, func(options *dynamodb.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(includeProtoIfNecessary(endpoint))
		}
	})
}

// Locker is a credstore.Locker that holds an item in a DynamoDB table while
// the secret is being rewritten. The table must have a string partition key
// named LockID.
type Locker struct {
	client   dynamoDBClient
	table    string
	lockPath string
}

var _ credstore.Locker = (*Locker)(nil)

func (l *Locker) Lock(ctx context.Context, info *credstore.LockInfo) (string, error) {
	ctx, _ = attachLoggerToContext(ctx)

	if info.ID == "" {
		lockID, err := uuid.GenerateUUID()
		if err != nil {
			return "", err
		}

		info.ID = lockID
	}
	info.Path = l.lockPath

	putParams := &dynamodb.PutItemInput{
		Item: map[string]dtypes.AttributeValue{
			"LockID": &dtypes.AttributeValueMemberS{Value: l.lockPath},
			"Info":   &dtypes.AttributeValueMemberS{Value: string(info.Marshal())},
		},
		TableName:           aws.String(l.table),
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	}

	_, err := l.client.PutItem(ctx, putParams)
	if err != nil {
		lockInfo, infoErr := l.getLockInfo(ctx)
		if infoErr != nil {
			merr := multierror.Append(err, infoErr)
			merr.ErrorFormat = credstore.SingleLineErrors
			err = merr
		}

		return "", &credstore.LockError{
			Err:  err,
			Info: lockInfo,
		}
	}

	return info.ID, nil
}

func (l *Locker) Unlock(ctx context.Context, id string) error {
	ctx, _ = attachLoggerToContext(ctx)

	lockErr := &credstore.LockError{}

	lockInfo, err := l.getLockInfo(ctx)
	if err != nil {
		lockErr.Err = fmt.Errorf("failed to retrieve lock info: %w", err)
		return lockErr
	}
	lockErr.Info = lockInfo

	if lockInfo.ID != id {
		lockErr.Err = fmt.Errorf("lock id %q does not match existing lock", id)
		return lockErr
	}

	// The condition makes sure a lock taken over in the meantime is kept.
	params := &dynamodb.DeleteItemInput{
		Key: map[string]dtypes.AttributeValue{
			"LockID": &dtypes.AttributeValueMemberS{Value: l.lockPath},
		},
		TableName:           aws.String(l.table),
		ConditionExpression: aws.String("Info = :info"),
		ExpressionAttributeValues: map[string]dtypes.AttributeValue{
			":info": &dtypes.AttributeValueMemberS{Value: string(lockInfo.Marshal())},
		},
	}
	if _, err := l.client.DeleteItem(ctx, params); err != nil {
		lockErr.Err = err
		return lockErr
	}
	return nil
}

func (l *Locker) getLockInfo(ctx context.Context) (*credstore.LockInfo, error) {
	getParams := &dynamodb.GetItemInput{
		Key: map[string]dtypes.AttributeValue{
			"LockID": &dtypes.AttributeValueMemberS{Value: l.lockPath},
		},
		ProjectionExpression: aws.String("LockID, Info"),
		TableName:            aws.String(l.table),
		ConsistentRead:       aws.Bool(true),
	}

	resp, err := l.client.GetItem(ctx, getParams)
	if err != nil {
		return nil, err
	}

	if len(resp.Item) == 0 {
		return nil, fmt.Errorf("no lock info found for: %q within the DynamoDB table: %s", l.lockPath, l.table)
	}

	var infoData string
	if v, ok := resp.Item["Info"]; ok {
		if v, ok := v.(*dtypes.AttributeValueMemberS); ok {
			infoData = v.Value
		}
	}

	lockInfo := &credstore.LockInfo{}
	if err := json.Unmarshal([]byte(infoData), lockInfo); err != nil {
		return nil, err
	}

	return lockInfo, nil
}
