// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package secretsmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

type mockSecret struct {
	value    *string
	current  string
	kmsKeyID string
	tokens   map[string]bool
}

// mockSecretsManager keeps secrets in memory. Version IDs are the client
// request tokens, as they are for the real service.
type mockSecretsManager struct {
	mu      sync.Mutex
	secrets map[string]*mockSecret

	// err, when set, is returned by every call.
	err error

	// beforeWrite runs ahead of every PutSecretValue and CreateSecret, to
	// simulate another client writing in between.
	beforeWrite func(m *mockSecretsManager)

	calls []string
}

func newMockSecretsManager() *mockSecretsManager {
	return &mockSecretsManager{secrets: map[string]*mockSecret{}}
}

// set stores a new version of a secret as another client would.
func (m *mockSecretsManager) set(id, value, version string) {
	sec, ok := m.secrets[id]
	if !ok {
		sec = &mockSecret{tokens: map[string]bool{}}
		m.secrets[id] = sec
	}
	sec.value = aws.String(value)
	sec.current = version
	sec.tokens[version] = true
}

func (m *mockSecretsManager) value(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sec, ok := m.secrets[id]; ok && sec.value != nil {
		return *sec.value
	}
	return ""
}

func (m *mockSecretsManager) record(op string) error {
	m.calls = append(m.calls, op)
	return m.err
}

func notFound(id string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", id)),
	}
}

func (m *mockSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetSecretValue"); err != nil {
		return nil, err
	}
	sec, ok := m.secrets[*params.SecretId]
	if !ok {
		return nil, notFound(*params.SecretId)
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         params.SecretId,
		SecretString: sec.value,
		VersionId:    aws.String(sec.current),
	}, nil
}

func (m *mockSecretsManager) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if m.beforeWrite != nil {
		m.beforeWrite(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("PutSecretValue"); err != nil {
		return nil, err
	}
	sec, ok := m.secrets[*params.SecretId]
	if !ok {
		return nil, notFound(*params.SecretId)
	}
	token := aws.ToString(params.ClientRequestToken)
	if !sec.tokens[token] {
		sec.value = params.SecretString
		sec.current = token
		sec.tokens[token] = true
	}
	return &secretsmanager.PutSecretValueOutput{
		Name:      params.SecretId,
		VersionId: aws.String(token),
	}, nil
}

func (m *mockSecretsManager) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if m.beforeWrite != nil {
		m.beforeWrite(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateSecret"); err != nil {
		return nil, err
	}
	if _, ok := m.secrets[*params.Name]; ok {
		return nil, &types.ResourceExistsException{
			Message: aws.String(fmt.Sprintf("The operation failed because the secret %s already exists.", *params.Name)),
		}
	}
	token := aws.ToString(params.ClientRequestToken)
	m.secrets[*params.Name] = &mockSecret{
		value:    params.SecretString,
		current:  token,
		kmsKeyID: aws.ToString(params.KmsKeyId),
		tokens:   map[string]bool{token: true},
	}
	return &secretsmanager.CreateSecretOutput{
		Name:      params.Name,
		VersionId: aws.String(token),
	}, nil
}

func (m *mockSecretsManager) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DescribeSecret"); err != nil {
		return nil, err
	}
	sec, ok := m.secrets[*params.SecretId]
	if !ok {
		return nil, notFound(*params.SecretId)
	}
	stages := map[string][]string{}
	for token := range sec.tokens {
		if token == sec.current {
			stages[token] = []string{currentStage}
		} else {
			stages[token] = []string{"AWSPREVIOUS"}
		}
	}
	return &secretsmanager.DescribeSecretOutput{
		Name:               params.SecretId,
		KmsKeyId:           aws.String(sec.kmsKeyID),
		VersionIdsToStages: stages,
	}, nil
}

type mockKMS struct {
	keys map[string]kmstypes.KeyState
}

func (m *mockKMS) DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	state, ok := m.keys[*params.KeyId]
	if !ok {
		return nil, &kmstypes.NotFoundException{Message: aws.String(fmt.Sprintf("Key '%s' does not exist", *params.KeyId))}
	}
	return &kms.DescribeKeyOutput{
		KeyMetadata: &kmstypes.KeyMetadata{
			KeyId:    params.KeyId,
			KeyState: state,
		},
	}, nil
}

// mockDynamoDB supports just enough of the condition expressions used by
// Locker.
type mockDynamoDB struct {
	mu    sync.Mutex
	items map[string]map[string]dtypes.AttributeValue

	deleteErr error
}

func newMockDynamoDB() *mockDynamoDB {
	return &mockDynamoDB{items: map[string]map[string]dtypes.AttributeValue{}}
}

func attrS(item map[string]dtypes.AttributeValue, name string) string {
	if v, ok := item[name].(*dtypes.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func conditionFailed() error {
	return &dtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (m *mockDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attrS(params.Item, "LockID")
	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(LockID)" {
		if _, exists := m.items[key]; exists {
			return nil, conditionFailed()
		}
	}
	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: m.items[attrS(params.Key, "LockID")]}, nil
}

func (m *mockDynamoDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	key := attrS(params.Key, "LockID")
	item, ok := m.items[key]
	if !ok || attrS(item, "Info") != attrS(params.ExpressionAttributeValues, ":info") {
		return nil, conditionFailed()
	}
	delete(m.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func injectMocks(sm *mockSecretsManager, k *mockKMS, ddb *mockDynamoDB) {
	newSecretsManagerFromConfig = func(cfg aws.Config, endpoint string) secretsManagerClient {
		return sm
	}
	newKMSFromConfig = func(cfg aws.Config, endpoint string) kmsClient {
		return k
	}
	newDynamoDBFromConfig = func(cfg aws.Config, endpoint string) dynamoDBClient {
		return ddb
	}
}
