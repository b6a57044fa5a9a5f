// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package secretsmanager stores the credential helper's secret in AWS Secrets
// Manager, optionally serializing writers with a DynamoDB lock table.
package secretsmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	awsbase "github.com/hashicorp/aws-sdk-go-base/v2"

	"github.com/opentofu/docker-credential-secretsmanager/internal/credstore"
	"github.com/opentofu/docker-credential-secretsmanager/internal/secretmap"
)

// currentStage is the staging label Secrets Manager moves to every new
// version of a secret.
const currentStage = "AWSCURRENT"

type secretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

type kmsClient interface {
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
}

var newSecretsManagerFromConfig = func(cfg aws.Config, endpoint string) secretsManagerClient {
	return secretsmanager.NewFromConfig(cfg, func(options *secretsmanager.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(includeProtoIfNecessary(endpoint))
		}
	})
}

var newKMSFromConfig = func(cfg aws.Config, endpoint string) kmsClient {
	return kms.NewFromConfig(cfg, func(options *kms.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(includeProtoIfNecessary(endpoint))
		}
	})
}

// Client is a credstore.SecretStore backed by AWS Secrets Manager.
type Client struct {
	sm  secretsManagerClient
	kms kmsClient

	// kmsKeyID is only used when the secret has to be created.
	kmsKeyID string
}

var _ credstore.SecretStore = (*Client)(nil)

// Build resolves the AWS configuration and returns a credstore.Store for the
// configured secret.
func (c Config) Build(ctx context.Context) (*credstore.Store, error) {
	ctx, _ = attachLoggerToContext(ctx)

	cfg, err := c.asAWSBase(ctx)
	if err != nil {
		return nil, err
	}

	_, awsConfig, awsDiags := awsbase.GetAwsConfig(ctx, cfg)
	if awsDiags.HasError() {
		// The protocol reports errors as a single line.
		msgs := []string{"errors were encountered in the AWS configuration"}
		for _, diag := range awsDiags.Errors() {
			msgs = append(msgs, diag.Summary()+": "+diag.Detail())
		}
		return nil, errors.New(strings.Join(msgs, "; "))
	}

	client := &Client{
		sm:       newSecretsManagerFromConfig(awsConfig, c.Endpoint),
		kmsKeyID: c.KMSKeyID,
	}
	if c.KMSKeyID != "" {
		client.kms = newKMSFromConfig(awsConfig, c.KMSEndpoint)
	}

	var opts []credstore.Option
	if c.VersionCheck {
		opts = append(opts, credstore.WithVersionCheck())
	}
	if c.LockTable != "" {
		log.Printf("[DEBUG] secretsmanager: locking writes with DynamoDB table %s", c.LockTable)
		opts = append(opts, credstore.WithLocker(&Locker{
			client:   newDynamoDBFromConfig(awsConfig, c.DynamoDBEndpoint),
			table:    c.LockTable,
			lockPath: c.SecretName,
		}))
	}

	return credstore.New(client, c.SecretName, opts...), nil
}

func (c *Client) FetchSecret(ctx context.Context, secretID string) (credstore.SecretValue, error) {
	ctx, _ = attachLoggerToContext(ctx)

	out, err := c.sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			log.Printf("[DEBUG] secretsmanager: secret %s not found", secretID)
			return credstore.SecretValue{}, nil
		}
		return credstore.SecretValue{}, transportError("GetSecretValue", err)
	}

	// A secret created with a binary value cannot hold the credentials map.
	if out.SecretString == nil {
		return credstore.SecretValue{}, &secretmap.FormatError{Subject: "secret"}
	}

	return credstore.SecretValue{
		Data:      *out.SecretString,
		Exists:    true,
		VersionID: aws.ToString(out.VersionId),
	}, nil
}

func (c *Client) PutSecret(ctx context.Context, secretID string, req credstore.PutRequest) error {
	ctx, _ = attachLoggerToContext(ctx)

	if req.Create {
		err := c.createSecret(ctx, secretID, req)
		if err == nil {
			return nil
		}
		var exists *types.ResourceExistsException
		if !errors.As(err, &exists) {
			return err
		}
		if req.CheckVersion {
			return &credstore.ConflictError{
				SecretID: secretID,
				Err:      errors.New("the secret was created by another client"),
			}
		}
		log.Printf("[DEBUG] secretsmanager: secret %s was created by another client; writing a new version instead", secretID)
	} else if req.CheckVersion {
		if err := c.checkVersion(ctx, secretID, req.ExpectedVersion); err != nil {
			return err
		}
	}

	_, err := c.sm.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(secretID),
		SecretString:       aws.String(req.Value),
		ClientRequestToken: aws.String(req.IdempotencyToken),
	})
	if err != nil {
		return transportError("PutSecretValue", err)
	}
	return nil
}

func (c *Client) createSecret(ctx context.Context, secretID string, req credstore.PutRequest) error {
	input := &secretsmanager.CreateSecretInput{
		Name:               aws.String(secretID),
		SecretString:       aws.String(req.Value),
		ClientRequestToken: aws.String(req.IdempotencyToken),
		Description:        aws.String("Docker registry credentials"),
	}
	if c.kmsKeyID != "" {
		if err := c.checkKey(ctx); err != nil {
			return err
		}
		input.KmsKeyId = aws.String(c.kmsKeyID)
	}

	log.Printf("[INFO] secretsmanager: creating secret %s", secretID)
	if _, err := c.sm.CreateSecret(ctx, input); err != nil {
		return transportError("CreateSecret", err)
	}
	return nil
}

// checkKey makes sure the configured KMS key can encrypt a new secret, which
// gives a clearer error than the one CreateSecret returns for a disabled or
// misspelled key.
func (c *Client) checkKey(ctx context.Context) error {
	if c.kms == nil {
		return nil
	}
	out, err := c.kms.DescribeKey(ctx, &kms.DescribeKeyInput{
		KeyId: aws.String(c.kmsKeyID),
	})
	if err != nil {
		return transportError("DescribeKey", err)
	}
	if out.KeyMetadata == nil {
		return nil
	}
	if state := out.KeyMetadata.KeyState; state != kmstypes.KeyStateEnabled {
		return fmt.Errorf("KMS key %s cannot encrypt the secret: key state is %s", c.kmsKeyID, state)
	}
	return nil
}

// checkVersion fails with a credstore.ConflictError unless the current
// version of the secret is the expected one.
//
// Secrets Manager has no conditional write, so another client can still
// write between this check and the following PutSecretValue.
func (c *Client) checkVersion(ctx context.Context, secretID, expected string) error {
	out, err := c.sm.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return &credstore.ConflictError{
				SecretID:        secretID,
				ExpectedVersion: expected,
				Err:             errors.New("the secret was deleted by another client"),
			}
		}
		return transportError("DescribeSecret", err)
	}

	current := currentVersion(out.VersionIdsToStages)
	if current != expected {
		return &credstore.ConflictError{
			SecretID:        secretID,
			ExpectedVersion: expected,
			CurrentVersion:  current,
		}
	}
	return nil
}

func currentVersion(versions map[string][]string) string {
	for id, stages := range versions {
		for _, stage := range stages {
			if stage == currentStage {
				return id
			}
		}
	}
	return ""
}

func transportError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		log.Printf("[DEBUG] secretsmanager: %s returned %s: %s", op, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return &credstore.TransportError{Op: op, Err: err}
}
