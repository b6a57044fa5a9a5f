// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package secretsmanager

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/davecgh/go-spew/spew"
	awsbase "github.com/hashicorp/aws-sdk-go-base/v2"

	"github.com/opentofu/docker-credential-secretsmanager/version"
)

func TestConfigFromEnvironment(t *testing.T) {
	testCases := []struct {
		name     string
		environ  []string
		expected Config
		wantErr  string
	}{
		{
			name:    "minimal",
			environ: []string{"DOCKER_SECRETSMANAGER_NAME=docker"},
			expected: Config{
				SecretName: "docker",
				MaxRetries: 5,
			},
		},
		{
			name: "everything",
			environ: []string{
				"HOME=/home/joe",
				"DOCKER_SECRETSMANAGER_NAME=arn:aws:secretsmanager:eu-west-1:123456789012:secret:docker",
				"DOCKER_SECRETSMANAGER_KEY_ARN=arn:aws:kms:eu-west-1:123456789012:key/abc",
				"DOCKER_SECRETSMANAGER_REGION=eu-west-1",
				"DOCKER_SECRETSMANAGER_PROFILE=ci",
				"DOCKER_SECRETSMANAGER_ENDPOINT=localhost:4566",
				"DOCKER_SECRETSMANAGER_KMS_ENDPOINT=localhost:4567",
				"DOCKER_SECRETSMANAGER_MAX_RETRIES=2",
				"DOCKER_SECRETSMANAGER_RETRY_MODE=adaptive",
				"DOCKER_SECRETSMANAGER_SKIP_METADATA_API_CHECK=true",
				"DOCKER_SECRETSMANAGER_ASSUME_ROLE_ARN=arn:aws:iam::123456789012:role/docker",
				"DOCKER_SECRETSMANAGER_ASSUME_ROLE_SESSION_NAME=ci",
				"DOCKER_SECRETSMANAGER_ASSUME_ROLE_DURATION=30m",
				"DOCKER_SECRETSMANAGER_VERSION_CHECK=1",
				"DOCKER_SECRETSMANAGER_LOCK_TABLE=docker-locks",
				"DOCKER_SECRETSMANAGER_DYNAMODB_ENDPOINT=http://localhost:8000",
			},
			expected: Config{
				SecretName:            "arn:aws:secretsmanager:eu-west-1:123456789012:secret:docker",
				KMSKeyID:              "arn:aws:kms:eu-west-1:123456789012:key/abc",
				Region:                "eu-west-1",
				Profile:               "ci",
				Endpoint:              "localhost:4566",
				KMSEndpoint:           "localhost:4567",
				MaxRetries:            2,
				RetryMode:             "adaptive",
				SkipMetadataAPICheck:  true,
				AssumeRoleARN:         "arn:aws:iam::123456789012:role/docker",
				AssumeRoleSessionName: "ci",
				AssumeRoleDuration:    "30m",
				VersionCheck:          true,
				LockTable:             "docker-locks",
				DynamoDBEndpoint:      "http://localhost:8000",
			},
		},
		{
			name:    "no secret name",
			environ: []string{"DOCKER_SECRETSMANAGER_REGION=eu-west-1"},
			wantErr: "DOCKER_SECRETSMANAGER_NAME environment variable must be set",
		},
		{
			name:    "bad retries",
			environ: []string{"DOCKER_SECRETSMANAGER_NAME=docker", "DOCKER_SECRETSMANAGER_MAX_RETRIES=lots"},
			wantErr: "invalid DOCKER_SECRETSMANAGER_* environment variables",
		},
		{
			name:    "negative retries",
			environ: []string{"DOCKER_SECRETSMANAGER_NAME=docker", "DOCKER_SECRETSMANAGER_MAX_RETRIES=-1"},
			wantErr: "must not be negative",
		},
		{
			name:    "bad retry mode",
			environ: []string{"DOCKER_SECRETSMANAGER_NAME=docker", "DOCKER_SECRETSMANAGER_RETRY_MODE=eventually"},
			wantErr: "invalid DOCKER_SECRETSMANAGER_RETRY_MODE",
		},
		{
			name:    "bad duration",
			environ: []string{"DOCKER_SECRETSMANAGER_NAME=docker", "DOCKER_SECRETSMANAGER_ASSUME_ROLE_DURATION=forever"},
			wantErr: "invalid DOCKER_SECRETSMANAGER_ASSUME_ROLE_DURATION",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ConfigFromEnvironment(tc.environ)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err.Error())
			}
			if !reflect.DeepEqual(tc.expected, actual) {
				t.Fatalf("Expected %s, got %s", spew.Sdump(tc.expected), spew.Sdump(actual))
			}
		})
	}
}

func TestConfig_asAWSBase(t *testing.T) {
	userAgent := awsbase.UserAgentProducts{
		{Name: "docker-credential-secretsmanager", Version: version.String()},
	}

	testCases := []struct {
		name     string
		input    Config
		expected awsbase.Config
	}{
		{
			name: "minconfig",
			input: Config{
				SecretName: "docker",
				Region:     "magic-mountain",
				MaxRetries: 5,
			},
			expected: awsbase.Config{
				CallerDocumentationURL:  "https://github.com/opentofu/docker-credential-secretsmanager",
				CallerName:              "docker-credential-secretsmanager",
				MaxRetries:              5,
				Region:                  "magic-mountain",
				SkipCredsValidation:     true,
				SkipRequestingAccountId: true,
				UserAgent:               userAgent,
			},
		},
		{
			name: "maxconfig",
			input: Config{
				SecretName:            "docker",
				Region:                "magic-mountain",
				Profile:               "ci",
				MaxRetries:            2,
				RetryMode:             "adaptive",
				SkipMetadataAPICheck:  true,
				AssumeRoleARN:         "ar_arn",
				AssumeRoleSessionName: "ar_session_name",
				AssumeRoleDuration:    "4h",
			},
			expected: awsbase.Config{
				CallerDocumentationURL:        "https://github.com/opentofu/docker-credential-secretsmanager",
				CallerName:                    "docker-credential-secretsmanager",
				MaxRetries:                    2,
				Profile:                       "ci",
				Region:                        "magic-mountain",
				SkipCredsValidation:           true,
				SkipRequestingAccountId:       true,
				UserAgent:                     userAgent,
				EC2MetadataServiceEnableState: imds.ClientDisabled,
				AssumeRole: []awsbase.AssumeRole{
					{
						RoleARN:     "ar_arn",
						Duration:    time.Hour * 4,
						SessionName: "ar_session_name",
					},
				},
				RetryMode: aws.RetryModeAdaptive,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := tc.input.asAWSBase(context.Background())
			if err != nil {
				t.Fatal(err.Error())
			}
			if actual.Logger == nil {
				t.Error("no logger attached to the AWS configuration")
			}
			actual.Logger = nil

			if !reflect.DeepEqual(tc.expected, *actual) {
				t.Fatalf("Expected %s, got %s", spew.Sdump(tc.expected), spew.Sdump(*actual))
			}
		})
	}
}

func TestIncludeProtoIfNecessary(t *testing.T) {
	tests := map[string]string{
		"localhost:4566":           "https://localhost:4566",
		"http://localhost:4566":    "http://localhost:4566",
		"https://example.com/path": "https://example.com/path",
	}
	for input, want := range tests {
		if got := includeProtoIfNecessary(input); got != want {
			t.Errorf("includeProtoIfNecessary(%q) = %q; want %q", input, got, want)
		}
	}
}
