// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package secretsmanager

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/go-viper/mapstructure/v2"
	awsbase "github.com/hashicorp/aws-sdk-go-base/v2"

	"github.com/opentofu/docker-credential-secretsmanager/version"
)

// EnvPrefix is the prefix shared by all of the environment variables that
// configure the credential helper.
const EnvPrefix = "DOCKER_SECRETSMANAGER_"

// Config is the credential helper's configuration, which is read entirely
// from the environment. The AWS SDK additionally reads its usual AWS_*
// variables and shared configuration files.
type Config struct {
	// SecretName is the name or ARN of the secret that holds all of the
	// registry credentials.
	SecretName string `mapstructure:"DOCKER_SECRETSMANAGER_NAME"`

	// KMSKeyID is the KMS key used to encrypt the secret when the helper
	// has to create it. Existing secrets keep their key.
	KMSKeyID string `mapstructure:"DOCKER_SECRETSMANAGER_KEY_ARN"`

	Region     string `mapstructure:"DOCKER_SECRETSMANAGER_REGION"`
	Profile    string `mapstructure:"DOCKER_SECRETSMANAGER_PROFILE"`
	Endpoint   string `mapstructure:"DOCKER_SECRETSMANAGER_ENDPOINT"`
	MaxRetries int    `mapstructure:"DOCKER_SECRETSMANAGER_MAX_RETRIES"`
	RetryMode  string `mapstructure:"DOCKER_SECRETSMANAGER_RETRY_MODE"`

	// KMSEndpoint overrides the endpoint used to check KMSKeyID before the
	// secret is created.
	KMSEndpoint string `mapstructure:"DOCKER_SECRETSMANAGER_KMS_ENDPOINT"`

	SkipMetadataAPICheck bool `mapstructure:"DOCKER_SECRETSMANAGER_SKIP_METADATA_API_CHECK"`

	AssumeRoleARN         string `mapstructure:"DOCKER_SECRETSMANAGER_ASSUME_ROLE_ARN"`
	AssumeRoleSessionName string `mapstructure:"DOCKER_SECRETSMANAGER_ASSUME_ROLE_SESSION_NAME"`
	AssumeRoleDuration    string `mapstructure:"DOCKER_SECRETSMANAGER_ASSUME_ROLE_DURATION"`

	// VersionCheck rejects writes when the secret changed after it was read.
	VersionCheck bool `mapstructure:"DOCKER_SECRETSMANAGER_VERSION_CHECK"`

	// LockTable is the DynamoDB table used to serialize writers, if any.
	LockTable        string `mapstructure:"DOCKER_SECRETSMANAGER_LOCK_TABLE"`
	DynamoDBEndpoint string `mapstructure:"DOCKER_SECRETSMANAGER_DYNAMODB_ENDPOINT"`
}

// ConfigFromEnvironment decodes a Config from environment entries in the
// "KEY=value" form returned by os.Environ.
func ConfigFromEnvironment(environ []string) (Config, error) {
	raw := make(map[string]interface{})
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		raw[k] = v
	}

	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return c, err
	}
	if err := decoder.Decode(raw); err != nil {
		return c, fmt.Errorf("invalid %s* environment variables: %w", EnvPrefix, err)
	}

	// Defaults
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}

	return c, c.validate()
}

func (c Config) validate() error {
	if c.SecretName == "" {
		return fmt.Errorf("the DOCKER_SECRETSMANAGER_NAME environment variable must be set to the name of the credentials secret")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("DOCKER_SECRETSMANAGER_MAX_RETRIES must not be negative")
	}
	if c.RetryMode != "" {
		if _, err := aws.ParseRetryMode(c.RetryMode); err != nil {
			return fmt.Errorf("invalid DOCKER_SECRETSMANAGER_RETRY_MODE %q: %w", c.RetryMode, err)
		}
	}
	if c.AssumeRoleDuration != "" {
		if _, err := time.ParseDuration(c.AssumeRoleDuration); err != nil {
			return fmt.Errorf("invalid DOCKER_SECRETSMANAGER_ASSUME_ROLE_DURATION %q: %w", c.AssumeRoleDuration, err)
		}
	}
	return nil
}

func (c Config) asAWSBase(ctx context.Context) (*awsbase.Config, error) {
	_, baselog := attachLoggerToContext(ctx)

	cfg := &awsbase.Config{
		CallerDocumentationURL: "https://github.com/opentofu/docker-credential-secretsmanager",
		CallerName:             "docker-credential-secretsmanager",
		MaxRetries:             c.MaxRetries,
		Profile:                c.Profile,
		Region:                 c.Region,

		// Every helper invocation is a separate process, so validating
		// credentials through STS would add a round trip to every docker
		// pull. Invalid credentials surface on the Secrets Manager call.
		SkipCredsValidation:     true,
		SkipRequestingAccountId: true,

		UserAgent: awsbase.UserAgentProducts{
			{Name: "docker-credential-secretsmanager", Version: version.String()},
		},
		Logger: baselog,
	}

	if c.SkipMetadataAPICheck {
		cfg.EC2MetadataServiceEnableState = imds.ClientDisabled
	}

	if c.AssumeRoleARN != "" {
		assumeRole := awsbase.AssumeRole{
			RoleARN:     c.AssumeRoleARN,
			SessionName: c.AssumeRoleSessionName,
		}
		if c.AssumeRoleDuration != "" {
			dur, err := time.ParseDuration(c.AssumeRoleDuration)
			if err != nil {
				return nil, fmt.Errorf("invalid assume role duration %q: %w", c.AssumeRoleDuration, err)
			}
			assumeRole.Duration = dur
		}
		cfg.AssumeRole = []awsbase.AssumeRole{assumeRole}
	}

	if len(c.RetryMode) != 0 {
		mode, err := aws.ParseRetryMode(c.RetryMode)
		if err != nil {
			return nil, fmt.Errorf("invalid retry mode %q: %w", c.RetryMode, err)
		}
		cfg.RetryMode = mode
	}

	return cfg, nil
}

func includeProtoIfNecessary(endpoint string) string {
	if matched, _ := regexp.MatchString("[a-z]*://.*", endpoint); !matched {
		log.Printf("[DEBUG] Adding https:// prefix to endpoint '%s'", endpoint)
		endpoint = fmt.Sprintf("https://%s", endpoint)
	}
	return endpoint
}
