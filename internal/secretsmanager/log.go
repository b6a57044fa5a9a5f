// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package secretsmanager

import (
	"context"

	baselogging "github.com/hashicorp/aws-sdk-go-base/v2/logging"

	"github.com/opentofu/docker-credential-secretsmanager/internal/logging"
)

func attachLoggerToContext(ctx context.Context) (context.Context, baselogging.HcLogger) {
	ctx, baselog := baselogging.NewHcLogger(ctx, logging.HCLogger().Named("secretsmanager"))
	ctx = baselogging.RegisterLogger(ctx, baselog)
	return ctx, baselog
}
