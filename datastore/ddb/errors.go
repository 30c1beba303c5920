/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/suparena/docstore/errors"
)

// storeError wraps an SDK failure in an errors.StoreError. Context
// cancellation passes through untouched.
func storeError(op string, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.NewStoreError(op, kindOf(err), err)
}

func kindOf(err error) errors.Kind {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
			return errors.KindThrottled
		case "InternalServerError", "ServiceUnavailable":
			return errors.KindUnavailable
		case "UnrecognizedClientException", "AccessDeniedException", "InvalidSignatureException",
			"ExpiredTokenException", "MissingAuthenticationTokenException":
			return errors.KindUnauthorized
		}
		return errors.KindUnknown
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.KindUnavailable
	}
	return errors.KindUnknown
}

// isRetryableError reports whether a page fetch is worth repeating
func isRetryableError(err error) bool {
	var (
		pte *types.ProvisionedThroughputExceededException
		rle *types.RequestLimitExceeded
		ise *types.InternalServerError
	)
	switch {
	case stderrors.As(err, &pte), stderrors.As(err, &rle), stderrors.As(err, &ise):
		return true
	}

	if awsErr, ok := err.(interface{ IsRetryable() bool }); ok {
		return awsErr.IsRetryable()
	}

	switch kindOf(err) {
	case errors.KindThrottled, errors.KindUnavailable:
		return true
	}
	return false
}

func isResourceNotFound(err error) bool {
	var rnf *types.ResourceNotFoundException
	return stderrors.As(err, &rnf)
}

func isResourceInUse(err error) bool {
	var riu *types.ResourceInUseException
	return stderrors.As(err, &riu)
}

// conditionFailed returns the exception of a failed ConditionExpression
func conditionFailed(err error) (*types.ConditionalCheckFailedException, bool) {
	var cfe *types.ConditionalCheckFailedException
	if stderrors.As(err, &cfe) {
		return cfe, true
	}
	return nil, false
}
