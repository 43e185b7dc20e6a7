package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/shopsync/internal/remote"
)

// classify maps a DynamoDB error onto the remote sentinel taxonomy.
//
// Conditional-check failures mean the addressed document no longer exists
// (used on Update). Authoritative service refusals map to ErrRejected;
// everything else, including plain network failures, is ErrUnreachable.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return fmt.Errorf("%w: %v", remote.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if isThrottle(err) {
			return fmt.Errorf("%w: %v", remote.ErrUnreachable, err)
		}
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "ValidationException",
			"ResourceNotFoundException", "ItemCollectionSizeLimitExceededException":
			return fmt.Errorf("%w: %v", remote.ErrRejected, err)
		}
		return fmt.Errorf("%w: %v", remote.ErrUnreachable, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%w: %v", remote.ErrUnreachable, err)
}

// isThrottle reports whether the request was rejected for capacity reasons
// and is worth re-sending within the same attempt.
func isThrottle(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}
	var limit *types.RequestLimitExceeded
	if errors.As(err, &limit) {
		return true
	}
	var internal *types.InternalServerError
	return errors.As(err, &internal)
}
