// Package dynamo implements the remote document store over a single
// DynamoDB table. Documents are items keyed by (collection, id) with the
// opaque payload stored as a map attribute and the last-modified time as a
// numeric updated_at attribute.
package dynamo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const (
	attrCollection = "collection"
	attrID         = "id"
	attrUpdatedAt  = "updated_at"
	attrPayload    = "payload"

	defaultPollInterval = 2 * time.Second
)

// Config holds the settings for the DynamoDB-backed store.
type Config struct {
	// Table is the DynamoDB table holding all collections.
	Table string

	// Region is the AWS region; empty falls back to the environment.
	Region string

	// Endpoint overrides the service endpoint (local stacks, tests).
	Endpoint string

	// AccessKeyID/SecretAccessKey select static credentials when both are
	// set; otherwise the default provider chain applies.
	AccessKeyID     string
	SecretAccessKey string

	// PollInterval is the subscription polling period (default 2s).
	PollInterval time.Duration
}

// api is the slice of the DynamoDB client this store uses.
type api interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store implements remote.Store and remote.Pinger against DynamoDB.
type Store struct {
	client       api
	table        string
	pollInterval time.Duration
}

// New builds a Store from cfg, loading the AWS configuration once.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamo: table name is required")
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        200,
			MaxIdleConnsPerHost: 50,
		},
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &Store{
		client:       dynamodb.NewFromConfig(awsCfg),
		table:        cfg.Table,
		pollInterval: poll,
	}, nil
}

// Ping verifies the table is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}
