package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles all service clients for convenience.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients loads AWS config and returns concrete service clients that
// implement our interfaces. Endpoint overrides allow pointing individual
// services at a local stack (dynamodb-local, localstack) during development.
func NewAWSClients(ctx context.Context, dynamoEndpoint, sqsEndpoint string) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	dynamoOpts := []func(*dynamodb.Options){}
	if dynamoEndpoint != "" {
		dynamoOpts = append(dynamoOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = &dynamoEndpoint
		})
	}
	sqsOpts := []func(*sqs.Options){}
	if sqsEndpoint != "" {
		sqsOpts = append(sqsOpts, func(o *sqs.Options) {
			o.BaseEndpoint = &sqsEndpoint
		})
	}

	return &AWSClients{
		DynamoDB:   dynamodb.NewFromConfig(cfg, dynamoOpts...),
		SQS:        sqs.NewFromConfig(cfg, sqsOpts...),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}, nil
}
