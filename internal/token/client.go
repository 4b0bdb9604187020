package token

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/Open-SGF/sgf-meetup-api/internal/config"
)

// NewLambdaClient creates the Lambda client used by LambdaSupplier.
func NewLambdaClient(ctx context.Context, awsConfig config.AWS) (*lambda.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(awsConfig.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return lambda.NewFromConfig(cfg), nil
}
