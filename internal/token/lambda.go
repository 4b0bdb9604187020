package token

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"go.uber.org/zap"
)

// LambdaAPI is the slice of the Lambda client the supplier needs.
type LambdaAPI interface {
	Invoke(ctx context.Context, input *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaSupplier obtains a token by invoking the deployed token function.
// The function responds with {"token": "..."} on success or
// {"errorName": "...", "errorMessage": "..."} on failure.
type LambdaSupplier struct {
	client       LambdaAPI
	functionName string
	log          *zap.Logger
}

// NewLambdaSupplier creates a supplier backed by the named function.
func NewLambdaSupplier(client LambdaAPI, functionName string, log *zap.Logger) *LambdaSupplier {
	return &LambdaSupplier{
		client:       client,
		functionName: functionName,
		log:          log,
	}
}

// Token invokes the token function and parses its payload.
func (s *LambdaSupplier) Token(ctx context.Context) (string, error) {
	result, err := s.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(s.functionName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke token function %s: %w", s.functionName, err)
	}

	if result.FunctionError != nil {
		return "", fmt.Errorf("%w: function error: %s", ErrTokenExchange, *result.FunctionError)
	}

	var payload struct {
		Token        string `json:"token"`
		ErrorName    string `json:"errorName"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return "", fmt.Errorf("failed to parse token function response: %w", err)
	}

	if payload.ErrorName != "" {
		return "", fmt.Errorf("%w: %s: %s", ErrTokenExchange, payload.ErrorName, payload.ErrorMessage)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("%w: token missing from response", ErrTokenExchange)
	}

	s.log.Debug("obtained bearer token from token function",
		zap.String("function", s.functionName))

	return payload.Token, nil
}
