package utils

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
)

// NewRekognitionClient loads the default AWS credential chain for region.
func NewRekognitionClient(ctx context.Context, region string) (*rekognition.Client, error) {
	if region == "" {
		return nil, fmt.Errorf("AWS region not set")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return rekognition.NewFromConfig(cfg), nil
}
