// Package mainconfig turns the process configuration into the AWS SDK config
// used by the booking-events SQS publisher and the SES support mailer.
//
// AWS is optional for the booking core. Nothing is loaded unless one of
// those two consumers is enabled, and AWS_ENDPOINT_OVERRIDE redirects only
// SQS and SES so a LocalStack setup never leaks other calls to real AWS.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/sathicare/booking-core/internal/config"
)

// overridable lists the services AWS_ENDPOINT_OVERRIDE applies to.
var overridable = map[string]bool{
	sqs.ServiceID:   true,
	sesv2.ServiceID: true,
}

// NeedsAWS reports whether any configured component talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	return strings.TrimSpace(cfg.BookingEventsQueueURL) != "" || cfg.EmailProvider == "ses"
}

// LoadAWSConfig builds the SDK config. Static keys win over the default
// credential chain when both are set.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey); key != "" && secret != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = endpointOverride(endpoint, cfg.AWSRegion)
	}
	return awsCfg, nil
}

func endpointOverride(endpoint, region string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
		if !overridable[service] {
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
		return aws.Endpoint{
			URL:               endpoint,
			PartitionID:       "aws",
			SigningRegion:     region,
			HostnameImmutable: true,
		}, nil
	})
}
