package notifier

import (
	"context"
	"fmt"

	"advert-service/internal/infrastructure/metrics"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"go.opentelemetry.io/otel"
)

type SNSNotifier struct {
	client   snsiface.SNSAPI
	topicArn string
	instrumented
}

func NewSNSNotifier(client snsiface.SNSAPI, topicArn string, m *metrics.NotifierMetrics) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicArn: topicArn,
		instrumented: instrumented{
			backend: "sns",
			metrics: m,
			tracer:  otel.Tracer("advert-service/notifier"),
		},
	}
}

func (n *SNSNotifier) PublishConfirmed(ctx context.Context, id, title string) error {
	return n.publish(ctx, id, func(ctx context.Context) error {
		body, err := encodeConfirmed(id, title)
		if err != nil {
			return err
		}

		_, err = n.client.PublishWithContext(ctx, &sns.PublishInput{
			TopicArn: aws.String(n.topicArn),
			Message:  aws.String(string(body)),
		})
		if err != nil {
			return fmt.Errorf("failed to publish to %s: %w", n.topicArn, err)
		}
		return nil
	})
}
