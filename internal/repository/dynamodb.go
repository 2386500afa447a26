package repository

import (
	"context"
	"fmt"
	"time"

	"advert-service/internal/domain"
	"advert-service/internal/infrastructure/metrics"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTableName = "Adverts"

// advertItem is the DynamoDB shape of an advert, hash key Id.
type advertItem struct {
	ID               string    `dynamodbav:"Id"`
	CreationDateTime time.Time `dynamodbav:"CreationDateTime"`
	Status           string    `dynamodbav:"Status"`
	Title            string    `dynamodbav:"Title"`
	Description      string    `dynamodbav:"Description"`
	Price            float64   `dynamodbav:"Price"`
}

func toItem(a *domain.Advert) advertItem {
	return advertItem{
		ID:               a.ID,
		CreationDateTime: a.CreationDateTime,
		Status:           string(a.Status),
		Title:            a.Title,
		Description:      a.Description,
		Price:            a.Price,
	}
}

func (i advertItem) toDomain() *domain.Advert {
	return &domain.Advert{
		ID:               i.ID,
		CreationDateTime: i.CreationDateTime,
		Status:           domain.AdvertStatus(i.Status),
		Title:            i.Title,
		Description:      i.Description,
		Price:            i.Price,
	}
}

type dynamoAdvertRepository struct {
	client  dynamodbiface.DynamoDBAPI
	table   string
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
}

// NewDynamoAdvertRepository expects a long-lived client shared across requests.
func NewDynamoAdvertRepository(client dynamodbiface.DynamoDBAPI, table string, metrics *metrics.RepositoryMetrics) AdvertRepository {
	if table == "" {
		table = DefaultTableName
	}
	return &dynamoAdvertRepository{
		client:  client,
		table:   table,
		metrics: metrics,
		tracer:  otel.Tracer("advert-service/repository"),
	}
}

func (r *dynamoAdvertRepository) key(id string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"Id": {S: aws.String(id)},
	}
}

func (r *dynamoAdvertRepository) observe(query string, startTime time.Time, status *string) {
	duration := time.Since(startTime).Seconds()
	r.metrics.QueryCount.WithLabelValues(query, *status).Inc()
	r.metrics.QueryDuration.WithLabelValues(query, *status).Observe(duration)
}

func (r *dynamoAdvertRepository) Put(ctx context.Context, advert *domain.Advert) error {
	ctx, span := r.tracer.Start(ctx, "DynamoDB PutItem")
	defer span.End()

	span.SetAttributes(
		attribute.String("advert.id", advert.ID),
		attribute.String("advert.status", string(advert.Status)),
	)

	status := "success"
	defer r.observe("Put", time.Now(), &status)

	item, err := dynamodbattribute.MarshalMap(toItem(advert))
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to marshal advert: %w", err)
	}

	_, err = r.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to put advert: %w", err)
	}

	return nil
}

func (r *dynamoAdvertRepository) Get(ctx context.Context, id string) (*domain.Advert, error) {
	ctx, span := r.tracer.Start(ctx, "DynamoDB GetItem")
	defer span.End()

	span.SetAttributes(attribute.String("advert.id", id))

	status := "success"
	defer r.observe("Get", time.Now(), &status)

	out, err := r.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get advert: %w", err)
	}

	if len(out.Item) == 0 {
		status = "not_found"
		return nil, ErrNotFound
	}

	var item advertItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal advert: %w", err)
	}

	return item.toDomain(), nil
}

// GetConsistent is Get: every DynamoDB read here is already strongly consistent.
func (r *dynamoAdvertRepository) GetConsistent(ctx context.Context, id string) (*domain.Advert, error) {
	return r.Get(ctx, id)
}

func (r *dynamoAdvertRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "DynamoDB DeleteItem")
	defer span.End()

	span.SetAttributes(attribute.String("advert.id", id))

	status := "success"
	defer r.observe("Delete", time.Now(), &status)

	_, err := r.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       r.key(id),
	})
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to delete advert: %w", err)
	}

	return nil
}

func (r *dynamoAdvertRepository) CheckHealth(ctx context.Context) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "DynamoDB DescribeTable")
	defer span.End()

	status := "success"
	defer r.observe("CheckHealth", time.Now(), &status)

	out, err := r.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.table),
	})
	if err != nil {
		status = "error"
		span.RecordError(err)
		return false, fmt.Errorf("failed to describe table %s: %w", r.table, err)
	}

	if out.Table == nil {
		return false, nil
	}

	tableStatus := aws.StringValue(out.Table.TableStatus)
	span.SetAttributes(attribute.String("dynamodb.table_status", tableStatus))

	return tableStatus == dynamodb.TableStatusActive, nil
}
