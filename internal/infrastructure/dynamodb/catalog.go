package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/shopspring/decimal"

	"citizen-portal/internal/domain"
)

type serviceItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	EntityType     string `dynamodbav:"EntityType"`
	GSI1PK         string `dynamodbav:"GSI1PK"`
	GSI1SK         string `dynamodbav:"GSI1SK"`
	ID             string `dynamodbav:"ID"`
	Title          string `dynamodbav:"Title"`
	Description    string `dynamodbav:"Description"`
	Requirements   string `dynamodbav:"Requirements"`
	ProcessingTime string `dynamodbav:"ProcessingTime"`
	Fee            string `dynamodbav:"Fee"`
	CreatedBy      string `dynamodbav:"CreatedBy,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UpdatedAt      string `dynamodbav:"UpdatedAt"`
}

// Fees are stored as decimal strings to keep exact amounts.
func toServiceItem(svc domain.ServiceDefinition) serviceItem {
	return serviceItem{
		PK:             servicePK(svc.ID),
		SK:             metaSK,
		EntityType:     entityService,
		GSI1PK:         entityPK(entityService),
		GSI1SK:         svc.Title + "#" + svc.ID,
		ID:             svc.ID,
		Title:          svc.Title,
		Description:    svc.Description,
		Requirements:   svc.Requirements,
		ProcessingTime: svc.ProcessingTime,
		Fee:            svc.Fee.String(),
		CreatedBy:      svc.CreatedBy,
		CreatedAt:      formatTime(svc.CreatedAt),
		UpdatedAt:      formatTime(svc.UpdatedAt),
	}
}

func (it serviceItem) toDomain() (domain.ServiceDefinition, error) {
	fee := decimal.Zero
	if it.Fee != "" {
		parsed, err := decimal.NewFromString(it.Fee)
		if err != nil {
			return domain.ServiceDefinition{}, err
		}
		fee = parsed
	}
	createdAt, err := parseTime(it.CreatedAt)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	updatedAt, err := parseTime(it.UpdatedAt)
	if err != nil {
		return domain.ServiceDefinition{}, err
	}
	return domain.ServiceDefinition{
		ID:             it.ID,
		Title:          it.Title,
		Description:    it.Description,
		Requirements:   it.Requirements,
		ProcessingTime: it.ProcessingTime,
		Fee:            fee,
		CreatedBy:      it.CreatedBy,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

type ServiceRepository struct{ client *Client }

func NewServiceRepository(client *Client) *ServiceRepository {
	return &ServiceRepository{client: client}
}

func (r *ServiceRepository) Create(ctx context.Context, svc domain.ServiceDefinition) error {
	err := r.client.put(ctx, "PutService", toServiceItem(svc), "attribute_not_exists(PK)")
	if isConditionalCheckFailure(err) {
		return domain.ErrConflict
	}
	return storageErr("PutService", err)
}

func (r *ServiceRepository) Update(ctx context.Context, svc domain.ServiceDefinition) error {
	err := r.client.put(ctx, "UpdateService", toServiceItem(svc), "attribute_exists(PK)")
	if isConditionalCheckFailure(err) {
		return domain.ErrNotFound
	}
	return storageErr("UpdateService", err)
}

func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	err := xray.Capture(ctx, "DynamoDB.DeleteService", func(ctx context.Context) error {
		_, err := r.client.db.DeleteItem(ctx, &awsv2dynamodb.DeleteItemInput{
			TableName:           aws.String(r.client.tableName),
			Key:                 key(servicePK(serviceID), metaSK),
			ConditionExpression: aws.String("attribute_exists(PK)"),
		})
		return err
	})
	if isConditionalCheckFailure(err) {
		return domain.ErrNotFound
	}
	return storageErr("DeleteService", err)
}

func (r *ServiceRepository) GetByID(ctx context.Context, serviceID string) (domain.ServiceDefinition, error) {
	var it serviceItem
	if err := r.client.get(ctx, "GetService", servicePK(serviceID), metaSK, &it); err != nil {
		return domain.ServiceDefinition{}, err
	}
	svc, err := it.toDomain()
	if err != nil {
		return domain.ServiceDefinition{}, storageErr("GetService", err)
	}
	return svc, nil
}

// List returns the catalog ordered by title.
func (r *ServiceRepository) List(ctx context.Context) ([]domain.ServiceDefinition, error) {
	input := &awsv2dynamodb.QueryInput{
		IndexName:              aws.String(entityIndex),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":pk": &awsv2types.AttributeValueMemberS{Value: entityPK(entityService)},
		},
	}
	services := []domain.ServiceDefinition{}
	err := r.client.queryAll(ctx, "QueryServices", input, func(item map[string]awsv2types.AttributeValue) (bool, error) {
		var it serviceItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return false, err
		}
		svc, err := it.toDomain()
		if err != nil {
			return false, err
		}
		services = append(services, svc)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return services, nil
}
