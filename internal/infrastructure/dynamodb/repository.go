package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"

	"citizen-portal/internal/domain"
)

// API is the subset of the DynamoDB client the repositories call.
type API interface {
	PutItem(ctx context.Context, params *awsv2dynamodb.PutItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *awsv2dynamodb.GetItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *awsv2dynamodb.DeleteItemInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *awsv2dynamodb.QueryInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *awsv2dynamodb.TransactWriteItemsInput, optFns ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.TransactWriteItemsOutput, error)
}

type Client struct {
	db        API
	tableName string
}

// NewClient loads the default AWS config for region. A non-empty endpoint
// points the client at DynamoDB Local or another compatible server.
func NewClient(ctx context.Context, region, tableName, endpoint string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg, func(o *awsv2dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Client{db: client, tableName: tableName}, nil
}

func NewClientWithAPI(db API, tableName string) *Client {
	return &Client{db: db, tableName: tableName}
}

const (
	metaSK      = "META"
	emailLockSK = "LOCK"
	eventPrefix = "EVENT#"

	// GSI1 lists one entity type; GSI2 lists applications per owner.
	entityIndex = "GSI1"
	ownerIndex  = "GSI2"

	entityAccount     = "ACCOUNT"
	entityService     = "SERVICE"
	entityApplication = "APPLICATION"
	entityEvent       = "STATUS_CHANGE"
	entityEmailLock   = "EMAIL_LOCK"

	// Fixed-width so sort keys order chronologically.
	sortableTime = "2006-01-02T15:04:05.000000000Z07:00"
)

func accountPK(accountID string) string { return "ACCOUNT#" + accountID }
func emailPK(email string) string       { return "EMAIL#" + email }
func servicePK(serviceID string) string { return "SERVICE#" + serviceID }
func appPK(appID string) string         { return "APPLICATION#" + appID }
func ownerPK(userID string) string      { return "OWNER#" + userID }
func entityPK(entity string) string     { return "ENTITY#" + entity }

func eventSK(ev domain.StatusChangeEvent) string {
	return eventPrefix + formatTime(ev.Timestamp) + "#" + ev.ID
}

func appSortKey(app domain.Application) string {
	return formatTime(app.SubmittedAt) + "#" + app.ID
}

func formatTime(t time.Time) string { return t.UTC().Format(sortableTime) }

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func key(pk, sk string) map[string]awsv2types.AttributeValue {
	return map[string]awsv2types.AttributeValue{
		"PK": &awsv2types.AttributeValueMemberS{Value: pk},
		"SK": &awsv2types.AttributeValueMemberS{Value: sk},
	}
}

func isConditionalCheckFailure(err error) bool {
	var condErr *awsv2types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// cancellationReasons returns the per-item reasons of a cancelled
// transaction, or nil when err is something else.
func cancellationReasons(err error) []awsv2types.CancellationReason {
	var txErr *awsv2types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		return nil
	}
	return txErr.CancellationReasons
}

func conditionFailed(reason awsv2types.CancellationReason) bool {
	return aws.ToString(reason.Code) == "ConditionalCheckFailed"
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StorageError{Op: op, Err: err}
}

func (c *Client) put(ctx context.Context, op string, item any, condition string) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	input := &awsv2dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      av,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
	}
	return xray.Capture(ctx, "DynamoDB."+op, func(ctx context.Context) error {
		_, err := c.db.PutItem(ctx, input)
		return err
	})
}

func (c *Client) get(ctx context.Context, op, pk, sk string, out any) error {
	var res *awsv2dynamodb.GetItemOutput
	err := xray.Capture(ctx, "DynamoDB."+op, func(ctx context.Context) error {
		var e error
		res, e = c.db.GetItem(ctx, &awsv2dynamodb.GetItemInput{
			TableName:      aws.String(c.tableName),
			Key:            key(pk, sk),
			ConsistentRead: aws.Bool(true),
		})
		return e
	})
	if err != nil {
		return storageErr(op, err)
	}
	if res.Item == nil {
		return domain.ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// queryAll follows LastEvaluatedKey until the result set is exhausted or
// stop reports true.
func (c *Client) queryAll(ctx context.Context, op string, input *awsv2dynamodb.QueryInput, each func(map[string]awsv2types.AttributeValue) (stop bool, err error)) error {
	input.TableName = aws.String(c.tableName)
	paginator := awsv2dynamodb.NewQueryPaginator(c.db, input)
	for paginator.HasMorePages() {
		var page *awsv2dynamodb.QueryOutput
		err := xray.Capture(ctx, "DynamoDB."+op, func(ctx context.Context) error {
			var e error
			page, e = paginator.NextPage(ctx)
			return e
		})
		if err != nil {
			return storageErr(op, err)
		}
		for _, item := range page.Items {
			stop, err := each(item)
			if err != nil {
				return storageErr(op, err)
			}
			if stop {
				return nil
			}
		}
	}
	return nil
}

type applicationItem struct {
	PK           string            `dynamodbav:"PK"`
	SK           string            `dynamodbav:"SK"`
	EntityType   string            `dynamodbav:"EntityType"`
	GSI1PK       string            `dynamodbav:"GSI1PK"`
	GSI1SK       string            `dynamodbav:"GSI1SK"`
	GSI2PK       string            `dynamodbav:"GSI2PK"`
	GSI2SK       string            `dynamodbav:"GSI2SK"`
	ID           string            `dynamodbav:"ID"`
	UserID       string            `dynamodbav:"UserID"`
	ServiceID    string            `dynamodbav:"ServiceID"`
	Status       string            `dynamodbav:"Status"`
	Description  string            `dynamodbav:"Description"`
	Documents    []domain.Document `dynamodbav:"Documents"`
	StaffRemarks string            `dynamodbav:"StaffRemarks,omitempty"`
	SubmittedAt  string            `dynamodbav:"SubmittedAt"`
	UpdatedAt    string            `dynamodbav:"UpdatedAt"`
}

func toApplicationItem(app domain.Application) applicationItem {
	return applicationItem{
		PK:           appPK(app.ID),
		SK:           metaSK,
		EntityType:   entityApplication,
		GSI1PK:       entityPK(entityApplication),
		GSI1SK:       appSortKey(app),
		GSI2PK:       ownerPK(app.UserID),
		GSI2SK:       appSortKey(app),
		ID:           app.ID,
		UserID:       app.UserID,
		ServiceID:    app.ServiceID,
		Status:       app.Status.String(),
		Description:  app.Description,
		Documents:    app.Documents,
		StaffRemarks: app.StaffRemarks,
		SubmittedAt:  formatTime(app.SubmittedAt),
		UpdatedAt:    formatTime(app.UpdatedAt),
	}
}

// toDomain rejects records carrying a status outside the canonical set.
func (it applicationItem) toDomain() (domain.Application, error) {
	status, err := domain.ParseStatus(it.Status)
	if err != nil {
		return domain.Application{}, fmt.Errorf("application %s: %w", it.ID, err)
	}
	submittedAt, err := parseTime(it.SubmittedAt)
	if err != nil {
		return domain.Application{}, err
	}
	updatedAt, err := parseTime(it.UpdatedAt)
	if err != nil {
		return domain.Application{}, err
	}
	docs := it.Documents
	if docs == nil {
		docs = []domain.Document{}
	}
	return domain.Application{
		ID:           it.ID,
		UserID:       it.UserID,
		ServiceID:    it.ServiceID,
		Status:       status,
		Description:  it.Description,
		Documents:    docs,
		StaffRemarks: it.StaffRemarks,
		SubmittedAt:  submittedAt,
		UpdatedAt:    updatedAt,
	}, nil
}

type eventItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	ID            string `dynamodbav:"ID"`
	ApplicationID string `dynamodbav:"ApplicationID"`
	ChangedByID   string `dynamodbav:"ChangedByID"`
	ChangedByName string `dynamodbav:"ChangedByName"`
	OldStatus     string `dynamodbav:"OldStatus"`
	NewStatus     string `dynamodbav:"NewStatus"`
	Timestamp     string `dynamodbav:"Timestamp"`
	Remarks       string `dynamodbav:"Remarks,omitempty"`
}

func toEventItem(ev domain.StatusChangeEvent) eventItem {
	return eventItem{
		PK:            appPK(ev.ApplicationID),
		SK:            eventSK(ev),
		EntityType:    entityEvent,
		ID:            ev.ID,
		ApplicationID: ev.ApplicationID,
		ChangedByID:   ev.ChangedBy.ID,
		ChangedByName: ev.ChangedBy.Name,
		OldStatus:     ev.OldStatus.String(),
		NewStatus:     ev.NewStatus.String(),
		Timestamp:     formatTime(ev.Timestamp),
		Remarks:       ev.Remarks,
	}
}

func (it eventItem) toDomain() (domain.StatusChangeEvent, error) {
	oldStatus, err := domain.ParseStatus(it.OldStatus)
	if err != nil {
		return domain.StatusChangeEvent{}, fmt.Errorf("event %s: %w", it.ID, err)
	}
	newStatus, err := domain.ParseStatus(it.NewStatus)
	if err != nil {
		return domain.StatusChangeEvent{}, fmt.Errorf("event %s: %w", it.ID, err)
	}
	ts, err := parseTime(it.Timestamp)
	if err != nil {
		return domain.StatusChangeEvent{}, err
	}
	return domain.StatusChangeEvent{
		ID:            it.ID,
		ApplicationID: it.ApplicationID,
		ChangedBy:     domain.ActorRef{ID: it.ChangedByID, Name: it.ChangedByName},
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		Timestamp:     ts,
		Remarks:       it.Remarks,
	}, nil
}

type ApplicationRepository struct{ client *Client }

type AuditRepository struct{ client *Client }

type TransitionStore struct{ client *Client }

func NewApplicationRepository(client *Client) *ApplicationRepository {
	return &ApplicationRepository{client: client}
}

func NewAuditRepository(client *Client) *AuditRepository {
	return &AuditRepository{client: client}
}

func NewTransitionStore(client *Client) *TransitionStore {
	return &TransitionStore{client: client}
}

func (r *ApplicationRepository) Create(ctx context.Context, app domain.Application) error {
	if !app.Status.Valid() {
		return domain.Invalid("status", "is not a known status")
	}
	err := r.client.put(ctx, "PutApplication", toApplicationItem(app), "attribute_not_exists(PK)")
	if isConditionalCheckFailure(err) {
		return domain.ErrConflict
	}
	return storageErr("PutApplication", err)
}

func (r *ApplicationRepository) GetByID(ctx context.Context, appID string) (domain.Application, error) {
	var it applicationItem
	if err := r.client.get(ctx, "GetApplication", appPK(appID), metaSK, &it); err != nil {
		return domain.Application{}, err
	}
	app, err := it.toDomain()
	if err != nil {
		return domain.Application{}, storageErr("GetApplication", err)
	}
	return app, nil
}

func (r *ApplicationRepository) ListByOwner(ctx context.Context, userID string) ([]domain.Application, error) {
	if userID == "" {
		return []domain.Application{}, nil
	}
	return r.List(ctx, domain.ApplicationFilter{UserID: userID})
}

// List reads newest first from the owner index when filter.UserID is set,
// otherwise from the entity index. Status filtering happens server side, so
// the limit is applied after filtering.
func (r *ApplicationRepository) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, error) {
	input := &awsv2dynamodb.QueryInput{
		IndexName:              aws.String(entityIndex),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":pk": &awsv2types.AttributeValueMemberS{Value: entityPK(entityApplication)},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if filter.UserID != "" {
		input.IndexName = aws.String(ownerIndex)
		input.KeyConditionExpression = aws.String("GSI2PK = :pk")
		input.ExpressionAttributeValues[":pk"] = &awsv2types.AttributeValueMemberS{Value: ownerPK(filter.UserID)}
	}
	if filter.Status != "" {
		input.FilterExpression = aws.String("#s = :status")
		input.ExpressionAttributeNames = map[string]string{"#s": "Status"}
		input.ExpressionAttributeValues[":status"] = &awsv2types.AttributeValueMemberS{Value: filter.Status.String()}
	}

	apps := []domain.Application{}
	err := r.client.queryAll(ctx, "QueryApplications", input, func(item map[string]awsv2types.AttributeValue) (bool, error) {
		var it applicationItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return false, err
		}
		app, err := it.toDomain()
		if err != nil {
			return false, err
		}
		apps = append(apps, app)
		return filter.Limit > 0 && len(apps) >= filter.Limit, nil
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *AuditRepository) Append(ctx context.Context, event domain.StatusChangeEvent) (string, error) {
	if event.ID == "" || event.ApplicationID == "" {
		return "", domain.Invalid("event", "id and applicationId are required")
	}
	err := r.client.put(ctx, "PutStatusChangeEvent", toEventItem(event), "attribute_not_exists(PK)")
	if isConditionalCheckFailure(err) {
		return "", domain.ErrConflict
	}
	if err != nil {
		return "", storageErr("PutStatusChangeEvent", err)
	}
	return event.ID, nil
}

// ListByApplication returns events oldest first; the sort key starts with
// the fixed-width timestamp.
func (r *AuditRepository) ListByApplication(ctx context.Context, appID string) ([]domain.StatusChangeEvent, error) {
	input := &awsv2dynamodb.QueryInput{
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":pk": &awsv2types.AttributeValueMemberS{Value: appPK(appID)},
			":sk": &awsv2types.AttributeValueMemberS{Value: eventPrefix},
		},
		ConsistentRead:   aws.Bool(true),
		ScanIndexForward: aws.Bool(true),
	}
	events := []domain.StatusChangeEvent{}
	err := r.client.queryAll(ctx, "QueryStatusChangeEvents", input, func(item map[string]awsv2types.AttributeValue) (bool, error) {
		var it eventItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return false, err
		}
		ev, err := it.toDomain()
		if err != nil {
			return false, err
		}
		events = append(events, ev)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CommitTransition updates the application only if its stored status still
// equals expected and writes the event in the same transaction.
func (t *TransitionStore) CommitTransition(ctx context.Context, updated domain.Application, expected domain.Status, event domain.StatusChangeEvent) error {
	eventAV, err := attributevalue.MarshalMap(toEventItem(event))
	if err != nil {
		return storageErr("TransactTransition", err)
	}
	input := &awsv2dynamodb.TransactWriteItemsInput{
		TransactItems: []awsv2types.TransactWriteItem{
			{
				Update: &awsv2types.Update{
					TableName:           aws.String(t.client.tableName),
					Key:                 key(appPK(updated.ID), metaSK),
					UpdateExpression:    aws.String("SET #s = :new, UpdatedAt = :u, StaffRemarks = :r"),
					ConditionExpression: aws.String("attribute_exists(PK) AND #s = :expected"),
					ExpressionAttributeNames: map[string]string{
						"#s": "Status",
					},
					ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
						":new":      &awsv2types.AttributeValueMemberS{Value: updated.Status.String()},
						":expected": &awsv2types.AttributeValueMemberS{Value: expected.String()},
						":u":        &awsv2types.AttributeValueMemberS{Value: formatTime(updated.UpdatedAt)},
						":r":        &awsv2types.AttributeValueMemberS{Value: updated.StaffRemarks},
					},
					ReturnValuesOnConditionCheckFailure: awsv2types.ReturnValuesOnConditionCheckFailureAllOld,
				},
			},
			{
				Put: &awsv2types.Put{
					TableName:           aws.String(t.client.tableName),
					Item:                eventAV,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				},
			},
		},
	}
	err = xray.Capture(ctx, "DynamoDB.TransactTransition", func(ctx context.Context) error {
		_, err := t.client.db.TransactWriteItems(ctx, input)
		return err
	})
	if err == nil {
		return nil
	}
	reasons := cancellationReasons(err)
	if len(reasons) == 2 {
		switch {
		case conditionFailed(reasons[0]) && reasons[0].Item == nil:
			return domain.ErrNotFound
		case conditionFailed(reasons[0]), conditionFailed(reasons[1]):
			return domain.ErrConflict
		case aws.ToString(reasons[0].Code) == "TransactionConflict":
			return domain.ErrConflict
		}
	}
	return storageErr("TransactTransition", err)
}
