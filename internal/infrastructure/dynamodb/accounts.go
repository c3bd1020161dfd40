package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-xray-sdk-go/xray"

	"citizen-portal/internal/domain"
)

type accountItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	ID         string `dynamodbav:"ID"`
	Name       string `dynamodbav:"Name"`
	Email      string `dynamodbav:"Email"`
	Phone      string `dynamodbav:"Phone,omitempty"`
	Role       string `dynamodbav:"Role"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// emailLockItem reserves an email address for exactly one account.
type emailLockItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	AccountID  string `dynamodbav:"AccountID"`
}

func toAccountItem(a domain.Account) accountItem {
	return accountItem{
		PK:         accountPK(a.ID),
		SK:         metaSK,
		EntityType: entityAccount,
		GSI1PK:     entityPK(entityAccount),
		GSI1SK:     a.ID,
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		Role:       a.Role.String(),
		CreatedAt:  formatTime(a.CreatedAt),
		UpdatedAt:  formatTime(a.UpdatedAt),
	}
}

func (it accountItem) toDomain() (domain.Account, error) {
	role := domain.RoleNone
	if it.Role != "" {
		parsed, err := domain.ParseRole(it.Role)
		if err != nil {
			return domain.Account{}, fmt.Errorf("account %s: %w", it.ID, err)
		}
		role = parsed
	}
	createdAt, err := parseTime(it.CreatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	updatedAt, err := parseTime(it.UpdatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{
		ID:        it.ID,
		Name:      it.Name,
		Email:     it.Email,
		Phone:     it.Phone,
		Role:      role,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

type AccountRepository struct{ client *Client }

func NewAccountRepository(client *Client) *AccountRepository {
	return &AccountRepository{client: client}
}

// Create writes the account and its email reservation together; either
// already existing is a conflict.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	accountAV, err := attributevalue.MarshalMap(toAccountItem(account))
	if err != nil {
		return storageErr("PutAccount", err)
	}
	lockAV, err := attributevalue.MarshalMap(emailLockItem{
		PK:         emailPK(account.Email),
		SK:         emailLockSK,
		EntityType: entityEmailLock,
		AccountID:  account.ID,
	})
	if err != nil {
		return storageErr("PutAccount", err)
	}
	tableName := aws.String(r.client.tableName)
	err = xray.Capture(ctx, "DynamoDB.PutAccount", func(ctx context.Context) error {
		_, err := r.client.db.TransactWriteItems(ctx, &awsv2dynamodb.TransactWriteItemsInput{
			TransactItems: []awsv2types.TransactWriteItem{
				{Put: &awsv2types.Put{TableName: tableName, Item: accountAV, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
				{Put: &awsv2types.Put{TableName: tableName, Item: lockAV, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
			},
		})
		return err
	})
	if err == nil {
		return nil
	}
	for _, reason := range cancellationReasons(err) {
		if conditionFailed(reason) {
			return domain.ErrConflict
		}
	}
	return storageErr("PutAccount", err)
}

// Update replaces profile and role. The email reservation is untouched, so
// callers must not change Email here.
func (r *AccountRepository) Update(ctx context.Context, account domain.Account) error {
	err := r.client.put(ctx, "UpdateAccount", toAccountItem(account), "attribute_exists(PK)")
	if isConditionalCheckFailure(err) {
		return domain.ErrNotFound
	}
	return storageErr("UpdateAccount", err)
}

func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (domain.Account, error) {
	var it accountItem
	if err := r.client.get(ctx, "GetAccount", accountPK(accountID), metaSK, &it); err != nil {
		return domain.Account{}, err
	}
	account, err := it.toDomain()
	if err != nil {
		return domain.Account{}, storageErr("GetAccount", err)
	}
	return account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	var lock emailLockItem
	if err := r.client.get(ctx, "GetEmailLock", emailPK(email), emailLockSK, &lock); err != nil {
		return domain.Account{}, err
	}
	return r.GetByID(ctx, lock.AccountID)
}

func (r *AccountRepository) List(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	input := &awsv2dynamodb.QueryInput{
		IndexName:              aws.String(entityIndex),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
			":pk": &awsv2types.AttributeValueMemberS{Value: entityPK(entityAccount)},
		},
	}
	if role != domain.RoleNone {
		input.FilterExpression = aws.String("#r = :role")
		input.ExpressionAttributeNames = map[string]string{"#r": "Role"}
		input.ExpressionAttributeValues[":role"] = &awsv2types.AttributeValueMemberS{Value: role.String()}
	}
	accounts := []domain.Account{}
	err := r.client.queryAll(ctx, "QueryAccounts", input, func(item map[string]awsv2types.AttributeValue) (bool, error) {
		var it accountItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return false, err
		}
		account, err := it.toDomain()
		if err != nil {
			return false, err
		}
		accounts = append(accounts, account)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
