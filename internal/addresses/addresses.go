// Package addresses reads customer addresses owned by the account service.
package addresses

import (
	"context"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/aws"
)

// Address is a delivery location with its geocoded coordinate.
type Address struct {
	ID        string  `dynamodbav:"address_id" json:"address_id"` // PK
	AccountID string  `dynamodbav:"account_id" json:"account_id"`
	Line1     string  `dynamodbav:"line1,omitempty" json:"line1,omitempty"`
	City      string  `dynamodbav:"city,omitempty" json:"city,omitempty"`
	Latitude  float64 `dynamodbav:"latitude" json:"latitude"`
	Longitude float64 `dynamodbav:"longitude" json:"longitude"`
}

// Book looks up addresses. Get returns (nil, nil) when the address does not exist.
type Book interface {
	Get(ctx context.Context, addressID string) (*Address, error)
}

// DynamoBook reads addresses from a DynamoDB table.
type DynamoBook struct {
	client aws.DynamoDBAPI
	table  string
}

func NewDynamoBook(client aws.DynamoDBAPI, table string) *DynamoBook {
	return &DynamoBook{client: client, table: table}
}

func (b *DynamoBook) Get(ctx context.Context, addressID string) (*Address, error) {
	out, err := b.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &b.table,
		Key: map[string]types.AttributeValue{
			"address_id": &types.AttributeValueMemberS{Value: addressID},
		},
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get address %s: %w", addressID, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var a Address
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	return &a, nil
}

// MemoryBook is an in-process Book for local runs and tests.
type MemoryBook struct {
	mu    sync.RWMutex
	items map[string]Address
}

func NewMemoryBook(addrs ...Address) *MemoryBook {
	b := &MemoryBook{items: map[string]Address{}}
	for _, a := range addrs {
		b.items[a.ID] = a
	}
	return b
}

func (b *MemoryBook) Put(a Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[a.ID] = a
}

func (b *MemoryBook) Get(_ context.Context, addressID string) (*Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.items[addressID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

var (
	_ Book = (*DynamoBook)(nil)
	_ Book = (*MemoryBook)(nil)
)
