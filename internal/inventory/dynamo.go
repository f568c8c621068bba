package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/aws"
)

const (
	condEntryNotExists = "attribute_not_exists(order_id)"
	condEntryCommitted = "#st = :committed"
	condStockCovers    = "attribute_exists(product_id) AND stock_quantity >= :q"
	condProductExists  = "attribute_exists(product_id)"

	// DynamoDB allows 100 actions per transaction; one is the ledger entry.
	maxLinesPerTx = 99
)

// DynamoStore keeps products and the stock ledger in DynamoDB.
type DynamoStore struct {
	client        aws.DynamoDBAPI
	productsTable string
	ledgerTable   string
	nowFunc       func() time.Time
}

func NewDynamoStore(client aws.DynamoDBAPI, productsTable, ledgerTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		productsTable: productsTable,
		ledgerTable:   ledgerTable,
		nowFunc:       time.Now,
	}
}

func (s *DynamoStore) GetProduct(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.productsTable,
		Key:            productKey(productID),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrProductNotFound
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

func (s *DynamoStore) AdjustStock(ctx context.Context, productID string, delta int) (*Product, error) {
	cond := condProductExists
	values := map[string]types.AttributeValue{
		":d":  numberValue(delta),
		":ua": s.timeValue(),
	}
	if delta < 0 {
		cond = condStockCovers
		values[":q"] = numberValue(-delta)
	}
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                           &s.productsTable,
		Key:                                 productKey(productID),
		UpdateExpression:                    sdkaws.String("SET updated_at = :ua ADD stock_quantity :d"),
		ConditionExpression:                 sdkaws.String(cond),
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			var ccf *types.ConditionalCheckFailedException
			if !errors.As(err, &ccf) || len(ccf.Item) == 0 {
				return nil, ErrProductNotFound
			}
			return nil, &InsufficientStockError{ProductID: productID, Requested: -delta, Available: stockOf(ccf.Item)}
		}
		return nil, fmt.Errorf("adjust stock %s: %w", productID, err)
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

func (s *DynamoStore) Reserve(ctx context.Context, orderID int64, lines []Line) error {
	if len(lines) > maxLinesPerTx {
		return ErrTooManyLines
	}
	now := s.nowFunc().UTC()
	entryMap, err := attributevalue.MarshalMap(Entry{
		OrderID:   orderID,
		State:     StateCommitted,
		Lines:     lines,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	ua := s.timeValue()

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           &s.ledgerTable,
			Item:                entryMap,
			ConditionExpression: sdkaws.String(condEntryNotExists),
		},
	}}
	for _, l := range lines {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           &s.productsTable,
				Key:                 productKey(l.ProductID),
				UpdateExpression:    sdkaws.String("SET stock_quantity = stock_quantity - :q, updated_at = :ua"),
				ConditionExpression: sdkaws.String(condStockCovers),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":  numberValue(l.Quantity),
					":ua": ua,
				},
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return fmt.Errorf("reserve stock for order %d: %w", orderID, err)
	}
	for i, r := range tce.CancellationReasons {
		if sdkaws.ToString(r.Code) != "ConditionalCheckFailed" {
			continue
		}
		if i == 0 {
			return ErrAlreadyCommitted
		}
		l := lines[i-1]
		if len(r.Item) == 0 {
			return fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}
		return &InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: stockOf(r.Item)}
	}
	return fmt.Errorf("reserve stock for order %d: %w", orderID, err)
}

func (s *DynamoStore) Release(ctx context.Context, orderID int64) (*Entry, error) {
	entry, err := s.GetEntry(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.State != StateCommitted {
		return nil, ErrNothingToRestore
	}
	ua := s.timeValue()

	items := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName:                &s.ledgerTable,
			Key:                      map[string]types.AttributeValue{"order_id": numberValue64(orderID)},
			UpdateExpression:         sdkaws.String("SET #st = :restored, restored_at = :ua"),
			ConditionExpression:      sdkaws.String(condEntryCommitted),
			ExpressionAttributeNames: map[string]string{"#st": "state"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":committed": &types.AttributeValueMemberS{Value: string(StateCommitted)},
				":restored":  &types.AttributeValueMemberS{Value: string(StateRestored)},
				":ua":        ua,
			},
		},
	}}
	for _, l := range entry.Lines {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:        &s.productsTable,
				Key:              productKey(l.ProductID),
				UpdateExpression: sdkaws.String("SET updated_at = :ua ADD stock_quantity :q"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":  numberValue(l.Quantity),
					":ua": ua,
				},
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 &&
			sdkaws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			return nil, ErrNothingToRestore
		}
		return nil, fmt.Errorf("restore stock for order %d: %w", orderID, err)
	}
	now := s.nowFunc().UTC()
	entry.State = StateRestored
	entry.RestoredAt = &now
	return entry, nil
}

func (s *DynamoStore) GetEntry(ctx context.Context, orderID int64) (*Entry, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.ledgerTable,
		Key:            map[string]types.AttributeValue{"order_id": numberValue64(orderID)},
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %d: %w", orderID, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var e Entry
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, fmt.Errorf("unmarshal ledger entry: %w", err)
	}
	return &e, nil
}

func (s *DynamoStore) timeValue() types.AttributeValue {
	av, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)}
	}
	return av
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"product_id": &types.AttributeValueMemberS{Value: productID}}
}

func numberValue(n int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func numberValue64(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func stockOf(item map[string]types.AttributeValue) int {
	if v, ok := item["stock_quantity"].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.Atoi(v.Value)
		return n
	}
	return 0
}

var _ Store = (*DynamoStore)(nil)
