package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/aws"
)

const (
	condOrderNotExists = "attribute_not_exists(order_id)"
	condEventNotExists = "attribute_not_exists(event_id)"
	condMarkPaid       = "payment_status = :pending AND (attribute_not_exists(payment_transaction_id) OR payment_transaction_id = :tx)"
	condMarkPaidNoTx   = "payment_status = :pending"
	condAttachTx       = "payment_status = :paid AND attribute_not_exists(payment_transaction_id)"
	condStatusChange   = "shipping_status = :es AND payment_status = :ep"
	condAmendKind      = "kind = :from"

	orderCounterName = "orders"
)

// Store persists orders, their history and the order id counter in DynamoDB.
type Store struct {
	client        aws.DynamoDBAPI
	ordersTable   string
	historyTable  string
	countersTable string
	nowFunc       func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, ordersTable, historyTable, countersTable string) *Store {
	return &Store{
		client:        client,
		ordersTable:   ordersTable,
		historyTable:  historyTable,
		countersTable: countersTable,
		nowFunc:       time.Now,
	}
}

// NextOrderID atomically increments the order counter and returns the new value.
func (s *Store) NextOrderID(ctx context.Context) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.countersTable,
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: orderCounterName},
		},
		UpdateExpression: sdkaws.String("SET seq = if_not_exists(seq, :zero) + :inc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment order counter: %w", err)
	}
	seq, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("increment order counter: seq missing from response")
	}
	id, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse order counter: %w", err)
	}
	return id, nil
}

// Create atomically writes the order and its first history entry.
// Returns ErrOrderExists if the order id is already taken.
func (s *Store) Create(ctx context.Context, order *Order, first HistoryEntry) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if first.CreatedAt.IsZero() {
		first.CreatedAt = order.CreatedAt
	}

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	entryMap, err := attributevalue.MarshalMap(first)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.ordersTable,
					Item:                orderMap,
					ConditionExpression: sdkaws.String(condOrderNotExists),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.historyTable,
					Item:                entryMap,
					ConditionExpression: sdkaws.String(condEventNotExists),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 &&
			sdkaws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
			return ErrOrderExists
		}
		return fmt.Errorf("transact write order %d: %w", order.OrderID, err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID int64) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.ordersTable,
		Key:            orderKey(orderID),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// MarkPaid moves payment PENDING -> PAID and stores txID when given. The
// condition makes it the single compare-and-set both confirmation paths race on.
// Returns ErrStatusMismatch if the order was no longer pending or holds another tx.
func (s *Store) MarkPaid(ctx context.Context, orderID int64, txID string) error {
	values := map[string]types.AttributeValue{
		":pending": &types.AttributeValueMemberS{Value: string(PaymentPending)},
		":paid":    &types.AttributeValueMemberS{Value: string(PaymentPaid)},
		":ua":      s.timeValue(),
		":one":     &types.AttributeValueMemberN{Value: "1"},
	}
	update := "SET payment_status = :paid, updated_at = :ua ADD version :one"
	cond := condMarkPaidNoTx
	if txID != "" {
		values[":tx"] = &types.AttributeValueMemberS{Value: txID}
		update = "SET payment_status = :paid, payment_transaction_id = :tx, updated_at = :ua ADD version :one"
		cond = condMarkPaid
	}
	return s.conditionalUpdate(ctx, orderID, update, cond, values)
}

// AttachTransaction records txID on an already paid order that was settled
// without one. The transaction id is set at most once.
func (s *Store) AttachTransaction(ctx context.Context, orderID int64, txID string) error {
	return s.conditionalUpdate(ctx, orderID,
		"SET payment_transaction_id = :tx, updated_at = :ua ADD version :one",
		condAttachTx,
		map[string]types.AttributeValue{
			":paid": &types.AttributeValueMemberS{Value: string(PaymentPaid)},
			":tx":   &types.AttributeValueMemberS{Value: txID},
			":ua":   s.timeValue(),
			":one":  &types.AttributeValueMemberN{Value: "1"},
		})
}

// UpdateStatus applies change if both stored statuses still match its expectations.
func (s *Store) UpdateStatus(ctx context.Context, orderID int64, change StatusChange) error {
	return s.conditionalUpdate(ctx, orderID,
		"SET shipping_status = :s, payment_status = :p, updated_at = :ua ADD version :one",
		condStatusChange,
		map[string]types.AttributeValue{
			":es":  &types.AttributeValueMemberS{Value: string(change.ExpectedShipping)},
			":ep":  &types.AttributeValueMemberS{Value: string(change.ExpectedPayment)},
			":s":   &types.AttributeValueMemberS{Value: string(change.Shipping)},
			":p":   &types.AttributeValueMemberS{Value: string(change.Payment)},
			":ua":  s.timeValue(),
			":one": &types.AttributeValueMemberN{Value: "1"},
		})
}

func (s *Store) conditionalUpdate(ctx context.Context, orderID int64, update, cond string, values map[string]types.AttributeValue) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.ordersTable,
		Key:                       orderKey(orderID),
		UpdateExpression:          sdkaws.String(update),
		ConditionExpression:       sdkaws.String(cond),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update order %d: %w", orderID, err)
	}
	return nil
}

// ListPendingPayment returns online-gateway orders still awaiting payment that
// were created before cutoff.
func (s *Store) ListPendingPayment(ctx context.Context, cutoff time.Time) ([]Order, error) {
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{
		TableName:        &s.ordersTable,
		FilterExpression: sdkaws.String("payment_status = :pending AND payment_method = :online"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(PaymentPending)},
			":online":  &types.AttributeValueMemberS{Value: string(PaymentOnlineGateway)},
		},
	})

	var out []Order
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan pending orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal pending orders: %w", err)
		}
		for _, o := range batch {
			if o.CreatedAt.Before(cutoff) {
				out = append(out, o)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

// AppendHistory writes a new history entry. Entries are never overwritten.
func (s *Store) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.nowFunc().UTC()
	}
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.historyTable,
		Item:                item,
		ConditionExpression: sdkaws.String(condEventNotExists),
	})
	if err != nil {
		return fmt.Errorf("append history for order %d: %w", entry.OrderID, err)
	}
	return nil
}

// ListHistory returns an order's history, most recent first.
func (s *Store) ListHistory(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	p := dyn.NewQueryPaginator(s.client, &dyn.QueryInput{
		TableName:              &s.historyTable,
		KeyConditionExpression: sdkaws.String("order_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": orderIDValue(orderID),
		},
		ScanIndexForward: sdkaws.Bool(false),
		ConsistentRead:   sdkaws.Bool(true),
	})

	var out []HistoryEntry
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query history for order %d: %w", orderID, err)
		}
		var batch []HistoryEntry
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

// AmendLatest rewrites the most recent entry of kind from into kind to with a
// new note. It reports false when no such entry exists or another writer
// amended it first.
func (s *Store) AmendLatest(ctx context.Context, orderID int64, from, to HistoryKind, note string) (bool, error) {
	entries, err := s.ListHistory(ctx, orderID)
	if err != nil {
		return false, err
	}
	var target *HistoryEntry
	for i := range entries {
		if entries[i].Kind == from {
			target = &entries[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.historyTable,
		Key: map[string]types.AttributeValue{
			"order_id": orderIDValue(orderID),
			"event_id": &types.AttributeValueMemberS{Value: target.EventID},
		},
		UpdateExpression:    sdkaws.String("SET kind = :to, note = :note, amended_at = :ua"),
		ConditionExpression: sdkaws.String(condAmendKind),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":to":   &types.AttributeValueMemberS{Value: string(to)},
			":note": &types.AttributeValueMemberS{Value: note},
			":ua":   s.timeValue(),
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("amend history for order %d: %w", orderID, err)
	}
	return true, nil
}

func (s *Store) timeValue() types.AttributeValue {
	av, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)}
	}
	return av
}

func orderIDValue(orderID int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(orderID, 10)}
}

func orderKey(orderID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"order_id": orderIDValue(orderID)}
}
