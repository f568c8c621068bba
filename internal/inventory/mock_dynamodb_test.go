package inventory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo understands the product and ledger writes DynamoStore issues.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) table(name string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[name]
}

func (m *mockDynamo) seed(table string, p Product) {
	item, _ := attributevalue.MarshalMap(p)
	m.table(table)[p.ProductID] = item
}

func mockKey(attrs map[string]types.AttributeValue) string {
	if v, ok := attrs["product_id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	if v, ok := attrs["order_id"].(*types.AttributeValueMemberN); ok {
		return v.Value
	}
	return ""
}

func num(item map[string]types.AttributeValue, name string) int {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.Atoi(v.Value)
		return n
	}
	return 0
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// check evaluates cond against item and returns the updated item on success.
func check(cond string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) bool {
	switch cond {
	case condEntryNotExists:
		return item == nil
	case condProductExists:
		return item != nil
	case condStockCovers:
		return item != nil && num(item, "stock_quantity") >= num(values, ":q")
	case condEntryCommitted:
		v, _ := item["state"].(*types.AttributeValueMemberS)
		return v != nil && v.Value == values[":committed"].(*types.AttributeValueMemberS).Value
	}
	return cond == ""
}

func apply(expr string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) {
	stock := num(item, "stock_quantity")
	switch expr {
	case "SET stock_quantity = stock_quantity - :q, updated_at = :ua":
		item["stock_quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(stock - num(values, ":q"))}
	case "SET updated_at = :ua ADD stock_quantity :q":
		item["stock_quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(stock + num(values, ":q"))}
	case "SET updated_at = :ua ADD stock_quantity :d":
		item["stock_quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(stock + num(values, ":d"))}
	case "SET #st = :restored, restored_at = :ua":
		item["state"] = values[":restored"]
		item["restored_at"] = values[":ua"]
		return
	}
	item["updated_at"] = values[":ua"]
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	return nil, errors.New("not used")
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &dyn.GetItemOutput{Item: copyItem(m.table(*params.TableName)[mockKey(params.Key)])}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.table(*params.TableName)
	k := mockKey(params.Key)
	item := tbl[k]
	if !check(*params.ConditionExpression, item, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Item: copyItem(item)}
	}
	next := copyItem(item)
	apply(*params.UpdateExpression, next, params.ExpressionAttributeValues)
	tbl[k] = next
	return &dyn.UpdateItemOutput{Attributes: copyItem(next)}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("not used")
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("not used")
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		code := "None"
		reasons[i] = types.CancellationReason{Code: &code}
		switch {
		case it.Put != nil:
			p := it.Put
			if !check(*p.ConditionExpression, m.table(*p.TableName)[mockKey(p.Item)], p.ExpressionAttributeValues) {
				code = "ConditionalCheckFailed"
				failed = true
			}
		case it.Update != nil:
			u := it.Update
			cond := ""
			if u.ConditionExpression != nil {
				cond = *u.ConditionExpression
			}
			item := m.table(*u.TableName)[mockKey(u.Key)]
			if !check(cond, item, u.ExpressionAttributeValues) {
				code = "ConditionalCheckFailed"
				failed = true
				if u.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
					reasons[i].Item = copyItem(item)
				}
			}
		}
		reasons[i].Code = &code
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			m.table(*p.TableName)[mockKey(p.Item)] = p.Item
		}
		if u := it.Update; u != nil {
			tbl := m.table(*u.TableName)
			next := copyItem(tbl[mockKey(u.Key)])
			if next == nil {
				next = copyItem(u.Key)
			}
			apply(*u.UpdateExpression, next, u.ExpressionAttributeValues)
			tbl[mockKey(u.Key)] = next
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
