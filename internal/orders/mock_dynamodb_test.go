package orders

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo keeps items per table keyed by their primary key values. It
// understands only the condition expressions the Store issues.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func keyOf(attrs map[string]types.AttributeValue) string {
	var parts []string
	for _, name := range []string{"name", "order_id", "event_id"} {
		switch v := attrs[name].(type) {
		case *types.AttributeValueMemberS:
			parts = append(parts, v.Value)
		case *types.AttributeValueMemberN:
			parts = append(parts, v.Value)
		}
	}
	return strings.Join(parts, "#")
}

func (m *mockDynamo) table(name string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[name]
}

func str(item map[string]types.AttributeValue, name string) (string, bool) {
	v, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}

func sval(values map[string]types.AttributeValue, name string) string {
	return values[name].(*types.AttributeValueMemberS).Value
}

func evalCondition(cond string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) bool {
	switch cond {
	case "":
		return true
	case condOrderNotExists, condEventNotExists:
		return item == nil
	}
	if item == nil {
		return false
	}
	status, _ := str(item, "payment_status")
	tx, hasTx := str(item, "payment_transaction_id")
	switch cond {
	case condMarkPaidNoTx:
		return status == sval(values, ":pending")
	case condMarkPaid:
		return status == sval(values, ":pending") && (!hasTx || tx == sval(values, ":tx"))
	case condAttachTx:
		return status == sval(values, ":paid") && !hasTx
	case condStatusChange:
		shipping, _ := str(item, "shipping_status")
		return shipping == sval(values, ":es") && status == sval(values, ":ep")
	case condAmendKind:
		kind, _ := str(item, "kind")
		return kind == sval(values, ":from")
	}
	return false
}

// applyUpdate handles "SET a = :x, b = :y ADD c :z" and the counter expression.
func applyUpdate(expr string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) {
	if strings.Contains(expr, "if_not_exists(seq") {
		cur := int64(0)
		if v, ok := item["seq"].(*types.AttributeValueMemberN); ok {
			cur, _ = strconv.ParseInt(v.Value, 10, 64)
		}
		item["seq"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(cur+1, 10)}
		return
	}
	setPart, addPart, _ := strings.Cut(expr, " ADD ")
	setPart = strings.TrimPrefix(setPart, "SET ")
	for _, assign := range strings.Split(setPart, ", ") {
		name, ref, ok := strings.Cut(assign, " = ")
		if ok {
			item[name] = values[ref]
		}
	}
	if addPart != "" {
		name, ref, _ := strings.Cut(addPart, " ")
		cur := int64(0)
		if v, ok := item[name].(*types.AttributeValueMemberN); ok {
			cur, _ = strconv.ParseInt(v.Value, 10, 64)
		}
		inc, _ := strconv.ParseInt(values[ref].(*types.AttributeValueMemberN).Value, 10, 64)
		item[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(cur+inc, 10)}
	}
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.table(*params.TableName)
	k := keyOf(params.Item)
	if k == "" {
		return nil, errors.New("no primary key in put item")
	}
	if params.ConditionExpression != nil && !evalCondition(*params.ConditionExpression, tbl[k], params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	tbl[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.table(*params.TableName)[keyOf(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.table(*params.TableName)
	k := keyOf(params.Key)
	item := tbl[k]
	cond := ""
	if params.ConditionExpression != nil {
		cond = *params.ConditionExpression
	}
	if !evalCondition(cond, item, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if item == nil {
		item = map[string]types.AttributeValue{}
		for n, v := range params.Key {
			item[n] = v
		}
	}
	applyUpdate(*params.UpdateExpression, item, params.ExpressionAttributeValues)
	tbl[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := params.ExpressionAttributeValues[":id"].(*types.AttributeValueMemberN).Value
	var items []map[string]types.AttributeValue
	for _, item := range m.table(*params.TableName) {
		if v, ok := item["order_id"].(*types.AttributeValueMemberN); ok && v.Value == id {
			items = append(items, item)
		}
	}
	forward := params.ScanIndexForward == nil || *params.ScanIndexForward
	sort.Slice(items, func(i, j int) bool {
		a, _ := str(items[i], "event_id")
		b, _ := str(items[j], "event_id")
		if forward {
			return a < b
		}
		return a > b
	})
	return &dyn.QueryOutput{Items: items}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []map[string]types.AttributeValue
	for _, item := range m.table(*params.TableName) {
		status, _ := str(item, "payment_status")
		method, _ := str(item, "payment_method")
		if status == sval(params.ExpressionAttributeValues, ":pending") &&
			method == sval(params.ExpressionAttributeValues, ":online") {
			items = append(items, item)
		}
	}
	return &dyn.ScanOutput{Items: items}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		code := "None"
		if p := it.Put; p != nil && p.ConditionExpression != nil {
			if !evalCondition(*p.ConditionExpression, m.table(*p.TableName)[keyOf(p.Item)], p.ExpressionAttributeValues) {
				code = "ConditionalCheckFailed"
				failed = true
			}
		}
		reasons[i] = types.CancellationReason{Code: &code}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			m.table(*p.TableName)[keyOf(p.Item)] = p.Item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
