package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a rendered UpdateExpression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression.
// Fields are emitted in sorted order so the expression is deterministic.
func buildUpdateExpr(updates map[string]interface{}) (*updateExpr, error) {
	set := make(map[string]types.AttributeValue, len(updates))
	for k, v := range updates {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		set[k] = av
	}
	return buildUpsertExpr(set, nil, nil)
}

// buildUpsertExpr renders
//
//	SET a = :a, b = if_not_exists(b, :b) REMOVE c
//
// from already marshalled values. setIfAbsent fields keep their stored value
// when one exists.
func buildUpsertExpr(set, setIfAbsent map[string]types.AttributeValue, remove []string) (*updateExpr, error) {
	ue := &updateExpr{Names: map[string]string{}, Values: map[string]types.AttributeValue{}}
	i := 0
	next := func(field string) (string, string) {
		n, v := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		ue.Names[n] = field
		i++
		return n, v
	}

	var sets []string
	for _, k := range sortedKeys(set) {
		n, v := next(k)
		ue.Values[v] = set[k]
		sets = append(sets, fmt.Sprintf("%s = %s", n, v))
	}
	for _, k := range sortedKeys(setIfAbsent) {
		n, v := next(k)
		ue.Values[v] = setIfAbsent[k]
		sets = append(sets, fmt.Sprintf("%s = if_not_exists(%s, %s)", n, n, v))
	}
	var removes []string
	for _, k := range remove {
		n, _ := next(k)
		removes = append(removes, n)
	}

	if len(sets) == 0 && len(removes) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	var parts []string
	if len(sets) > 0 {
		parts = append(parts, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(removes, ", "))
	}
	ue.Expr = strings.Join(parts, " ")
	if len(ue.Values) == 0 {
		ue.Values = nil
	}
	return ue, nil
}

func sortedKeys(m map[string]types.AttributeValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
