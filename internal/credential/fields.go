package credential

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/itchyny/gojq"
)

// secretFieldNames is the field lookup order for 1password: sources.
var secretFieldNames = []string{ //nolint:gochecknoglobals // fixed priority list
	"credential",
	"password",
	"api_key",
	"api key",
	"secret",
	"token",
	"notesPlain",
}

// SecretFieldNames returns a copy of the field lookup order.
func SecretFieldNames() []string {
	return append([]string(nil), secretFieldNames...)
}

// fieldQuery yields the non-empty string values of fields whose label or id
// equals $name, case-insensitively.
var fieldQuery = mustCompile(`
	.fields[]?
	| select((((.label // "") | ascii_downcase) == $name) or (((.id // "") | ascii_downcase) == $name))
	| .value
	| select(type == "string" and length > 0)
`, "$name")

func mustCompile(src string, vars ...string) *gojq.Code {
	q, err := gojq.Parse(src)
	if err != nil {
		panic(err)
	}
	code, err := gojq.Compile(q, gojq.WithVariables(vars))
	if err != nil {
		panic(err)
	}
	return code
}

// findField searches an item document for the first field, in priority
// order, that holds a non-empty value.
func findField(ctx context.Context, doc []byte, names []string) (string, bool) {
	var item any
	if err := json.Unmarshal(doc, &item); err != nil {
		return "", false
	}
	for _, name := range names {
		iter := fieldQuery.RunWithContext(ctx, item, strings.ToLower(name))
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if _, isErr := v.(error); isErr {
				break
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}
