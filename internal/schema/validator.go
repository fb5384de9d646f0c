// Package schema はJSON Schemaによるペイロード検証を提供する。
// 健康指標の値とAI応答の構造を検証する。
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/juju/gojsonschema"
)

// rootField はgojsonschemaがルート要素に付けるフィールド名。
const rootField = "(root)"

// Violation はスキーマ違反の1件。
type Violation struct {
	Field   string
	Message string
}

// Validator はコンパイル済みのJSON Schemaで文書を検証する。
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile はJSON Schema文字列からValidatorを生成する。
func Compile(schemaJSON string) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// MustCompile はCompileに失敗した場合panicする。パッケージ初期化時の組み込みスキーマ用。
func MustCompile(schemaJSON string) *Validator {
	v, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate はJSON文書を検証し、違反をフィールド名順で返す。
// 文書がJSONとして解釈できない場合はerrorを返す。
func (v *Validator) Validate(doc []byte) ([]Violation, error) {
	if !json.Valid(doc) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	result, err := v.schema.Validate(gojsonschema.NewStringLoader(string(doc)))
	if err != nil {
		return nil, fmt.Errorf("failed to validate document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, Violation{
			Field:   e.Context.String(),
			Message: e.Description,
		})
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Field < violations[j].Field
	})
	return violations, nil
}

// FieldErrors は違反をフィールド名→メッセージのmapに変換する。
// 各フィールド名にprefixを付け、ルート要素の違反はprefixそのものを使う。
// 同じフィールドの違反は "; " で連結する。
func FieldErrors(prefix string, violations []Violation) map[string]string {
	fields := make(map[string]string, len(violations))
	for _, v := range violations {
		key := prefix
		if v.Field != "" && v.Field != rootField {
			key = prefix + "." + strings.TrimPrefix(v.Field, rootField+".")
		}
		if prev, ok := fields[key]; ok {
			fields[key] = prev + "; " + v.Message
			continue
		}
		fields[key] = v.Message
	}
	return fields
}
