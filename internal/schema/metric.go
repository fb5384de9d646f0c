package schema

import "sort"

// MetricType は健康指標の種別定義。
type MetricType struct {
	Name      string
	Unit      string
	Fields    []string // 集計対象の数値フィールド
	validator *Validator
}

// Validate は値ペイロードを種別のスキーマで検証する。
func (m *MetricType) Validate(value []byte) ([]Violation, error) {
	return m.validator.Validate(value)
}

func newMetricType(name, unit string, fields []string, schemaJSON string) *MetricType {
	return &MetricType{
		Name:      name,
		Unit:      unit,
		Fields:    fields,
		validator: MustCompile(schemaJSON),
	}
}

var metricTypes = map[string]*MetricType{
	"blood_pressure": newMetricType("blood_pressure", "mmHg", []string{"systolic", "diastolic"}, `{
		"type": "object",
		"properties": {
			"systolic":  {"type": "number", "minimum": 40, "maximum": 300},
			"diastolic": {"type": "number", "minimum": 20, "maximum": 200}
		},
		"required": ["systolic", "diastolic"],
		"additionalProperties": false
	}`),
	"heart_rate": newMetricType("heart_rate", "bpm", []string{"bpm"}, `{
		"type": "object",
		"properties": {
			"bpm": {"type": "number", "minimum": 20, "maximum": 250}
		},
		"required": ["bpm"],
		"additionalProperties": false
	}`),
	"sleep": newMetricType("sleep", "h", []string{"hours", "quality"}, `{
		"type": "object",
		"properties": {
			"hours":   {"type": "number", "minimum": 0, "maximum": 24},
			"quality": {"type": "integer", "minimum": 1, "maximum": 5}
		},
		"required": ["hours"],
		"additionalProperties": false
	}`),
	"blood_glucose": newMetricType("blood_glucose", "mg/dL", []string{"mg_dl"}, `{
		"type": "object",
		"properties": {
			"mg_dl": {"type": "number", "minimum": 10, "maximum": 1000}
		},
		"required": ["mg_dl"],
		"additionalProperties": false
	}`),
	"ketones": newMetricType("ketones", "mmol/L", []string{"mmol_l"}, `{
		"type": "object",
		"properties": {
			"mmol_l": {"type": "number", "minimum": 0, "maximum": 20}
		},
		"required": ["mmol_l"],
		"additionalProperties": false
	}`),
	"water": newMetricType("water", "ml", []string{"ml"}, `{
		"type": "object",
		"properties": {
			"ml": {"type": "number", "minimum": 0, "maximum": 10000}
		},
		"required": ["ml"],
		"additionalProperties": false
	}`),
	"steps": newMetricType("steps", "steps", []string{"count"}, `{
		"type": "object",
		"properties": {
			"count": {"type": "integer", "minimum": 0, "maximum": 200000}
		},
		"required": ["count"],
		"additionalProperties": false
	}`),
	"mood": newMetricType("mood", "score", []string{"score"}, `{
		"type": "object",
		"properties": {
			"score": {"type": "integer", "minimum": 1, "maximum": 10}
		},
		"required": ["score"],
		"additionalProperties": false
	}`),
}

// LookupMetricType は種別名から定義を返す。未知の種別はfalseを返す。
func LookupMetricType(name string) (*MetricType, bool) {
	m, ok := metricTypes[name]
	return m, ok
}

// MetricTypeNames は定義済みの種別名を名前順で返す。
func MetricTypeNames() []string {
	names := make([]string, 0, len(metricTypes))
	for name := range metricTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
