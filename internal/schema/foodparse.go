package schema

// FoodParseResult はAIによる食事解析の応答スキーマ。
var FoodParseResult = MustCompile(`{
	"type": "object",
	"properties": {
		"items": {
			"type": "array",
			"minItems": 1,
			"maxItems": 50,
			"items": {
				"type": "object",
				"properties": {
					"name":      {"type": "string", "minLength": 1, "maxLength": 200},
					"quantity":  {"type": "number", "exclusiveMinimum": true, "minimum": 0},
					"unit":      {"type": "string", "maxLength": 32},
					"calories":  {"type": "number", "minimum": 0, "maximum": 10000},
					"protein_g": {"type": "number", "minimum": 0, "maximum": 1000},
					"carbs_g":   {"type": "number", "minimum": 0, "maximum": 1000},
					"fat_g":     {"type": "number", "minimum": 0, "maximum": 1000},
					"fiber_g":   {"type": "number", "minimum": 0, "maximum": 1000}
				},
				"required": ["name", "quantity", "unit", "calories", "protein_g", "carbs_g", "fat_g"]
			}
		},
		"confidence": {"type": "string", "enum": ["low", "medium", "high"]}
	},
	"required": ["items", "confidence"]
}`)
