package cel

// WhereExpressionExamples are shown in the viewer UI as starting points.
var WhereExpressionExamples = map[string]string{
	"json_field_equals": `json.level == "error"`,
	"numeric_threshold": `json.amount > 100.0`,
	"has_json_field":    `has(json.user) && json.user.tier == "premium"`,
	"property_match":    `properties["source"] == "billing"`,
	"property_present":  `"traceparent" in properties`,
	"key_prefix":        `key.startsWith("order-")`,
	"text_contains":     `data.lowerAscii().contains("timeout")`,
	"recent_only":       `publishTime > 1700000000000`,
	"combined":          `key != "" && json.status in ["failed", "retrying"]`,
}
