package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamview/pkg/models"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateFilterExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name: "json field comparison",
			expr: `json.status == "active"`,
		},
		{
			name: "property lookup",
			expr: `properties["app"] == "demo"`,
		},
		{
			name: "string extension",
			expr: `data.lowerAscii().contains("error")`,
		},
		{
			name:      "non-bool expression",
			expr:      `publishTime`,
			wantError: true,
		},
		{
			name:      "invalid syntax",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `payload.status == "active"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateFilterExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterMatch(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	eventTime := int64(1_700_000_000_000)
	msg := models.NormalizedMessage{
		ID:          "1:2:-1",
		PublishTime: 1_700_000_000_500,
		EventTime:   &eventTime,
		Properties:  map[string]string{"app": "billing"},
		Key:         "order-17",
		Data:        `{"status":"failed","amount":150.5,"user":{"tier":"premium"}}`,
		Structured: map[string]any{
			"status": "failed",
			"amount": 150.5,
			"user":   map[string]any{"tier": "premium"},
		},
	}

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "json equals", expr: `json.status == "failed"`, want: true},
		{name: "json numeric", expr: `json.amount > 100.0`, want: true},
		{name: "nested json", expr: `json.user.tier == "premium"`, want: true},
		{name: "property", expr: `properties["app"] == "billing"`, want: true},
		{name: "missing property key", expr: `"region" in properties`, want: false},
		{name: "key prefix", expr: `key.startsWith("order-")`, want: true},
		{name: "event time", expr: `eventTime < publishTime`, want: true},
		{name: "non matching", expr: `json.status == "ok"`, want: false},
		{name: "missing json field", expr: `json.missing == "x"`, wantErr: true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := eval.CompileFilter(tt.expr)
			require.NoError(t, err)

			got, err := f.Match(ctx, msg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterOnTextMessage(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	f, err := eval.CompileFilter(`data.contains("timeout")`)
	require.NoError(t, err)

	got, err := f.Match(context.Background(), models.NormalizedMessage{Data: "request timeout", Properties: map[string]string{}})
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, `data.contains("timeout")`, f.String())
}

func TestWhereExpressionExamplesCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range WhereExpressionExamples {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, eval.ValidateFilterExpression(expr))
		})
	}
}
