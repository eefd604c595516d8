package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"streamview/pkg/models"
)

// Evaluator compiles `where` expressions against received messages. The
// variables mirror the JSON field names of a message event.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("key", cel.StringType),
		cel.Variable("data", cel.StringType),
		cel.Variable("publishTime", cel.IntType),
		cel.Variable("eventTime", cel.IntType),
		cel.Variable("properties", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("json", cel.DynType),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	_, err := e.CompileFilter(expression)
	return err
}

// CompileFilter checks that expression is a boolean predicate and prepares it
// for repeated evaluation.
func (e *Evaluator) CompileFilter(expression string) (*Filter, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expression: expression, program: program}, nil
}

// Filter is a compiled predicate. It is safe for concurrent use.
type Filter struct {
	expression string
	program    cel.Program
}

func (f *Filter) String() string {
	return f.expression
}

func (f *Filter) Match(ctx context.Context, msg models.NormalizedMessage) (bool, error) {
	result, _, err := f.program.ContextEval(ctx, messageVars(msg))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return matched, nil
}

func messageVars(msg models.NormalizedMessage) map[string]interface{} {
	var eventTime int64
	if msg.EventTime != nil {
		eventTime = *msg.EventTime
	}

	return map[string]interface{}{
		"id":          msg.ID,
		"key":         msg.Key,
		"data":        msg.Data,
		"publishTime": msg.PublishTime,
		"eventTime":   eventTime,
		"properties":  msg.Properties,
		"json":        msg.Structured,
	}
}
