package classify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/google/cel-go/cel"
)

// VarMaterial имя переменной выражения с материалом блока
const VarMaterial = "material"

var ErrInvalidExpression = errors.New("invalid classification expression")

// Classifier скомпилированное CEL-выражение над материалом блока.
// Результат кэшируется по материалу: набор материалов мал, а проверка идёт для каждой клетки обхода.
type Classifier struct {
	expr  string
	prg   cel.Program
	cache sync.Map // block.Material -> bool
}

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func sharedEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(cel.Variable(VarMaterial, cel.StringType))
	})
	return env, envErr
}

// Compile компилирует выражение; оно обязано возвращать bool
func Compile(expr string) (*Classifier, error) {
	e, err := sharedEnv()
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := e.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", ErrInvalidExpression, ast.OutputType())
	}

	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &Classifier{expr: expr, prg: prg}, nil
}

// MustCompile как Compile, но паникует при ошибке. Только для выражений по умолчанию и тестов.
func MustCompile(expr string) *Classifier {
	c, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// Accepts вычисляет выражение для материала. Ошибка вычисления трактуется как "не подходит".
func (c *Classifier) Accepts(m block.Material) bool {
	if v, ok := c.cache.Load(m); ok {
		return v.(bool)
	}

	out, _, err := c.prg.Eval(map[string]any{VarMaterial: string(m)})
	if err != nil {
		logging.Warn("⚠️ Ошибка вычисления %q для %s: %v", c.expr, m, err)
		return false
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false
	}
	c.cache.Store(m, result)
	return result
}

// Expr возвращает исходное выражение
func (c *Classifier) Expr() string {
	return c.expr
}
