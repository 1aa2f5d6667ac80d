package assembler

import (
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// evalConstExpr evaluates a .eqv right-hand side. The expression is run
// through Starlark with every previously defined equate bound as an
// integer, so equates can build on each other (shifts, masks,
// arithmetic).
func evalConstExpr(expr string, equates map[string]int64) (int64, error) {
	thread := starlark.Thread{Name: "eqv"}
	opts := syntax.FileOptions{}
	env := starlark.StringDict{}
	for name, val := range equates {
		env[name] = starlark.MakeInt64(val)
	}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, env)
	if err != nil {
		return 0, err
	}
	rc, ok := dict["rc"]
	if !ok {
		return 0, errNotInt
	}
	i, ok := rc.(starlark.Int)
	if !ok {
		return 0, errNotInt
	}
	v, ok := i.Int64()
	if !ok {
		return 0, errNotInt
	}
	return v, nil
}

type exprError string

func (e exprError) Error() string { return string(e) }

const errNotInt = exprError("expression does not evaluate to an integer")
