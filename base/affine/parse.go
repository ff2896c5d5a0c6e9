// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package affine

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/pkg/errors"
)

// ParseExpr parses an affine expression written with Go syntax,
// for example "32*t + tid - 1".
// Identifiers are resolved in names: the index of an identifier in names
// is the index of its coefficient in the returned expression.
func ParseExpr(names []string, src string) (Expr, error) {
	node, err := parser.ParseExpr(src)
	if err != nil {
		return Expr{}, errors.Wrapf(err, "cannot parse affine expression %q", src)
	}
	p := exprParser{names: names}
	e, err := p.expr(node)
	if err != nil {
		return Expr{}, errors.Wrapf(err, "invalid affine expression %q", src)
	}
	return e.resize(len(names)), nil
}

type exprParser struct {
	names []string
}

func (p *exprParser) index(name string) int {
	for i, n := range p.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (p *exprParser) expr(node ast.Expr) (Expr, error) {
	switch nodeT := node.(type) {
	case *ast.ParenExpr:
		return p.expr(nodeT.X)
	case *ast.BasicLit:
		if nodeT.Kind != token.INT {
			return Expr{}, errors.Errorf("%s literal not supported", nodeT.Kind)
		}
		val, err := strconv.ParseInt(nodeT.Value, 0, 64)
		if err != nil {
			return Expr{}, errors.Wrapf(err, "invalid integer %s", nodeT.Value)
		}
		return Expr{Const: val}, nil
	case *ast.Ident:
		i := p.index(nodeT.Name)
		if i < 0 {
			return Expr{}, errors.Errorf("undefined: %s", nodeT.Name)
		}
		return NewExpr(len(p.names), 0).withCoeff(i, 1), nil
	case *ast.UnaryExpr:
		x, err := p.expr(nodeT.X)
		if err != nil {
			return Expr{}, err
		}
		switch nodeT.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return x.Scale(-1)
		}
		return Expr{}, errors.Errorf("unary operator %s not supported", nodeT.Op)
	case *ast.BinaryExpr:
		return p.binary(nodeT)
	}
	return Expr{}, errors.Errorf("%T not supported in an affine expression", node)
}

func (p *exprParser) binary(node *ast.BinaryExpr) (Expr, error) {
	x, err := p.expr(node.X)
	if err != nil {
		return Expr{}, err
	}
	y, err := p.expr(node.Y)
	if err != nil {
		return Expr{}, err
	}
	switch node.Op {
	case token.ADD:
		return x.Add(y)
	case token.SUB:
		yNeg, err := y.Scale(-1)
		if err != nil {
			return Expr{}, err
		}
		return x.Add(yNeg)
	case token.MUL:
		if x.IsConst() {
			return y.Scale(x.Const)
		}
		if y.IsConst() {
			return x.Scale(y.Const)
		}
		return Expr{}, errors.Errorf("product of two variables is not affine")
	}
	return Expr{}, errors.Errorf("binary operator %s not supported", node.Op)
}

func (e Expr) withCoeff(i int, c int64) Expr {
	e.Coeffs[i] = c
	return e
}
