package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteLP writes the model in CPLEX LP text format.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\ Model: %s\n", m.Name)
	obj, sense := m.Objective()
	if sense == Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	fmt.Fprintf(bw, " obj: %s\n", m.formatExpr(obj))

	bw.WriteString("Subject To\n")
	for i, c := range m.cons {
		name := lpName(c.Name)
		if name == "" {
			name = "c" + strconv.Itoa(i+1)
		}
		fmt.Fprintf(bw, " %s: %s %s %s\n", name, m.formatExpr(c.Expr), c.Rel, formatFloat(c.RHS))
	}

	bw.WriteString("Bounds\n")
	for _, v := range m.vars {
		if v.Kind == Binary {
			continue
		}
		name := lpName(v.Name)
		switch {
		case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s free\n", name)
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s >= %s\n", name, formatFloat(v.Lower))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatFloat(v.Lower), name, formatFloat(v.Upper))
		}
	}

	var binaries []string
	for _, v := range m.vars {
		if v.Kind == Binary {
			binaries = append(binaries, lpName(v.Name))
		}
	}
	if len(binaries) > 0 {
		bw.WriteString("Binaries\n")
		for _, name := range binaries {
			fmt.Fprintf(bw, " %s\n", name)
		}
	}
	bw.WriteString("End\n")

	return bw.Flush()
}

func (m *Model) formatExpr(e Expr) string {
	if len(e) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range e {
		coef := t.Coef
		switch {
		case i == 0 && coef < 0:
			sb.WriteString("- ")
			coef = -coef
		case i > 0 && coef < 0:
			sb.WriteString(" - ")
			coef = -coef
		case i > 0:
			sb.WriteString(" + ")
		}
		if coef != 1 {
			sb.WriteString(formatFloat(coef))
			sb.WriteByte(' ')
		}
		sb.WriteString(lpName(m.vars[t.Var].Name))
	}
	return sb.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// lpName replaces characters the LP format does not accept in identifiers.
func lpName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '+', '-', '*', '/', '<', '>', '=', '[', ']':
			return '_'
		}
		return r
	}, name)
}
