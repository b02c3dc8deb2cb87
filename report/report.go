// Package report - Console tables of evaluation results.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/nvr-ai/go-segeval/evaluator"
	"github.com/nvr-ai/go-segeval/scoring"
	"github.com/nvr-ai/go-segeval/taxonomy"
)

// ANSI colour codes.
const (
	Red    = "\033[31;1m"
	Green  = "\033[32;1m"
	Yellow = "\033[33;1m"
	Blue   = "\033[34;1m"
	Cyan   = "\033[36;1m"
	Bold   = "\033[1m"
	EndC   = "\033[0m"
)

// Colorize reports whether w is a terminal that should receive colour.
func Colorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer renders results as text tables.
type Printer struct {
	Out      io.Writer
	Taxonomy *taxonomy.Taxonomy
	// Normalized prints matrix rows as fractions of their ground truth.
	Normalized bool
	// PrintRow is the width of a matrix column.
	PrintRow int
	// Colorized wraps values in ANSI colours by score band.
	Colorized bool
}

// color returns the colour of a score band, or nothing when colour is off.
func (p *Printer) color(v float64) string {
	switch {
	case !p.Colorized:
		return ""
	case math.IsNaN(v):
		return EndC
	case v < .2:
		return Red
	case v < .4:
		return Yellow
	case v < .6:
		return Blue
	case v < .8:
		return Cyan
	default:
		return Green
	}
}

func (p *Printer) nocol() string {
	if p.Colorized {
		return EndC
	}
	return ""
}

func (p *Printer) bold() string {
	if p.Colorized {
		return Bold
	}
	return ""
}

func (p *Printer) rowWidth() int {
	if p.PrintRow <= 0 {
		return 5
	}
	return p.PrintRow
}

func (p *Printer) matrixRule(columns int) {
	w := p.rowWidth()
	fmt.Fprint(p.Out, strings.Repeat("-", 15))
	fmt.Fprint(p.Out, strings.Repeat("-", columns*(w+3)))
	fmt.Fprintln(p.Out, strings.Repeat("-", 9))
}

// ConfusionMatrix prints the matrix restricted to evaluable labels, one row
// per label present in ground truth, followed by the label's prior.
func (p *Printer) ConfusionMatrix(r *evaluator.Result) {
	ids := p.Taxonomy.EvalLabels()
	w := p.rowWidth()
	m := r.ConfusionMatrix
	normalized, empty := m.Normalized()
	total := m.Sum()

	p.matrixRule(len(ids))
	fmt.Fprintf(p.Out, "%13s |", "")
	for _, id := range ids {
		l, _ := p.Taxonomy.ByID(id)
		fmt.Fprintf(p.Out, " %s |", center(l.Name[:1], w))
	}
	fmt.Fprintf(p.Out, " %6s |\n", "Prior")
	p.matrixRule(len(ids))

	for _, g := range ids {
		if total == 0 || empty[g] {
			continue
		}
		prior := float64(m.RowSum(g)) / float64(total)
		if prior < 1e-9 {
			continue
		}

		l, _ := p.Taxonomy.ByID(g)
		name := l.Name
		if len(name) > 13 {
			name = name[:13]
		}
		fmt.Fprintf(p.Out, "%13s |", name)
		for _, pr := range ids {
			v := float64(m.At(g, pr))
			if p.Normalized {
				v = normalized.At(g, pr)
			}
			fmt.Fprintf(p.Out, " %s%*.2f%s |", p.color(v), w, v, p.nocol())
		}
		fmt.Fprintf(p.Out, " %s%6.4f%s |\n", p.color(prior), prior, p.nocol())
	}
	p.matrixRule(len(ids))
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}

func (p *Printer) scoreLine(name string, iou, niou float64) {
	fmt.Fprintf(p.Out, "%-14s: %s%5.3f%s    %s%5.3f%s\n", name,
		p.color(iou), iou, p.nocol(),
		p.color(niou), niou, p.nocol())
}

func (p *Printer) averages(scores, inst scoring.Scores) {
	fmt.Fprintln(p.Out, "--------------------------------")
	p.scoreLine("Score Average", scoring.Average(scores), scoring.Average(inst))
	fmt.Fprintln(p.Out, "--------------------------------")
}

// ClassScores prints IoU and nIoU of every scored label and their averages.
func (p *Printer) ClassScores(r *evaluator.Result) {
	fmt.Fprintln(p.Out, p.bold()+"classes          IoU      nIoU"+p.nocol())
	fmt.Fprintln(p.Out, "--------------------------------")
	for i, s := range r.ClassScores {
		l, ok := p.Taxonomy.ByName(s.Name)
		if !ok || l.IgnoreInEval {
			continue
		}
		p.scoreLine(s.Name, s.Value, r.ClassInstScores[i].Value)
	}
	p.averages(r.ClassScores, r.ClassInstScores)
}

// CategoryScores prints IoU and nIoU of every category with at least one
// scored label and their averages.
func (p *Printer) CategoryScores(r *evaluator.Result) {
	fmt.Fprintln(p.Out, p.bold()+"categories       IoU      nIoU"+p.nocol())
	fmt.Fprintln(p.Out, "--------------------------------")
	for i, s := range r.CategoryScores {
		allIgnored := true
		for _, l := range p.Taxonomy.CategoryLabels(s.Name) {
			if !l.IgnoreInEval {
				allIgnored = false
				break
			}
		}
		if allIgnored {
			continue
		}
		p.scoreLine(s.Name, s.Value, r.CategoryInstScores[i].Value)
	}
	p.averages(r.CategoryScores, r.CategoryInstScores)
}

// All prints the matrix, the class and the category tables.
func (p *Printer) All(r *evaluator.Result) {
	p.ConfusionMatrix(r)
	fmt.Fprintln(p.Out)
	p.ClassScores(r)
	fmt.Fprintln(p.Out)
	p.CategoryScores(r)
}
