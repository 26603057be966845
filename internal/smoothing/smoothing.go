// Package smoothing derives the query-likelihood smoothing directive
// for a run from either an explicit parameter or corpus statistics.
package smoothing

import (
	"fmt"
	"strconv"

	apperrors "github.com/ir-baselines/qlrun/pkg/errors"
)

// Method selects the smoothing family. The set is closed: Parse rejects
// anything else, so downstream switches never need an unknown branch.
type Method int

const (
	JelinekMercer Method = iota
	Dirichlet
)

func (m Method) String() string {
	switch m {
	case JelinekMercer:
		return "jm"
	case Dirichlet:
		return "dirichlet"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps the CLI selector to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "jm":
		return JelinekMercer, nil
	case "dirichlet":
		return Dirichlet, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidParameter,
			"unknown smoothing method %q (want jm or dirichlet)", s)
	}
}

// ParamSpec is the raw parameter before resolution: either the auto
// sentinel or an explicit numeric value.
type ParamSpec struct {
	auto  bool
	value float64
}

// ParseParam parses the CLI smoothing-parameter string.
func ParseParam(raw string) (ParamSpec, error) {
	if raw == "auto" {
		return ParamSpec{auto: true}, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ParamSpec{}, apperrors.Newf(apperrors.ErrInvalidParameter,
			"smoothing parameter %q is neither auto nor a number", raw)
	}
	return ParamSpec{value: v}, nil
}

// Auto reports whether the parameter should be derived from defaults or
// corpus statistics.
func (p ParamSpec) Auto() bool { return p.auto }

// Spec is a resolved, validated smoothing configuration. Built once per
// run and reused for every topic file.
type Spec struct {
	Method Method
	Param  float64
}

// CorpusStats is the read-only snapshot of index statistics taken at
// startup.
type CorpusStats struct {
	DocumentCount uint32
	AvgDocLength  float64
}

// jmDefault is the fixed Jelinek-Mercer collection weight used when the
// parameter is auto.
const jmDefault = 0.5

// Resolve turns a method and raw parameter into a validated Spec.
// Auto resolves to 0.5 for Jelinek-Mercer and to the corpus average
// document length for Dirichlet. Explicit values are validated against
// the method's domain: JM needs 0 < p <= 1, Dirichlet needs p >= 0.
func Resolve(method Method, param ParamSpec, stats CorpusStats) (Spec, error) {
	if param.auto {
		switch method {
		case JelinekMercer:
			return Spec{Method: method, Param: jmDefault}, nil
		case Dirichlet:
			return Spec{Method: method, Param: stats.AvgDocLength}, nil
		}
	}
	v := param.value
	switch method {
	case JelinekMercer:
		if v <= 0 || v > 1 {
			return Spec{}, apperrors.Newf(apperrors.ErrInvalidParameter,
				"jelinek-mercer lambda %g outside (0, 1]", v)
		}
	case Dirichlet:
		if v < 0 {
			return Spec{}, apperrors.Newf(apperrors.ErrInvalidParameter,
				"dirichlet mu %g is negative", v)
		}
	}
	return Spec{Method: method, Param: v}, nil
}

// Directive serializes the spec into the engine's smoothing-rule
// string. The two-decimal weights (JM) and integer-truncated
// pseudo-count (Dirichlet) are a contract with the directive parser
// and must not change.
func (s Spec) Directive() string {
	switch s.Method {
	case JelinekMercer:
		return fmt.Sprintf("method:linear,collectionLambda:%.2f,documentLambda:%.2f",
			s.Param, 1-s.Param)
	case Dirichlet:
		return fmt.Sprintf("method:dirichlet,mu:%d", int64(s.Param))
	}
	return ""
}
