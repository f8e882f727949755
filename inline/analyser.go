// Package inline decides whether a method body is one of the trivial shapes
// a compiler can substitute for a call: returning an argument or a
// constant, a single field access, or a constructor that only forwards to
// another constructor and stores arguments into fields.
package inline

import (
	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/dexerrors"
	"github.com/colorfulnotion/dexinline/log"
)

// Analyser classifies methods against a fixed resolution snapshot. It
// holds no mutable state and may be shared between goroutines as long as
// the Resolver may.
type Analyser struct {
	resolver Resolver
}

func NewAnalyser(resolver Resolver) *Analyser {
	return &Analyser{resolver: resolver}
}

// AnalyseMethodCode reports whether code is an inline candidate. On success
// and with a non-nil result, the result is overwritten; on failure it is
// left untouched. A nil result only asks the question, which skips field
// resolution for accessors.
func (a *Analyser) AnalyseMethodCode(code *dex.CodeItem, ref MethodReference, isStatic bool, method Method, result *InlineMethod) bool {
	return a.Explain(code, ref, isStatic, method, result) == nil
}

// AnalyseMethod analyses a resolved method. Native and abstract methods
// are never candidates.
func (a *Analyser) AnalyseMethod(method Method, result *InlineMethod) bool {
	return a.ExplainMethod(method, result) == nil
}

// Explain is AnalyseMethodCode returning the coded reason for a rejection.
func (a *Analyser) Explain(code *dex.CodeItem, ref MethodReference, isStatic bool, method Method, result *InlineMethod) error {
	out, err := a.analyse(code, ref, isStatic, method, result == nil)
	if err != nil {
		log.Debug(log.InlineMonitoring, "not inlinable", "method", ref, "reason", dexerrors.GetErrorCodeWithName(err))
		return err
	}
	log.Trace(log.InlineMonitoring, "inlinable", "method", ref, "result", out)
	if result != nil {
		*result = out
	}
	return nil
}

func (a *Analyser) ExplainMethod(method Method, result *InlineMethod) error {
	code := method.CodeItem()
	if code == nil {
		log.Debug(log.InlineMonitoring, "not inlinable", "method", method.Reference(), "reason", dexerrors.GetErrorCodeWithName(dexerrors.ErrSNoCodeItem))
		return dexerrors.ErrSNoCodeItem
	}
	return a.Explain(code, method.Reference(), method.IsStatic(), method, result)
}

// ConstructorChain analyses a constructor and returns the forwarding chain
// walked on the way, as far as the analysis got. The error is nil exactly
// when the constructor is an inline candidate.
func (a *Analyser) ConstructorChain(method Method) (*ChainLink, InlineMethod, error) {
	link := &ChainLink{}
	code := method.CodeItem()
	switch {
	case code == nil:
		return nil, InlineMethod{}, dexerrors.ErrSNoCodeItem
	case method.IsStatic() || !method.IsConstructor():
		return nil, InlineMethod{}, dexerrors.ErrCNotConstructor
	}
	out, err := a.analyseConstructor(code, method, link)
	return link, out, err
}

func isConstructor(method Method) bool {
	return method != nil && !method.IsStatic() && method.IsConstructor()
}

// analyse dispatches on the first opcode. Only single-instruction and
// two-instruction bodies are recognized, plus forwarding constructors.
func (a *Analyser) analyse(code *dex.CodeItem, ref MethodReference, isStatic bool, method Method, dryRun bool) (InlineMethod, error) {
	if code == nil {
		return InlineMethod{}, dexerrors.ErrSNoCodeItem
	}
	if code.InsnsSizeInCodeUnits() == 0 {
		return InlineMethod{}, dexerrors.ErrSEmptyCode
	}
	if code.InsSize > code.RegistersSize {
		return InlineMethod{}, dexerrors.ErrSRegisterNotArgument
	}

	switch op := code.Begin().Opcode(); op {
	case dex.RETURN_VOID:
		return InlineMethod{Opcode: InlineOpNop}, nil
	case dex.RETURN, dex.RETURN_OBJECT, dex.RETURN_WIDE:
		return analyseReturnMethod(code)
	case dex.CONST, dex.CONST_4, dex.CONST_16, dex.CONST_HIGH16:
		out, err := analyseConstMethod(code)
		if err == nil {
			return out, nil
		}
		// Leading zero stores of a constructor look the same.
		if !isConstructor(method) {
			return InlineMethod{}, err
		}
		return a.analyseConstructor(code, method, nil)
	case dex.CONST_WIDE, dex.CONST_WIDE_16, dex.CONST_WIDE_32, dex.CONST_WIDE_HIGH16, dex.INVOKE_DIRECT:
		if !isConstructor(method) {
			return InlineMethod{}, dexerrors.ErrCNotConstructor
		}
		return a.analyseConstructor(code, method, nil)
	case dex.IGET, dex.IGET_WIDE, dex.IGET_OBJECT, dex.IGET_BOOLEAN, dex.IGET_BYTE, dex.IGET_CHAR, dex.IGET_SHORT:
		return a.analyseIGetMethod(code, ref, isStatic, method, dryRun)
	case dex.IPUT, dex.IPUT_WIDE, dex.IPUT_OBJECT, dex.IPUT_BOOLEAN, dex.IPUT_BYTE, dex.IPUT_CHAR, dex.IPUT_SHORT:
		return a.analyseIPutMethod(code, ref, isStatic, method, dryRun)
	default:
		return InlineMethod{}, dexerrors.ErrSUnsupportedOpcode
	}
}
