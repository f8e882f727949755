package inline

import (
	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/dexerrors"
	"github.com/colorfulnotion/dexinline/log"
)

const (
	// MaxConstructorIPuts bounds the non-zero field stores a constructor
	// chain may perform. Stores of zero are free.
	MaxConstructorIPuts = 3

	maxConstructorCodeUnits = 16
	// IPUTs address their source with 4 bits and MOVEs are not matched.
	maxConstructorVRegs = 16

	// ForwardingFailed is returned by CountForwardedConstructorArguments
	// when an argument past the forwarded prefix is not a known zero.
	ForwardingFailed = ^uint32(0)
)

// Const loads of zero, one invoke-direct of a constructor in this class or
// the superclass, then const loads of zero and iputs on this interleaved,
// ending with return-void.
var constructorPattern = []MatchFn{
	Mark,
	Repeated((*Matcher).Const0),
	Required(OpcodeIs(dex.INVOKE_DIRECT)),
	Mark,
	Repeated((*Matcher).Const0),
	Repeated((*Matcher).IPutOnThis),
	Required(OpcodeIs(dex.RETURN_VOID)),
}

type constructorIPuts [MaxConstructorIPuts]ConstructorIPut

func newConstructorIPuts() constructorIPuts {
	var iputs constructorIPuts
	iputs.clearFrom(0)
	return iputs
}

func (p *constructorIPuts) clearFrom(i int) {
	for ; i < len(p); i++ {
		p[i] = ConstructorIPut{FieldIndex: NoFieldIndex}
	}
}

func (p *constructorIPuts) entries() []ConstructorIPut {
	var out []ConstructorIPut
	for _, iput := range p {
		if iput.FieldIndex == NoFieldIndex {
			break
		}
		out = append(out, iput)
	}
	return out
}

// removeAt drops slot i and shifts the later slots down.
func (p *constructorIPuts) removeAt(i int) {
	copy(p[i:], p[i+1:])
	p.clearFrom(len(p) - 1)
}

// pruneFrom drops every entry whose argument is not below forwarded,
// keeping the order of the survivors.
func (p *constructorIPuts) pruneFrom(forwarded uint32) {
	kept := 0
	for _, iput := range p {
		if iput.FieldIndex == NoFieldIndex {
			break
		}
		if uint32(iput.Arg) < forwarded {
			p[kept] = iput
			kept++
		}
	}
	p.clearFrom(kept)
}

// ChainLink describes one level of a forwarding constructor chain: the
// constructor, how many leading arguments it forwards to its callee, and
// the field stores recorded once its own body has been folded in.
type ChainLink struct {
	Method    MethodReference
	Class     string
	Forwarded uint32
	IPuts     []ConstructorIPut
	Callee    *ChainLink
	// ObjectInit is set when the callee is the root constructor.
	ObjectInit bool
}

func zeroMaskHas(mask uint16, reg uint32) bool {
	return reg < 16 && mask&(1<<reg) != 0
}

// zeroVRegMask returns the registers written by a zero const load.
func zeroVRegMask(inst dex.Instruction) uint16 {
	base := uint32(1)
	if dex.IsInstructionConstWide(inst.Opcode()) {
		base = 3
	}
	return uint16(base << uint32(inst.VRegA()))
}

// CountForwardedConstructorArguments returns how many leading arguments of
// invoke, counting this, are the caller's own arguments passed through in
// place. Every later argument must be a register in zeroMask; otherwise
// ForwardingFailed is returned.
func CountForwardedConstructorArguments(code *dex.CodeItem, invoke dex.Instruction, zeroMask uint16) uint32 {
	numberOfArgs := invoke.VRegA_35c()
	if numberOfArgs == 0 || numberOfArgs > dex.MaxVarArgRegs {
		return ForwardingFailed
	}
	var args [dex.MaxVarArgRegs]uint32
	invoke.GetVarArgs(&args)
	thisVReg := args[0]
	if thisVReg != code.ArgStart() {
		return ForwardingFailed
	}
	forwarded := uint32(1)
	for forwarded < numberOfArgs &&
		args[forwarded] == thisVReg+forwarded &&
		!zeroMaskHas(zeroMask, args[forwarded]) {
		forwarded++
	}
	for i := forwarded; i != numberOfArgs; i++ {
		if !zeroMaskHas(zeroMask, args[i]) {
			return ForwardingFailed
		}
	}
	return forwarded
}

// targetConstructor resolves the constructor called by invoke and checks
// that it is an instance constructor of this class or its superclass.
func (a *Analyser) targetConstructor(method Method, invoke dex.Instruction) (Method, error) {
	target := a.resolver.LookupResolvedMethod(invoke.VRegB_35c(), method.DexCache(), method.ClassLoader())
	if target == nil {
		return nil, dexerrors.ErrRUnresolvedMethod
	}
	if target.IsStatic() || !target.IsConstructor() {
		return nil, dexerrors.ErrCTargetNotConstructor
	}
	class := method.DeclaringClass()
	if target.DeclaringClass() != class && target.DeclaringClass() != class.SuperClass() {
		return nil, dexerrors.ErrCTargetClassMismatch
	}
	return target, nil
}

// recordConstructorIPut folds one iput on this into iputs. A later store to
// the same resolved field replaces the earlier one; a store of a known zero
// only removes it.
func (a *Analyser) recordConstructorIPut(method Method, iput dex.Instruction, thisVReg uint32, zeroMask uint16, iputs *constructorIPuts) error {
	fieldIdx := iput.VRegC_22c()
	field := a.resolver.LookupResolvedField(fieldIdx, method, false)
	if field == nil {
		return dexerrors.ErrRUnresolvedField
	}
	if fieldIdx >= uint32(NoFieldIndex) {
		return dexerrors.ErrCFieldIndexOverflow
	}
	// Distinct field ids may name one field, so compare resolved fields.
	for i, old := range iputs {
		if old.FieldIndex == NoFieldIndex {
			break
		}
		if f := a.resolver.LookupResolvedField(uint32(old.FieldIndex), method, false); f != nil && f == field {
			iputs.removeAt(i)
			break
		}
	}
	src := iput.VRegA_22c()
	if zeroMaskHas(zeroMask, src) {
		return nil
	}
	if src < thisVReg {
		return dexerrors.ErrSUninitializedIPutSrc
	}
	if src-thisVReg > MaxArgSlot {
		return dexerrors.ErrCArgumentSlotOverflow
	}
	for i := range iputs {
		if iputs[i].FieldIndex == NoFieldIndex {
			iputs[i] = ConstructorIPut{FieldIndex: uint16(fieldIdx), Arg: uint16(src - thisVReg)}
			return nil
		}
	}
	return dexerrors.ErrCIPutCapacity
}

// doAnalyseConstructor matches code against the constructor pattern and
// folds the field stores of the whole chain into iputs. link, when
// non-nil, is filled in with the chain as it is walked.
func (a *Analyser) doAnalyseConstructor(code *dex.CodeItem, method Method, iputs *constructorIPuts, link *ChainLink) error {
	if link != nil {
		link.Method = method.Reference()
		link.Class = method.DeclaringClass().Descriptor()
	}
	switch {
	case !method.DeclaringClass().IsVerified():
		return dexerrors.ErrCClassNotVerified
	case code.InsnsSizeInCodeUnits() > maxConstructorCodeUnits:
		return dexerrors.ErrCTooManyCodeUnits
	case code.RegistersSize > maxConstructorVRegs:
		return dexerrors.ErrCTooManyRegisters
	case code.InsSize == 0 || code.InsSize > code.RegistersSize:
		return dexerrors.ErrSRegisterNotArgument
	case !Match(code, constructorPattern):
		return dexerrors.ErrSPatternMismatch
	}

	thisVReg := code.ArgStart()
	var zeroMask uint16

	for it := code.Begin(); !it.Done(); it.Next() {
		inst := it.Inst()
		op := inst.Opcode()
		switch {
		case op == dex.RETURN_VOID:
			if link != nil {
				link.IPuts = iputs.entries()
			}
			return nil
		case op == dex.INVOKE_DIRECT:
			target, err := a.targetConstructor(method, inst)
			if err != nil {
				return err
			}
			// Same-class forwarding must pass more arguments so that the
			// recursion terminates.
			if target.DeclaringClass() == method.DeclaringClass() && inst.VRegA_35c() <= uint32(code.InsSize) {
				return dexerrors.ErrFSameClassForwarding
			}
			forwarded := CountForwardedConstructorArguments(code, inst, zeroMask)
			if forwarded == ForwardingFailed {
				return dexerrors.ErrCNonZeroArgument
			}
			if link != nil {
				link.Forwarded = forwarded
			}
			if target.DeclaringClass().IsObjectClass() {
				if link != nil {
					link.ObjectInit = true
				}
				continue
			}
			targetCode := target.CodeItem()
			if targetCode == nil {
				return dexerrors.ErrRNativeTarget
			}
			var callee *ChainLink
			if link != nil {
				callee = &ChainLink{}
				link.Callee = callee
			}
			log.Trace(log.InlineMonitoring, "analysing forwarded constructor", "caller", method.Reference(), "callee", target.Reference(), "forwarded", forwarded)
			if err := a.doAnalyseConstructor(targetCode, target, iputs, callee); err != nil {
				return err
			}
			iputs.pruneFrom(forwarded)
			// Field indices of the callee are only meaningful in our dex file.
			if iputs[0].FieldIndex != NoFieldIndex && target.DexCache() != method.DexCache() {
				return dexerrors.ErrCCrossDexFieldIndex
			}
		case dex.IsInstructionDirectConst(op):
			zeroMask |= zeroVRegMask(inst)
			if zeroMaskHas(zeroMask, thisVReg) {
				return dexerrors.ErrCThisOverwritten
			}
		default:
			if err := a.recordConstructorIPut(method, inst, thisVReg, zeroMask, iputs); err != nil {
				return err
			}
		}
	}
	return dexerrors.ErrSPatternMismatch
}

func (a *Analyser) analyseConstructor(code *dex.CodeItem, method Method, link *ChainLink) (InlineMethod, error) {
	iputs := newConstructorIPuts()
	if err := a.doAnalyseConstructor(code, method, &iputs, link); err != nil {
		return InlineMethod{}, err
	}
	return InlineMethod{
		Opcode:          InlineOpConstructor,
		ConstructorData: InlineConstructorData{IPuts: iputs.entries()},
	}, nil
}
