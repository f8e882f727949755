package inline

import (
	"strings"

	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/dexerrors"
)

// IsSyntheticAccessor reports whether ref names a compiler-generated field
// trampoline: javac emits "access$nnn", jack emits "-getN", "-putN" and so on.
func IsSyntheticAccessor(ref MethodReference) bool {
	if ref.DexFile == nil {
		return false
	}
	name := ref.DexFile.MethodName(ref.Index)
	return strings.HasPrefix(name, "access$") || strings.HasPrefix(name, "-")
}

func analyseReturnMethod(code *dex.CodeItem) (InlineMethod, error) {
	inst := code.Begin().Inst()
	op := inst.Opcode()
	reg := inst.VRegA_11x()
	argStart := code.ArgStart()
	if reg < argStart {
		return InlineMethod{}, dexerrors.ErrSRegisterNotArgument
	}
	return InlineMethod{
		Opcode: InlineOpReturnArg,
		ReturnData: InlineReturnArgData{
			Arg:      uint16(reg - argStart),
			IsWide:   op == dex.RETURN_WIDE,
			IsObject: op == dex.RETURN_OBJECT,
		},
	}, nil
}

func analyseConstMethod(code *dex.CodeItem) (InlineMethod, error) {
	it := code.Begin()
	inst := it.Inst()
	ret := it.Peek()
	retOp := ret.Opcode()
	if retOp != dex.RETURN && retOp != dex.RETURN_OBJECT {
		return InlineMethod{}, dexerrors.ErrSReturnMismatch
	}
	value := inst.VRegB()
	if inst.Opcode() == dex.CONST_HIGH16 {
		value <<= 16
	}
	if uint32(inst.VRegA()) != ret.VRegA_11x() {
		return InlineMethod{}, dexerrors.ErrSRegisterMismatch
	}
	if retOp == dex.RETURN_OBJECT && value != 0 {
		return InlineMethod{}, dexerrors.ErrCNonNullObjectConstant
	}
	return InlineMethod{Opcode: InlineOpNonWideConst, Data: uint64(int64(value))}, nil
}

func igetReturnMatches(op, retOp dex.Opcode) bool {
	switch retOp {
	case dex.RETURN_WIDE:
		return op == dex.IGET_WIDE
	case dex.RETURN_OBJECT:
		return op == dex.IGET_OBJECT
	case dex.RETURN:
		return op != dex.IGET_WIDE && op != dex.IGET_OBJECT
	}
	return false
}

// checkReceiver allows a static method or a receiver other than this only
// in synthetic accessors, where a lost frame in an NPE stack trace is fine.
func checkReceiver(ref MethodReference, isStatic bool, objectArg uint32) error {
	if (isStatic || objectArg != 0) && !IsSyntheticAccessor(ref) {
		return dexerrors.ErrCNotSyntheticAccessor
	}
	return nil
}

func (a *Analyser) analyseIGetMethod(code *dex.CodeItem, ref MethodReference, isStatic bool, method Method, dryRun bool) (InlineMethod, error) {
	it := code.Begin()
	inst := it.Inst()
	op := inst.Opcode()
	ret := it.Peek()
	if !igetReturnMatches(op, ret.Opcode()) {
		return InlineMethod{}, dexerrors.ErrSReturnMismatch
	}

	dstReg := inst.VRegA_22c()
	objectReg := inst.VRegB_22c()
	fieldIdx := inst.VRegC_22c()
	argStart := code.ArgStart()
	if objectReg < argStart {
		return InlineMethod{}, dexerrors.ErrSRegisterNotArgument
	}
	objectArg := objectReg - argStart

	if dstReg != ret.VRegA_11x() {
		return InlineMethod{}, dexerrors.ErrSRegisterMismatch
	}
	if err := checkReceiver(ref, isStatic, objectArg); err != nil {
		return InlineMethod{}, err
	}
	if objectArg > MaxArgSlot {
		return InlineMethod{}, dexerrors.ErrCArgumentSlotOverflow
	}
	if dryRun {
		return InlineMethod{Opcode: InlineOpIGet}, nil
	}

	data, err := a.computeSpecialAccessorInfo(method, fieldIdx, false)
	if err != nil {
		return InlineMethod{}, err
	}
	data.OpVariant = dex.IGetVariant(op)
	data.MethodIsStatic = isStatic
	data.ObjectArg = uint8(objectArg)
	return InlineMethod{Opcode: InlineOpIGet, IFieldData: data}, nil
}

func (a *Analyser) analyseIPutMethod(code *dex.CodeItem, ref MethodReference, isStatic bool, method Method, dryRun bool) (InlineMethod, error) {
	it := code.Begin()
	inst := it.Inst()
	op := inst.Opcode()
	ret := it.Peek()
	argStart := code.ArgStart()

	var returnArgPlus1 uint32
	switch retOp := ret.Opcode(); {
	case !ret.Valid(), retOp == dex.RETURN_VOID:
		// A body ending at the iput behaves like return-void.
	case retOp == dex.RETURN, retOp == dex.RETURN_OBJECT, retOp == dex.RETURN_WIDE:
		returnReg := ret.VRegA_11x()
		if returnReg < argStart {
			return InlineMethod{}, dexerrors.ErrSRegisterNotArgument
		}
		returnArgPlus1 = returnReg - argStart + 1
	default:
		return InlineMethod{}, dexerrors.ErrSReturnMismatch
	}

	srcReg := inst.VRegA_22c()
	objectReg := inst.VRegB_22c()
	fieldIdx := inst.VRegC_22c()
	if objectReg < argStart || srcReg < argStart {
		return InlineMethod{}, dexerrors.ErrSRegisterNotArgument
	}
	objectArg := objectReg - argStart
	srcArg := srcReg - argStart

	if err := checkReceiver(ref, isStatic, objectArg); err != nil {
		return InlineMethod{}, err
	}
	if objectArg > MaxArgSlot || srcArg > MaxArgSlot || returnArgPlus1 > MaxArgSlot {
		return InlineMethod{}, dexerrors.ErrCArgumentSlotOverflow
	}
	if dryRun {
		return InlineMethod{Opcode: InlineOpIPut}, nil
	}

	data, err := a.computeSpecialAccessorInfo(method, fieldIdx, true)
	if err != nil {
		return InlineMethod{}, err
	}
	data.OpVariant = dex.IPutVariant(op)
	data.MethodIsStatic = isStatic
	data.ObjectArg = uint8(objectArg)
	data.SrcArg = uint8(srcArg)
	data.ReturnArgPlus1 = uint8(returnArgPlus1)
	return InlineMethod{Opcode: InlineOpIPut, IFieldData: data}, nil
}

// computeSpecialAccessorInfo resolves the accessed field and fills in the
// field index, offset and volatility.
func (a *Analyser) computeSpecialAccessorInfo(method Method, fieldIdx uint32, isPut bool) (InlineIGetIPutData, error) {
	if method == nil {
		return InlineIGetIPutData{}, dexerrors.ErrCNoMethod
	}
	dexCache := method.DexCache()
	field := a.resolver.LookupResolvedField(fieldIdx, method, false)
	if field == nil {
		return InlineIGetIPutData{}, dexerrors.ErrRUnresolvedField
	}
	if field.IsStatic() {
		return InlineIGetIPutData{}, dexerrors.ErrCStaticField
	}
	methodClass := method.DeclaringClass()
	fieldClass := field.DeclaringClass()
	if !a.resolver.CanAccessResolvedField(methodClass, field, dexCache, fieldIdx) {
		return InlineIGetIPutData{}, dexerrors.ErrCFieldNotAccessible
	}
	if isPut && field.IsFinal() && methodClass != fieldClass {
		return InlineIGetIPutData{}, dexerrors.ErrCFinalFieldWrite
	}
	if field.Offset() > maxFieldOffset {
		return InlineIGetIPutData{}, dexerrors.ErrCFieldOffsetOverflow
	}
	return InlineIGetIPutData{
		FieldIdx:    uint16(fieldIdx),
		FieldOffset: field.Offset(),
		IsVolatile:  field.IsVolatile(),
	}, nil
}
