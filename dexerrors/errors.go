package dexerrors

import (
	"errors"
	"strings"
)

// Structural (S) Errors
var (
	ErrSEmptyCode            = errors.New("S1|EmptyCode: Method body has no instructions.")
	ErrSUnsupportedOpcode    = errors.New("S2|UnsupportedOpcode: Leading opcode does not start any recognized shape.")
	ErrSPatternMismatch      = errors.New("S3|PatternMismatch: Constructor body does not match const/invoke-direct/iput/return-void.")
	ErrSReturnMismatch       = errors.New("S4|ReturnMismatch: Second instruction is not a return compatible with the first.")
	ErrSRegisterMismatch     = errors.New("S5|RegisterMismatch: Returned register is not the one written by the first instruction.")
	ErrSRegisterNotArgument  = errors.New("S6|RegisterNotArgument: Register below the argument window where an argument is required.")
	ErrSNoCodeItem           = errors.New("S7|NoCodeItem: Method is native or abstract.")
	ErrSUninitializedIPutSrc = errors.New("S8|UninitializedIPutSource: Stored register is neither an argument nor a known zero.")
)

// Resolution (R) Errors
var (
	ErrRUnresolvedField  = errors.New("R1|UnresolvedField: Referenced field is not resolved.")
	ErrRUnresolvedMethod = errors.New("R2|UnresolvedMethod: Invoked constructor is not resolved.")
	ErrRNativeTarget     = errors.New("R3|NativeTarget: Invoked constructor has no code item.")
)

// Constraint (C) Errors
var (
	ErrCClassNotVerified      = errors.New("C1|ClassNotVerified: Declaring class is not verified.")
	ErrCTooManyCodeUnits      = errors.New("C2|TooManyCodeUnits: Constructor exceeds 16 code units.")
	ErrCTooManyRegisters      = errors.New("C3|TooManyRegisters: Constructor uses more than 16 registers.")
	ErrCNotSyntheticAccessor  = errors.New("C4|NotSyntheticAccessor: Static or non-this receiver outside a synthetic accessor.")
	ErrCArgumentSlotOverflow  = errors.New("C5|ArgumentSlotOverflow: Argument slot does not fit in 4 bits.")
	ErrCStaticField           = errors.New("C6|StaticField: Field resolves to a static field.")
	ErrCFieldNotAccessible    = errors.New("C7|FieldNotAccessible: Accessing class cannot access the field.")
	ErrCFinalFieldWrite       = errors.New("C8|FinalFieldWrite: Write to a final field declared in another class.")
	ErrCNonNullObjectConstant = errors.New("C9|NonNullObjectConstant: Object-typed return of a non-zero constant.")
	ErrCTargetNotConstructor  = errors.New("C10|TargetNotConstructor: Invoked method is static or not a constructor.")
	ErrCTargetClassMismatch   = errors.New("C11|TargetClassMismatch: Invoked constructor is in neither this class nor its superclass.")
	ErrCIPutCapacity          = errors.New("C12|IPutCapacity: More than 3 non-zero field stores.")
	ErrCCrossDexFieldIndex    = errors.New("C13|CrossDexFieldIndex: Inherited field stores come from another dex file.")
	ErrCNonZeroArgument       = errors.New("C14|NonZeroArgument: Argument after the forwarded prefix is not a known zero.")
	ErrCFieldIndexOverflow    = errors.New("C15|FieldIndexOverflow: Field index does not fit in 16 bits.")
	ErrCThisOverwritten       = errors.New("C16|ThisOverwritten: Constant written to the this register.")
	ErrCNoMethod              = errors.New("C17|NoMethod: Resolved method handle is required.")
	ErrCNotConstructor        = errors.New("C18|NotConstructor: Leading opcode requires an instance constructor.")
	ErrCFieldOffsetOverflow   = errors.New("C19|FieldOffsetOverflow: Field offset does not fit in 31 bits.")
)

// Recursion (F) Errors
var (
	ErrFSameClassForwarding = errors.New("F1|SameClassForwarding: Same-class constructor call does not pass strictly more arguments.")
)

// All lists every coded error in taxonomy order.
var All = []error{
	ErrSEmptyCode, ErrSUnsupportedOpcode, ErrSPatternMismatch, ErrSReturnMismatch,
	ErrSRegisterMismatch, ErrSRegisterNotArgument, ErrSNoCodeItem, ErrSUninitializedIPutSrc,
	ErrRUnresolvedField, ErrRUnresolvedMethod, ErrRNativeTarget,
	ErrCClassNotVerified, ErrCTooManyCodeUnits, ErrCTooManyRegisters, ErrCNotSyntheticAccessor,
	ErrCArgumentSlotOverflow, ErrCStaticField, ErrCFieldNotAccessible, ErrCFinalFieldWrite,
	ErrCNonNullObjectConstant, ErrCTargetNotConstructor, ErrCTargetClassMismatch, ErrCIPutCapacity,
	ErrCCrossDexFieldIndex, ErrCNonZeroArgument, ErrCFieldIndexOverflow, ErrCThisOverwritten,
	ErrCNoMethod, ErrCNotConstructor, ErrCFieldOffsetOverflow,
	ErrFSameClassForwarding,
}

// Lookup returns the coded error whose code matches, e.g. "C12".
func Lookup(code string) (error, bool) {
	for _, err := range All {
		if GetErrorCode(err) == code {
			return err, true
		}
	}
	return nil, false
}

func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	nameDesc := parts[1]
	// Split on ':' to separate the error name from its description.
	nameParts := strings.SplitN(nameDesc, ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message. Wrapped
// errors report the code of the innermost coded error.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	err = coded(err)
	errStr := err.Error()
	// Check if the error string contains '|'.
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(coded(err))
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	errStr := coded(err).Error()
	parts := strings.SplitN(errStr, ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}

// coded unwraps err down to one of the sentinels in All, if any.
func coded(err error) error {
	for _, e := range All {
		if errors.Is(err, e) {
			return e
		}
	}
	return err
}
