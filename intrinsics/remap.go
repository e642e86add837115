package intrinsics

// registerMathRemaps populates the Math/MathF standard-library surface that
// spec.md §4.4 names explicitly: "Math, MathF, BitConverter, BitOperations,
// Interlocked, CopySign, float/double helpers (IsNaN/IsInfinity/IsFinite)".
// Each entry points at the device-safe name dispatched in math.go.
func registerMathRemaps(r *Registry) {
	names := []string{
		"Sqrt", "Sin", "Cos", "Tan", "Sinh", "Cosh", "Tanh", "Asin", "Acos",
		"Atan", "Atan2", "Exp", "Log", "Log2", "Log10", "Pow", "Floor",
		"Ceiling", "Round", "Abs", "Min", "Max", "CopySign",
		"IsNaN", "IsInfinity", "IsFinite",
	}
	for _, decl := range []string{"Math", "MathF"} {
		for _, name := range names {
			r.remapTo(MethodKey{Type: decl, Method: name}, MethodKey{Type: "Device", Method: name})
		}
	}
}

// registerBitConverterRemaps handles the bit-reinterpretation helpers that
// lower straight to OpBitCastToInt/OpBitCastToFloat.
func registerBitConverterRemaps(r *Registry) {
	r.remapTo(MethodKey{Type: "BitConverter", Method: "DoubleToInt64Bits"}, MethodKey{Type: "Device", Method: "BitCastToInt"})
	r.remapTo(MethodKey{Type: "BitConverter", Method: "SingleToInt32Bits"}, MethodKey{Type: "Device", Method: "BitCastToInt"})
	r.remapTo(MethodKey{Type: "BitConverter", Method: "Int64BitsToDouble"}, MethodKey{Type: "Device", Method: "BitCastToFloat"})
	r.remapTo(MethodKey{Type: "BitConverter", Method: "Int32BitsToSingle"}, MethodKey{Type: "Device", Method: "BitCastToFloat"})
	r.remapTo(MethodKey{Type: "BitOperations", Method: "PopCount"}, MethodKey{Type: "Device", Method: "PopCount"})
	r.remapTo(MethodKey{Type: "BitOperations", Method: "LeadingZeroCount"}, MethodKey{Type: "Device", Method: "LeadingZeros"})
	r.remapTo(MethodKey{Type: "BitOperations", Method: "TrailingZeroCount"}, MethodKey{Type: "Device", Method: "TrailingZeros"})
}

// registerInterlockedRemaps redirects host-style Interlocked.* calls onto
// the Atomic category's device handlers.
func registerInterlockedRemaps(r *Registry) {
	r.remapTo(MethodKey{Type: "Interlocked", Method: "Add"}, MethodKey{Type: "Atomic", Method: "Add"})
	r.remapTo(MethodKey{Type: "Interlocked", Method: "Exchange"}, MethodKey{Type: "Atomic", Method: "Exchange"})
	r.remapTo(MethodKey{Type: "Interlocked", Method: "CompareExchange"}, MethodKey{Type: "Atomic", Method: "CompareExchange"})
	r.remapTo(MethodKey{Type: "Interlocked", Method: "And"}, MethodKey{Type: "Atomic", Method: "And"})
	r.remapTo(MethodKey{Type: "Interlocked", Method: "Or"}, MethodKey{Type: "Atomic", Method: "Or"})
}
