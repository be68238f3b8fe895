package codeview

// MethodSymbols groups a managed procedure with the custom debug information
// blob found inside its scope.
type MethodSymbols struct {
	Proc            *ManProcSym
	Global          bool
	CustomDebugInfo []byte // nil if the method has none; aliases the stream
}

// ScanManagedMethods walks a module symbol stream and returns its top-level
// managed procedures in stream order. The first MD2 OEM record nested
// anywhere in a procedure's scope is attributed to it.
//
// Records after a damaged length are not visited; the methods collected so
// far are returned together with the parse error.
func ScanManagedMethods(data []byte) ([]MethodSymbols, error) {
	symbols, err := ParseSymbols(data)

	var methods []MethodSymbols
	var current *MethodSymbols
	depth := 0

	for _, sym := range symbols {
		switch {
		case IsManagedProcSymbol(sym.Kind) && depth == 0:
			if proc, perr := ParseManProcSym(sym.Data); perr == nil {
				current = &MethodSymbols{Proc: proc, Global: IsGlobalSymbol(sym.Kind)}
			}

		case sym.Kind == S_OEM && current != nil && current.CustomDebugInfo == nil:
			if blob, ok := ParseCustomDebugInfo(sym.Data); ok {
				current.CustomDebugInfo = blob
			}
		}

		if OpensScope(sym.Kind) {
			depth++
		} else if ClosesScope(sym.Kind) && depth > 0 {
			depth--
			if depth == 0 && current != nil {
				methods = append(methods, *current)
				current = nil
			}
		}
	}

	if current != nil {
		methods = append(methods, *current)
	}

	return methods, err
}
