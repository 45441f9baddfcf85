package shim

// reservedArgs is the number of leading process arguments (executable and
// script path) hidden from the module.
const reservedArgs = 2

// ArgumentView exposes the live process argument list minus its first two
// entries. It has no backing storage of its own: every read goes back to the
// source.
type ArgumentView struct {
	source func() []string
}

// NewArgumentView returns a view over source.
func NewArgumentView(source func() []string) *ArgumentView {
	return &ArgumentView{source: source}
}

// Args returns a fresh copy of source()[2:].
func (v *ArgumentView) Args() []string {
	all := v.source()
	if len(all) <= reservedArgs {
		return []string{}
	}
	out := make([]string, len(all)-reservedArgs)
	copy(out, all[reservedArgs:])
	return out
}

// SetArgs accepts and discards a replacement argument list. Module loaders
// overwrite their arguments from a URL query when they think they are in a
// browser; this keeps the real command line in place.
func (v *ArgumentView) SetArgs(args []string) {}
