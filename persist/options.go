package persist

// Options configures one Load call.
type Options struct {
	// Strict makes a decl_id that names no declared eager child (Case A)
	// or no potential slot (Case B) a hard load error instead of being
	// skipped. A slot record whose type the slot does not allow is an
	// error in either mode.
	Strict bool
}
