package fetcher

// Registry maps fetcher kinds to their implementations. It is populated
// once at startup and read-only afterwards; lookups are safe for
// concurrent readers once registration is done.
type Registry struct {
	kinds map[string]Fetcher
	order []string
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Fetcher)}
}

// Register adds a fetcher under its kind. The fetcher is validated for
// conformance here rather than at call time, so a misdeclared plugin is
// rejected before any resolution traffic.
func (r *Registry) Register(f Fetcher) error {
	kind := f.Kind()
	if kind == "" {
		return &InvalidFetcherError{Kind: kind, Reason: "empty kind"}
	}
	if _, ok := r.kinds[kind]; ok {
		return &DuplicateKindError{Kind: kind}
	}
	if err := validateSpec(f); err != nil {
		return err
	}

	r.kinds[kind] = f
	r.order = append(r.order, kind)
	return nil
}

// Lookup returns the fetcher registered for kind.
func (r *Registry) Lookup(kind string) (Fetcher, error) {
	f, ok := r.kinds[kind]
	if !ok {
		return nil, &UnknownKindError{Kind: kind}
	}
	return f, nil
}

// Kinds returns all registered kinds in registration order. Registration
// order is the tie-break when probing shortcut grammars.
func (r *Registry) Kinds() []string {
	kinds := make([]string, len(r.order))
	copy(kinds, r.order)
	return kinds
}

// validateSpec checks the declared shape of a fetcher: non-empty unique
// inputs and a version field that is one of them.
func validateSpec(f Fetcher) error {
	kind := f.Kind()
	inputs := f.Inputs()
	if len(inputs) == 0 {
		return &InvalidFetcherError{Kind: kind, Reason: "no inputs declared"}
	}

	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in == "" {
			return &InvalidFetcherError{Kind: kind, Reason: "empty input name"}
		}
		if seen[in] {
			return &InvalidFetcherError{Kind: kind, Reason: "duplicate input " + in}
		}
		seen[in] = true
	}

	if vf := f.VersionField(); !seen[vf] {
		return &InvalidFetcherError{Kind: kind, Reason: "version field " + vf + " not among inputs"}
	}

	return nil
}
