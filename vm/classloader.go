package vm

// ResolvedClass is the minimal class-identity surface the thread core
// needs from a resolved class: its binary name and an assignability
// check for exception-handler matching. Everything else about
// classes — fields, methods, the constant pool — belongs to the
// class loader and object model, both out of scope here.
type ResolvedClass interface {
	Name() string
	IsAssignableFrom(className string) bool
}

// ClassLoader is the external collaborator class resolution and
// initialization is delegated to. It is responsible for driving a
// waiting thread through AsyncWaiting <-> Runnable across asynchronous
// resolution.
type ClassLoader interface {
	GetResolvedClass(name string) (ResolvedClass, bool)
	GetInitializedClass(t *Thread, name string) (ResolvedClass, bool)

	// ResolveClasses resolves a batch of class names, invoking
	// callback exactly once when done (with the first resolution
	// error, if any).
	ResolveClasses(t *Thread, names []string, callback func(err error))

	// InitializeClass runs <clinit> (if initStatic) and invokes
	// callback exactly once when the class is ready.
	InitializeClass(t *Thread, name string, callback func(err error), initStatic bool)
}

// ---------------------------------------------------------------------------
// staticClassLoader: bundled reference ClassLoader
// ---------------------------------------------------------------------------

// staticResolvedClass is a minimal ResolvedClass backed by a static
// superclass-name chain, enough to exercise exception-handler matching
// in tests and the demo without a real constant pool.
type staticResolvedClass struct {
	name       string
	superNames []string // names this class is assignable to, inclusive of itself
	loader     *staticClassLoader
}

func (c *staticResolvedClass) Name() string { return c.name }

// IsAssignableFrom reports whether a value of class className can be
// stored as this class: className is this class itself, or a class
// registered with the same loader whose superNames include this class.
func (c *staticResolvedClass) IsAssignableFrom(className string) bool {
	if className == c.name {
		return true
	}
	if c.loader == nil {
		return false
	}
	sub, ok := c.loader.classes[className]
	if !ok {
		return false
	}
	for _, n := range sub.superNames {
		if n == c.name {
			return true
		}
	}
	return false
}

// staticClassLoader is a reference ClassLoader over a pre-populated
// table, used by tests and cmd/jvmcore-demo. Resolution is deferred one
// dispatcher tick to exercise the asynchronous resolution path, the
// same one-shot-reply-over-a-channel shape the pack's daios-ai-msg
// interpreter uses for its owner/enqueueOwner pattern, simplified here
// to a plain deferred callback since this core's single goroutine
// already provides the serialization a channel would otherwise buy.
type staticClassLoader struct {
	pool    *Pool
	classes map[string]*staticResolvedClass
	failing map[string]bool // names that will always fail to resolve
}

// NewStaticClassLoader creates a reference ClassLoader bound to pool's
// dispatcher for deferred (simulated-async) resolution.
func NewStaticClassLoader(pool *Pool) *staticClassLoader {
	return &staticClassLoader{
		pool:    pool,
		classes: make(map[string]*staticResolvedClass),
		failing: make(map[string]bool),
	}
}

// Register adds a class to the table. superNames should include the
// class's own name and every ancestor/implemented-interface name an
// exception handler might legally catch it as.
func (l *staticClassLoader) Register(name string, superNames ...string) {
	l.classes[name] = &staticResolvedClass{name: name, superNames: append([]string{name}, superNames...), loader: l}
}

// MarkUnresolvable makes name permanently fail resolution, for
// exercising the handler-resolution-failure memoization path.
func (l *staticClassLoader) MarkUnresolvable(name string) {
	l.failing[name] = true
}

func (l *staticClassLoader) GetResolvedClass(name string) (ResolvedClass, bool) {
	c, ok := l.classes[name]
	if !ok {
		return nil, false
	}
	return c, true
}

func (l *staticClassLoader) GetInitializedClass(t *Thread, name string) (ResolvedClass, bool) {
	return l.GetResolvedClass(name)
}

func (l *staticClassLoader) ResolveClasses(t *Thread, names []string, callback func(err error)) {
	l.pool.dispatcher.Defer(func() {
		for _, n := range names {
			if l.failing[n] {
				callback(&UnresolvableClassError{ClassName: n})
				return
			}
			if _, ok := l.classes[n]; !ok {
				callback(&UnresolvableClassError{ClassName: n})
				return
			}
		}
		callback(nil)
	})
}

func (l *staticClassLoader) InitializeClass(t *Thread, name string, callback func(err error), initStatic bool) {
	l.pool.dispatcher.Defer(func() {
		if _, ok := l.classes[name]; !ok {
			callback(&UnresolvableClassError{ClassName: name})
			return
		}
		callback(nil)
	})
}
