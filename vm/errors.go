package vm

import "fmt"

// JavaException is the bundled reference representation of a
// Java-level exception value, carried in Value.Ref when an exception
// crosses the throw/unwind boundary. The real object model (out of
// scope for this core) would carry a heap reference instead; this is
// enough to drive handler matching and uncaught dispatch independent
// of a real object model.
type JavaException struct {
	ClassName string
	Message   string
	Cause     *JavaException
}

func (e *JavaException) Error() string {
	if e.Message == "" {
		return e.ClassName
	}
	return e.ClassName + ": " + e.Message
}

// NewJavaException wraps a class name and message as a throwable
// Value, ready for Thread.ThrowException.
func NewJavaException(className, message string) Value {
	return Value{Kind: KindRef, Ref: &JavaException{ClassName: className, Message: message}}
}

func exceptionClassName(exc Value) string {
	if je, ok := exc.Ref.(*JavaException); ok {
		return je.ClassName
	}
	return ""
}

// UnresolvableClassError is returned by a ClassLoader when a class
// name cannot be resolved.
type UnresolvableClassError struct {
	ClassName string
}

func (e *UnresolvableClassError) Error() string {
	return fmt.Sprintf("unresolvable class: %s", e.ClassName)
}

// UnsatisfiedLinkError is thrown when a native method is a stub with
// no registered implementation.
func UnsatisfiedLinkError(methodName string) Value {
	return NewJavaException("java/lang/UnsatisfiedLinkError", "no native implementation for "+methodName)
}

// StubNative returns a NativeFunc that always throws
// UnsatisfiedLinkError, for methods whose real implementation has not
// been registered yet.
func StubNative(methodName string) NativeFunc {
	return func(t *Thread, receiver Value, args []Value) (Value, bool) {
		t.ThrowException(UnsatisfiedLinkError(methodName))
		return AbsentValue, true
	}
}

// throwNewException is the construct-and-throw convenience helper: if
// the class is already initialized, throw immediately; otherwise
// initialize it first and throw on the init callback. If the nested
// construction fails with its own exception, that exception replaces
// the requested one — mirrored here by simply throwing whatever
// throwNewException constructs, since this reference implementation
// builds JavaException values directly rather than invoking a real
// <init>.
func throwNewException(t *Thread, className, message string) {
	cl := t.classLoader
	if cl == nil {
		t.ThrowException(NewJavaException(className, message))
		return
	}
	if _, ok := cl.GetInitializedClass(t, className); ok {
		t.ThrowException(NewJavaException(className, message))
		return
	}
	t.SetStatus(AsyncWaiting)
	cl.InitializeClass(t, className, func(err error) {
		if err != nil {
			t.ThrowException(NewJavaException("java/lang/NoClassDefFoundError", err.Error()))
			return
		}
		t.ThrowException(NewJavaException(className, message))
	}, true)
}
