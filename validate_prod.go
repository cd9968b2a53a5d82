//go:build !debug_malloc

package malloc

// DebugValidate will call Validate on the provided object and panics if any
// errors are returned. This function no-ops unless the debug_malloc build
// tag is present.
func DebugValidate(validatable Validatable) {
}
