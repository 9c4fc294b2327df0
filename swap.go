package hxfield

// SwapMode is an HTMX hx-swap strategy for the re-rendered field.
//
// See https://htmx.org/attributes/hx-swap/.
type SwapMode string

const (
	// SwapOuter replaces the field's wrapper element. This is the default.
	SwapOuter SwapMode = "outerHTML"

	// SwapNone discards the response. Controls that must keep focus while
	// the user types (text inputs updating on keyup) use it and rely on
	// the store alone.
	SwapNone SwapMode = "none"
)
