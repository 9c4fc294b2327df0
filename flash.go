package hxfield

import (
	"fmt"
	"strings"

	"github.com/a-h/templ"
)

// Toast levels.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// FlashDismissAfter is the toast lifetime in milliseconds, written to
// data-auto-dismiss for the page script.
var FlashDismissAfter = 3000

const (
	toastsOOB   = `<div id="toasts" hx-swap-oob="beforeend">`
	toastLayout = `<div class="toast toast-%s" role="status" data-auto-dismiss="%d">%s</div>`
)

// Flash is a toast sent along with a re-rendered field.
type Flash struct {
	Level   string
	Message string
}

func (f Flash) toast() string {
	return fmt.Sprintf(toastLayout, templ.EscapeString(f.Level), FlashDismissAfter, templ.EscapeString(f.Message))
}

func flashFor(ve *ValidationError) Flash {
	return Flash{Level: FlashError, Message: ve.Message}
}

// RenderFlashesOOB returns the toasts as an out-of-band fragment appended
// to #toasts, or "" when there are none.
func RenderFlashesOOB(flashes []Flash) string {
	if len(flashes) == 0 {
		return ""
	}
	parts := make([]string, 0, len(flashes)+2)
	parts = append(parts, toastsOOB)
	for _, f := range flashes {
		parts = append(parts, f.toast())
	}
	return strings.Join(append(parts, "</div>"), "")
}

// ToastContainer is the #toasts element. Render it once per page.
//
//	@hxfield.ToastContainer()
func ToastContainer() templ.Component {
	return templ.Raw(`<div id="toasts" class="toast-container" aria-live="polite"></div>`)
}
