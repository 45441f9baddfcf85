// Package shim provides inert stand-ins for the browser globals a module
// probes at startup (window, document and screen) so that it can run in a
// headless process.
//
// The stand-ins only have to survive property reads and method calls. They
// carry fixed geometry, report every lookup as "not found" and ignore event
// registration. One [Environment] is built at process start and passed to
// whichever guest runtime needs it.
package shim

import "os"

// Fixed geometry reported by the stand-ins.
const (
	ViewportWidth    = 1280
	ViewportHeight   = 720
	DevicePixelRatio = 1.0
)

// Location is the window's location descriptor. All fields are empty.
type Location struct {
	Search   string
	Href     string
	Hostname string
}

// Window stands in for the browser window object.
type Window struct {
	InnerWidth       int
	InnerHeight      int
	DevicePixelRatio float64
	Location         Location
}

// AddEventListener does nothing.
func (w *Window) AddEventListener(event string, handler any) {}

// RemoveEventListener does nothing.
func (w *Window) RemoveEventListener(event string, handler any) {}

// Element is what Document.CreateElement hands out.
type Element struct {
	TagName string
	Style   map[string]string
}

// Body stands in for document.body.
type Body struct{}

// AppendChild does nothing.
func (b *Body) AppendChild(child *Element) {}

// Document stands in for the browser document object.
type Document struct {
	URL  string
	Body *Body
}

// CreateElement returns a new element with an empty style on every call.
func (d *Document) CreateElement(tag string) *Element {
	return &Element{TagName: tag, Style: map[string]string{}}
}

// GetElementByID always reports not found.
func (d *Document) GetElementByID(id string) *Element { return nil }

// QuerySelector always reports not found.
func (d *Document) QuerySelector(selector string) *Element { return nil }

// AddEventListener does nothing.
func (d *Document) AddEventListener(event string, handler any) {}

// RemoveEventListener does nothing.
func (d *Document) RemoveEventListener(event string, handler any) {}

// Screen stands in for the browser screen object.
type Screen struct {
	Width  int
	Height int
}

// Environment bundles the stand-ins with the module's argument view.
type Environment struct {
	Window   *Window
	Document *Document
	Screen   *Screen
	Args     *ArgumentView
}

// NewEnvironment builds the stand-ins. argv is the process-level argument
// list the module should see (program and script first); nil means os.Args.
func NewEnvironment(argv []string) *Environment {
	source := func() []string { return os.Args }
	if argv != nil {
		source = func() []string { return argv }
	}
	return &Environment{
		Window: &Window{
			InnerWidth:       ViewportWidth,
			InnerHeight:      ViewportHeight,
			DevicePixelRatio: DevicePixelRatio,
		},
		Document: &Document{Body: &Body{}},
		Screen:   &Screen{Width: ViewportWidth, Height: ViewportHeight},
		Args:     NewArgumentView(source),
	}
}
