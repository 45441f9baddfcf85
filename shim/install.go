package shim

import (
	"fmt"

	"github.com/dop251/goja"
)

// Install defines window, document and screen in vm and pins
// Module.arguments to env's argument view. If vm already has a window
// global an interactive host is assumed: nothing is touched and Install
// returns false.
func Install(vm *goja.Runtime, env *Environment) (bool, error) {
	if HasInteractiveHost(vm) {
		return false, nil
	}

	noop := vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() })

	window, err := newWindowObject(vm, env.Window, noop)
	if err != nil {
		return false, fmt.Errorf("window: %w", err)
	}
	document, err := newDocumentObject(vm, env.Document, noop)
	if err != nil {
		return false, fmt.Errorf("document: %w", err)
	}
	screen, err := setAll(vm.NewObject(), map[string]any{
		"width":  env.Screen.Width,
		"height": env.Screen.Height,
	})
	if err != nil {
		return false, fmt.Errorf("screen: %w", err)
	}

	global := vm.GlobalObject()
	for name, obj := range map[string]*goja.Object{
		"window":   window,
		"document": document,
		"screen":   screen,
	} {
		if err := global.Set(name, obj); err != nil {
			return false, fmt.Errorf("set %s: %w", name, err)
		}
	}

	if err := pinArguments(vm, env.Args, noop); err != nil {
		return false, err
	}
	return true, nil
}

// HasInteractiveHost reports whether vm already exposes a window global.
func HasInteractiveHost(vm *goja.Runtime) bool {
	v := vm.Get("window")
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func newWindowObject(vm *goja.Runtime, w *Window, noop goja.Value) (*goja.Object, error) {
	location, err := setAll(vm.NewObject(), map[string]any{
		"search":   w.Location.Search,
		"href":     w.Location.Href,
		"hostname": w.Location.Hostname,
	})
	if err != nil {
		return nil, err
	}
	return setAll(vm.NewObject(), map[string]any{
		"location":            location,
		"addEventListener":    noop,
		"removeEventListener": noop,
		"innerWidth":          w.InnerWidth,
		"innerHeight":         w.InnerHeight,
		"devicePixelRatio":    w.DevicePixelRatio,
	})
}

func newDocumentObject(vm *goja.Runtime, d *Document, noop goja.Value) (*goja.Object, error) {
	notFound := vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Null() })

	createElement := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		el := d.CreateElement(call.Argument(0).String())
		obj := vm.NewObject()
		_ = obj.Set("tagName", el.TagName)
		_ = obj.Set("style", vm.NewObject())
		return obj
	})

	body, err := setAll(vm.NewObject(), map[string]any{"appendChild": noop})
	if err != nil {
		return nil, err
	}
	return setAll(vm.NewObject(), map[string]any{
		"URL":                 d.URL,
		"createElement":       createElement,
		"getElementById":      notFound,
		"querySelector":       notFound,
		"addEventListener":    noop,
		"removeEventListener": noop,
		"body":                body,
	})
}

// pinArguments makes Module.arguments an accessor that always reads the
// argument view and silently drops assignments, so a loader that later
// rebuilds arguments from an (empty) URL query cannot replace them.
func pinArguments(vm *goja.Runtime, args *ArgumentView, noop goja.Value) error {
	var module *goja.Object
	if v := vm.Get("Module"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		module = v.ToObject(vm)
	} else {
		module = vm.NewObject()
		if err := vm.Set("Module", module); err != nil {
			return fmt.Errorf("set Module: %w", err)
		}
	}

	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		current := args.Args()
		items := make([]any, len(current))
		for i, a := range current {
			items[i] = a
		}
		return vm.NewArray(items...)
	})
	if err := module.DefineAccessorProperty("arguments", getter, noop, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		return fmt.Errorf("define Module.arguments: %w", err)
	}
	return nil
}

func setAll(obj *goja.Object, props map[string]any) (*goja.Object, error) {
	for k, v := range props {
		if err := obj.Set(k, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}
	return obj, nil
}
