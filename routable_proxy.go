// routable_proxy.go: Transparent stand-ins for segmented contracts
//
// Go cannot synthesize an implementation of an arbitrary interface at
// runtime, so a routed contract is exposed in one of two ways. A typed proxy
// is a small hand-written wrapper registered once per contract:
//
//	type editorProxy struct{ r plughost.Router[Editor] }
//
//	func (p editorProxy) Open(path string) error { return p.r.Route("Open").Open(path) }
//	func (p editorProxy) Save() error            { return p.r.Route("Save").Save() }
//
//	func init() {
//	    plughost.MustRegisterProxy(func(r plughost.Router[Editor]) Editor { return editorProxy{r} })
//	}
//
// A DynamicProxy dispatches by method name through a table built once per
// contract type, for contracts only known at runtime.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"fmt"
	"reflect"
	"sync"
)

// proxyRegistry holds the typed proxy constructors by contract type.
type proxyRegistry struct {
	mu       sync.RWMutex
	builders map[reflect.Type]any
}

var proxies = &proxyRegistry{builders: make(map[reflect.Type]any)}

// RegisterProxy registers the typed proxy of C.
func RegisterProxy[C any](build func(Router[C]) C) error {
	contract := reflect.TypeFor[C]()
	if contract.Kind() != reflect.Interface {
		return NewContractNotInterfaceError(ContractName(contract))
	}
	if build == nil {
		return NewInvalidProxyCallError(ContractName(contract), "", "proxy constructor is nil")
	}

	proxies.mu.Lock()
	defer proxies.mu.Unlock()

	if _, exists := proxies.builders[contract]; exists {
		return NewDuplicateProxyError(ContractName(contract))
	}
	proxies.builders[contract] = build
	return nil
}

// MustRegisterProxy is RegisterProxy that panics on error, for init functions.
func MustRegisterProxy[C any](build func(Router[C]) C) {
	if err := RegisterProxy(build); err != nil {
		panic(err)
	}
}

// HasProxy reports whether a typed proxy is registered for C.
func HasProxy[C any]() bool {
	proxies.mu.RLock()
	defer proxies.mu.RUnlock()
	_, ok := proxies.builders[reflect.TypeFor[C]()]
	return ok
}

// NewRoutableProxy wraps router in the typed proxy registered for C. Every
// method of the result routes the call and returns the routed results
// unchanged.
func NewRoutableProxy[C any](router Router[C]) (C, error) {
	var zero C
	contract := reflect.TypeFor[C]()

	proxies.mu.RLock()
	builder, ok := proxies.builders[contract]
	proxies.mu.RUnlock()
	if !ok {
		return zero, NewProxyNotRegisteredError(ContractName(contract))
	}
	return builder.(func(Router[C]) C)(router), nil
}

// dispatchTables caches the method index of every contract method.
var dispatchTables sync.Map // reflect.Type -> map[string]int

func dispatchTable(contract reflect.Type) map[string]int {
	if table, ok := dispatchTables.Load(contract); ok {
		return table.(map[string]int)
	}
	table := make(map[string]int, contract.NumMethod())
	for i := 0; i < contract.NumMethod(); i++ {
		table[contract.Method(i).Name] = i
	}
	actual, _ := dispatchTables.LoadOrStore(contract, table)
	return actual.(map[string]int)
}

// DynamicProxy forwards calls by method name.
type DynamicProxy[C any] struct {
	router   Router[C]
	contract reflect.Type
	methods  map[string]int
}

// NewDynamicProxy creates a dynamic proxy over router. C must be an
// interface type.
func NewDynamicProxy[C any](router Router[C]) (*DynamicProxy[C], error) {
	contract := reflect.TypeFor[C]()
	if contract.Kind() != reflect.Interface {
		return nil, NewContractNotInterfaceError(ContractName(contract))
	}
	return &DynamicProxy[C]{
		router:   router,
		contract: contract,
		methods:  dispatchTable(contract),
	}, nil
}

// Call routes method and invokes it with args.
//
// When the method's last result is an error, that error is returned as err
// exactly as the routed instance produced it and is left out of results.
// Misuse of the proxy (unknown method, wrong arguments) is reported as an
// InvalidProxyCall error. Panics of the routed method propagate.
func (p *DynamicProxy[C]) Call(method string, args ...any) (results []any, err error) {
	index, ok := p.methods[method]
	if !ok {
		return nil, NewInvalidProxyCallError(ContractName(p.contract), method, "contract has no such method")
	}

	target := p.router.Route(method)
	receiver := reflect.ValueOf(&target).Elem()
	if receiver.IsNil() {
		return nil, NewInvalidProxyCallError(ContractName(p.contract), method, "route resolved to nil")
	}
	fn := receiver.Method(index)

	in, err := p.arguments(method, fn.Type(), args)
	if err != nil {
		return nil, err
	}

	out := fn.Call(in)
	errorType := reflect.TypeFor[error]()
	if n := len(out); n > 0 && fn.Type().Out(n-1) == errorType {
		if last := out[n-1]; !last.IsNil() {
			err = last.Interface().(error)
		}
		out = out[:n-1]
	}
	results = make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, err
}

func (p *DynamicProxy[C]) arguments(method string, fnType reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := fnType.NumIn()
	if fnType.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, NewInvalidProxyCallError(ContractName(p.contract), method,
				fmt.Sprintf("want at least %d arguments, got %d", fixed, len(args)))
		}
	} else if len(args) != fixed {
		return nil, NewInvalidProxyCallError(ContractName(p.contract), method,
			fmt.Sprintf("want %d arguments, got %d", fixed, len(args)))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var param reflect.Type
		if i < fixed {
			param = fnType.In(i)
		} else {
			param = fnType.In(fixed).Elem()
		}
		value, err := argumentValue(arg, param)
		if err != nil {
			return nil, NewInvalidProxyCallError(ContractName(p.contract), method,
				fmt.Sprintf("argument %d: %v", i, err))
		}
		in[i] = value
	}
	return in, nil
}

func argumentValue(arg any, param reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch param.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", param)
	}
	value := reflect.ValueOf(arg)
	if !value.Type().AssignableTo(param) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", value.Type(), param)
	}
	return value, nil
}

// Contract returns the name of the proxied contract.
func (p *DynamicProxy[C]) Contract() string { return ContractName(p.contract) }
