package wasm

import (
	"fmt"
	"strings"
	"time"
)

// CompilationError occurs when engine module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile engine module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// HostModuleError occurs when the env host module cannot be built
type HostModuleError struct {
	Module string
	Err    error
}

func (e *HostModuleError) Error() string {
	return fmt.Sprintf("failed to instantiate host module '%s': %v", e.Module, e.Err)
}

func (e *HostModuleError) Unwrap() error {
	return e.Err
}

// UnresolvedImportsError lists env imports no host exporter provides
type UnresolvedImportsError struct {
	ModuleName string
	Imports    []string
}

func (e *UnresolvedImportsError) Error() string {
	return fmt.Sprintf("module '%s' has unresolved imports: %s",
		e.ModuleName, strings.Join(e.Imports, ", "))
}

// InstanceLimitError occurs when MaxInstances is reached
type InstanceLimitError struct {
	Limit int
}

func (e *InstanceLimitError) Error() string {
	return fmt.Sprintf("instance limit reached (%d)", e.Limit)
}

// TimeoutError occurs when an engine call times out
type TimeoutError struct {
	Function string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine call '%s' timed out after %v", e.Function, e.Duration)
}
