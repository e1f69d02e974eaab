// Package errors provides examples of structured error handling in harvest runs.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/harvest/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeConfig, "unknown collection").
		WithDetail("foreach", "RecoTracks")

	fmt.Println(err.Error())

	// Output:
	// config: unknown collection
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrShortWrite, errors.ErrorTypeFile, "failed to write tree").
		WithDetail("name", "pr_tree")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	if errors.Is(err, io.ErrShortWrite) {
		fmt.Println("Cause is preserved")
	}

	// Output:
	// This is a file error
	// Cause is preserved
}

// ExampleIsFatal shows which faults abort a run.
func ExampleIsFatal() {
	fmt.Println(errors.IsFatal(errors.New(errors.ErrorTypeAccumulation, "mode changed")))
	fmt.Println(errors.IsFatal(errors.New(errors.ErrorTypeConfig, "bad folder")))
	fmt.Println(errors.IsFatal(errors.New(errors.ErrorTypeRefinement, "missing column q")))
	fmt.Println(errors.IsFatal(io.EOF))

	// Output:
	// true
	// true
	// false
	// false
}

// ExampleIsType demonstrates that type checks look at the outermost error.
func ExampleIsType() {
	inner := errors.New(errors.ErrorTypeNotFound, "column q")
	outer := errors.Wrap(inner, errors.ErrorTypeRefinement, "histogram failed")

	fmt.Printf("outer is refinement: %v\n", errors.IsType(outer, errors.ErrorTypeRefinement))
	fmt.Printf("outer is not_found: %v\n", errors.IsType(outer, errors.ErrorTypeNotFound))
	fmt.Println(outer)

	// Output:
	// outer is refinement: true
	// outer is not_found: false
	// refinement: histogram failed: not_found: column q
}
