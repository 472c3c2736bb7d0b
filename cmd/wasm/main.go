//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"
)

func main() {
	c := make(chan struct{}, 0)

	fmt.Println("go-desig-tss WASM initialized")

	// Expose Go functions to JS
	js.Global().Set("GoDesig", map[string]interface{}{
		"DescribeShare":       js.FuncOf(DescribeShare),
		"Proactivate":         js.FuncOf(Proactivate),
		"DescribeTransaction": js.FuncOf(DescribeTransaction),
		"Verify":              js.FuncOf(Verify),
	})

	<-c
}

// DescribeShare returns the public fields of a secret string.
// Arguments:
// 0: secret string
// Returns:
// JSON string or "error: ..."
func DescribeShare(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return "error: expected 1 argument (secret)"
	}
	return result(describeShare(args[0].String()))
}

// Proactivate adds a zero-share to a secret string.
// Arguments:
// 0: secret string
// 1: hex compressed zero-share
// Returns:
// the updated secret string or "error: ..."
func Proactivate(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return "error: expected 2 arguments (secret, compressedHex)"
	}
	return result(proactivate(args[0].String(), args[1].String()))
}

// DescribeTransaction decodes a reconfiguration transaction.
// Arguments:
// 0: curve name
// 1: hex transaction buffer
// Returns:
// JSON string or "error: ..."
func DescribeTransaction(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return "error: expected 2 arguments (curve, bufferHex)"
	}
	return result(describeTransaction(args[0].String(), args[1].String()))
}

// Verify checks a group signature.
// Arguments:
// 0: curve name
// 1: hex master public key
// 2: hex message
// 3: hex signature
// Returns:
// true, or "error: ..."
func Verify(this js.Value, args []js.Value) interface{} {
	if len(args) != 4 {
		return "error: expected 4 arguments (curve, masterHex, messageHex, signatureHex)"
	}
	if err := verify(args[0].String(), args[1].String(), args[2].String(), args[3].String()); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return true
}

func result(s string, err error) interface{} {
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return s
}
