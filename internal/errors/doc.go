// Package errors provides structured, actionable errors for the server.
//
// Each error has a unique code (e.g., "E220") that maps to a short message,
// a detailed explanation and a documentation URL. Errors wrap their cause so
// errors.Is and errors.As keep working.
//
// # Usage
//
//	err := errors.New(errors.CodeAddressInUse).
//	    Wrap(cause).
//	    WithDetailf("%s is already bound", addr).
//	    WithSuggestion("Pick another port with --port")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E220: Address already in use
//	//
//	//   localhost:3000 is already bound
//	//
//	//   Cause: listen tcp 127.0.0.1:3000: bind: address already in use
//	//
//	//   Hint: Pick another port with --port
//	//
//	//   Learn more: https://vserve.dev/docs/errors/E220
package errors
