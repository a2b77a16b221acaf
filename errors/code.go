/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package errors carries the closed set of error kinds the Homa core
// surfaces to its callers (spec section 7), each tagged with a CodeError
// so callers can switch on kind instead of matching message strings.
package errors

import (
	"math"
	"sort"
	"strconv"
)

// Message generates the display string for a CodeError. Registered per
// code (or per range start) via RegisterIdFctMessage.
type Message func(code CodeError) (message string)

// CodeError classifies an error the way an HTTP status code classifies a
// response: a small closed set of kinds the core promises to return.
type CodeError uint16

const (
	// UnknownError is the fallback code when none of the below apply.
	UnknownError CodeError = 0

	// AllocationFailure: the underlying allocator (record, descriptor
	// vector, ...) refused a request.
	AllocationFailure CodeError = iota*100 + 100

	// Shutdown: the socket is shutting down; no new publication accepted.
	Shutdown

	// PeerResolutionFailed: the peer registry returned an error,
	// propagated verbatim as this error's parent.
	PeerResolutionFailed

	// MsginInitFailed: inbound message state setup rejected the declared
	// length or unscheduled-bytes budget.
	MsginInitFailed

	// InvalidArgument: malformed BufferPool configuration.
	InvalidArgument

	// ResourceExhausted: BufferPool cannot currently satisfy an
	// allocation right now.
	ResourceExhausted
)

const (
	UnknownMessage = "unknown error"
	NullMessage    = ""
)

var idMsgFct = map[CodeError]Message{
	AllocationFailure:    func(CodeError) string { return "allocation failure" },
	Shutdown:             func(CodeError) string { return "socket is shutting down" },
	PeerResolutionFailed: func(CodeError) string { return "peer resolution failed" },
	MsginInitFailed:      func(CodeError) string { return "inbound message initialization failed" },
	InvalidArgument:      func(CodeError) string { return "invalid argument" },
	ResourceExhausted:    func(CodeError) string { return "resource exhausted" },
}

// RegisterIdFctMessage registers (or overrides) the message function for a
// code. Exists so callers embedding this package can extend the closed set
// with their own application-level codes without forking the package.
func RegisterIdFctMessage(code CodeError, fct Message) {
	idMsgFct[code] = fct
}

// ExistInMapMessage reports whether code has a registered message function.
func ExistInMapMessage(code CodeError) bool {
	f, ok := idMsgFct[code]
	return ok && f(code) != NullMessage
}

func ParseCodeError(i int64) CodeError {
	if i < 0 {
		return UnknownError
	} else if i >= int64(math.MaxUint16) {
		return math.MaxUint16
	}
	return CodeError(i)
}

func (c CodeError) Uint16() uint16 { return uint16(c) }
func (c CodeError) Int() int       { return int(c) }
func (c CodeError) String() string { return strconv.Itoa(c.Int()) }

// Message returns the registered human-readable string for c, or
// UnknownMessage if c has none.
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}
	if f, ok := idMsgFct[c]; ok {
		if m := f(c); m != NullMessage {
			return m
		}
	}
	return UnknownMessage
}

// Error builds a new Error of this code, optionally chaining parent errors
// (e.g. PeerResolutionFailed.Error(peerErr) propagates peerErr verbatim).
func (c CodeError) Error(p ...error) Error {
	return New(c.Uint16(), c.Message(), p...)
}

// IfError returns nil unless at least one of e is non-nil, in which case
// it returns a new Error of this code parenting every non-nil entry.
func (c CodeError) IfError(e ...error) Error {
	return IfError(c.Uint16(), c.Message(), e...)
}

func sortedCodes() []CodeError {
	keys := make([]int, 0, len(idMsgFct))
	for k := range idMsgFct {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	res := make([]CodeError, 0, len(keys))
	for _, k := range keys {
		res = append(res, CodeError(k))
	}
	return res
}
