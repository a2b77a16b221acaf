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

package errors

// FuncMap is called for each error in a chain (the error itself, then each
// parent depth-first); returning false stops the walk early.
type FuncMap func(e error) bool

// Error extends the standard error with a CodeError classification and a
// parent chain, while staying compatible with errors.Is/errors.As.
type Error interface {
	error

	// IsCode reports whether this error's own code equals code (parents
	// are not considered).
	IsCode(code CodeError) bool
	// HasCode reports whether this error or any parent has code.
	HasCode(code CodeError) bool
	// GetCode returns this error's own code.
	GetCode() CodeError
	// GetParentCode returns the unique set of codes across this error and
	// all of its parents.
	GetParentCode() []CodeError

	// Is implements errors.Is compatibility.
	Is(e error) bool
	// HasParent reports whether this error has at least one parent.
	HasParent() bool
	// GetParent returns the flattened parent chain, optionally including
	// this error itself as the first element.
	GetParent(withSelf bool) []error
	// Map walks this error then its parents depth-first.
	Map(fct FuncMap) bool

	// Add appends non-nil errors as parents of this error.
	Add(parent ...error)
	// SetParent replaces the parent chain entirely.
	SetParent(parent ...error)

	// Unwrap supports errors.Is/errors.As over the parent chain.
	Unwrap() []error
}

// New builds an Error with the given numeric code, message, and parents.
func New(code uint16, message string, parent ...error) Error {
	e := &ers{c: code, e: message}
	e.Add(parent...)
	return e
}

// IfError returns nil unless at least one entry of errs is non-nil, in
// which case it returns a new Error of (code, message) parenting every
// non-nil entry.
func IfError(code uint16, message string, errs ...error) Error {
	var parents []error
	for _, e := range errs {
		if e != nil {
			parents = append(parents, e)
		}
	}
	if len(parents) == 0 {
		return nil
	}
	return New(code, message, parents...)
}
