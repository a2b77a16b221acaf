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

package homa

// DeadList is a socket's intrusive queue of RPCs that have been freed but
// not yet reaped: doubly-linked through RpcRecord.deadNext/deadPrev so Reap
// can unlink an arbitrary entry in O(1) while walking front to back.
type DeadList struct {
	head, tail *RpcRecord
	len        int
}

func newDeadList() *DeadList {
	return &DeadList{}
}

// pushBack appends r. Called under the socket lock by Free.
func (d *DeadList) pushBack(r *RpcRecord) {
	r.deadNext = nil
	r.deadPrev = d.tail
	if d.tail != nil {
		d.tail.deadNext = r
	} else {
		d.head = r
	}
	d.tail = r
	d.len++
}

// remove unlinks r. Called under the socket lock by Reap once a record's
// resources are fully spliced/drained.
func (d *DeadList) remove(r *RpcRecord) {
	if r.deadPrev != nil {
		r.deadPrev.deadNext = r.deadNext
	} else {
		d.head = r.deadNext
	}
	if r.deadNext != nil {
		r.deadNext.deadPrev = r.deadPrev
	} else {
		d.tail = r.deadPrev
	}
	r.deadNext, r.deadPrev = nil, nil
	d.len--
}

// Front returns the oldest entry, or nil if the list is empty.
func (d *DeadList) Front() *RpcRecord {
	return d.head
}

// Len returns the number of records currently on the list.
func (d *DeadList) Len() int {
	return d.len
}
