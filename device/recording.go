// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package device

import "honnef.co/go/safeish"

// Kernel is the body of a data-parallel stage, invoked once per logical
// thread. Threads of one dispatch may run concurrently and in any order.
type Kernel func(thread int)

// Recording is an ordered list of commands. Commands are executed in program
// order, and every command observes the side effects of all commands before
// it.
type Recording struct {
	Commands []Command
}

func (rec *Recording) push(cmd Command) {
	rec.Commands = append(rec.Commands, cmd)
}

// Dispatch records a kernel launch over threads logical threads.
func (rec *Recording) Dispatch(label string, threads int, kernel Kernel) {
	rec.push(&Dispatch{Label: label, Threads: threads, Kernel: kernel})
}

// Clear records zeroing data.
func (rec *Recording) Clear(label string, data []byte) {
	rec.push(&Clear{Label: label, Data: data})
}

// Copy records copying src to dst. Both have to have the same length.
func (rec *Recording) Copy(label string, dst, src []byte) {
	rec.push(&Copy{Label: label, Dst: dst, Src: src})
}

// Reset drops all commands, keeping the allocated capacity.
func (rec *Recording) Reset() {
	clear(rec.Commands)
	rec.Commands = rec.Commands[:0]
}

// ClearSlice records zeroing a typed buffer.
func ClearSlice[T any](rec *Recording, label string, s []T) {
	if len(s) == 0 {
		return
	}
	rec.Clear(label, safeish.SliceCast[[]byte](s))
}

// CopySlice records copying src into dst.
func CopySlice[T any](rec *Recording, label string, dst, src []T) {
	var dstBytes, srcBytes []byte
	if len(dst) > 0 {
		dstBytes = safeish.SliceCast[[]byte](dst)
	}
	if len(src) > 0 {
		srcBytes = safeish.SliceCast[[]byte](src)
	}
	rec.Copy(label, dstBytes, srcBytes)
}

type Command interface {
	isCommand()
}

func (*Dispatch) isCommand() {}
func (*Clear) isCommand()    {}
func (*Copy) isCommand()     {}

type Dispatch struct {
	Label   string
	Threads int
	Kernel  Kernel
}

type Clear struct {
	Label string
	Data  []byte
}

type Copy struct {
	Label string
	Dst   []byte
	Src   []byte
}
