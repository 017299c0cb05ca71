/*
 * Copyright (C) 2020-2026, IrineSistiana
 *
 * This file is part of llist.
 *
 * llist is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * llist is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package llist

import "errors"

var (
	ErrBusy              = errors.New("arena is held by another transaction")
	ErrTxDone            = errors.New("transaction has ended")
	ErrInvalidHandle     = errors.New("invalid node handle")
	ErrInvalidRoot       = errors.New("invalid root")
	ErrInvalidSlot       = errors.New("invalid slot")
	ErrLinked            = errors.New("node is linked")
	ErrNotLinked         = errors.New("node is not linked")
	ErrSuccessorMismatch = errors.New("successor does not match the slot content")
	ErrSelfLink          = errors.New("node cannot follow itself")
	ErrArenaFull         = errors.New("arena is full")
	ErrRootNotEmpty      = errors.New("root is not empty")
	ErrCorrupt           = errors.New("chain is corrupted")
)

// errByName maps the names used by scenario files to sentinel errors.
var errByName = map[string]error{
	"busy":               ErrBusy,
	"tx_done":            ErrTxDone,
	"invalid_handle":     ErrInvalidHandle,
	"invalid_root":       ErrInvalidRoot,
	"invalid_slot":       ErrInvalidSlot,
	"linked":             ErrLinked,
	"not_linked":         ErrNotLinked,
	"successor_mismatch": ErrSuccessorMismatch,
	"self_link":          ErrSelfLink,
	"arena_full":         ErrArenaFull,
	"root_not_empty":     ErrRootNotEmpty,
	"corrupt":            ErrCorrupt,
}

// ErrorByName returns the sentinel error registered as name.
func ErrorByName(name string) (error, bool) {
	err, ok := errByName[name]
	return err, ok
}
