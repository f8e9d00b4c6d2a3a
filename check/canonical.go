// Althread
// Copyright (C) 2024+ The Althread Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package check

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/althread-lang/althread/scheduler"
)

// canonicalBytes serializes g deterministically: shared variables in sorted
// name order, channels in sorted (sender program, sender port) order,
// processes in ascending pid order, each as (pid, program, status, pc,
// locals, stack) in declaration order. Clock (the count of instructions a
// process has executed) is deliberately excluded: it is a diagnostic
// counter, not part of the logical state, and two schedules reaching the
// same observable state via a different number of steps must hash equal.
// This is the byte stream the visited-set hash is computed over.
func canonicalBytes(g *scheduler.GlobalState) []byte {
	var buf []byte

	names := g.SharedNames()
	buf = appendUint32(buf, uint32(len(names)))
	for _, name := range names {
		buf = append(buf, name...)
		buf = append(buf, 0)
		buf = g.LoadShared(name).CanonicalBytes(buf)
	}

	chans := g.ChannelSnapshots()
	buf = appendUint32(buf, uint32(len(chans)))
	for _, ch := range chans {
		buf = append(buf, ch.SenderProg...)
		buf = append(buf, '.')
		buf = append(buf, ch.SenderPort...)
		buf = append(buf, 0)
		buf = appendUint32(buf, uint32(len(ch.Queue)))
		for _, v := range ch.Queue {
			buf = v.CanonicalBytes(buf)
		}
	}

	pids := make([]uint32, len(g.Order))
	copy(pids, g.Order)
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	buf = appendUint32(buf, uint32(len(pids)))
	for _, pid := range pids {
		snap := g.Processes[pid].Snapshot()
		buf = appendUint32(buf, snap.Pid)
		buf = append(buf, snap.Program...)
		buf = append(buf, 0)
		buf = append(buf, byte(snap.Status))
		buf = appendUint32(buf, uint32(snap.PC))
		buf = appendUint32(buf, uint32(len(snap.Locals)))
		for _, v := range snap.Locals {
			if v == nil {
				buf = append(buf, 0xff)
				continue
			}
			buf = v.CanonicalBytes(buf)
		}
		buf = appendUint32(buf, uint32(len(snap.Stack)))
		for _, v := range snap.Stack {
			buf = v.CanonicalBytes(buf)
		}
	}

	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// canonicalHash computes the visited-set key for g: a 128-bit digest (the
// first 16 bytes of sha256, following the teacher's file-checksum use of
// crypto/sha256) of the canonical byte stream, hex-encoded for use as a map
// key and for inclusion in rendered state-graph node ids.
func canonicalHash(g *scheduler.GlobalState) string {
	sum := sha256.Sum256(canonicalBytes(g))
	return hex.EncodeToString(sum[:16])
}
