// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credentials, such as the chat server access
// token, outside the Go heap.
//
// [Buffer] allocates memory via mmap(MAP_ANONYMOUS), marks it excluded
// from core dumps via madvise(MADV_DONTDUMP), and locks it into RAM
// with mlock when the process's RLIMIT_MEMLOCK allows. On Close the
// memory is zeroed and unmapped. The garbage collector never sees the
// region, so it cannot leave copies behind.
//
// Constructors:
//
//   - [NewFromBytes] copies into protected memory and zeros the source
//   - [NewFromString] copies a string that is already on the heap
//   - [ReadFromPath] reads a token file, or stdin for "-"
//   - [ReadFromEnv] reads and unsets an environment variable
//
// [Buffer.BearerAuthorization] builds the Authorization header the
// chat client and push stream send.
//
// Depends on golang.org/x/sys/unix.
package secret
