// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat defines the domain vocabulary shared by the session engine:
// rooms, messages, invites, and the typed push events carried over the
// live connection.
//
// Two identifier types matter for correctness. [MessageID] is assigned by
// the server and increases monotonically per room — it is the ordering key
// for timelines, because live pushes and paged history fetches arrive
// through independent paths and network jitter can reorder delivery.
// [RoomID] is the key for every per-room structure in the engine.
//
// Push events decode through [DecodeEvent] into a sealed [Event] set.
// Decode failures are returned to the caller for log-and-drop handling;
// a malformed server payload must never escalate into a connection
// failure.
package chat
