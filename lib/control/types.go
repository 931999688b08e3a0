// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package control

// Actions a control request may carry.
const (
	ActionUnlock  = "unlock"
	ActionLock    = "lock"
	ActionStatus  = "status"
	ActionRefresh = "refresh"
)

// Request is one control command. Password is only meaningful for
// the unlock action.
type Request struct {
	Action   string `json:"action"`
	Password string `json:"password,omitempty"`
}

// Response reports the outcome of a request. Locked is present only
// on status responses.
type Response struct {
	OK     bool   `json:"ok"`
	Locked *bool  `json:"locked,omitempty"`
	Reason string `json:"reason,omitempty"`
}
